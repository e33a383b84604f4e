// Package identity manages user accounts and authentication: who can log
// in, which role they carry, and which health unit they belong to.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/platform/auth"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         auth.Role `json:"role"`
	LocationID   uuid.UUID `json:"location_id"`
	LocationName string    `json:"location_name"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal converts the user into the acting principal embedded in tokens
// and request contexts.
func (u *User) Principal() auth.Principal {
	return auth.Principal{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		LocationID:   u.LocationID,
		LocationName: u.LocationName,
	}
}

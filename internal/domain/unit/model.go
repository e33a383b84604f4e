// Package unit is the registry of municipal health units. The location ids
// carried by stock records, distributions and principals refer to entries
// here.
package unit

import (
	"time"

	"github.com/google/uuid"
)

type HealthUnit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

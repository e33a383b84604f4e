package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of roles known to the system. Keeping it a typed
// enum forces every operation that branches on role to handle the full set.
type Role string

const (
	RoleAdmin       Role = "admin"
	RolePharmacist  Role = "pharmacist"
	RoleDistributor Role = "distributor"
	RoleHealthUnit  Role = "health_unit"
	RoleUser        Role = "user"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RolePharmacist, RoleDistributor, RoleHealthUnit, RoleUser:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Principal is the authenticated actor performing an operation. Services
// read the role and home location to gate transitions; they never mutate it.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	LocationID   uuid.UUID `json:"location_id"`
	LocationName string    `json:"location_name"`
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored on the context,
// or a zero Principal and false when none is present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

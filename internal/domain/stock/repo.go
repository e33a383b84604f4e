package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchFilter narrows Search results. Zero values mean "no restriction";
// LocationID is set by the service for non-administrator principals.
type SearchFilter struct {
	Query      string
	Status     Status
	LocationID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction so concurrent decrements cannot interleave.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Medication, error)
	FindByName(ctx context.Context, name string) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	// UpdateQuantity persists quantity and the recomputed status in one
	// statement so no reader ever observes them inconsistent.
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status Status) error
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Medication, int, error)
	ListLowStock(ctx context.Context, locationID uuid.UUID) ([]*Medication, error)
	ListExpiringBefore(ctx context.Context, boundary time.Time, locationID uuid.UUID) ([]*Medication, error)
}

type MovementRepository interface {
	Create(ctx context.Context, mv *Movement) error
	ListByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*Movement, int, error)
}

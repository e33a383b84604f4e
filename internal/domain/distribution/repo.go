package distribution

import (
	"context"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/stock"
	"github.com/medstock/medstock/internal/domain/unit"
)

// ListFilter narrows List results. Query matches medicine name, destination
// and batch number as a case-insensitive substring. LocationID is forced to
// the principal's home unit for non-administrators.
type ListFilter struct {
	Query      string
	Status     Status
	LocationID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, d *Distribution) error
	GetByID(ctx context.Context, id uuid.UUID) (*Distribution, error)
	// GetByIDForUpdate locks the record so two approvals of the same
	// distribution cannot interleave.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Distribution, error)
	Update(ctx context.Context, d *Distribution) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Distribution, int, error)
}

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	// Delete removes a request from the queue after its one-way promotion
	// into a Distribution.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, unitID uuid.UUID, limit, offset int) ([]*Request, int, error)
}

// MedicineStore is the slice of the stock repository the ledger needs:
// resolve a medicine, lock its row, and persist a decrement together with
// the recomputed status.
type MedicineStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*stock.Medication, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.Medication, error)
	FindByName(ctx context.Context, name string) (*stock.Medication, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status stock.Status) error
}

// UnitStore resolves health-unit ids to registry entries for denormalized
// location labels.
type UnitStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*unit.HealthUnit, error)
}

// TxRunner executes fn inside a single database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier receives one human-readable outcome message per operation.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

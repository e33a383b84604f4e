package dispensation

import (
	"context"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/stock"
)

type Repository interface {
	Create(ctx context.Context, d *Dispensation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dispensation, error)
	// List returns dispensations, optionally scoped to one location.
	List(ctx context.Context, locationID uuid.UUID, limit, offset int) ([]*Dispensation, int, error)
}

// MedicineStore is the slice of the stock repository dispensing needs.
type MedicineStore interface {
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.Medication, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status stock.Status) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

package unit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *HealthUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthUnit, error)
	Update(ctx context.Context, u *HealthUnit) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*HealthUnit, int, error)
}

package unit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func requireAdmin(ctx context.Context) error {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no authenticated principal: %w", shared.ErrPermissionDenied)
	}
	if p.Role != auth.RoleAdmin {
		return fmt.Errorf("role %s may not manage health units: %w", p.Role, shared.ErrPermissionDenied)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, u *HealthUnit) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if u.Name == "" {
		return fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	u.Active = true
	return s.repo.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*HealthUnit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, u *HealthUnit) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if u.Name == "" {
		return fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, u.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, u)
}

// SetActive flips the active flag. Units are never deleted; stock records
// and distributions keep referencing them.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*HealthUnit, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*HealthUnit, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

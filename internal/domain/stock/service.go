package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/platform/auth"
)

// TxRunner executes fn inside a single database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier receives one human-readable outcome message per operation.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

type Service struct {
	repo        Repository
	movements   MovementRepository
	tx          TxRunner
	notifier    Notifier
	horizonDays int
	now         func() time.Time
}

// NewService builds the stock service. horizonDays is the near-expiry
// horizon applied uniformly at every status computation; 0 means a batch
// counts as expired only from its expiration date onward.
func NewService(repo Repository, movements MovementRepository, tx TxRunner, notifier Notifier, horizonDays int) *Service {
	return &Service{
		repo:        repo,
		movements:   movements,
		tx:          tx,
		notifier:    notifier,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.Principal{}, fmt.Errorf("no authenticated principal: %w", shared.ErrPermissionDenied)
	}
	return p, nil
}

// fail reports the rejection through the notifier and passes the error
// through unchanged, so every failed mutation emits exactly one message.
func (s *Service) fail(ctx context.Context, err error) error {
	s.notifier.Error(ctx, err.Error())
	return err
}

// canManage reports whether the principal may mutate stock at the given
// location: administrators anywhere, pharmacists only at their own unit.
func canManage(p auth.Principal, locationID uuid.UUID) bool {
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RolePharmacist:
		return p.LocationID == locationID
	case auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser:
		return false
	}
	return false
}

func (s *Service) validate(m *Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	if m.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", shared.ErrValidation)
	}
	if m.MinQuantity < 0 {
		return fmt.Errorf("min_quantity must not be negative: %w", shared.ErrValidation)
	}
	if m.Expiration.IsZero() {
		return fmt.Errorf("expiration is required: %w", shared.ErrValidation)
	}
	if m.LocationID == uuid.Nil {
		return fmt.Errorf("location_id is required: %w", shared.ErrValidation)
	}
	return nil
}

// Register creates a stock record. The stored status is always derived here,
// never taken from the caller.
func (s *Service) Register(ctx context.Context, m *Medication) error {
	p, err := principal(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	if !canManage(p, m.LocationID) {
		return s.fail(ctx, fmt.Errorf("role %s may not register stock at location %s: %w", p.Role, m.LocationID, shared.ErrPermissionDenied))
	}
	if err := s.validate(m); err != nil {
		return s.fail(ctx, err)
	}
	m.Status = ComputeStatus(m.Quantity, m.MinQuantity, m.Expiration, s.now(), s.horizonDays)
	if err := s.repo.Create(ctx, m); err != nil {
		return s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("medication %s registered", m.Name))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.repo.GetByID(ctx, id)
}

// List searches stock. Non-administrator principals only see records owned
// by their home location, regardless of the filter they send.
func (s *Service) List(ctx context.Context, f SearchFilter, limit, offset int) ([]*Medication, int, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, 0, err
	}
	if p.Role != auth.RoleAdmin {
		f.LocationID = p.LocationID
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// Update rewrites a record's descriptive fields and recomputes status from
// whatever quantity/expiration the record now carries.
func (s *Service) Update(ctx context.Context, m *Medication) error {
	p, err := principal(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	current, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return s.fail(ctx, err)
	}
	if !canManage(p, current.LocationID) {
		return s.fail(ctx, fmt.Errorf("role %s may not update stock at location %s: %w", p.Role, current.LocationID, shared.ErrPermissionDenied))
	}
	if err := s.validate(m); err != nil {
		return s.fail(ctx, err)
	}
	m.Status = ComputeStatus(m.Quantity, m.MinQuantity, m.Expiration, s.now(), s.horizonDays)
	if err := s.repo.Update(ctx, m); err != nil {
		return s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("medication %s updated", m.Name))
	return nil
}

// Adjust applies a manual quantity correction (positive or negative) inside
// one transaction, with the stock row locked, and records a Movement so the
// change is auditable. The quantity can never be driven below zero.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, delta int, reason string) (*Medication, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if delta == 0 {
		return nil, s.fail(ctx, fmt.Errorf("delta must not be zero: %w", shared.ErrValidation))
	}
	if reason == "" {
		return nil, s.fail(ctx, fmt.Errorf("reason is required: %w", shared.ErrValidation))
	}

	var adjusted *Medication
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(p, m.LocationID) {
			return fmt.Errorf("role %s may not adjust stock at location %s: %w", p.Role, m.LocationID, shared.ErrPermissionDenied)
		}
		newQty := m.Quantity + delta
		if newQty < 0 {
			return fmt.Errorf("adjustment of %d exceeds available quantity %d: %w", delta, m.Quantity, shared.ErrInsufficientStock)
		}
		m.Quantity = newQty
		m.Status = ComputeStatus(m.Quantity, m.MinQuantity, m.Expiration, s.now(), s.horizonDays)
		if err := s.repo.UpdateQuantity(ctx, m.ID, m.Quantity, m.Status); err != nil {
			return err
		}
		if err := s.movements.Create(ctx, &Movement{
			MedicationID: m.ID,
			Delta:        delta,
			Reason:       reason,
			ActorName:    p.Name,
		}); err != nil {
			return err
		}
		adjusted = m
		return nil
	})
	if err != nil {
		s.notifier.Error(ctx, fmt.Sprintf("stock adjustment failed: %v", err))
		return nil, err
	}
	s.notifier.Success(ctx, fmt.Sprintf("stock of %s adjusted by %+d", adjusted.Name, delta))
	return adjusted, nil
}

// Movements lists the manual-adjustment audit trail of a medication.
func (s *Service) Movements(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	return s.movements.ListByMedication(ctx, medicationID, limit, offset)
}

// LowStock lists records at or below their minimum threshold, scoped to the
// principal's location unless the principal is an administrator.
func (s *Service) LowStock(ctx context.Context) ([]*Medication, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	loc := uuid.Nil
	if p.Role != auth.RoleAdmin {
		loc = p.LocationID
	}
	return s.repo.ListLowStock(ctx, loc)
}

// NearExpiry lists records whose expiration falls within the configured
// horizon from today.
func (s *Service) NearExpiry(ctx context.Context) ([]*Medication, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	loc := uuid.Nil
	if p.Role != auth.RoleAdmin {
		loc = p.LocationID
	}
	return s.repo.ListExpiringBefore(ctx, s.now().AddDate(0, 0, s.horizonDays), loc)
}

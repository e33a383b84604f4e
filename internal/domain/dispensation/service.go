package dispensation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/domain/stock"
	"github.com/medstock/medstock/internal/platform/auth"
)

type Service struct {
	repo        Repository
	medicines   MedicineStore
	tx          TxRunner
	notifier    Notifier
	horizonDays int
	now         func() time.Time
}

func NewService(repo Repository, medicines MedicineStore, tx TxRunner, notifier Notifier, horizonDays int) *Service {
	return &Service{
		repo:        repo,
		medicines:   medicines,
		tx:          tx,
		notifier:    notifier,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

// fail reports the rejection through the notifier and passes the error
// through unchanged, so every failed dispensation emits exactly one message.
func (s *Service) fail(ctx context.Context, err error) error {
	s.notifier.Error(ctx, err.Error())
	return err
}

// DispenseInput describes one release of medication to a patient.
type DispenseInput struct {
	MedicineID      uuid.UUID `json:"medicine_id"`
	Quantity        int       `json:"quantity"`
	PatientName     string    `json:"patient_name"`
	PatientDocument string    `json:"patient_document"`
}

// Dispense releases medication to a patient, decrementing stock in the same
// transaction with the row locked. Administrators may dispense anywhere;
// pharmacists only from their own unit's stock.
func (s *Service) Dispense(ctx context.Context, in DispenseInput) (*Dispensation, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, s.fail(ctx, fmt.Errorf("no authenticated principal: %w", shared.ErrPermissionDenied))
	}
	switch p.Role {
	case auth.RoleAdmin, auth.RolePharmacist:
	case auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser:
		return nil, s.fail(ctx, fmt.Errorf("role %s may not dispense medication: %w", p.Role, shared.ErrPermissionDenied))
	default:
		return nil, s.fail(ctx, fmt.Errorf("unknown role %q: %w", p.Role, shared.ErrPermissionDenied))
	}
	if in.Quantity <= 0 {
		return nil, s.fail(ctx, fmt.Errorf("quantity must be positive: %w", shared.ErrValidation))
	}
	if in.PatientName == "" {
		return nil, s.fail(ctx, fmt.Errorf("patient_name is required: %w", shared.ErrValidation))
	}

	var created *Dispensation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		med, err := s.medicines.GetByIDForUpdate(ctx, in.MedicineID)
		if err != nil {
			return err
		}
		if p.Role == auth.RolePharmacist && med.LocationID != p.LocationID {
			return fmt.Errorf("pharmacist at %s may not dispense stock of %s: %w",
				p.LocationID, med.LocationID, shared.ErrPermissionDenied)
		}
		if med.Quantity < in.Quantity {
			return fmt.Errorf("requested %d of %s, only %d available: %w",
				in.Quantity, med.Name, med.Quantity, shared.ErrInsufficientStock)
		}
		newQty := med.Quantity - in.Quantity
		status := stock.ComputeStatus(newQty, med.MinQuantity, med.Expiration, s.now(), s.horizonDays)
		if err := s.medicines.UpdateQuantity(ctx, med.ID, newQty, status); err != nil {
			return err
		}
		d := &Dispensation{
			MedicineID:      med.ID,
			MedicineName:    med.Name,
			BatchNumber:     med.BatchNumber,
			Quantity:        in.Quantity,
			PatientName:     in.PatientName,
			PatientDocument: in.PatientDocument,
			DispenserName:   p.Name,
			LocationID:      med.LocationID,
		}
		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		s.notifier.Error(ctx, fmt.Sprintf("dispensation failed: %v", err))
		return nil, err
	}
	s.notifier.Success(ctx, fmt.Sprintf("%d %s dispensed to %s", created.Quantity, created.MedicineName, created.PatientName))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dispensation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns dispensations, scoped to the principal's unit unless the
// principal is an administrator.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Dispensation, int, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no authenticated principal: %w", shared.ErrPermissionDenied)
	}
	loc := uuid.Nil
	if p.Role != auth.RoleAdmin {
		loc = p.LocationID
	}
	return s.repo.List(ctx, loc, limit, offset)
}

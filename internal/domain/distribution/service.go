package distribution

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
	distributions Repository
	requests      RequestRepository
	medicines     MedicineStore
	units         UnitStore
	tx            TxRunner
	notifier      Notifier
	horizonDays   int
	now           func() time.Time
}

func NewService(
	distributions Repository,
	requests RequestRepository,
	medicines MedicineStore,
	units UnitStore,
	tx TxRunner,
	notifier Notifier,
	horizonDays int,
) *Service {
	return &Service{
		distributions: distributions,
		requests:      requests,
		medicines:     medicines,
		units:         units,
		tx:            tx,
		notifier:      notifier,
		horizonDays:   horizonDays,
		now:           time.Now,
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
// through unchanged. Every failure path of a mutating operation goes
// through here so each failed operation emits exactly one message.
func (s *Service) fail(ctx context.Context, err error) error {
	s.notifier.Error(ctx, err.Error())
	return err
}

// unitName resolves a location id to its registry name. The name is a
// denormalized display label, so a failed lookup degrades to an empty
// string rather than failing the operation.
func (s *Service) unitName(ctx context.Context, id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	u, err := s.units.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Name
}

// decrement subtracts quantity from a locked stock row and persists the
// recomputed status in the same statement. Callers must hold the row lock
// (GetByIDForUpdate) inside an open transaction.
func (s *Service) decrement(ctx context.Context, med *stock.Medication, quantity int) error {
	if med.Quantity < quantity {
		return fmt.Errorf("requested %d of %s, only %d available: %w",
			quantity, med.Name, med.Quantity, shared.ErrInsufficientStock)
	}
	newQty := med.Quantity - quantity
	status := stock.ComputeStatus(newQty, med.MinQuantity, med.Expiration, s.now(), s.horizonDays)
	if err := s.medicines.UpdateQuantity(ctx, med.ID, newQty, status); err != nil {
		return err
	}
	med.Quantity = newQty
	med.Status = status
	return nil
}

// CreateInput describes a transfer intent.
type CreateInput struct {
	MedicineID            uuid.UUID `json:"medicine_id"`
	Quantity              int       `json:"quantity"`
	DestinationLocationID uuid.UUID `json:"destination_location_id"`
}

// Create submits a transfer intent. Administrators transfer immediately:
// the record is born approved and stock is decremented in the same
// transaction. Pharmacists file a pending record scoped to their own unit,
// with no stock check until approval. Every other role is denied.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if in.Quantity <= 0 {
		return nil, s.fail(ctx, fmt.Errorf("quantity must be positive: %w", shared.ErrValidation))
	}

	switch p.Role {
	case auth.RoleAdmin:
		return s.createApproved(ctx, p, in)
	case auth.RolePharmacist:
		return s.createPending(ctx, p, in)
	case auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser:
		return nil, s.fail(ctx, fmt.Errorf("role %s may not create distributions: %w", p.Role, shared.ErrPermissionDenied))
	}
	return nil, s.fail(ctx, fmt.Errorf("unknown role %q: %w", p.Role, shared.ErrPermissionDenied))
}

func (s *Service) createApproved(ctx context.Context, p auth.Principal, in CreateInput) (*Distribution, error) {
	if in.DestinationLocationID == uuid.Nil {
		return nil, s.fail(ctx, fmt.Errorf("destination location is required: %w", shared.ErrValidation))
	}
	var created *Distribution
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		med, err := s.medicines.GetByIDForUpdate(ctx, in.MedicineID)
		if err != nil {
			return err
		}
		if err := s.decrement(ctx, med, in.Quantity); err != nil {
			return err
		}
		d := &Distribution{
			MedicineID:          med.ID,
			MedicineName:        med.Name,
			BatchNumber:         med.BatchNumber,
			Quantity:            in.Quantity,
			SourceLocation:      s.unitName(ctx, med.LocationID),
			DestinationLocation: s.unitName(ctx, in.DestinationLocationID),
			RequesterName:       p.Name,
			ApproverName:        p.Name,
			LocationID:          in.DestinationLocationID,
			Status:              StatusApproved,
		}
		if err := s.distributions.Create(ctx, d); err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		s.notifier.Error(ctx, fmt.Sprintf("distribution failed: %v", err))
		return nil, err
	}
	s.notifier.Success(ctx, fmt.Sprintf("distribution of %d %s created and auto-approved", created.Quantity, created.MedicineName))
	return created, nil
}

func (s *Service) createPending(ctx context.Context, p auth.Principal, in CreateInput) (*Distribution, error) {
	med, err := s.medicines.GetByID(ctx, in.MedicineID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	d := &Distribution{
		MedicineID:          med.ID,
		MedicineName:        med.Name,
		BatchNumber:         med.BatchNumber,
		Quantity:            in.Quantity,
		SourceLocation:      s.unitName(ctx, med.LocationID),
		DestinationLocation: p.LocationName,
		RequesterName:       p.Name,
		LocationID:          p.LocationID,
		Status:              StatusPending,
	}
	if err := s.distributions.Create(ctx, d); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("request for %d %s sent for approval", d.Quantity, d.MedicineName))
	return d, nil
}

// Approve moves a pending distribution to approved, decrementing the
// referenced stock in the same transaction with the stock row locked.
// Approving a record that is no longer pending is a no-op, not an error:
// the record is returned unchanged. Insufficient stock leaves the record
// pending; the administrator may retry after restocking.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if p.Role != auth.RoleAdmin {
		return nil, s.fail(ctx, fmt.Errorf("role %s may not approve distributions: %w", p.Role, shared.ErrPermissionDenied))
	}

	var approved *Distribution
	alreadyProcessed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := s.distributions.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != StatusPending {
			approved = d
			alreadyProcessed = true
			return nil
		}
		if d.MedicineID == uuid.Nil {
			return fmt.Errorf("distribution %s has no medicine reference: %w", d.ID, shared.ErrNotFound)
		}
		med, err := s.medicines.GetByIDForUpdate(ctx, d.MedicineID)
		if err != nil {
			return err
		}
		if err := s.decrement(ctx, med, d.Quantity); err != nil {
			return err
		}
		d.Status = StatusApproved
		d.ApproverName = p.Name
		if err := s.distributions.Update(ctx, d); err != nil {
			return err
		}
		approved = d
		return nil
	})
	if err != nil {
		s.notifier.Error(ctx, fmt.Sprintf("approval failed: %v", err))
		return nil, err
	}
	if alreadyProcessed {
		s.notifier.Success(ctx, fmt.Sprintf("distribution already processed (status %s)", approved.Status))
		return approved, nil
	}
	s.notifier.Success(ctx, fmt.Sprintf("distribution of %d %s approved", approved.Quantity, approved.MedicineName))
	return approved, nil
}

// Deliver confirms receipt of an approved distribution. It never touches
// stock; the decrement happened at approval time. Administrators may
// confirm anywhere, pharmacists only for their own unit.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	d, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if d.Status != StatusApproved {
		return nil, s.fail(ctx, fmt.Errorf("only approved distributions can be delivered (status %s): %w", d.Status, shared.ErrValidation))
	}
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RolePharmacist:
		if d.LocationID != p.LocationID {
			return nil, s.fail(ctx, fmt.Errorf("pharmacist at %s may not confirm delivery for %s: %w",
				p.LocationID, d.LocationID, shared.ErrPermissionDenied))
		}
	case auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser:
		return nil, s.fail(ctx, fmt.Errorf("role %s may not confirm deliveries: %w", p.Role, shared.ErrPermissionDenied))
	default:
		return nil, s.fail(ctx, fmt.Errorf("unknown role %q: %w", p.Role, shared.ErrPermissionDenied))
	}
	d.Status = StatusDelivered
	if err := s.distributions.Update(ctx, d); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("delivery of %s confirmed", d.MedicineName))
	return d, nil
}

// Cancel terminally resolves a pending distribution. Only pending records
// can be cancelled; approved stock movements are not undone here.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	d, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if d.Status != StatusPending {
		return nil, s.fail(ctx, fmt.Errorf("only pending distributions can be cancelled (status %s): %w", d.Status, shared.ErrValidation))
	}
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RolePharmacist:
		if d.LocationID != p.LocationID {
			return nil, s.fail(ctx, fmt.Errorf("pharmacist at %s may not cancel a record of %s: %w",
				p.LocationID, d.LocationID, shared.ErrPermissionDenied))
		}
	case auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser:
		return nil, s.fail(ctx, fmt.Errorf("role %s may not cancel distributions: %w", p.Role, shared.ErrPermissionDenied))
	default:
		return nil, s.fail(ctx, fmt.Errorf("unknown role %q: %w", p.Role, shared.ErrPermissionDenied))
	}
	d.Status = StatusCancelled
	if err := s.distributions.Update(ctx, d); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("distribution of %s cancelled", d.MedicineName))
	return d, nil
}

// List returns distributions matching the filter. Non-administrator
// principals only see records owned by their home unit.
func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Distribution, int, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, 0, err
	}
	if p.Role != auth.RoleAdmin {
		f.LocationID = p.LocationID
	}
	return s.distributions.List(ctx, f, limit, offset)
}

// Get returns one distribution, location-scoped like List.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != auth.RoleAdmin && d.LocationID != p.LocationID {
		return nil, fmt.Errorf("distribution: %w", shared.ErrNotFound)
	}
	return d, nil
}

// CreateRequest files a medication request for the principal's unit. The
// medicine should reference the catalog; a bare name is accepted as a
// legacy-import shim and resolved at approval time.
func (s *Service) CreateRequest(ctx context.Context, req *Request) error {
	p, err := principal(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	if req.Quantity <= 0 {
		return s.fail(ctx, fmt.Errorf("quantity must be positive: %w", shared.ErrValidation))
	}
	if req.MedicineID == uuid.Nil && req.MedicineName == "" {
		return s.fail(ctx, fmt.Errorf("medicine reference is required: %w", shared.ErrValidation))
	}
	if req.Urgency == "" {
		req.Urgency = UrgencyNormal
	}
	if !req.Urgency.Valid() {
		return s.fail(ctx, fmt.Errorf("invalid urgency %q: %w", req.Urgency, shared.ErrValidation))
	}
	if req.MedicineID != uuid.Nil {
		med, err := s.medicines.GetByID(ctx, req.MedicineID)
		if err != nil {
			return s.fail(ctx, err)
		}
		req.MedicineName = med.Name
	}
	if req.RequesterName == "" {
		req.RequesterName = p.Name
	}
	if req.UnitID == uuid.Nil {
		req.UnitID = p.LocationID
		req.UnitName = p.LocationName
	}
	req.Status = StatusPending
	if err := s.requests.Create(ctx, req); err != nil {
		return s.fail(ctx, err)
	}
	s.notifier.Success(ctx, fmt.Sprintf("medication request for %d %s filed", req.Quantity, req.MedicineName))
	return nil
}

// ApproveRequest promotes a pending request into an approved distribution.
// The medicine is resolved by catalog id first, then by exact name for
// legacy records; an unresolvable medicine aborts the promotion. Stock is
// decremented exactly as in Approve, and the request is removed from the
// queue in the same transaction.
func (s *Service) ApproveRequest(ctx context.Context, requestID uuid.UUID) (*Distribution, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if p.Role != auth.RoleAdmin {
		return nil, s.fail(ctx, fmt.Errorf("role %s may not approve requests: %w", p.Role, shared.ErrPermissionDenied))
	}

	var created *Distribution
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		medID := req.MedicineID
		if medID == uuid.Nil {
			m, err := s.medicines.FindByName(ctx, req.MedicineName)
			if err != nil {
				return fmt.Errorf("request medicine %q does not resolve: %w", req.MedicineName, err)
			}
			medID = m.ID
		}
		med, err := s.medicines.GetByIDForUpdate(ctx, medID)
		if err != nil {
			return err
		}
		if err := s.decrement(ctx, med, req.Quantity); err != nil {
			return err
		}

		d := &Distribution{
			MedicineID:          med.ID,
			MedicineName:        med.Name,
			BatchNumber:         med.BatchNumber,
			Quantity:            req.Quantity,
			SourceLocation:      s.unitName(ctx, med.LocationID),
			DestinationLocation: req.UnitName,
			RequesterName:       req.RequesterName,
			ApproverName:        p.Name,
			LocationID:          req.UnitID,
			Status:              StatusApproved,
		}
		if err := s.distributions.Create(ctx, d); err != nil {
			return err
		}
		if err := s.requests.Delete(ctx, req.ID); err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		s.notifier.Error(ctx, fmt.Sprintf("request approval failed: %v", err))
		return nil, err
	}
	s.notifier.Success(ctx, fmt.Sprintf("request approved: %d %s to %s", created.Quantity, created.MedicineName, created.DestinationLocation))
	return created, nil
}

// ListRequests returns the pending request queue. Non-administrators only
// see their own unit's requests.
func (s *Service) ListRequests(ctx context.Context, limit, offset int) ([]*Request, int, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, 0, err
	}
	unitID := uuid.Nil
	if p.Role != auth.RoleAdmin {
		unitID = p.LocationID
	}
	return s.requests.List(ctx, unitID, limit, offset)
}

package distribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/domain/stock"
	"github.com/medstock/medstock/internal/domain/unit"
	"github.com/medstock/medstock/internal/platform/auth"
)

// ---- mocks ----

type mockDistRepo struct {
	items map[uuid.UUID]*Distribution
}

func newMockDistRepo() *mockDistRepo {
	return &mockDistRepo{items: make(map[uuid.UUID]*Distribution)}
}

func (r *mockDistRepo) Create(_ context.Context, d *Distribution) error {
	d.ID = uuid.New()
	cp := *d
	r.items[d.ID] = &cp
	return nil
}

func (r *mockDistRepo) GetByID(_ context.Context, id uuid.UUID) (*Distribution, error) {
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("distribution: %w", shared.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (r *mockDistRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	return r.GetByID(ctx, id)
}

func (r *mockDistRepo) Update(_ context.Context, d *Distribution) error {
	if _, ok := r.items[d.ID]; !ok {
		return fmt.Errorf("distribution: %w", shared.ErrNotFound)
	}
	cp := *d
	r.items[d.ID] = &cp
	return nil
}

func (r *mockDistRepo) List(_ context.Context, f ListFilter, _, _ int) ([]*Distribution, int, error) {
	var items []*Distribution
	for _, d := range r.items {
		if f.LocationID != uuid.Nil && d.LocationID != f.LocationID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(d.MedicineName), q) &&
				!strings.Contains(strings.ToLower(d.DestinationLocation), q) &&
				!strings.Contains(strings.ToLower(d.BatchNumber), q) {
				continue
			}
		}
		cp := *d
		items = append(items, &cp)
	}
	return items, len(items), nil
}

type mockReqRepo struct {
	items map[uuid.UUID]*Request
}

func newMockReqRepo() *mockReqRepo {
	return &mockReqRepo{items: make(map[uuid.UUID]*Request)}
}

func (r *mockReqRepo) Create(_ context.Context, req *Request) error {
	req.ID = uuid.New()
	cp := *req
	r.items[req.ID] = &cp
	return nil
}

func (r *mockReqRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	req, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("medication request: %w", shared.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (r *mockReqRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.GetByID(ctx, id)
}

func (r *mockReqRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("medication request: %w", shared.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *mockReqRepo) List(_ context.Context, unitID uuid.UUID, _, _ int) ([]*Request, int, error) {
	var items []*Request
	for _, req := range r.items {
		if unitID != uuid.Nil && req.UnitID != unitID {
			continue
		}
		cp := *req
		items = append(items, &cp)
	}
	return items, len(items), nil
}

type mockMedStore struct {
	items map[uuid.UUID]*stock.Medication
}

func newMockMedStore() *mockMedStore {
	return &mockMedStore{items: make(map[uuid.UUID]*stock.Medication)}
}

func (r *mockMedStore) GetByID(_ context.Context, id uuid.UUID) (*stock.Medication, error) {
	m, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("medication: %w", shared.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (r *mockMedStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.Medication, error) {
	return r.GetByID(ctx, id)
}

func (r *mockMedStore) FindByName(_ context.Context, name string) (*stock.Medication, error) {
	for _, m := range r.items {
		if strings.EqualFold(m.Name, name) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("medication: %w", shared.ErrNotFound)
}

func (r *mockMedStore) UpdateQuantity(_ context.Context, id uuid.UUID, quantity int, status stock.Status) error {
	m, ok := r.items[id]
	if !ok {
		return fmt.Errorf("medication: %w", shared.ErrNotFound)
	}
	m.Quantity = quantity
	m.Status = status
	return nil
}

type mockUnits struct {
	items map[uuid.UUID]*unit.HealthUnit
}

func newMockUnits() *mockUnits {
	return &mockUnits{items: make(map[uuid.UUID]*unit.HealthUnit)}
}

func (r *mockUnits) GetByID(_ context.Context, id uuid.UUID) (*unit.HealthUnit, error) {
	u, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("health unit: %w", shared.ErrNotFound)
	}
	return u, nil
}

type mockTx struct{}

func (mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockNotifier struct {
	successes []string
	failures  []string
}

func (n *mockNotifier) Success(_ context.Context, msg string) { n.successes = append(n.successes, msg) }
func (n *mockNotifier) Error(_ context.Context, msg string)   { n.failures = append(n.failures, msg) }

// ---- fixture ----

type fixture struct {
	svc      *Service
	dists    *mockDistRepo
	requests *mockReqRepo
	meds     *mockMedStore
	units    *mockUnits
	notifier *mockNotifier
}

func newFixture() *fixture {
	f := &fixture{
		dists:    newMockDistRepo(),
		requests: newMockReqRepo(),
		meds:     newMockMedStore(),
		units:    newMockUnits(),
		notifier: &mockNotifier{},
	}
	f.svc = NewService(f.dists, f.requests, f.meds, f.units, mockTx{}, f.notifier, 0)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) seedUnit(name string) uuid.UUID {
	u := &unit.HealthUnit{ID: uuid.New(), Name: name, Active: true}
	f.units.items[u.ID] = u
	return u.ID
}

func (f *fixture) seedMedication(name string, quantity int, locationID uuid.UUID) *stock.Medication {
	m := &stock.Medication{
		ID:          uuid.New(),
		Name:        name,
		BatchNumber: "B-7",
		Expiration:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Quantity:    quantity,
		MinQuantity: 2,
		Unit:        "box",
		LocationID:  locationID,
		Status:      stock.StatusAvailable,
	}
	f.meds.items[m.ID] = m
	return m
}

func adminCtx() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{
		ID: uuid.New(), Name: "Alice Admin", Role: auth.RoleAdmin,
	})
}

func pharmacistCtx(locationID uuid.UUID, locationName string) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{
		ID: uuid.New(), Name: "Paulo Pharmacist", Role: auth.RolePharmacist,
		LocationID: locationID, LocationName: locationName,
	})
}

func roleCtx(role auth.Role, locationID uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{
		ID: uuid.New(), Name: "Some User", Role: role, LocationID: locationID,
	})
}

// ---- Create ----

func TestCreateAdminApprovesAndDecrements(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	dst := f.seedUnit("Unit North")
	med := f.seedMedication("Amoxicillin", 50, src)

	d, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: med.ID, Quantity: 10, DestinationLocationID: dst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusApproved {
		t.Errorf("expected status approved, got %s", d.Status)
	}
	if d.ApproverName != "Alice Admin" {
		t.Errorf("expected approver recorded, got %q", d.ApproverName)
	}
	if f.meds.items[med.ID].Quantity != 40 {
		t.Errorf("expected stock 40, got %d", f.meds.items[med.ID].Quantity)
	}
	if d.SourceLocation != "Central Pharmacy" || d.DestinationLocation != "Unit North" {
		t.Errorf("expected denormalized labels, got %q -> %q", d.SourceLocation, d.DestinationLocation)
	}
	if len(f.notifier.successes) != 1 {
		t.Errorf("expected exactly one success notification, got %d", len(f.notifier.successes))
	}
}

func TestCreateAdminInsufficientStock(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	dst := f.seedUnit("Unit North")
	med := f.seedMedication("Amoxicillin", 5, src)

	_, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: med.ID, Quantity: 10, DestinationLocationID: dst})
	if !errors.Is(err, shared.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if f.meds.items[med.ID].Quantity != 5 {
		t.Errorf("expected stock untouched at 5, got %d", f.meds.items[med.ID].Quantity)
	}
	if len(f.dists.items) != 0 {
		t.Error("expected no record created")
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

func TestCreatePharmacistPendingNoStockCheck(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	loc := f.seedUnit("Unit South")
	med := f.seedMedication("Dipyrone", 3, src)

	// quantity above available stock is allowed at request time
	d, err := f.svc.Create(pharmacistCtx(loc, "Unit South"), CreateInput{MedicineID: med.ID, Quantity: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusPending {
		t.Errorf("expected status pending, got %s", d.Status)
	}
	if d.LocationID != loc || d.DestinationLocation != "Unit South" {
		t.Errorf("expected record scoped to the pharmacist's unit, got %s %q", d.LocationID, d.DestinationLocation)
	}
	if d.ApproverName != "" {
		t.Errorf("expected empty approver, got %q", d.ApproverName)
	}
	if f.meds.items[med.ID].Quantity != 3 {
		t.Errorf("expected stock unchanged at 3, got %d", f.meds.items[med.ID].Quantity)
	}
}

func TestCreateOtherRolesDenied(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	med := f.seedMedication("Dipyrone", 30, src)

	for _, role := range []auth.Role{auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		_, err := f.svc.Create(roleCtx(role, src), CreateInput{MedicineID: med.ID, Quantity: 1, DestinationLocationID: src})
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
	}
	if len(f.dists.items) != 0 {
		t.Error("expected no records created")
	}
	if f.meds.items[med.ID].Quantity != 30 {
		t.Error("expected stock untouched")
	}
	if len(f.notifier.failures) != 3 {
		t.Errorf("expected one error notification per denied attempt, got %d", len(f.notifier.failures))
	}
	if len(f.notifier.successes) != 0 {
		t.Errorf("expected no success notifications, got %d", len(f.notifier.successes))
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	med := f.seedMedication("Dipyrone", 30, src)

	if _, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: med.ID, Quantity: 0, DestinationLocationID: src}); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for zero quantity, got %v", err)
	}
	if _, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: med.ID, Quantity: 5}); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for missing destination, got %v", err)
	}
	if _, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: uuid.New(), Quantity: 5, DestinationLocationID: src}); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown medicine, got %v", err)
	}
	if len(f.notifier.failures) != 3 {
		t.Errorf("expected one error notification per rejected input, got %d", len(f.notifier.failures))
	}
}

// ---- Approve ----

func approvalFixture(t *testing.T, stockQty, requestQty int) (*fixture, *stock.Medication, *Distribution) {
	t.Helper()
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	loc := f.seedUnit("Unit East")
	med := f.seedMedication("Omeprazole", stockQty, src)

	d, err := f.svc.Create(pharmacistCtx(loc, "Unit East"), CreateInput{MedicineID: med.ID, Quantity: requestQty})
	if err != nil {
		t.Fatalf("seeding pending record: %v", err)
	}
	return f, med, d
}

func TestApprovePendingDecrements(t *testing.T) {
	f, med, d := approvalFixture(t, 20, 10)

	got, err := f.svc.Approve(adminCtx(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected status approved, got %s", got.Status)
	}
	if got.ApproverName != "Alice Admin" {
		t.Errorf("expected approver recorded, got %q", got.ApproverName)
	}
	if f.meds.items[med.ID].Quantity != 10 {
		t.Errorf("expected stock 10, got %d", f.meds.items[med.ID].Quantity)
	}
}

func TestApproveTwiceIsNoOp(t *testing.T) {
	f, med, d := approvalFixture(t, 20, 10)

	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	got, err := f.svc.Approve(adminCtx(), d.ID)
	if err != nil {
		t.Fatalf("second approval should be a no-op, got error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected status still approved, got %s", got.Status)
	}
	if f.meds.items[med.ID].Quantity != 10 {
		t.Errorf("expected stock decremented exactly once (10), got %d", f.meds.items[med.ID].Quantity)
	}
}

func TestApproveInsufficientStockIsRetryable(t *testing.T) {
	f, med, d := approvalFixture(t, 4, 10)

	_, err := f.svc.Approve(adminCtx(), d.ID)
	if !errors.Is(err, shared.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if f.dists.items[d.ID].Status != StatusPending {
		t.Errorf("expected record left pending, got %s", f.dists.items[d.ID].Status)
	}
	if f.meds.items[med.ID].Quantity != 4 {
		t.Errorf("expected stock untouched at 4, got %d", f.meds.items[med.ID].Quantity)
	}

	// restock, then retry
	f.meds.items[med.ID].Quantity = 25
	got, err := f.svc.Approve(adminCtx(), d.ID)
	if err != nil {
		t.Fatalf("retry after restock: %v", err)
	}
	if got.Status != StatusApproved || f.meds.items[med.ID].Quantity != 15 {
		t.Errorf("expected approved with stock 15, got %s / %d", got.Status, f.meds.items[med.ID].Quantity)
	}
}

func TestApproveNonAdminDeniedNoMutation(t *testing.T) {
	f, med, d := approvalFixture(t, 20, 10)

	for _, role := range []auth.Role{auth.RolePharmacist, auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		before := *f.dists.items[d.ID]
		_, err := f.svc.Approve(roleCtx(role, d.LocationID), d.ID)
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
		if *f.dists.items[d.ID] != before {
			t.Errorf("role %s: record mutated", role)
		}
		if f.meds.items[med.ID].Quantity != 20 {
			t.Errorf("role %s: stock mutated", role)
		}
	}
	if len(f.notifier.failures) != 4 {
		t.Errorf("expected one error notification per denied attempt, got %d", len(f.notifier.failures))
	}
}

// ---- Deliver ----

func TestDeliverConfirmsWithoutStockChange(t *testing.T) {
	f, med, d := approvalFixture(t, 20, 10)
	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("approval: %v", err)
	}
	qtyAfterApproval := f.meds.items[med.ID].Quantity

	got, err := f.svc.Deliver(pharmacistCtx(d.LocationID, "Unit East"), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDelivered {
		t.Errorf("expected status delivered, got %s", got.Status)
	}
	if f.meds.items[med.ID].Quantity != qtyAfterApproval {
		t.Errorf("delivery must not change stock: had %d, got %d", qtyAfterApproval, f.meds.items[med.ID].Quantity)
	}
}

func TestDeliverPharmacistWrongLocationDenied(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("approval: %v", err)
	}

	otherLoc := f.seedUnit("Unit West")
	_, err := f.svc.Deliver(pharmacistCtx(otherLoc, "Unit West"), d.ID)
	if !errors.Is(err, shared.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if f.dists.items[d.ID].Status != StatusApproved {
		t.Errorf("expected record still approved, got %s", f.dists.items[d.ID].Status)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

func TestDeliverOtherRolesDenied(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("approval: %v", err)
	}

	for _, role := range []auth.Role{auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		_, err := f.svc.Deliver(roleCtx(role, d.LocationID), d.ID)
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
	}
	if f.dists.items[d.ID].Status != StatusApproved {
		t.Errorf("expected record still approved, got %s", f.dists.items[d.ID].Status)
	}
	if len(f.notifier.failures) != 3 {
		t.Errorf("expected one error notification per denied attempt, got %d", len(f.notifier.failures))
	}
}

func TestDeliverAdminAnywhere(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("approval: %v", err)
	}
	if _, err := f.svc.Deliver(adminCtx(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeliverRequiresApprovedStatus(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	_, err := f.svc.Deliver(adminCtx(), d.ID)
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected ErrValidation for pending record, got %v", err)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

// ---- Cancel ----

func TestCancelPendingOnly(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)

	got, err := f.svc.Cancel(adminCtx(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}

	// a resolved record cannot be cancelled again
	if _, err := f.svc.Cancel(adminCtx(), d.ID); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation on second cancel, got %v", err)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

func TestCancelApprovedRejected(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	if _, err := f.svc.Approve(adminCtx(), d.ID); err != nil {
		t.Fatalf("approval: %v", err)
	}
	if _, err := f.svc.Cancel(adminCtx(), d.ID); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for approved record, got %v", err)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

func TestCancelPharmacistOwnLocationOnly(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)
	otherLoc := f.seedUnit("Unit West")

	if _, err := f.svc.Cancel(pharmacistCtx(otherLoc, "Unit West"), d.ID); !errors.Is(err, shared.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for foreign unit, got %v", err)
	}
	if _, err := f.svc.Cancel(pharmacistCtx(d.LocationID, "Unit East"), d.ID); err != nil {
		t.Errorf("unexpected error at own unit: %v", err)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("expected exactly one error notification, got %d", len(f.notifier.failures))
	}
}

func TestCancelOtherRolesDenied(t *testing.T) {
	f, _, d := approvalFixture(t, 20, 10)

	for _, role := range []auth.Role{auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		_, err := f.svc.Cancel(roleCtx(role, d.LocationID), d.ID)
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
	}
	if f.dists.items[d.ID].Status != StatusPending {
		t.Errorf("expected record still pending, got %s", f.dists.items[d.ID].Status)
	}
	if len(f.notifier.failures) != 3 {
		t.Errorf("expected one error notification per denied attempt, got %d", len(f.notifier.failures))
	}
}

// ---- requests ----

func TestApproveRequestByCatalogID(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	reqUnit := f.seedUnit("Unit North")
	med := f.seedMedication("Losartan", 30, src)

	req := &Request{MedicineID: med.ID, Quantity: 12, Urgency: UrgencyHigh, Justification: "outage"}
	if err := f.svc.CreateRequest(roleCtx(auth.RoleHealthUnit, reqUnit), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}

	d, err := f.svc.ApproveRequest(adminCtx(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusApproved {
		t.Errorf("expected approved distribution, got %s", d.Status)
	}
	if d.Quantity != 12 || d.MedicineID != med.ID {
		t.Errorf("expected promotion to carry quantity and medicine ref, got %+v", d)
	}
	// the promotion decrements stock exactly like a distribution approval
	if f.meds.items[med.ID].Quantity != 18 {
		t.Errorf("expected stock 18 after promotion, got %d", f.meds.items[med.ID].Quantity)
	}
	if len(f.requests.items) != 0 {
		t.Error("expected request removed from the queue")
	}
}

func TestApproveRequestByLegacyName(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	reqUnit := f.seedUnit("Unit North")
	med := f.seedMedication("Losartan", 30, src)

	req := &Request{MedicineName: "losartan", Quantity: 5}
	if err := f.svc.CreateRequest(roleCtx(auth.RoleUser, reqUnit), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}

	d, err := f.svc.ApproveRequest(adminCtx(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MedicineID != med.ID {
		t.Errorf("expected name shim to resolve the catalog entry")
	}
	if f.meds.items[med.ID].Quantity != 25 {
		t.Errorf("expected stock 25, got %d", f.meds.items[med.ID].Quantity)
	}
}

func TestApproveRequestUnresolvableMedicineAborts(t *testing.T) {
	f := newFixture()
	reqUnit := f.seedUnit("Unit North")

	req := &Request{MedicineName: "Nonexistium", Quantity: 5}
	if err := f.svc.CreateRequest(roleCtx(auth.RoleUser, reqUnit), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}

	_, err := f.svc.ApproveRequest(adminCtx(), req.ID)
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.requests.items) != 1 {
		t.Error("expected request retained in the queue")
	}
	if len(f.dists.items) != 0 {
		t.Error("expected no distribution created")
	}
}

func TestApproveRequestInsufficientStock(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	reqUnit := f.seedUnit("Unit North")
	med := f.seedMedication("Losartan", 3, src)

	req := &Request{MedicineID: med.ID, Quantity: 5}
	if err := f.svc.CreateRequest(roleCtx(auth.RoleUser, reqUnit), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}

	_, err := f.svc.ApproveRequest(adminCtx(), req.ID)
	if !errors.Is(err, shared.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if f.meds.items[med.ID].Quantity != 3 {
		t.Errorf("expected stock untouched, got %d", f.meds.items[med.ID].Quantity)
	}
	if len(f.requests.items) != 1 {
		t.Error("expected request retained for retry")
	}
}

func TestApproveRequestNonAdminDenied(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	reqUnit := f.seedUnit("Unit North")
	med := f.seedMedication("Losartan", 30, src)

	req := &Request{MedicineID: med.ID, Quantity: 5}
	if err := f.svc.CreateRequest(roleCtx(auth.RoleUser, reqUnit), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}

	for _, role := range []auth.Role{auth.RolePharmacist, auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		_, err := f.svc.ApproveRequest(roleCtx(role, reqUnit), req.ID)
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
	}
	if f.meds.items[med.ID].Quantity != 30 {
		t.Error("expected stock untouched")
	}
	if len(f.requests.items) != 1 {
		t.Error("expected request untouched")
	}
	if len(f.notifier.failures) != 4 {
		t.Errorf("expected one error notification per denied attempt, got %d", len(f.notifier.failures))
	}
}

func TestCreateRequestFillsPrincipalDefaults(t *testing.T) {
	f := newFixture()
	reqUnit := f.seedUnit("Unit North")
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{
		ID: uuid.New(), Name: "Nina Nurse", Role: auth.RoleHealthUnit,
		LocationID: reqUnit, LocationName: "Unit North",
	})

	req := &Request{MedicineName: "Dipyrone", Quantity: 4}
	if err := f.svc.CreateRequest(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.RequesterName != "Nina Nurse" || req.UnitID != reqUnit || req.UnitName != "Unit North" {
		t.Errorf("expected principal defaults applied, got %+v", req)
	}
	if req.Urgency != UrgencyNormal {
		t.Errorf("expected default urgency normal, got %s", req.Urgency)
	}
	if req.Status != StatusPending {
		t.Errorf("expected status pending, got %s", req.Status)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture()
	reqUnit := f.seedUnit("Unit North")
	ctx := roleCtx(auth.RoleUser, reqUnit)

	if err := f.svc.CreateRequest(ctx, &Request{MedicineName: "X", Quantity: 0}); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for zero quantity, got %v", err)
	}
	if err := f.svc.CreateRequest(ctx, &Request{Quantity: 2}); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for missing medicine reference, got %v", err)
	}
	if err := f.svc.CreateRequest(ctx, &Request{MedicineName: "X", Quantity: 2, Urgency: "panic"}); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown urgency, got %v", err)
	}
	if len(f.notifier.failures) != 3 {
		t.Errorf("expected one error notification per rejected request, got %d", len(f.notifier.failures))
	}
}

// ---- visibility ----

func TestListScopesNonAdminsToOwnLocation(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	l1 := f.seedUnit("Unit East")
	l2 := f.seedUnit("Unit West")
	med := f.seedMedication("Omeprazole", 100, src)

	if _, err := f.svc.Create(pharmacistCtx(l1, "Unit East"), CreateInput{MedicineID: med.ID, Quantity: 5}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.svc.Create(pharmacistCtx(l2, "Unit West"), CreateInput{MedicineID: med.ID, Quantity: 5}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mine, _, err := f.svc.List(pharmacistCtx(l1, "Unit East"), ListFilter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 1 || mine[0].LocationID != l1 {
		t.Fatalf("expected only own-unit records, got %+v", mine)
	}

	all, _, err := f.svc.List(adminCtx(), ListFilter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected admin to see both records, got %d", len(all))
	}
}

func TestListFreeTextFilter(t *testing.T) {
	f := newFixture()
	src := f.seedUnit("Central Pharmacy")
	dst := f.seedUnit("Unit North")
	medA := f.seedMedication("Amoxicillin", 100, src)
	medB := f.seedMedication("Dipyrone", 100, src)

	if _, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: medA.ID, Quantity: 5, DestinationLocationID: dst}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.svc.Create(adminCtx(), CreateInput{MedicineID: medB.ID, Quantity: 5, DestinationLocationID: dst}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, _, err := f.svc.List(adminCtx(), ListFilter{Query: "amoxi"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].MedicineName != "Amoxicillin" {
		t.Fatalf("expected substring match on medicine name, got %+v", items)
	}
}

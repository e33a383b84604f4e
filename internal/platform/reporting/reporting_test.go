package reporting

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medstock/medstock/internal/platform/auth"
)

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"stock-status-breakdown",
		"distribution-volume-by-status",
		"distribution-volume-by-destination",
		"pending-requests-by-urgency",
		"near-expiry-batches",
		"dispensation-volume",
	}

	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}

	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
		if m.Name == "" {
			t.Errorf("measure %s has empty name", m.ID)
		}
		if m.Description == "" {
			t.Errorf("measure %s has empty description", m.ID)
		}
	}
}

func TestFindMeasure_Exists(t *testing.T) {
	m := FindMeasure("stock-status-breakdown")
	if m == nil {
		t.Fatal("expected to find stock-status-breakdown measure")
	}
	if m.Name != "Stock Status Breakdown" {
		t.Errorf("expected 'Stock Status Breakdown', got %s", m.Name)
	}
}

func TestFindMeasure_NotFound(t *testing.T) {
	if m := FindMeasure("nonexistent"); m != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestFindMeasure_AllPredefined(t *testing.T) {
	for _, def := range PredefinedMeasures {
		found := FindMeasure(def.ID)
		if found == nil {
			t.Errorf("expected to find measure %s", def.ID)
			continue
		}
		if found.ID != def.ID {
			t.Errorf("ID mismatch: expected %s, got %s", def.ID, found.ID)
		}
	}
}

func TestMeasureReport_Structure(t *testing.T) {
	report := MeasureReport{
		MeasureID:   "stock-status-breakdown",
		MeasureName: "Stock Status Breakdown",
		Results: []map[string]interface{}{
			{"status": "available", "total": 12, "units": 480},
		},
	}

	if report.MeasureID != "stock-status-breakdown" {
		t.Errorf("unexpected MeasureID: %s", report.MeasureID)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0]["units"] != 480 {
		t.Errorf("unexpected units: %v", report.Results[0]["units"])
	}
}

func TestNewHandler(t *testing.T) {
	if h := NewHandler(nil); h == nil {
		t.Fatal("expected non-nil handler")
	}
}

func listMeasuresAs(t *testing.T, role auth.Role) int {
	t.Helper()
	e := echo.New()
	NewHandler(nil).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{
		ID: uuid.New(), Name: "Report Reader", Role: role,
	}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutesLimitedToAdminAndPharmacist(t *testing.T) {
	if code := listMeasuresAs(t, auth.RoleAdmin); code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", code)
	}
	if code := listMeasuresAs(t, auth.RolePharmacist); code != http.StatusOK {
		t.Errorf("pharmacist: expected 200, got %d", code)
	}
	for _, role := range []auth.Role{auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser} {
		if code := listMeasuresAs(t, role); code != http.StatusForbidden {
			t.Errorf("role %s: expected 403, got %d", role, code)
		}
	}
}

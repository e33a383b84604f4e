package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medstock/medstock/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "stock-status-breakdown",
		Name:        "Stock Status Breakdown",
		Description: "Number of medication batches grouped by derived stock status",
		SQL:         `SELECT status, COUNT(*) AS total, COALESCE(SUM(quantity), 0) AS units FROM medication GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "distribution-volume-by-status",
		Name:        "Distribution Volume by Status",
		Description: "Number of distributions grouped by lifecycle status",
		SQL:         `SELECT status, COUNT(*) AS total, COALESCE(SUM(quantity), 0) AS units FROM distribution GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "distribution-volume-by-destination",
		Name:        "Distribution Volume by Destination",
		Description: "Number of distributions grouped by destination unit",
		SQL:         `SELECT COALESCE(NULLIF(destination_location, ''), 'unknown') AS destination, COUNT(*) AS total, COALESCE(SUM(quantity), 0) AS units FROM distribution GROUP BY destination_location ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "pending-requests-by-urgency",
		Name:        "Pending Requests by Urgency",
		Description: "Open distribution requests grouped by declared urgency",
		SQL:         `SELECT urgency, COUNT(*) AS total, COALESCE(SUM(quantity), 0) AS units FROM distribution_request WHERE status = 'pending' GROUP BY urgency ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "near-expiry-batches",
		Name:        "Near-Expiry Batches",
		Description: "Medication batches expiring within the next 30 days, soonest first",
		SQL:         `SELECT name, batch_number, quantity, expiration, location_id FROM medication WHERE expiration <= NOW() + INTERVAL '30 days' ORDER BY expiration ASC`,
		Parameters:  []string{},
	},
	{
		ID:          "dispensation-volume",
		Name:        "Dispensation Volume",
		Description: "Units dispensed to patients per medication over the last 30 days",
		SQL:         `SELECT medicine_name, COUNT(*) AS dispensations, COALESCE(SUM(quantity), 0) AS units FROM dispensation WHERE created_at >= NOW() - INTERVAL '30 days' GROUP BY medicine_name ORDER BY units DESC`,
		Parameters:  []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RolePharmacist))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

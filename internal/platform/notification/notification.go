// Package notification is the outcome sink for ledger operations. Every
// distribution, dispensation, and stock mutation reports exactly one
// human-readable success or error message here; the sink keeps a bounded
// in-memory history and exposes it over HTTP for the operations views.
package notification

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medstock/medstock/internal/platform/auth"
)

// Kind classifies an outcome message.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Outcome is a single recorded operation result.
type Outcome struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// maxHistory bounds the in-memory outcome buffer.
const maxHistory = 1000

// Manager records outcomes and serves them to clients. Delivery is
// fire-and-forget: recording never fails and never blocks the caller
// beyond the append itself.
type Manager struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	outcomes []*Outcome
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

func (m *Manager) record(ctx context.Context, kind Kind, message string) {
	o := &Outcome{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		o.Actor = p.Name
	}

	m.mu.Lock()
	m.outcomes = append(m.outcomes, o)
	if len(m.outcomes) > maxHistory {
		m.outcomes = m.outcomes[len(m.outcomes)-maxHistory:]
	}
	m.mu.Unlock()

	evt := m.logger.Info()
	if kind == KindError {
		evt = m.logger.Warn()
	}
	evt.Str("actor", o.Actor).Str("kind", string(kind)).Msg(message)
}

// Success records a successful operation outcome.
func (m *Manager) Success(ctx context.Context, message string) {
	m.record(ctx, KindSuccess, message)
}

// Error records a failed operation outcome.
func (m *Manager) Error(ctx context.Context, message string) {
	m.record(ctx, KindError, message)
}

// Recent returns up to limit outcomes, newest first.
func (m *Manager) Recent(limit int) []*Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.outcomes) {
		limit = len(m.outcomes)
	}
	out := make([]*Outcome, 0, limit)
	for i := len(m.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.outcomes[i])
	}
	return out
}

// Stats returns outcome counts grouped by kind.
func (m *Manager) Stats() map[Kind]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[Kind]int)
	for _, o := range m.outcomes {
		stats[o.Kind]++
	}
	return stats
}

// Handler exposes recorded outcomes over HTTP via Echo.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
}

// HandleList handles GET /notifications?limit=...
func (h *Handler) HandleList(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		// invalid values fall back to the default
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return c.JSON(http.StatusOK, h.manager.Recent(limit))
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}

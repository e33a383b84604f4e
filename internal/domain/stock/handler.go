package stock

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every operational role
	readGroup := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleDistributor, auth.RoleHealthUnit))
	readGroup.GET("/medications", h.List)
	readGroup.GET("/medications/low-stock", h.LowStock)
	readGroup.GET("/medications/near-expiry", h.NearExpiry)
	readGroup.GET("/medications/:id", h.Get)
	readGroup.GET("/medications/:id/movements", h.Movements)

	// Write endpoints – pharmacists at their own unit, administrators anywhere
	writeGroup := api.Group("", auth.RequireRole(auth.RolePharmacist))
	writeGroup.POST("/medications", h.Register)
	writeGroup.PUT("/medications/:id", h.Update)
	writeGroup.POST("/medications/:id/adjust", h.Adjust)
}

func (h *Handler) Register(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := SearchFilter{
		Query:  c.QueryParam("q"),
		Status: Status(c.QueryParam("status")),
	}
	if v := c.QueryParam("location_id"); v != "" {
		loc, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid location_id")
		}
		f.LocationID = loc
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.Update(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

type adjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) Adjust(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req adjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Adjust(c.Request().Context(), id, req.Delta, req.Reason)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Movements(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Movements(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) LowStock(c echo.Context) error {
	items, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) NearExpiry(c echo.Context) error {
	items, err := h.svc.NearExpiry(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

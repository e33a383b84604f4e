package distribution

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
	readGroup := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleDistributor, auth.RoleHealthUnit))
	readGroup.GET("/distributions", h.List)
	readGroup.GET("/distributions/:id", h.Get)

	// Role checks beyond the route gate (location rules, admin-only
	// transitions) live in the service.
	writeGroup := api.Group("", auth.RequireRole(auth.RolePharmacist))
	writeGroup.POST("/distributions", h.Create)
	writeGroup.POST("/distributions/:id/approve", h.Approve)
	writeGroup.POST("/distributions/:id/deliver", h.Deliver)
	writeGroup.POST("/distributions/:id/cancel", h.Cancel)

	requestGroup := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleDistributor, auth.RoleHealthUnit, auth.RoleUser))
	requestGroup.GET("/requests", h.ListRequests)
	requestGroup.POST("/requests", h.CreateRequest)

	adminGroup := api.Group("", auth.RequireRole())
	adminGroup.POST("/requests/:id/approve", h.ApproveRequest)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Query:  c.QueryParam("q"),
		Status: Status(c.QueryParam("status")),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Approve(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Deliver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Deliver(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRequest(c.Request().Context(), &req); err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRequests(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApproveRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.ApproveRequest(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(shared.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

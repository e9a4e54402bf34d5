package patient

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/auth"
	"github.com/wardsys/ward/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleRegistrar))
	readGroup.GET("/patients", h.List)
	readGroup.GET("/patients/:id", h.Find)

	api.POST("/patients", h.Admit, auth.RequireRole(auth.RoleRegistrar))
	api.POST("/patients/:id/discharge", h.Discharge, auth.RequireRole(auth.RoleDoctor))

	me := api.Group("/doctors/me", auth.RequireDoctor())
	me.GET("/patients", h.ListMine)
}

func (h *Handler) Admit(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Admit(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Find(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Find(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

// List serves ?state=unassigned|assigned|dischargeable, unassigned by default.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	state := c.QueryParam("state")
	items, err := h.svc.ListByState(c.Request().Context(), state, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	base := "/api/v1/patients"
	if state != "" {
		base += "?" + url.Values{"state": {state}}.Encode()
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, len(items), pg, base))
}

func (h *Handler) ListMine(c echo.Context) error {
	s, _ := auth.SessionFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	items, err := h.svc.ListAssignedToDoctor(c.Request().Context(), s.DoctorID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, len(items), pg, "/api/v1/doctors/me/patients"))
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req DischargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Discharge(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

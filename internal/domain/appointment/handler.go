package appointment

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
	// Staff endpoints – doctor, registrar
	staffGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleRegistrar))
	staffGroup.GET("/appointments", h.List)
	staffGroup.GET("/appointments/:id", h.Get)
	staffGroup.POST("/appointments", h.Create)

	// Clinical endpoints – doctor
	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/appointments/:id/schedule", h.Schedule)
	doctorGroup.POST("/appointments/:id/:action", h.UpdateStatus)

	me := api.Group("/doctors/me", auth.RequireDoctor())
	me.GET("/appointments", h.ListMine)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("action"), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Schedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.AppointmentID = id
	a, err := h.svc.Schedule(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// List serves ?by=doctor|patient|status&value=...
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	by, value := c.QueryParam("by"), c.QueryParam("value")
	items, err := h.svc.ListByFilter(c.Request().Context(), by, value, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	base := "/api/v1/appointments?" + url.Values{"by": {by}, "value": {value}}.Encode()
	return c.JSON(http.StatusOK, pagination.NewPage(items, len(items), pg, base))
}

// ListMine lists the appointments of the doctor linked to the session.
func (h *Handler) ListMine(c echo.Context) error {
	s, _ := auth.SessionFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	items, err := h.svc.ListByFilter(c.Request().Context(), ByDoctor,
		strconv.FormatInt(s.DoctorID, 10), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, len(items), pg, "/api/v1/doctors/me/appointments"))
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

package hospital

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Reference data – any staff role
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleRegistrar))
	readGroup.GET("/departments", h.ListDepartments)
	readGroup.GET("/departments/:id/report", h.DepartmentReport)
	readGroup.GET("/doctors", h.ListDoctors)
	readGroup.GET("/chambers/free", h.MostFreeChamber)

	api.POST("/patients/:id/assign", h.Assign, auth.RequireRole(auth.RoleRegistrar))
}

func (h *Handler) Assign(c echo.Context) error {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Assign(c.Request().Context(), patientID, req.DepartmentID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	items, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DepartmentReport(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.DepartmentReport(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	var departmentID int64
	if v := c.QueryParam("department_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
		}
		departmentID = id
	}
	items, err := h.svc.ListDoctors(c.Request().Context(), departmentID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) MostFreeChamber(c echo.Context) error {
	ch, err := h.svc.MostFreeChamber(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ch)
}

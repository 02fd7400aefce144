package labscript

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/dentalab/labportal/internal/platform/auth"
	"github.com/dentalab/labportal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// All three roles read lab scripts; clinics are row-scoped in the handler.
	read := api.Group("", auth.RequireRole(auth.RoleClinic, auth.RoleDesigner))
	read.GET("/lab-scripts", h.List)
	read.GET("/lab-scripts/:id", h.Get)
	read.GET("/lab-scripts/:id/history", h.GetHistory)

	clinic := api.Group("", auth.RequireRole(auth.RoleClinic))
	clinic.POST("/coupons/validate", h.ValidateCoupon)

	// Status transitions are lab-side operations.
	staff := api.Group("", auth.RequireRole(auth.RoleDesigner))
	staff.PUT("/lab-scripts/:id/status", h.UpdateStatus)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/lab-scripts/:id", h.Delete)
}

func clinicScope(c echo.Context) (uuid.UUID, error) {
	ctx := c.Request().Context()
	role := auth.RoleFromContext(ctx)
	if role == auth.RoleAdmin || role == auth.RoleDesigner {
		if q := c.QueryParam("clinic_id"); q != "" {
			return uuid.Parse(q)
		}
		return uuid.Nil, nil
	}
	raw := auth.ClinicIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, errors.New("no clinic claim on token")
	}
	return uuid.Parse(raw)
}

func (h *Handler) List(c echo.Context) error {
	clinicID, err := clinicScope(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	f := Filter{ClinicID: clinicID}
	switch status := c.QueryParam("status"); status {
	case "":
	case "incomplete":
		f.Incomplete = true
	default:
		f.Status = status
	}
	if q := c.QueryParam("patient_id"); q != "" {
		pid, err := uuid.Parse(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = pid
	}

	p := pagination.FromContext(c)
	scripts, total, err := h.svc.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(scripts, total, p.Limit, p.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	ls, err := h.loadScoped(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ls)
}

func (h *Handler) GetHistory(c echo.Context) error {
	ls, err := h.loadScoped(c)
	if err != nil {
		return err
	}
	history, err := h.svc.History(c.Request().Context(), ls.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history)
}

// loadScoped fetches the script and enforces clinic row scoping.
func (h *Handler) loadScoped(c echo.Context) (*LabScript, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid lab script id")
	}
	ls, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "lab script not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	clinicID, err := clinicScope(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if clinicID != uuid.Nil && ls.ClinicID != clinicID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "lab script not found")
	}
	return ls, nil
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab script id")
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	changedBy := auth.UserIDFromContext(c.Request().Context())
	ls, err := h.svc.UpdateStatus(c.Request().Context(), id, req, changedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "lab script not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ls)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab script id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "lab script not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ValidateCoupon(c echo.Context) error {
	var req struct {
		Code      string    `json:"code"`
		PatientID uuid.UUID `json:"patient_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	verdict, err := h.svc.ValidateCoupon(c.Request().Context(), req.Code, req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, verdict)
}

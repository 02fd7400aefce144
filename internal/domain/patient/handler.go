package patient

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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
	read := api.Group("", auth.RequireRole(auth.RoleClinic, auth.RoleDesigner))
	read.GET("/patients", h.List)
	read.GET("/patients/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleClinic))
	write.POST("/patients", h.Create)
	write.PUT("/patients/:id", h.Update)
	write.DELETE("/patients/:id", h.Delete)
}

// callerClinicID resolves the tenancy scope for the request. Admin and
// designer callers have no clinic claim and see everything.
func callerClinicID(c echo.Context) (uuid.UUID, error) {
	ctx := c.Request().Context()
	if role := auth.RoleFromContext(ctx); role == auth.RoleAdmin || role == auth.RoleDesigner {
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
	clinicID, err := callerClinicID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	p := pagination.FromContext(c)
	search := strings.TrimSpace(c.QueryParam("search"))
	patients, total, err := h.svc.ListByClinic(c.Request().Context(), clinicID, search, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, p.Limit, p.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	clinicID, err := callerClinicID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if clinicID != uuid.Nil {
		p.ClinicID = clinicID
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	clinicID, err := callerClinicID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	p, err := h.svc.Get(c.Request().Context(), id, clinicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	clinicID, err := callerClinicID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p, clinicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	clinicID, err := callerClinicID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if err := h.svc.Delete(c.Request().Context(), id, clinicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return echo.NewHTTPError(http.StatusConflict, "patient has lab scripts")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

package identity

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
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/clinics", h.ListClinics)
	admin.POST("/clinics", h.InviteClinic)
	admin.GET("/clinics/:id", h.GetClinic)
	admin.PUT("/clinics/:id", h.UpdateClinic)
	admin.DELETE("/clinics/:id", h.DeleteClinic)
	admin.POST("/clinics/:id/password-reset", h.SendPasswordReset)

	admin.GET("/designers", h.ListDesigners)
	admin.POST("/designers", h.CreateDesigner)
	admin.GET("/designers/:id", h.GetDesigner)
	admin.PUT("/designers/:id", h.UpdateDesigner)
	admin.DELETE("/designers/:id", h.DeleteDesigner)

	// Authenticated self-service endpoints.
	api.GET("/me", h.Me)
	api.POST("/invitations/accept", h.AcceptInvitation)
}

func (h *Handler) ListClinics(c echo.Context) error {
	p := pagination.FromContext(c)
	clinics, total, err := h.svc.ListClinics(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(clinics, total, p.Limit, p.Offset))
}

func (h *Handler) InviteClinic(c echo.Context) error {
	var clinic Clinic
	if err := c.Bind(&clinic); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.InviteClinic(c.Request().Context(), &clinic)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"clinic":     clinic,
		"invitation": inv,
	})
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}
	clinic, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, clinic)
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}
	var clinic Clinic
	if err := c.Bind(&clinic); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	clinic.ID = id
	if err := h.svc.UpdateClinic(c.Request().Context(), &clinic); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, clinic)
}

func (h *Handler) DeleteClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}
	if err := h.svc.DeleteClinic(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendPasswordReset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}
	clinic, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.svc.SendPasswordReset(c.Request().Context(), clinic.Email); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) ListDesigners(c echo.Context) error {
	p := pagination.FromContext(c)
	designers, total, err := h.svc.ListDesigners(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(designers, total, p.Limit, p.Offset))
}

func (h *Handler) CreateDesigner(c echo.Context) error {
	var d Designer
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDesigner(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDesigner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid designer id")
	}
	d, err := h.svc.GetDesigner(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "designer not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDesigner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid designer id")
	}
	var d Designer
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDesigner(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDesigner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid designer id")
	}
	if err := h.svc.DeleteDesigner(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile and, for clinic accounts, the clinic record.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	subject := auth.UserIDFromContext(ctx)
	if subject == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated subject")
	}

	profile, err := h.svc.GetProfile(ctx, subject)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := map[string]interface{}{
		"auth_subject": subject,
		"role":         auth.RoleFromContext(ctx),
	}
	if profile != nil {
		resp["profile"] = profile
	}
	if clinic, err := h.svc.GetClinicByAuthSubject(ctx, subject); err == nil {
		resp["clinic"] = clinic
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) AcceptInvitation(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	subject := auth.UserIDFromContext(c.Request().Context())
	if subject == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated subject")
	}
	clinic, err := h.svc.AcceptInvitation(c.Request().Context(), req.Token, subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, clinic)
}

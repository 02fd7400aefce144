package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dentalab/labportal/internal/platform/auth"
	"github.com/dentalab/labportal/internal/platform/payments"
	"github.com/dentalab/labportal/pkg/pagination"
)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinic := api.Group("", auth.RequireRole(auth.RoleClinic))
	clinic.POST("/checkout", h.InitiateCheckout)
	clinic.GET("/invoices", h.ListInvoices)
	clinic.GET("/invoices/:id", h.GetInvoice)
}

// RegisterWebhook mounts the provider callback outside the authenticated
// API group; the HMAC signature is the only authentication.
func (h *Handler) RegisterWebhook(e *echo.Echo) {
	e.POST("/webhooks/payments", h.HandleWebhook)
}

func (h *Handler) InitiateCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	raw := auth.ClinicIDFromContext(ctx)
	if raw == "" {
		return echo.NewHTTPError(http.StatusForbidden, "no clinic claim on token")
	}
	clinicID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "invalid clinic claim")
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.InitiateCheckout(ctx, clinicID, req, auth.UserIDFromContext(ctx))
	if err != nil {
		var apiErr *payments.APIError
		if errors.As(err, &apiErr) {
			return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := http.StatusOK
	if result.Status == "created" {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

// HandleWebhook verifies, parses, and fulfills provider events. A bad
// signature is a 400 with no side effects. Unhandled event types are
// acknowledged so the provider stops retrying them.
func (h *Handler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	event, err := payments.ParseEvent(body, c.Request().Header.Get(payments.SignatureHeader), h.webhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("webhook rejected")
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if event.Type != payments.EventCheckoutCompleted {
		log.Debug().Str("type", event.Type).Msg("ignoring webhook event")
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	session, err := event.Session()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.FulfillSession(c.Request().Context(), session); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("webhook fulfillment failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "fulfillment failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()
	clinicID := uuid.Nil
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		raw := auth.ClinicIDFromContext(ctx)
		if raw == "" {
			return echo.NewHTTPError(http.StatusForbidden, "no clinic claim on token")
		}
		var err error
		if clinicID, err = uuid.Parse(raw); err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "invalid clinic claim")
		}
	}

	p := pagination.FromContext(c)
	invoices, total, err := h.svc.ListInvoices(ctx, clinicID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, p.Limit, p.Offset))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		if raw := auth.ClinicIDFromContext(ctx); raw != inv.ClinicID.String() {
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		}
	}
	return c.JSON(http.StatusOK, inv)
}

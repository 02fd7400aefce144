package pricing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentalab/labportal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Quotes are needed by the clinic submission form.
	quote := api.Group("", auth.RequireRole(auth.RoleClinic))
	quote.POST("/pricing/quote", h.Quote)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/pricing/catalog", h.ListCatalog)
	admin.POST("/pricing/sync", h.SyncCatalog)
	admin.GET("/pricing/provider/:price_id", h.GetProviderPrice)
}

func (h *Handler) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	quote, err := h.svc.ComputeTotal(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrPriceNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, quote)
}

func (h *Handler) ListCatalog(c echo.Context) error {
	prices, err := h.svc.ListCatalog(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prices)
}

func (h *Handler) SyncCatalog(c echo.Context) error {
	synced, err := h.svc.SyncCatalog(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"synced": synced})
}

func (h *Handler) GetProviderPrice(c echo.Context) error {
	price, err := h.svc.GetPrice(c.Request().Context(), c.Param("price_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, price)
}

package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/dentalab/labportal/internal/platform/payments"
)

// ErrPriceNotFound is returned when the catalog has no base price for an
// appliance type.
var ErrPriceNotFound = errors.New("service price not found")

// Add-on fallback used when the catalog has no entry for an add-on.
const defaultAddOnCents = 5000

const defaultCurrency = "usd"

// PriceLister is the slice of the payment provider the catalog sync needs.
// Satisfied by *payments.Client.
type PriceLister interface {
	ListPrices(ctx context.Context) ([]payments.Price, error)
	GetPrice(ctx context.Context, priceID string) (*payments.Price, error)
}

type Service struct {
	prices   Repository
	provider PriceLister
}

func NewService(prices Repository, provider PriceLister) *Service {
	return &Service{prices: prices, provider: provider}
}

// ComputeTotal prices a lab script submission. The base price is looked up
// by appliance type and billed once per arch (dual arches bill twice). A
// free printed try-in zeroes the base contribution but add-ons still bill.
// Surgical-day appliances never bill add-ons.
func (s *Service) ComputeTotal(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.ApplianceType == "" {
		return nil, fmt.Errorf("appliance_type is required")
	}
	if req.ArchType != ArchUpper && req.ArchType != ArchLower && req.ArchType != ArchDual {
		return nil, fmt.Errorf("invalid arch_type: %s", req.ArchType)
	}

	base, err := s.prices.GetByServiceName(ctx, req.ApplianceType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, req.ApplianceType)
		}
		return nil, err
	}

	quote := &Quote{Currency: base.Currency}
	if quote.Currency == "" {
		quote.Currency = defaultCurrency
	}

	baseAmount := base.AmountCents
	if req.IsFreeScript {
		baseAmount = 0
	}
	if req.ArchType == ArchDual {
		quote.Lines = append(quote.Lines,
			QuoteLine{Description: req.ApplianceType + " (upper arch)", AmountCents: baseAmount},
			QuoteLine{Description: req.ApplianceType + " (lower arch)", AmountCents: baseAmount},
		)
	} else {
		quote.Lines = append(quote.Lines,
			QuoteLine{Description: fmt.Sprintf("%s (%s arch)", req.ApplianceType, req.ArchType), AmountCents: baseAmount},
		)
	}

	if req.ApplianceType != ApplianceSurgicalDay {
		if req.NeedsNightguard {
			quote.Lines = append(quote.Lines, QuoteLine{
				Description: "Nightguard add-on",
				AmountCents: s.addOnPrice(ctx, AddOnNightguard),
			})
		}
		if req.ExpressDesign {
			quote.Lines = append(quote.Lines, QuoteLine{
				Description: "Express design (24h turnaround)",
				AmountCents: s.addOnPrice(ctx, AddOnExpressDesign),
			})
		}
	}

	for _, line := range quote.Lines {
		quote.TotalCents += line.AmountCents
	}
	return quote, nil
}

func (s *Service) addOnPrice(ctx context.Context, serviceName string) int64 {
	p, err := s.prices.GetByServiceName(ctx, serviceName)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Str("service", serviceName).Msg("add-on price lookup failed, using fallback")
		}
		return defaultAddOnCents
	}
	return p.AmountCents
}

// GetPrice proxies a single provider price lookup, used by the admin portal
// to inspect the live catalog.
func (s *Service) GetPrice(ctx context.Context, priceID string) (*payments.Price, error) {
	if priceID == "" {
		return nil, fmt.Errorf("price id is required")
	}
	return s.provider.GetPrice(ctx, priceID)
}

// ListCatalog returns the locally synced catalog.
func (s *Service) ListCatalog(ctx context.Context) ([]*ServicePrice, error) {
	return s.prices.List(ctx)
}

// SyncCatalog pulls the provider's price list and upserts entries keyed by
// price nickname. Prices without a nickname are skipped since there is
// nothing to key them on.
func (s *Service) SyncCatalog(ctx context.Context) (int, error) {
	provider, err := s.provider.ListPrices(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing provider prices: %w", err)
	}

	synced := 0
	for _, p := range provider {
		if p.Nickname == "" {
			log.Debug().Str("price_id", p.ID).Msg("skipping provider price without nickname")
			continue
		}
		priceID := p.ID
		entry := &ServicePrice{
			ServiceName:     p.Nickname,
			AmountCents:     p.UnitAmount,
			Currency:        p.Currency,
			ProviderPriceID: &priceID,
		}
		if err := s.prices.Upsert(ctx, entry); err != nil {
			return synced, fmt.Errorf("upserting price %s: %w", p.Nickname, err)
		}
		synced++
	}
	log.Info().Int("synced", synced).Msg("price catalog synced")
	return synced, nil
}

package pricing

import (
	"time"

	"github.com/google/uuid"
)

// ServicePrice is a catalog entry synced from the payment provider.
// The application treats the catalog as read-only; only CatalogSync writes it.
type ServicePrice struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ServiceName     string    `db:"service_name" json:"service_name"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Currency        string    `db:"currency" json:"currency"`
	ProviderPriceID *string   `db:"provider_price_id" json:"provider_price_id,omitempty"`
	SyncedAt        time.Time `db:"synced_at" json:"synced_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Arch values a lab script can target.
const (
	ArchUpper = "upper"
	ArchLower = "lower"
	ArchDual  = "dual"
)

// Catalog keys for the fixed add-ons. The nightguard add-on key is distinct
// from the "nightguard" appliance type.
const (
	AddOnNightguard    = "nightguard-addon"
	AddOnExpressDesign = "express-design"
)

// ApplianceSurgicalDay never bills add-ons and is the only appliance type
// that grants a free printed try-in coupon.
const ApplianceSurgicalDay = "surgical-day"

// QuoteLine is one itemized charge on a quote.
type QuoteLine struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// Quote is the priced result for a lab script submission.
type Quote struct {
	TotalCents int64       `json:"total_cents"`
	Currency   string      `json:"currency"`
	Lines      []QuoteLine `json:"lines"`
}

// QuoteRequest carries the pricing modifiers from the submission form.
type QuoteRequest struct {
	ApplianceType   string `json:"appliance_type"`
	ArchType        string `json:"arch_type"`
	NeedsNightguard bool   `json:"needs_nightguard"`
	ExpressDesign   bool   `json:"express_design"`
	IsFreeScript    bool   `json:"is_free_script"`
}

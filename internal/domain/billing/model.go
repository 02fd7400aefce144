package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalab/labportal/internal/domain/labscript"
)

// Invoice is a one-to-one snapshot of a paid lab script. Immutable after
// creation: clinic billing details are copied, not referenced, so later
// clinic edits do not rewrite history.
type Invoice struct {
	ID              uuid.UUID `db:"id" json:"id"`
	LabScriptID     uuid.UUID `db:"lab_script_id" json:"lab_script_id"`
	ClinicID        uuid.UUID `db:"clinic_id" json:"clinic_id"`
	ClinicName      string    `db:"clinic_name" json:"clinic_name"`
	ClinicEmail     string    `db:"clinic_email" json:"clinic_email"`
	ClinicAddress   *string   `db:"clinic_address" json:"clinic_address,omitempty"`
	ApplianceType   string    `db:"appliance_type" json:"appliance_type"`
	AmountPaidCents int64     `db:"amount_paid_cents" json:"amount_paid_cents"`
	Currency        string    `db:"currency" json:"currency"`
	PaymentID       string    `db:"payment_id" json:"payment_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Draft stages a fully validated submission before the clinic is redirected
// to checkout, so an abandoned or failed payment loses no form data. Drafts
// are non-authoritative; orphans are acceptable.
type Draft struct {
	ID         uuid.UUID           `db:"id" json:"id"`
	ClinicID   uuid.UUID           `db:"clinic_id" json:"clinic_id"`
	CreatedBy  string              `db:"created_by" json:"created_by"`
	Script     labscript.LabScript `db:"script" json:"script"`
	TotalCents int64               `db:"total_cents" json:"total_cents"`
	Currency   string              `db:"currency" json:"currency"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}

// PaymentSession records one provider checkout session. The unique session
// id is the idempotency key for webhook processing: claiming an already
// claimed session is a no-op.
type PaymentSession struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	SessionID   string     `db:"session_id" json:"session_id"`
	DraftID     uuid.UUID  `db:"draft_id" json:"draft_id"`
	AmountCents int64      `db:"amount_cents" json:"amount_cents"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// CheckoutRequest is a clinic's lab script submission. The orchestrator
// prices it, validates any coupon, and either persists it directly (zero
// total) or stages it and returns a checkout redirect.
type CheckoutRequest struct {
	PatientID            uuid.UUID `json:"patient_id"`
	ApplianceType        string    `json:"appliance_type"`
	ArchType             string    `json:"arch_type"`
	TreatmentType        string    `json:"treatment_type"`
	ScrewType            *string   `json:"screw_type,omitempty"`
	ScrewTypeOther       *string   `json:"screw_type_other,omitempty"`
	VDODetails           string    `json:"vdo_details"`
	NeedsNightguard      bool      `json:"needs_nightguard"`
	ExpressDesign        bool      `json:"express_design"`
	Shade                string    `json:"shade"`
	DueDate              time.Time `json:"due_date"`
	SpecificInstructions string    `json:"specific_instructions"`
	CouponCode           *string   `json:"coupon_code,omitempty"`
}

// CheckoutResult is either a created free lab script or a redirect to the
// payment provider.
type CheckoutResult struct {
	Status      string               `json:"status"` // "created" or "redirect"
	LabScript   *labscript.LabScript `json:"lab_script,omitempty"`
	RedirectURL string               `json:"redirect_url,omitempty"`
	SessionID   string               `json:"session_id,omitempty"`
	TotalCents  int64                `json:"total_cents"`
}

package labscript

import (
	"time"

	"github.com/google/uuid"
)

// Lab script statuses. "incomplete" is a derived filter over the four
// non-terminal statuses, never a stored value.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusOnHold     = "on_hold"
	StatusCompleted  = "completed"
)

// Payment statuses.
const (
	PaymentFree    = "free"
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Hold reasons accepted when a script enters on_hold.
const (
	HoldIncompleteInfo = "incomplete_info"
	HoldIncomplete3D   = "incomplete_3d"
	HoldApproval       = "approval"
	HoldClinicRequest  = "clinic_request"
	HoldOthers         = "others"
)

const ScrewTypeOthers = "others"

// LabScript is one fabrication work order submitted by a clinic.
type LabScript struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicID             uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	ApplianceType        string     `db:"appliance_type" json:"appliance_type"`
	ArchType             string     `db:"arch_type" json:"arch_type"`
	TreatmentType        string     `db:"treatment_type" json:"treatment_type"`
	ScrewType            *string    `db:"screw_type" json:"screw_type,omitempty"`
	ScrewTypeOther       *string    `db:"screw_type_other" json:"screw_type_other,omitempty"`
	VDODetails           string     `db:"vdo_details" json:"vdo_details"`
	NeedsNightguard      bool       `db:"needs_nightguard" json:"needs_nightguard"`
	ExpressDesign        bool       `db:"express_design" json:"express_design"`
	Shade                string     `db:"shade" json:"shade"`
	DueDate              time.Time  `db:"due_date" json:"due_date"`
	SpecificInstructions string     `db:"specific_instructions" json:"specific_instructions"`
	CouponCode           *string    `db:"coupon_code" json:"coupon_code,omitempty"`
	IsFreePrintedTryin   bool       `db:"is_free_printed_tryin" json:"is_free_printed_tryin"`
	Status               string     `db:"status" json:"status"`
	HoldReason           *string    `db:"hold_reason" json:"hold_reason,omitempty"`
	HoldComment          *string    `db:"hold_comment" json:"hold_comment,omitempty"`
	DesignURL            *string    `db:"design_url" json:"design_url,omitempty"`
	PaymentStatus        string     `db:"payment_status" json:"payment_status"`
	AmountPaidCents      int64      `db:"amount_paid_cents" json:"amount_paid_cents"`
	PaymentID            *string    `db:"payment_id" json:"payment_id,omitempty"`
	PaymentDate          *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusChange is one append-only audit entry. Prior hold reasons survive
// re-entry into on_hold because every transition appends a new row.
type StatusChange struct {
	ID          uuid.UUID `db:"id" json:"id"`
	LabScriptID uuid.UUID `db:"lab_script_id" json:"lab_script_id"`
	FromStatus  string    `db:"from_status" json:"from_status"`
	ToStatus    string    `db:"to_status" json:"to_status"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
	Comment     *string   `db:"comment" json:"comment,omitempty"`
	DesignURL   *string   `db:"design_url" json:"design_url,omitempty"`
	ChangedBy   string    `db:"changed_by" json:"changed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CouponVerdict is the result of validating a free try-in coupon.
type CouponVerdict struct {
	Valid          bool       `json:"valid"`
	Message        string     `json:"message"`
	SourceScriptID *uuid.UUID `json:"source_script_id,omitempty"`
}

// UpdateStatusRequest carries a status transition.
type UpdateStatusRequest struct {
	Status    string  `json:"status"`
	Reason    *string `json:"reason,omitempty"`
	Comment   *string `json:"comment,omitempty"`
	DesignURL *string `json:"design_url,omitempty"`
}

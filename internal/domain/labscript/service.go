package labscript

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validTransitions = map[string]map[string]bool{
	StatusPending:    {StatusInProgress: true},
	StatusInProgress: {StatusPaused: true, StatusOnHold: true, StatusCompleted: true},
	StatusPaused:     {StatusInProgress: true},
	StatusOnHold:     {StatusInProgress: true},
	StatusCompleted:  {},
}

var validHoldReasons = map[string]bool{
	HoldIncompleteInfo: true,
	HoldIncomplete3D:   true,
	HoldApproval:       true,
	HoldClinicRequest:  true,
	HoldOthers:         true,
}

type Service struct {
	scripts Repository
	history HistoryRepository
	now     func() time.Time
}

func NewService(scripts Repository, history HistoryRepository) *Service {
	return &Service{scripts: scripts, history: history, now: time.Now}
}

// Create validates and inserts a new lab script in pending status. Coupon
// eligibility must already have been checked by the caller (the checkout
// orchestrator revalidates it before money is involved).
func (s *Service) Create(ctx context.Context, ls *LabScript, createdBy string) error {
	if err := s.validateCreate(ls); err != nil {
		return err
	}
	if err := ValidateDueDate(ls.ApplianceType, ls.DueDate, s.now()); err != nil {
		return err
	}
	return s.persist(ctx, ls, createdBy)
}

// CreatePaid persists a script whose submission already passed full
// validation when its checkout draft was staged. The due date is not
// rechecked against the current clock: payment confirmation can arrive
// after a business-day boundary has shifted, and an order the clinic paid
// for must not be rejected for it.
func (s *Service) CreatePaid(ctx context.Context, ls *LabScript, createdBy string) error {
	if err := s.validateCreate(ls); err != nil {
		return err
	}
	return s.persist(ctx, ls, createdBy)
}

func (s *Service) persist(ctx context.Context, ls *LabScript, createdBy string) error {
	ls.Status = StatusPending
	if ls.PaymentStatus == "" {
		ls.PaymentStatus = PaymentPending
	}
	if err := s.scripts.Create(ctx, ls); err != nil {
		return err
	}
	if err := s.history.Append(ctx, &StatusChange{
		LabScriptID: ls.ID,
		FromStatus:  "",
		ToStatus:    StatusPending,
		ChangedBy:   createdBy,
	}); err != nil {
		log.Error().Err(err).Str("lab_script_id", ls.ID.String()).Msg("appending creation history failed")
	}
	return nil
}

func (s *Service) validateCreate(ls *LabScript) error {
	if ls.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if ls.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	if ls.ApplianceType == "" {
		return fmt.Errorf("appliance_type is required")
	}
	if ls.ArchType == "" {
		return fmt.Errorf("arch_type is required")
	}
	if ls.TreatmentType == "" {
		return fmt.Errorf("treatment_type is required")
	}
	if ls.VDODetails == "" {
		return fmt.Errorf("vdo_details is required")
	}
	if ls.Shade == "" {
		return fmt.Errorf("shade is required")
	}
	if ls.SpecificInstructions == "" {
		return fmt.Errorf("specific_instructions is required")
	}
	if ls.DueDate.IsZero() {
		return fmt.Errorf("due_date is required")
	}
	if ls.ScrewType != nil && *ls.ScrewType == ScrewTypeOthers && (ls.ScrewTypeOther == nil || *ls.ScrewTypeOther == "") {
		return fmt.Errorf("screw_type_other is required when screw_type is %q", ScrewTypeOthers)
	}
	if ls.IsFreePrintedTryin && (ls.CouponCode == nil || *ls.CouponCode == "") {
		return fmt.Errorf("coupon_code is required for a free printed try-in")
	}
	if ls.DueDate.Weekday() == time.Saturday || ls.DueDate.Weekday() == time.Sunday {
		return fmt.Errorf("due date %s falls on a weekend", ls.DueDate.Format("2006-01-02"))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LabScript, error) {
	return s.scripts.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*LabScript, int, error) {
	return s.scripts.List(ctx, f, limit, offset)
}

func (s *Service) History(ctx context.Context, scriptID uuid.UUID) ([]*StatusChange, error) {
	return s.history.ListByScript(ctx, scriptID)
}

// UpdateStatus applies one transition and appends an audit entry. Entering
// on_hold requires a reason from the fixed set; the approval reason also
// requires a design URL for the clinic to review.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest, changedBy string) (*LabScript, error) {
	ls, err := s.scripts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, known := validTransitions[ls.Status]
	if !known {
		return nil, fmt.Errorf("lab script %s has unknown status %q", id, ls.Status)
	}
	if !allowed[req.Status] {
		return nil, fmt.Errorf("invalid status transition %s -> %s", ls.Status, req.Status)
	}

	if req.Status == StatusOnHold {
		if req.Reason == nil || !validHoldReasons[*req.Reason] {
			return nil, fmt.Errorf("entering on_hold requires a reason from {incomplete_info, incomplete_3d, approval, clinic_request, others}")
		}
		if *req.Reason == HoldApproval && (req.DesignURL == nil || *req.DesignURL == "") {
			return nil, fmt.Errorf("hold reason %q requires a design_url", HoldApproval)
		}
	}

	from := ls.Status
	ls.Status = req.Status
	if req.Status == StatusOnHold {
		ls.HoldReason = req.Reason
		ls.HoldComment = req.Comment
		if req.DesignURL != nil {
			ls.DesignURL = req.DesignURL
		}
	} else {
		ls.HoldReason = nil
		ls.HoldComment = nil
	}

	if err := s.scripts.UpdateStatus(ctx, ls); err != nil {
		return nil, err
	}
	if err := s.history.Append(ctx, &StatusChange{
		LabScriptID: ls.ID,
		FromStatus:  from,
		ToStatus:    req.Status,
		Reason:      req.Reason,
		Comment:     req.Comment,
		DesignURL:   req.DesignURL,
		ChangedBy:   changedBy,
	}); err != nil {
		log.Error().Err(err).Str("lab_script_id", ls.ID.String()).Msg("appending status history failed")
	}
	return ls, nil
}

// Delete hard-deletes a lab script. Admin only; there is no tombstone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.scripts.GetByID(ctx, id); err != nil {
		return err
	}
	return s.scripts.Delete(ctx, id)
}

// ValidateCoupon runs the three eligibility checks for a free printed
// try-in, short-circuiting on the first failure:
// the patient has never had a free try-in, the coupon traces to one of the
// patient's surgical-day scripts, and no script anywhere has consumed it.
func (s *Service) ValidateCoupon(ctx context.Context, code string, patientID uuid.UUID) (*CouponVerdict, error) {
	if code == "" {
		return nil, fmt.Errorf("coupon code is required")
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	used, err := s.scripts.HasFreeTryIn(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if used {
		return &CouponVerdict{Valid: false, Message: "patient has already used a free printed try-in"}, nil
	}

	source, err := s.scripts.FindSurgicalDayByCoupon(ctx, code, patientID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return &CouponVerdict{Valid: false, Message: "coupon does not match a surgical-day lab script for this patient"}, nil
	}

	consumed, err := s.scripts.CouponConsumed(ctx, code)
	if err != nil {
		return nil, err
	}
	if consumed {
		return &CouponVerdict{Valid: false, Message: "coupon has already been used"}, nil
	}

	return &CouponVerdict{Valid: true, Message: "coupon is valid", SourceScriptID: &source.ID}, nil
}

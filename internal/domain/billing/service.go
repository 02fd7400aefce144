package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dentalab/labportal/internal/domain/identity"
	"github.com/dentalab/labportal/internal/domain/labscript"
	"github.com/dentalab/labportal/internal/domain/pricing"
	"github.com/dentalab/labportal/internal/platform/payments"
)

// ScriptService is the slice of the lab script service the orchestrator
// needs.
type ScriptService interface {
	Create(ctx context.Context, ls *labscript.LabScript, createdBy string) error
	// CreatePaid skips due-date revalidation; the draft was fully validated
	// when it was staged, and confirmation may arrive days later.
	CreatePaid(ctx context.Context, ls *labscript.LabScript, createdBy string) error
	ValidateCoupon(ctx context.Context, code string, patientID uuid.UUID) (*labscript.CouponVerdict, error)
}

// Quoter prices a submission. Satisfied by *pricing.Service.
type Quoter interface {
	ComputeTotal(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error)
}

// SessionCreator creates provider checkout sessions. Satisfied by
// *payments.Client.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, items []payments.LineItem, metadata map[string]string) (*payments.CheckoutSession, error)
}

// ClinicGetter resolves clinics for invoice snapshots.
type ClinicGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Clinic, error)
}

// TxRunner wraps a function in a storage transaction. In production this is
// db.RunInTx over the pool; tests substitute a pass-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	invoices InvoiceRepository
	drafts   DraftRepository
	sessions SessionRepository
	scripts  ScriptService
	quoter   Quoter
	provider SessionCreator
	clinics  ClinicGetter
	inTx     TxRunner
}

func NewService(
	invoices InvoiceRepository,
	drafts DraftRepository,
	sessions SessionRepository,
	scripts ScriptService,
	quoter Quoter,
	provider SessionCreator,
	clinics ClinicGetter,
	inTx TxRunner,
) *Service {
	return &Service{
		invoices: invoices,
		drafts:   drafts,
		sessions: sessions,
		scripts:  scripts,
		quoter:   quoter,
		provider: provider,
		clinics:  clinics,
		inTx:     inTx,
	}
}

// InitiateCheckout prices a submission and either persists it directly when
// nothing is owed or stages a draft and returns the provider redirect.
// The draft is persisted before the provider call so a provider failure
// loses no form data.
func (s *Service) InitiateCheckout(ctx context.Context, clinicID uuid.UUID, req CheckoutRequest, createdBy string) (*CheckoutResult, error) {
	ls := scriptFromRequest(clinicID, req)

	if req.CouponCode != nil && *req.CouponCode != "" {
		verdict, err := s.scripts.ValidateCoupon(ctx, *req.CouponCode, req.PatientID)
		if err != nil {
			return nil, err
		}
		if !verdict.Valid {
			return nil, fmt.Errorf("coupon rejected: %s", verdict.Message)
		}
		ls.IsFreePrintedTryin = true
	}

	quote, err := s.quoter.ComputeTotal(ctx, pricing.QuoteRequest{
		ApplianceType:   req.ApplianceType,
		ArchType:        req.ArchType,
		NeedsNightguard: req.NeedsNightguard,
		ExpressDesign:   req.ExpressDesign,
		IsFreeScript:    ls.IsFreePrintedTryin,
	})
	if err != nil {
		return nil, err
	}

	if quote.TotalCents == 0 {
		ls.PaymentStatus = labscript.PaymentFree
		ls.AmountPaidCents = 0
		if err := s.scripts.Create(ctx, ls, createdBy); err != nil {
			return nil, err
		}
		return &CheckoutResult{Status: "created", LabScript: ls, TotalCents: 0}, nil
	}

	draft := &Draft{
		ClinicID:   clinicID,
		CreatedBy:  createdBy,
		Script:     *ls,
		TotalCents: quote.TotalCents,
		Currency:   quote.Currency,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, err
	}

	items := make([]payments.LineItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		items = append(items, payments.LineItem{
			Description: line.Description,
			UnitAmount:  line.AmountCents,
			Quantity:    1,
			Currency:    quote.Currency,
		})
	}
	session, err := s.provider.CreateCheckoutSession(ctx, items, map[string]string{
		"draft_id":  draft.ID.String(),
		"clinic_id": clinicID.String(),
	})
	if err != nil {
		// The draft survives; the clinic can resubmit without retyping.
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	return &CheckoutResult{
		Status:      "redirect",
		RedirectURL: session.URL,
		SessionID:   session.ID,
		TotalCents:  quote.TotalCents,
	}, nil
}

// FulfillSession finalizes payment confirmation for one checkout session.
// Claiming the session id is the idempotency gate: replayed webhook
// deliveries and concurrent duplicates claim nothing and return without
// side effects.
func (s *Service) FulfillSession(ctx context.Context, payload *payments.SessionPayload) error {
	rawDraft, ok := payload.Metadata["draft_id"]
	if !ok {
		return fmt.Errorf("session %s has no draft_id metadata", payload.ID)
	}
	draftID, err := uuid.Parse(rawDraft)
	if err != nil {
		return fmt.Errorf("session %s has invalid draft_id %q", payload.ID, rawDraft)
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		claimed, err := s.sessions.Claim(ctx, payload.ID, draftID, payload.AmountTotal)
		if err != nil {
			return err
		}
		if !claimed {
			log.Info().Str("session_id", payload.ID).Msg("session already processed, skipping")
			return nil
		}

		draft, err := s.drafts.GetByID(ctx, draftID)
		if err != nil {
			return fmt.Errorf("loading draft %s: %w", draftID, err)
		}

		ls := draft.Script
		ls.ID = uuid.Nil
		ls.PaymentStatus = labscript.PaymentPaid
		ls.AmountPaidCents = payload.AmountTotal
		paymentID := payload.PaymentIntent
		if paymentID == "" {
			paymentID = payload.ID
		}
		now := time.Now()
		ls.PaymentID = &paymentID
		ls.PaymentDate = &now

		if err := s.scripts.CreatePaid(ctx, &ls, draft.CreatedBy); err != nil {
			return fmt.Errorf("creating lab script from draft %s: %w", draftID, err)
		}

		inv := &Invoice{
			LabScriptID:     ls.ID,
			ClinicID:        draft.ClinicID,
			ApplianceType:   ls.ApplianceType,
			AmountPaidCents: payload.AmountTotal,
			Currency:        payload.Currency,
			PaymentID:       paymentID,
		}
		if clinic, err := s.clinics.GetByID(ctx, draft.ClinicID); err == nil {
			inv.ClinicName = clinic.Name
			inv.ClinicEmail = clinic.Email
			inv.ClinicAddress = formatAddress(clinic)
		} else {
			log.Warn().Err(err).Str("clinic_id", draft.ClinicID.String()).Msg("clinic snapshot lookup failed")
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return fmt.Errorf("creating invoice: %w", err)
		}

		if err := s.sessions.MarkProcessed(ctx, payload.ID); err != nil {
			return err
		}
		if err := s.drafts.Delete(ctx, draftID); err != nil {
			return err
		}

		log.Info().
			Str("session_id", payload.ID).
			Str("lab_script_id", ls.ID.String()).
			Int64("amount_cents", payload.AmountTotal).
			Msg("payment fulfilled")
		return nil
	})
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) GetInvoiceByLabScript(ctx context.Context, labScriptID uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByLabScript(ctx, labScriptID)
}

func (s *Service) ListInvoices(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, clinicID, limit, offset)
}

func scriptFromRequest(clinicID uuid.UUID, req CheckoutRequest) *labscript.LabScript {
	return &labscript.LabScript{
		PatientID:            req.PatientID,
		ClinicID:             clinicID,
		ApplianceType:        req.ApplianceType,
		ArchType:             req.ArchType,
		TreatmentType:        req.TreatmentType,
		ScrewType:            req.ScrewType,
		ScrewTypeOther:       req.ScrewTypeOther,
		VDODetails:           req.VDODetails,
		NeedsNightguard:      req.NeedsNightguard,
		ExpressDesign:        req.ExpressDesign,
		Shade:                req.Shade,
		DueDate:              req.DueDate,
		SpecificInstructions: req.SpecificInstructions,
		CouponCode:           req.CouponCode,
	}
}

func formatAddress(c *identity.Clinic) *string {
	parts := make([]string, 0, 5)
	for _, p := range []*string{c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return &out
}

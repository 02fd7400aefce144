package labscript

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a lab script listing. Status and Incomplete are mutually
// exclusive; a zero ClinicID means no tenancy filter (admin/designer views).
type Filter struct {
	ClinicID   uuid.UUID
	PatientID  uuid.UUID
	Status     string
	Incomplete bool
}

type Repository interface {
	Create(ctx context.Context, ls *LabScript) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabScript, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*LabScript, int, error)
	UpdateStatus(ctx context.Context, ls *LabScript) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Coupon eligibility queries.
	HasFreeTryIn(ctx context.Context, patientID uuid.UUID) (bool, error)
	FindSurgicalDayByCoupon(ctx context.Context, code string, patientID uuid.UUID) (*LabScript, error)
	CouponConsumed(ctx context.Context, code string) (bool, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, ch *StatusChange) error
	ListByScript(ctx context.Context, scriptID uuid.UUID) ([]*StatusChange, error)
}

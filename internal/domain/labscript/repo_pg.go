package labscript

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalab/labportal/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const scriptCols = `id, patient_id, clinic_id, appliance_type, arch_type, treatment_type,
	screw_type, screw_type_other, vdo_details, needs_nightguard, express_design, shade,
	due_date, specific_instructions, coupon_code, is_free_printed_tryin,
	status, hold_reason, hold_comment, design_url,
	payment_status, amount_paid_cents, payment_id, payment_date, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ls *LabScript) error {
	if ls.ID == uuid.Nil {
		ls.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_scripts (
			id, patient_id, clinic_id, appliance_type, arch_type, treatment_type,
			screw_type, screw_type_other, vdo_details, needs_nightguard, express_design, shade,
			due_date, specific_instructions, coupon_code, is_free_printed_tryin,
			status, payment_status, amount_paid_cents, payment_id, payment_date
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11,$12,
			$13,$14,$15,$16,
			$17,$18,$19,$20,$21
		)`,
		ls.ID, ls.PatientID, ls.ClinicID, ls.ApplianceType, ls.ArchType, ls.TreatmentType,
		ls.ScrewType, ls.ScrewTypeOther, ls.VDODetails, ls.NeedsNightguard, ls.ExpressDesign, ls.Shade,
		ls.DueDate, ls.SpecificInstructions, ls.CouponCode, ls.IsFreePrintedTryin,
		ls.Status, ls.PaymentStatus, ls.AmountPaidCents, ls.PaymentID, ls.PaymentDate,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabScript, error) {
	return scanScript(r.conn(ctx).QueryRow(ctx, `SELECT `+scriptCols+` FROM lab_scripts WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*LabScript, int, error) {
	where := `WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ClinicID != uuid.Nil {
		where += ` AND clinic_id = ` + arg(f.ClinicID)
	}
	if f.PatientID != uuid.Nil {
		where += ` AND patient_id = ` + arg(f.PatientID)
	}
	switch {
	case f.Incomplete:
		where += ` AND status IN ('pending','in_progress','paused','on_hold')`
	case f.Status != "":
		where += ` AND status = ` + arg(f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_scripts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + scriptCols + ` FROM lab_scripts ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var scripts []*LabScript
	for rows.Next() {
		ls, err := scanScriptRows(rows)
		if err != nil {
			return nil, 0, err
		}
		scripts = append(scripts, ls)
	}
	return scripts, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, ls *LabScript) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_scripts SET
			status=$2, hold_reason=$3, hold_comment=$4, design_url=$5, updated_at=NOW()
		WHERE id = $1`,
		ls.ID, ls.Status, ls.HoldReason, ls.HoldComment, ls.DesignURL,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_scripts WHERE id = $1`, id)
	return err
}

func (r *repoPG) HasFreeTryIn(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lab_scripts WHERE patient_id = $1 AND is_free_printed_tryin)`,
		patientID).Scan(&exists)
	return exists, err
}

func (r *repoPG) FindSurgicalDayByCoupon(ctx context.Context, code string, patientID uuid.UUID) (*LabScript, error) {
	ls, err := scanScript(r.conn(ctx).QueryRow(ctx, `
		SELECT `+scriptCols+` FROM lab_scripts
		WHERE appliance_type = 'surgical-day' AND coupon_code = $1 AND patient_id = $2
		ORDER BY created_at LIMIT 1`, code, patientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ls, nil
}

// CouponConsumed checks lab-wide, not per patient: a coupon backs exactly
// one free try-in across all clinics.
func (r *repoPG) CouponConsumed(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lab_scripts WHERE coupon_code = $1 AND is_free_printed_tryin)`,
		code).Scan(&exists)
	return exists, err
}

func scanScript(row pgx.Row) (*LabScript, error) {
	var ls LabScript
	err := row.Scan(
		&ls.ID, &ls.PatientID, &ls.ClinicID, &ls.ApplianceType, &ls.ArchType, &ls.TreatmentType,
		&ls.ScrewType, &ls.ScrewTypeOther, &ls.VDODetails, &ls.NeedsNightguard, &ls.ExpressDesign, &ls.Shade,
		&ls.DueDate, &ls.SpecificInstructions, &ls.CouponCode, &ls.IsFreePrintedTryin,
		&ls.Status, &ls.HoldReason, &ls.HoldComment, &ls.DesignURL,
		&ls.PaymentStatus, &ls.AmountPaidCents, &ls.PaymentID, &ls.PaymentDate, &ls.CreatedAt, &ls.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

func scanScriptRows(rows pgx.Rows) (*LabScript, error) {
	var ls LabScript
	err := rows.Scan(
		&ls.ID, &ls.PatientID, &ls.ClinicID, &ls.ApplianceType, &ls.ArchType, &ls.TreatmentType,
		&ls.ScrewType, &ls.ScrewTypeOther, &ls.VDODetails, &ls.NeedsNightguard, &ls.ExpressDesign, &ls.Shade,
		&ls.DueDate, &ls.SpecificInstructions, &ls.CouponCode, &ls.IsFreePrintedTryin,
		&ls.Status, &ls.HoldReason, &ls.HoldComment, &ls.DesignURL,
		&ls.PaymentStatus, &ls.AmountPaidCents, &ls.PaymentID, &ls.PaymentDate, &ls.CreatedAt, &ls.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

// -- Status History Repository --

type historyRepoPG struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *historyRepoPG) Append(ctx context.Context, ch *StatusChange) error {
	ch.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_script_status_history (id, lab_script_id, from_status, to_status, reason, comment, design_url, changed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ch.ID, ch.LabScriptID, ch.FromStatus, ch.ToStatus, ch.Reason, ch.Comment, ch.DesignURL, ch.ChangedBy,
	)
	return err
}

func (r *historyRepoPG) ListByScript(ctx context.Context, scriptID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, lab_script_id, from_status, to_status, reason, comment, design_url, changed_by, created_at
		FROM lab_script_status_history WHERE lab_script_id = $1 ORDER BY created_at`, scriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*StatusChange
	for rows.Next() {
		var ch StatusChange
		if err := rows.Scan(&ch.ID, &ch.LabScriptID, &ch.FromStatus, &ch.ToStatus, &ch.Reason, &ch.Comment, &ch.DesignURL, &ch.ChangedBy, &ch.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, &ch)
	}
	return changes, nil
}

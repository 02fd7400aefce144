package billing

import (
	"context"

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

// -- Invoice Repository --

type invoiceRepoPG struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepo(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepoPG{pool: pool}
}

func (r *invoiceRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, lab_script_id, clinic_id, clinic_name, clinic_email, clinic_address,
	appliance_type, amount_paid_cents, currency, payment_id, created_at`

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (
			id, lab_script_id, clinic_id, clinic_name, clinic_email, clinic_address,
			appliance_type, amount_paid_cents, currency, payment_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		inv.ID, inv.LabScriptID, inv.ClinicID, inv.ClinicName, inv.ClinicEmail, inv.ClinicAddress,
		inv.ApplianceType, inv.AmountPaidCents, inv.Currency, inv.PaymentID,
	)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) GetByLabScript(ctx context.Context, labScriptID uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE lab_script_id = $1`, labScriptID))
}

func (r *invoiceRepoPG) List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	where := ``
	args := []interface{}{}
	if clinicID != uuid.Nil {
		where = `WHERE clinic_id = $1`
		args = append(args, clinicID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + invoiceCols + ` FROM invoices ` + where + ` ORDER BY created_at DESC`
	if clinicID != uuid.Nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.LabScriptID, &inv.ClinicID, &inv.ClinicName, &inv.ClinicEmail, &inv.ClinicAddress,
			&inv.ApplianceType, &inv.AmountPaidCents, &inv.Currency, &inv.PaymentID, &inv.CreatedAt); err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, &inv)
	}
	return invoices, total, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.LabScriptID, &inv.ClinicID, &inv.ClinicName, &inv.ClinicEmail, &inv.ClinicAddress,
		&inv.ApplianceType, &inv.AmountPaidCents, &inv.Currency, &inv.PaymentID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// -- Draft Repository --

type draftRepoPG struct {
	pool *pgxpool.Pool
}

func NewDraftRepo(pool *pgxpool.Pool) DraftRepository {
	return &draftRepoPG{pool: pool}
}

func (r *draftRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *draftRepoPG) Create(ctx context.Context, d *Draft) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_script_drafts (id, clinic_id, created_by, script, total_cents, currency)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.ClinicID, d.CreatedBy, d.Script, d.TotalCents, d.Currency,
	)
	return err
}

func (r *draftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Draft, error) {
	var d Draft
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, clinic_id, created_by, script, total_cents, currency, created_at
		FROM lab_script_drafts WHERE id = $1`, id).
		Scan(&d.ID, &d.ClinicID, &d.CreatedBy, &d.Script, &d.TotalCents, &d.Currency, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_script_drafts WHERE id = $1`, id)
	return err
}

// -- Payment Session Repository --

type sessionRepoPG struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *sessionRepoPG) Claim(ctx context.Context, sessionID string, draftID uuid.UUID, amountCents int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment_sessions (id, session_id, draft_id, amount_cents)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (session_id) DO NOTHING`,
		uuid.New(), sessionID, draftID, amountCents,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *sessionRepoPG) MarkProcessed(ctx context.Context, sessionID string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE payment_sessions SET processed_at = NOW() WHERE session_id = $1`, sessionID)
	return err
}

package identity

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

// -- Clinic Repository --

type clinicRepoPG struct {
	pool *pgxpool.Pool
}

func NewClinicRepo(pool *pgxpool.Pool) ClinicRepository {
	return &clinicRepoPG{pool: pool}
}

func (r *clinicRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const clinicCols = `id, auth_subject, name, contact_name, email, phone,
	address_line1, address_line2, city, state, postal_code, created_at, updated_at`

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinics (
			id, auth_subject, name, contact_name, email, phone,
			address_line1, address_line2, city, state, postal_code
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.AuthSubject, c.Name, c.ContactName, c.Email, c.Phone,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode,
	)
	return err
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE id = $1`, id))
}

func (r *clinicRepoPG) GetByAuthSubject(ctx context.Context, subject string) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE auth_subject = $1`, subject))
}

func (r *clinicRepoPG) GetByEmail(ctx context.Context, email string) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE lower(email) = lower($1)`, email))
}

func (r *clinicRepoPG) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinics`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+clinicCols+` FROM clinics ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clinics []*Clinic
	for rows.Next() {
		c, err := scanClinicRows(rows)
		if err != nil {
			return nil, 0, err
		}
		clinics = append(clinics, c)
	}
	return clinics, total, nil
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinics SET
			auth_subject=$2, name=$3, contact_name=$4, email=$5, phone=$6,
			address_line1=$7, address_line2=$8, city=$9, state=$10, postal_code=$11, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.AuthSubject, c.Name, c.ContactName, c.Email, c.Phone,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode,
	)
	return err
}

func (r *clinicRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	return err
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(
		&c.ID, &c.AuthSubject, &c.Name, &c.ContactName, &c.Email, &c.Phone,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.State, &c.PostalCode,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanClinicRows(rows pgx.Rows) (*Clinic, error) {
	var c Clinic
	err := rows.Scan(
		&c.ID, &c.AuthSubject, &c.Name, &c.ContactName, &c.Email, &c.Phone,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.State, &c.PostalCode,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// -- Designer Repository --

type designerRepoPG struct {
	pool *pgxpool.Pool
}

func NewDesignerRepo(pool *pgxpool.Pool) DesignerRepository {
	return &designerRepoPG{pool: pool}
}

func (r *designerRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const designerCols = `id, auth_subject, first_name, last_name, email, created_at, updated_at`

func (r *designerRepoPG) Create(ctx context.Context, d *Designer) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO designers (id, auth_subject, first_name, last_name, email)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.AuthSubject, d.FirstName, d.LastName, d.Email,
	)
	return err
}

func (r *designerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Designer, error) {
	return scanDesigner(r.conn(ctx).QueryRow(ctx, `SELECT `+designerCols+` FROM designers WHERE id = $1`, id))
}

func (r *designerRepoPG) List(ctx context.Context, limit, offset int) ([]*Designer, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM designers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+designerCols+` FROM designers ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var designers []*Designer
	for rows.Next() {
		d, err := scanDesignerRows(rows)
		if err != nil {
			return nil, 0, err
		}
		designers = append(designers, d)
	}
	return designers, total, nil
}

func (r *designerRepoPG) Update(ctx context.Context, d *Designer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE designers SET auth_subject=$2, first_name=$3, last_name=$4, email=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.AuthSubject, d.FirstName, d.LastName, d.Email,
	)
	return err
}

func (r *designerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM designers WHERE id = $1`, id)
	return err
}

func scanDesigner(row pgx.Row) (*Designer, error) {
	var d Designer
	if err := row.Scan(&d.ID, &d.AuthSubject, &d.FirstName, &d.LastName, &d.Email, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDesignerRows(rows pgx.Rows) (*Designer, error) {
	var d Designer
	if err := rows.Scan(&d.ID, &d.AuthSubject, &d.FirstName, &d.LastName, &d.Email, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Profile Repository --

type profileRepoPG struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *profileRepoPG) Upsert(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO profiles (id, auth_subject, role)
		VALUES ($1,$2,$3)
		ON CONFLICT (auth_subject) DO UPDATE SET role = EXCLUDED.role`,
		p.ID, p.AuthSubject, p.Role,
	)
	return err
}

func (r *profileRepoPG) GetByAuthSubject(ctx context.Context, subject string) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, auth_subject, role, created_at FROM profiles WHERE auth_subject = $1`, subject).
		Scan(&p.ID, &p.AuthSubject, &p.Role, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Invitation Repository --

type invitationRepoPG struct {
	pool *pgxpool.Pool
}

func NewInvitationRepo(pool *pgxpool.Pool) InvitationRepository {
	return &invitationRepoPG{pool: pool}
}

func (r *invitationRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *invitationRepoPG) Create(ctx context.Context, inv *Invitation) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_invitations (id, clinic_id, email, token, expires_at)
		VALUES ($1,$2,$3,$4,$5)`,
		inv.ID, inv.ClinicID, inv.Email, inv.Token, inv.ExpiresAt,
	)
	return err
}

func (r *invitationRepoPG) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	var inv Invitation
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, clinic_id, email, token, expires_at, accepted_at, created_at
		FROM clinic_invitations WHERE token = $1`, token).
		Scan(&inv.ID, &inv.ClinicID, &inv.Email, &inv.Token, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepoPG) MarkAccepted(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE clinic_invitations SET accepted_at = NOW() WHERE id = $1`, id)
	return err
}

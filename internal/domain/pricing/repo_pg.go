package pricing

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

const priceCols = `id, service_name, amount_cents, currency, provider_price_id, synced_at, created_at, updated_at`

func (r *repoPG) GetByServiceName(ctx context.Context, serviceName string) (*ServicePrice, error) {
	return scanPrice(r.conn(ctx).QueryRow(ctx, `SELECT `+priceCols+` FROM service_prices WHERE service_name = $1`, serviceName))
}

func (r *repoPG) List(ctx context.Context) ([]*ServicePrice, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+priceCols+` FROM service_prices ORDER BY service_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []*ServicePrice
	for rows.Next() {
		var p ServicePrice
		if err := rows.Scan(&p.ID, &p.ServiceName, &p.AmountCents, &p.Currency, &p.ProviderPriceID, &p.SyncedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, &p)
	}
	return prices, nil
}

func (r *repoPG) Upsert(ctx context.Context, p *ServicePrice) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_prices (id, service_name, amount_cents, currency, provider_price_id, synced_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (service_name) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			provider_price_id = EXCLUDED.provider_price_id,
			synced_at = NOW(),
			updated_at = NOW()`,
		p.ID, p.ServiceName, p.AmountCents, p.Currency, p.ProviderPriceID,
	)
	return err
}

func scanPrice(row pgx.Row) (*ServicePrice, error) {
	var p ServicePrice
	if err := row.Scan(&p.ID, &p.ServiceName, &p.AmountCents, &p.Currency, &p.ProviderPriceID, &p.SyncedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

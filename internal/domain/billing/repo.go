package billing

import (
	"context"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByLabScript(ctx context.Context, labScriptID uuid.UUID) (*Invoice, error)
	List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
}

type DraftRepository interface {
	Create(ctx context.Context, d *Draft) error
	GetByID(ctx context.Context, id uuid.UUID) (*Draft, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	// Claim inserts the session id and reports whether this call won the
	// claim. A false return means another delivery already processed it.
	Claim(ctx context.Context, sessionID string, draftID uuid.UUID, amountCents int64) (bool, error)
	MarkProcessed(ctx context.Context, sessionID string) error
}

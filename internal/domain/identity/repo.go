package identity

import (
	"context"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetByAuthSubject(ctx context.Context, subject string) (*Clinic, error)
	GetByEmail(ctx context.Context, email string) (*Clinic, error)
	List(ctx context.Context, limit, offset int) ([]*Clinic, int, error)
	Update(ctx context.Context, c *Clinic) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type DesignerRepository interface {
	Create(ctx context.Context, d *Designer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Designer, error)
	List(ctx context.Context, limit, offset int) ([]*Designer, int, error)
	Update(ctx context.Context, d *Designer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProfileRepository interface {
	Upsert(ctx context.Context, p *Profile) error
	GetByAuthSubject(ctx context.Context, subject string) (*Profile, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	MarkAccepted(ctx context.Context, id uuid.UUID) error
}

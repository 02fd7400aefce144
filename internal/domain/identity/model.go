package identity

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenant entity. Every patient and lab script belongs to
// exactly one clinic.
type Clinic struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AuthSubject  *string   `db:"auth_subject" json:"auth_subject,omitempty"`
	Name         string    `db:"name" json:"name"`
	ContactName  *string   `db:"contact_name" json:"contact_name,omitempty"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	AddressLine1 *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 *string   `db:"address_line2" json:"address_line2,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	State        *string   `db:"state" json:"state,omitempty"`
	PostalCode   *string   `db:"postal_code" json:"postal_code,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Designer is a lab staff member. Designers are role-gated, not row-scoped:
// no foreign key ties them to individual lab scripts.
type Designer struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AuthSubject *string   `db:"auth_subject" json:"auth_subject,omitempty"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Email       string    `db:"email" json:"email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Profile maps an auth subject to its portal role. Read on every
// access-control check.
type Profile struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AuthSubject string    `db:"auth_subject" json:"auth_subject"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Invitation is a pending clinic onboarding: a token emailed to the clinic
// that lets them set a password and claim their account.
type Invitation struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ClinicID   uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Email      string     `db:"email" json:"email"`
	Token      string     `db:"token" json:"token"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

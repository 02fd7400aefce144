package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/dentalab/labportal/internal/platform/auth"
	"github.com/dentalab/labportal/internal/platform/mail"
)

const invitationTTL = 7 * 24 * time.Hour

var validRoles = map[string]bool{
	auth.RoleClinic:   true,
	auth.RoleAdmin:    true,
	auth.RoleDesigner: true,
}

// Mailer sends onboarding and account emails. Satisfied by *mail.Client.
type Mailer interface {
	Send(ctx context.Context, m mail.Message) error
}

type Service struct {
	clinics     ClinicRepository
	designers   DesignerRepository
	profiles    ProfileRepository
	invitations InvitationRepository
	mailer      Mailer
	portalURL   string
}

func NewService(clinics ClinicRepository, designers DesignerRepository, profiles ProfileRepository, invitations InvitationRepository, mailer Mailer, portalURL string) *Service {
	return &Service{
		clinics:     clinics,
		designers:   designers,
		profiles:    profiles,
		invitations: invitations,
		mailer:      mailer,
		portalURL:   strings.TrimRight(portalURL, "/"),
	}
}

// -- Clinic --

func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	if existing, err := s.clinics.GetByEmail(ctx, c.Email); err == nil && existing != nil {
		return fmt.Errorf("clinic with email %s already exists", c.Email)
	}
	return s.clinics.Create(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) GetClinicByAuthSubject(ctx context.Context, subject string) (*Clinic, error) {
	return s.clinics.GetByAuthSubject(ctx, subject)
}

func (s *Service) ListClinics(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, limit, offset)
}

func (s *Service) UpdateClinic(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.clinics.Update(ctx, c)
}

func (s *Service) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	return s.clinics.Delete(ctx, id)
}

// InviteClinic creates the clinic record and emails an onboarding link.
// The clinic has no auth subject until the invitation is accepted.
func (s *Service) InviteClinic(ctx context.Context, c *Clinic) (*Invitation, error) {
	if err := s.CreateClinic(ctx, c); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generating invitation token: %w", err)
	}
	inv := &Invitation{
		ClinicID:  c.ID,
		Email:     c.Email,
		Token:     token,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	msg := mail.BuildClinicInvitation(mail.InvitationData{
		ClinicName: c.Name,
		Email:      c.Email,
		InviteURL:  s.portalURL + "/onboard?token=" + url.QueryEscape(token),
	})
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrDisabled) {
		log.Warn().Err(err).Str("clinic_id", c.ID.String()).Msg("invitation email failed")
	}
	return inv, nil
}

// AcceptInvitation links the auth subject created by the identity provider
// to the invited clinic and provisions its profile.
func (s *Service) AcceptInvitation(ctx context.Context, token, authSubject string) (*Clinic, error) {
	if token == "" || authSubject == "" {
		return nil, fmt.Errorf("token and auth_subject are required")
	}
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invitation not found")
		}
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, fmt.Errorf("invitation already accepted")
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, fmt.Errorf("invitation expired")
	}

	clinic, err := s.clinics.GetByID(ctx, inv.ClinicID)
	if err != nil {
		return nil, err
	}
	clinic.AuthSubject = &authSubject
	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, err
	}
	if err := s.profiles.Upsert(ctx, &Profile{AuthSubject: authSubject, Role: auth.RoleClinic}); err != nil {
		return nil, err
	}
	if err := s.invitations.MarkAccepted(ctx, inv.ID); err != nil {
		return nil, err
	}
	return clinic, nil
}

// SendPasswordReset emails a reset link to a clinic account. Always succeeds
// from the caller's point of view when the email is unknown, to avoid
// account enumeration.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	clinic, err := s.clinics.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	token, err := newToken()
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}
	inv := &Invitation{
		ClinicID:  clinic.ID,
		Email:     clinic.Email,
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return err
	}

	msg := mail.BuildPasswordReset(clinic.Email, s.portalURL+"/reset-password?token="+url.QueryEscape(token))
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrDisabled) {
		return fmt.Errorf("sending reset email: %w", err)
	}
	return nil
}

// -- Designer --

func (s *Service) CreateDesigner(ctx context.Context, d *Designer) error {
	if d.FirstName == "" || d.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if d.Email == "" {
		return fmt.Errorf("email is required")
	}
	if err := s.designers.Create(ctx, d); err != nil {
		return err
	}
	if d.AuthSubject != nil && *d.AuthSubject != "" {
		return s.profiles.Upsert(ctx, &Profile{AuthSubject: *d.AuthSubject, Role: auth.RoleDesigner})
	}
	return nil
}

func (s *Service) GetDesigner(ctx context.Context, id uuid.UUID) (*Designer, error) {
	return s.designers.GetByID(ctx, id)
}

func (s *Service) ListDesigners(ctx context.Context, limit, offset int) ([]*Designer, int, error) {
	return s.designers.List(ctx, limit, offset)
}

func (s *Service) UpdateDesigner(ctx context.Context, d *Designer) error {
	if d.FirstName == "" || d.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.designers.Update(ctx, d)
}

func (s *Service) DeleteDesigner(ctx context.Context, id uuid.UUID) error {
	return s.designers.Delete(ctx, id)
}

// -- Profile --

func (s *Service) GetProfile(ctx context.Context, authSubject string) (*Profile, error) {
	return s.profiles.GetByAuthSubject(ctx, authSubject)
}

func (s *Service) SetRole(ctx context.Context, authSubject, role string) error {
	if !validRoles[role] {
		return fmt.Errorf("invalid role: %s", role)
	}
	return s.profiles.Upsert(ctx, &Profile{AuthSubject: authSubject, Role: role})
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

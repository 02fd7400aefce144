package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validGenders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

// Get returns the patient only when it belongs to the given clinic.
// An admin caller passes uuid.Nil to skip the tenancy check.
func (s *Service) Get(ctx context.Context, id, clinicID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if clinicID != uuid.Nil && p.ClinicID != clinicID {
		return nil, fmt.Errorf("patient %s does not belong to clinic %s", id, clinicID)
	}
	return p, nil
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	if clinicID == uuid.Nil {
		return nil, 0, fmt.Errorf("clinic_id is required")
	}
	return s.patients.ListByClinic(ctx, clinicID, search, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient, clinicID uuid.UUID) error {
	existing, err := s.Get(ctx, p.ID, clinicID)
	if err != nil {
		return err
	}
	p.ClinicID = existing.ClinicID
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id, clinicID uuid.UUID) error {
	if _, err := s.Get(ctx, id, clinicID); err != nil {
		return err
	}
	return s.patients.Delete(ctx, id)
}

func validate(p *Patient) error {
	if p.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return fmt.Errorf("invalid gender: %s", *p.Gender)
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date_of_birth cannot be in the future")
	}
	return nil
}

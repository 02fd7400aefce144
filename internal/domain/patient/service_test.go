package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockRepo) ListByClinic(_ context.Context, clinicID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.ClinicID != clinicID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), strings.ToLower(search)) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	clinicID := uuid.New()

	cases := []struct {
		name    string
		patient Patient
	}{
		{"missing clinic", Patient{FirstName: "Ana", LastName: "Diaz"}},
		{"missing name", Patient{ClinicID: clinicID, FirstName: "Ana"}},
		{"bad gender", Patient{ClinicID: clinicID, FirstName: "Ana", LastName: "Diaz", Gender: strPtr("unknown")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Create(ctx, &tc.patient); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	valid := Patient{ClinicID: clinicID, FirstName: "Ana", LastName: "Diaz", Gender: strPtr("female")}
	if err := svc.Create(ctx, &valid); err != nil {
		t.Fatalf("valid patient rejected: %v", err)
	}
}

func TestCreate_RejectsFutureBirthDate(t *testing.T) {
	svc := NewService(newMockRepo())
	future := time.Now().Add(48 * time.Hour)

	p := Patient{ClinicID: uuid.New(), FirstName: "Ana", LastName: "Diaz", DateOfBirth: &future}
	if err := svc.Create(context.Background(), &p); err == nil {
		t.Error("expected error for future date_of_birth")
	}
}

func TestGet_EnforcesClinicScope(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()
	p := &Patient{ClinicID: owner, FirstName: "Ana", LastName: "Diaz"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Get(ctx, p.ID, owner); err != nil {
		t.Errorf("owner clinic denied: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, other); err == nil {
		t.Error("expected cross-clinic access to be denied")
	}
	// Admin scope (uuid.Nil) bypasses the check.
	if _, err := svc.Get(ctx, p.ID, uuid.Nil); err != nil {
		t.Errorf("admin access denied: %v", err)
	}
}

func TestListByClinic_FiltersBySearch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	clinicID := uuid.New()

	for _, name := range [][2]string{{"Ana", "Diaz"}, {"Ben", "Smith"}} {
		if err := svc.Create(ctx, &Patient{ClinicID: clinicID, FirstName: name[0], LastName: name[1]}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	got, total, err := svc.ListByClinic(ctx, clinicID, "smith", 20, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].LastName != "Smith" {
		t.Errorf("search result = %d patients (total %d)", len(got), total)
	}
}

func TestUpdate_PreservesClinicOwnership(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	owner := uuid.New()

	p := &Patient{ClinicID: owner, FirstName: "Ana", LastName: "Diaz"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	upd := Patient{ID: p.ID, ClinicID: uuid.New(), FirstName: "Ana", LastName: "Diaz-Smith"}
	if err := svc.Update(ctx, &upd, owner); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if upd.ClinicID != owner {
		t.Error("update must not reassign the patient to another clinic")
	}
}

func TestDelete_ScopedToClinic(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	owner := uuid.New()

	p := &Patient{ClinicID: owner, FirstName: "Ana", LastName: "Diaz"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Delete(ctx, p.ID, uuid.New()); err == nil {
		t.Error("expected cross-clinic delete to fail")
	}
	if err := svc.Delete(ctx, p.ID, owner); err != nil {
		t.Errorf("owner delete failed: %v", err)
	}
	if _, ok := repo.patients[p.ID]; ok {
		t.Error("patient not deleted")
	}
}

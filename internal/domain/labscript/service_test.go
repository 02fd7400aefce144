package labscript

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockRepo struct {
	scripts map[uuid.UUID]*LabScript
}

func newMockRepo() *mockRepo {
	return &mockRepo{scripts: make(map[uuid.UUID]*LabScript)}
}

func (m *mockRepo) Create(_ context.Context, ls *LabScript) error {
	if ls.ID == uuid.Nil {
		ls.ID = uuid.New()
	}
	cp := *ls
	m.scripts[ls.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*LabScript, error) {
	ls, ok := m.scripts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ls
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*LabScript, int, error) {
	var out []*LabScript
	for _, ls := range m.scripts {
		if f.ClinicID != uuid.Nil && ls.ClinicID != f.ClinicID {
			continue
		}
		if f.PatientID != uuid.Nil && ls.PatientID != f.PatientID {
			continue
		}
		if f.Incomplete && ls.Status == StatusCompleted {
			continue
		}
		if f.Status != "" && ls.Status != f.Status {
			continue
		}
		out = append(out, ls)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, ls *LabScript) error {
	if _, ok := m.scripts[ls.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *ls
	m.scripts[ls.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.scripts, id)
	return nil
}

func (m *mockRepo) HasFreeTryIn(_ context.Context, patientID uuid.UUID) (bool, error) {
	for _, ls := range m.scripts {
		if ls.PatientID == patientID && ls.IsFreePrintedTryin {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) FindSurgicalDayByCoupon(_ context.Context, code string, patientID uuid.UUID) (*LabScript, error) {
	for _, ls := range m.scripts {
		if ls.ApplianceType == "surgical-day" && ls.PatientID == patientID && ls.CouponCode != nil && *ls.CouponCode == code {
			return ls, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) CouponConsumed(_ context.Context, code string) (bool, error) {
	for _, ls := range m.scripts {
		if ls.CouponCode != nil && *ls.CouponCode == code && ls.IsFreePrintedTryin {
			return true, nil
		}
	}
	return false, nil
}

type mockHistoryRepo struct {
	changes []*StatusChange
}

func (m *mockHistoryRepo) Append(_ context.Context, ch *StatusChange) error {
	ch.ID = uuid.New()
	ch.CreatedAt = time.Now()
	m.changes = append(m.changes, ch)
	return nil
}

func (m *mockHistoryRepo) ListByScript(_ context.Context, scriptID uuid.UUID) ([]*StatusChange, error) {
	var out []*StatusChange
	for _, ch := range m.changes {
		if ch.LabScriptID == scriptID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo, *mockHistoryRepo) {
	repo := newMockRepo()
	history := &mockHistoryRepo{}
	svc := NewService(repo, history)
	svc.now = func() time.Time { return monday }
	return svc, repo, history
}

func validScript() *LabScript {
	return &LabScript{
		PatientID:            uuid.New(),
		ClinicID:             uuid.New(),
		ApplianceType:        "surgical-day",
		ArchType:             "upper",
		TreatmentType:        "full-arch",
		VDODetails:           "open-vdo-4mm",
		Shade:                "A1",
		DueDate:              monday,
		SpecificInstructions: "standard workflow",
	}
}

func ptr(s string) *string { return &s }

func TestCreate_SetsPendingAndAppendsHistory(t *testing.T) {
	svc, repo, history := newTestService()

	ls := validScript()
	if err := svc.Create(context.Background(), ls, "auth0|clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if ls.Status != StatusPending {
		t.Errorf("status = %q, want %q", ls.Status, StatusPending)
	}
	if _, ok := repo.scripts[ls.ID]; !ok {
		t.Fatal("script not persisted")
	}
	if len(history.changes) != 1 || history.changes[0].ToStatus != StatusPending {
		t.Error("creation history entry missing")
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	mutations := []struct {
		name string
		mut  func(*LabScript)
	}{
		{"patient", func(ls *LabScript) { ls.PatientID = uuid.Nil }},
		{"clinic", func(ls *LabScript) { ls.ClinicID = uuid.Nil }},
		{"appliance", func(ls *LabScript) { ls.ApplianceType = "" }},
		{"arch", func(ls *LabScript) { ls.ArchType = "" }},
		{"treatment", func(ls *LabScript) { ls.TreatmentType = "" }},
		{"vdo", func(ls *LabScript) { ls.VDODetails = "" }},
		{"shade", func(ls *LabScript) { ls.Shade = "" }},
		{"instructions", func(ls *LabScript) { ls.SpecificInstructions = "" }},
		{"due date", func(ls *LabScript) { ls.DueDate = time.Time{} }},
	}
	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			ls := validScript()
			tc.mut(ls)
			if err := svc.Create(ctx, ls, "x"); err == nil {
				t.Errorf("expected validation error for missing %s", tc.name)
			}
		})
	}
}

func TestCreate_ScrewTypeOthersNeedsFreeText(t *testing.T) {
	svc, _, _ := newTestService()

	ls := validScript()
	ls.ScrewType = ptr(ScrewTypeOthers)
	if err := svc.Create(context.Background(), ls, "x"); err == nil {
		t.Error("expected error when screw_type=others has no free text")
	}
	ls.ScrewTypeOther = ptr("custom multi-unit")
	if err := svc.Create(context.Background(), ls, "x"); err != nil {
		t.Errorf("valid screw type override rejected: %v", err)
	}
}

func TestCreate_FreeTryInRequiresCoupon(t *testing.T) {
	svc, _, _ := newTestService()

	ls := validScript()
	ls.IsFreePrintedTryin = true
	if err := svc.Create(context.Background(), ls, "x"); err == nil {
		t.Error("expected error for free try-in without coupon")
	}
}

func TestUpdateStatus_AllowedTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	steps := []UpdateStatusRequest{
		{Status: StatusInProgress},
		{Status: StatusPaused},
		{Status: StatusInProgress},
		{Status: StatusOnHold, Reason: ptr(HoldClinicRequest)},
		{Status: StatusInProgress},
		{Status: StatusCompleted},
	}
	for _, step := range steps {
		if _, err := svc.UpdateStatus(ctx, ls.ID, step, "designer"); err != nil {
			t.Fatalf("transition to %s failed: %v", step.Status, err)
		}
	}
}

func TestUpdateStatus_RejectsInvalidTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// pending -> completed skips in_progress.
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusCompleted}, "d"); err == nil {
		t.Error("expected pending->completed to be rejected")
	}
	// pending -> paused.
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusPaused}, "d"); err == nil {
		t.Error("expected pending->paused to be rejected")
	}
}

func TestUpdateStatus_CompletedIsTerminal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, st := range []string{StatusInProgress, StatusCompleted} {
		if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: st}, "d"); err != nil {
			t.Fatalf("transition to %s failed: %v", st, err)
		}
	}
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusInProgress}, "d"); err == nil {
		t.Error("expected completed to be terminal")
	}
}

func TestUpdateStatus_OnHoldRequiresReason(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusInProgress}, "d"); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusOnHold}, "d"); err == nil {
		t.Error("expected on_hold without reason to be rejected")
	}
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusOnHold, Reason: ptr("vacation")}, "d"); err == nil {
		t.Error("expected on_hold with unknown reason to be rejected")
	}
	if _, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusOnHold, Reason: ptr(HoldApproval)}, "d"); err == nil {
		t.Error("expected approval hold without design_url to be rejected")
	}

	got, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{
		Status:    StatusOnHold,
		Reason:    ptr(HoldApproval),
		DesignURL: ptr("https://cdn.example.com/design/42.stl"),
	}, "d")
	if err != nil {
		t.Fatalf("valid approval hold rejected: %v", err)
	}
	if got.HoldReason == nil || *got.HoldReason != HoldApproval {
		t.Error("hold reason not stored")
	}
}

func TestUpdateStatus_HistoryPreservesPriorHolds(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	steps := []UpdateStatusRequest{
		{Status: StatusInProgress},
		{Status: StatusOnHold, Reason: ptr(HoldIncompleteInfo), Comment: ptr("missing scan")},
		{Status: StatusInProgress},
		{Status: StatusOnHold, Reason: ptr(HoldClinicRequest)},
	}
	for _, step := range steps {
		if _, err := svc.UpdateStatus(ctx, ls.ID, step, "designer"); err != nil {
			t.Fatalf("transition to %s failed: %v", step.Status, err)
		}
	}

	changes, err := svc.History(ctx, ls.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	// Creation entry + four transitions.
	if len(changes) != 5 {
		t.Fatalf("history length = %d, want 5", len(changes))
	}
	var holdReasons []string
	for _, ch := range changes {
		if ch.ToStatus == StatusOnHold && ch.Reason != nil {
			holdReasons = append(holdReasons, *ch.Reason)
		}
	}
	if len(holdReasons) != 2 || holdReasons[0] != HoldIncompleteInfo || holdReasons[1] != HoldClinicRequest {
		t.Errorf("hold reasons = %v, prior holds must survive re-entry", holdReasons)
	}
}

func TestUpdateStatus_ClearsHoldFieldsOnResume(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	steps := []UpdateStatusRequest{
		{Status: StatusInProgress},
		{Status: StatusOnHold, Reason: ptr(HoldOthers), Comment: ptr("waiting on clinic")},
	}
	for _, step := range steps {
		if _, err := svc.UpdateStatus(ctx, ls.ID, step, "d"); err != nil {
			t.Fatalf("transition failed: %v", err)
		}
	}
	got, err := svc.UpdateStatus(ctx, ls.ID, UpdateStatusRequest{Status: StatusInProgress}, "d")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if got.HoldReason != nil || got.HoldComment != nil {
		t.Error("hold fields should clear when leaving on_hold")
	}
}

func TestList_IncompleteFilter(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	for _, status := range []string{StatusPending, StatusInProgress, StatusPaused, StatusOnHold, StatusCompleted} {
		ls := validScript()
		ls.ID = uuid.New()
		ls.Status = status
		repo.scripts[ls.ID] = ls
	}

	got, total, err := svc.List(ctx, Filter{Incomplete: true}, 50, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 4 || len(got) != 4 {
		t.Errorf("incomplete filter returned %d, want 4", total)
	}
}

func TestValidateCoupon_HappyPath(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	source := validScript()
	source.ID = uuid.New()
	source.PatientID = patient
	source.CouponCode = ptr("CPN-123")
	repo.scripts[source.ID] = source

	verdict, err := svc.ValidateCoupon(ctx, "CPN-123", patient)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("expected valid coupon, got %q", verdict.Message)
	}
	if verdict.SourceScriptID == nil || *verdict.SourceScriptID != source.ID {
		t.Error("verdict should reference the source surgical-day script")
	}
}

func TestValidateCoupon_PatientAlreadyHadFreeTryIn(t *testing.T) {
	svc, repo, _ := newTestService()
	patient := uuid.New()

	prior := validScript()
	prior.ID = uuid.New()
	prior.PatientID = patient
	prior.ApplianceType = "printed-try-in"
	prior.IsFreePrintedTryin = true
	prior.CouponCode = ptr("OLD-CODE")
	repo.scripts[prior.ID] = prior

	source := validScript()
	source.ID = uuid.New()
	source.PatientID = patient
	source.CouponCode = ptr("CPN-123")
	repo.scripts[source.ID] = source

	verdict, err := svc.ValidateCoupon(context.Background(), "CPN-123", patient)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if verdict.Valid {
		t.Error("expected invalid: one free try-in per patient, ever")
	}
}

func TestValidateCoupon_WrongPatientOrUnknownCode(t *testing.T) {
	svc, repo, _ := newTestService()
	patient := uuid.New()

	source := validScript()
	source.ID = uuid.New()
	source.CouponCode = ptr("CPN-123") // belongs to a different patient
	repo.scripts[source.ID] = source

	verdict, err := svc.ValidateCoupon(context.Background(), "CPN-123", patient)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if verdict.Valid {
		t.Error("expected invalid: coupon traces to another patient's surgical-day script")
	}
}

func TestValidateCoupon_ConsumedLabWide(t *testing.T) {
	svc, repo, _ := newTestService()
	patient := uuid.New()

	source := validScript()
	source.ID = uuid.New()
	source.PatientID = patient
	source.CouponCode = ptr("CPN-123")
	repo.scripts[source.ID] = source

	// Someone else already consumed the code.
	consumer := validScript()
	consumer.ID = uuid.New()
	consumer.ApplianceType = "printed-try-in"
	consumer.IsFreePrintedTryin = true
	consumer.CouponCode = ptr("CPN-123")
	repo.scripts[consumer.ID] = consumer

	verdict, err := svc.ValidateCoupon(context.Background(), "CPN-123", patient)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if verdict.Valid {
		t.Error("expected invalid: coupon consumption is lab-wide")
	}
}

func TestDelete_HardDelete(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	ls := validScript()
	if err := svc.Create(ctx, ls, "clinic"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Delete(ctx, ls.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := repo.scripts[ls.ID]; ok {
		t.Error("script not deleted")
	}
	if err := svc.Delete(ctx, uuid.New()); err == nil {
		t.Error("expected error deleting unknown script")
	}
}

func TestCreatePaid_SkipsDueDateClockCheck(t *testing.T) {
	svc, repo, history := newTestService()

	// Due the same Monday the clock reads: fine for surgical-day, but three
	// business days short of the printed-try-in minimum.
	stale := validScript()
	stale.ApplianceType = "printed-try-in"
	stale.DueDate = monday

	if err := svc.Create(context.Background(), stale, "auth0|clinic"); err == nil {
		t.Fatal("fresh submission below the lead-time minimum must be rejected")
	}

	paid := validScript()
	paid.ApplianceType = "printed-try-in"
	paid.DueDate = monday
	if err := svc.CreatePaid(context.Background(), paid, "auth0|clinic"); err != nil {
		t.Fatalf("paid create rejected a draft-validated due date: %v", err)
	}
	if got, _ := repo.GetByID(context.Background(), paid.ID); got == nil || got.Status != StatusPending {
		t.Error("paid create did not persist a pending script")
	}
	if len(history.changes) != 1 {
		t.Errorf("history entries = %d, want 1", len(history.changes))
	}
}

func TestCreatePaid_StillRejectsWeekendsAndMissingFields(t *testing.T) {
	svc, _, _ := newTestService()

	weekend := validScript()
	weekend.DueDate = monday.AddDate(0, 0, 5) // Saturday
	if err := svc.CreatePaid(context.Background(), weekend, "auth0|clinic"); err == nil {
		t.Error("weekend due date must be rejected on the paid path too")
	}

	missing := validScript()
	missing.Shade = ""
	if err := svc.CreatePaid(context.Background(), missing, "auth0|clinic"); err == nil {
		t.Error("missing shade must be rejected on the paid path too")
	}
}

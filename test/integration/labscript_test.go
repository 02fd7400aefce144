package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentalab/labportal/internal/domain/labscript"
)

func TestLabScriptCRUD(t *testing.T) {
	ctx := context.Background()
	clinic := createTestClinic(t, ctx, "crud-clinic")
	pat := createTestPatient(t, ctx, clinic.ID, "Ana", "Torres")
	repo := labscript.NewRepo(globalDB.Pool)

	created := createTestScript(t, ctx, clinic.ID, pat.ID, func(ls *labscript.LabScript) {
		ls.NeedsNightguard = true
		ls.SpecificInstructions = "verify occlusion before milling"
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ApplianceType != "surgical-day" || got.ClinicID != clinic.ID {
			t.Errorf("unexpected script: %+v", got)
		}
		if !got.NeedsNightguard {
			t.Error("needs_nightguard not persisted")
		}
	})

	t.Run("ListByClinic", func(t *testing.T) {
		scripts, total, err := repo.List(ctx, labscript.Filter{ClinicID: clinic.ID}, 50, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || len(scripts) != 1 {
			t.Fatalf("expected 1 script, got total=%d len=%d", total, len(scripts))
		}
	})

	t.Run("ListScopedToOtherClinic", func(t *testing.T) {
		other := createTestClinic(t, ctx, "other-clinic")
		_, total, err := repo.List(ctx, labscript.Filter{ClinicID: other.ID}, 50, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 0 {
			t.Errorf("expected no scripts for other clinic, got %d", total)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		created.Status = labscript.StatusInProgress
		if err := repo.UpdateStatus(ctx, created); err != nil {
			t.Fatalf("update status: %v", err)
		}
		got, err := repo.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != labscript.StatusInProgress {
			t.Errorf("status = %q, want in_progress", got.Status)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, created.ID); err != pgx.ErrNoRows {
			t.Errorf("expected pgx.ErrNoRows after delete, got %v", err)
		}
	})
}

func TestIncompleteFilter(t *testing.T) {
	ctx := context.Background()
	clinic := createTestClinic(t, ctx, "filter-clinic")
	pat := createTestPatient(t, ctx, clinic.ID, "Ben", "Okafor")
	repo := labscript.NewRepo(globalDB.Pool)

	statuses := []string{
		labscript.StatusPending,
		labscript.StatusInProgress,
		labscript.StatusPaused,
		labscript.StatusCompleted,
	}
	for _, st := range statuses {
		createTestScript(t, ctx, clinic.ID, pat.ID, func(ls *labscript.LabScript) {
			ls.Status = st
			if st == labscript.StatusCompleted {
				ls.PaymentStatus = labscript.PaymentPaid
			}
		})
	}

	_, total, err := repo.List(ctx, labscript.Filter{ClinicID: clinic.ID, Incomplete: true}, 50, 0)
	if err != nil {
		t.Fatalf("list incomplete: %v", err)
	}
	if total != 3 {
		t.Errorf("incomplete total = %d, want 3", total)
	}

	_, total, err = repo.List(ctx, labscript.Filter{ClinicID: clinic.ID, Status: labscript.StatusCompleted}, 50, 0)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if total != 1 {
		t.Errorf("completed total = %d, want 1", total)
	}
}

func TestStatusHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	clinic := createTestClinic(t, ctx, "history-clinic")
	pat := createTestPatient(t, ctx, clinic.ID, "Cara", "Lindqvist")
	history := labscript.NewHistoryRepo(globalDB.Pool)

	ls := createTestScript(t, ctx, clinic.ID, pat.ID, nil)

	entries := []*labscript.StatusChange{
		{LabScriptID: ls.ID, FromStatus: "", ToStatus: labscript.StatusPending, ChangedBy: "clinic-user"},
		{LabScriptID: ls.ID, FromStatus: labscript.StatusPending, ToStatus: labscript.StatusInProgress, ChangedBy: "designer-1"},
		{LabScriptID: ls.ID, FromStatus: labscript.StatusInProgress, ToStatus: labscript.StatusOnHold,
			Reason: ptrStr(labscript.HoldIncomplete3D), Comment: ptrStr("missing lower scan"), ChangedBy: "designer-1"},
		{LabScriptID: ls.ID, FromStatus: labscript.StatusOnHold, ToStatus: labscript.StatusInProgress, ChangedBy: "designer-1"},
		{LabScriptID: ls.ID, FromStatus: labscript.StatusInProgress, ToStatus: labscript.StatusOnHold,
			Reason: ptrStr(labscript.HoldApproval), DesignURL: ptrStr("https://files.example.com/d1.stl"), ChangedBy: "designer-1"},
	}
	for _, ch := range entries {
		if err := history.Append(ctx, ch); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := history.ListByScript(ctx, ls.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("history length = %d, want 5", len(got))
	}
	// Both hold entries survive; the earlier reason is not overwritten.
	if got[2].Reason == nil || *got[2].Reason != labscript.HoldIncomplete3D {
		t.Errorf("entry 2 reason = %v, want incomplete_3d", got[2].Reason)
	}
	if got[4].Reason == nil || *got[4].Reason != labscript.HoldApproval {
		t.Errorf("entry 4 reason = %v, want approval", got[4].Reason)
	}
}

func TestCouponQueries(t *testing.T) {
	ctx := context.Background()
	clinic := createTestClinic(t, ctx, "coupon-clinic")
	pat := createTestPatient(t, ctx, clinic.ID, "Dev", "Patel")
	repo := labscript.NewRepo(globalDB.Pool)

	code := "TRY-" + uuid.NewString()[:8]
	source := createTestScript(t, ctx, clinic.ID, pat.ID, func(ls *labscript.LabScript) {
		ls.CouponCode = &code
	})

	t.Run("FindSurgicalDayByCoupon", func(t *testing.T) {
		found, err := repo.FindSurgicalDayByCoupon(ctx, code, pat.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found == nil || found.ID != source.ID {
			t.Fatalf("expected source script, got %+v", found)
		}
	})

	t.Run("WrongPatientNotFound", func(t *testing.T) {
		other := createTestPatient(t, ctx, clinic.ID, "Eve", "Nowak")
		found, err := repo.FindSurgicalDayByCoupon(ctx, code, other.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found != nil {
			t.Errorf("coupon matched the wrong patient")
		}
	})

	t.Run("ConsumedAfterRedemption", func(t *testing.T) {
		consumed, err := repo.CouponConsumed(ctx, code)
		if err != nil {
			t.Fatalf("consumed: %v", err)
		}
		if consumed {
			t.Fatal("coupon reported consumed before any redemption")
		}

		createTestScript(t, ctx, clinic.ID, pat.ID, func(ls *labscript.LabScript) {
			ls.ApplianceType = "printed-try-in"
			ls.DueDate = nextMonday().AddDate(0, 0, 7)
			ls.CouponCode = &code
			ls.IsFreePrintedTryin = true
			ls.PaymentStatus = labscript.PaymentFree
		})

		consumed, err = repo.CouponConsumed(ctx, code)
		if err != nil {
			t.Fatalf("consumed: %v", err)
		}
		if !consumed {
			t.Error("coupon not reported consumed after redemption")
		}

		has, err := repo.HasFreeTryIn(ctx, pat.ID)
		if err != nil {
			t.Fatalf("has free try-in: %v", err)
		}
		if !has {
			t.Error("patient not reported as having a free try-in")
		}
	})
}

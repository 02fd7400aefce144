package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalab/labportal/internal/platform/payments"
)

const testWebhookSecret = "whsec_test"

func completedEventBody(t *testing.T, session *payments.SessionPayload) []byte {
	t.Helper()
	obj, err := json.Marshal(session)
	if err != nil {
		t.Fatal(err)
	}
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":%s}}`, obj))
}

func postWebhook(h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(payments.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.HandleWebhook(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandleWebhook_BadSignatureNoSideEffects(t *testing.T) {
	f := newFixture(nil)
	draft := stagedDraft(f)
	h := NewHandler(f.svc, testWebhookSecret)

	body := completedEventBody(t, sessionPayload(draft.ID))
	rec := postWebhook(h, body, "sha256=deadbeef")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(f.scripts.created) != 0 || len(f.invoices.invoices) != 0 {
		t.Error("rejected webhook must have no side effects")
	}

	rec = postWebhook(h, body, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing signature: status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhook_ValidSignatureProcesses(t *testing.T) {
	f := newFixture(nil)
	draft := stagedDraft(f)
	h := NewHandler(f.svc, testWebhookSecret)

	body := completedEventBody(t, sessionPayload(draft.ID))
	rec := postWebhook(h, body, payments.Sign(body, testWebhookSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(f.scripts.created) != 1 {
		t.Errorf("scripts created = %d, want 1", len(f.scripts.created))
	}
}

func TestHandleWebhook_IgnoresOtherEventTypes(t *testing.T) {
	f := newFixture(nil)
	h := NewHandler(f.svc, testWebhookSecret)

	body := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)
	rec := postWebhook(h, body, payments.Sign(body, testWebhookSecret))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (acknowledge unrelated events)", rec.Code)
	}
	if len(f.scripts.created) != 0 {
		t.Error("unrelated events must not create scripts")
	}
}

func TestHandleWebhook_ReplayedDelivery(t *testing.T) {
	f := newFixture(nil)
	draft := stagedDraft(f)
	h := NewHandler(f.svc, testWebhookSecret)

	body := completedEventBody(t, sessionPayload(draft.ID))
	sig := payments.Sign(body, testWebhookSecret)
	for i := 0; i < 3; i++ {
		if rec := postWebhook(h, body, sig); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
	}
	if len(f.scripts.created) != 1 {
		t.Errorf("scripts created = %d, want 1", len(f.scripts.created))
	}
}

func TestGetInvoiceByLabScript(t *testing.T) {
	f := newFixture(nil)
	draft := stagedDraft(f)
	if err := f.svc.FulfillSession(context.Background(), sessionPayload(draft.ID)); err != nil {
		t.Fatalf("fulfill failed: %v", err)
	}

	ls := f.scripts.created[0]
	inv, err := f.svc.GetInvoiceByLabScript(context.Background(), ls.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if inv.PaymentID != "pi_123" {
		t.Errorf("payment id = %q", inv.PaymentID)
	}
	if _, err := f.svc.GetInvoiceByLabScript(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown lab script")
	}
}

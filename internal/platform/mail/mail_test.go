package mail

import (
	"context"
	"strings"
	"testing"
)

func TestSend_Disabled(t *testing.T) {
	c := NewClient(Config{Enabled: false})
	err := c.Send(context.Background(), Message{To: "a@b.com", Subject: "hi", TextBody: "x"})
	if err != ErrDisabled {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestSend_RequiresRecipientAndSubject(t *testing.T) {
	c := NewClient(Config{Enabled: true, Host: "localhost", Port: 2525})
	if err := c.Send(context.Background(), Message{Subject: "hi"}); err == nil {
		t.Error("expected error for missing recipient")
	}
	if err := c.Send(context.Background(), Message{To: "a@b.com"}); err == nil {
		t.Error("expected error for missing subject")
	}
}

func TestBuildClinicInvitation(t *testing.T) {
	m := BuildClinicInvitation(InvitationData{
		ClinicName: "Smile Dental",
		Email:      "office@smile.example",
		InviteURL:  "https://portal.example/invite/abc",
	})
	if m.To != "office@smile.example" {
		t.Errorf("unexpected recipient %s", m.To)
	}
	if !strings.Contains(m.Subject, "Smile Dental") {
		t.Errorf("expected clinic name in subject, got %q", m.Subject)
	}
	if !strings.Contains(m.TextBody, "https://portal.example/invite/abc") {
		t.Error("expected invite URL in body")
	}
}

func TestBuildPasswordReset(t *testing.T) {
	m := BuildPasswordReset("office@smile.example", "https://portal.example/reset/xyz")
	if !strings.Contains(m.TextBody, "https://portal.example/reset/xyz") {
		t.Error("expected reset URL in body")
	}
	if m.Subject == "" {
		t.Error("expected non-empty subject")
	}
}

package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the webhook payload signature.
const SignatureHeader = "X-Webhook-Signature"

// EventCheckoutCompleted is the confirmation event that finalizes a paid
// lab script.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is the provider's webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SessionPayload is the checkout session object inside a completed event.
type SessionPayload struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// Sign computes the signature for a payload: HMAC-SHA256 hex with a
// "sha256=" prefix.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook payload against its signature header
// using a constant-time comparison.
func VerifySignature(payload []byte, signature, secret string) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("malformed signature header")
	}
	expected := Sign(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// ParseEvent verifies the signature and decodes the event envelope.
func ParseEvent(payload []byte, signature, secret string) (*Event, error) {
	if err := VerifySignature(payload, signature, secret); err != nil {
		return nil, err
	}
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	return &evt, nil
}

// Session decodes the checkout session object from a completed event.
func (e *Event) Session() (*SessionPayload, error) {
	if e.Type != EventCheckoutCompleted {
		return nil, fmt.Errorf("event %s is not a checkout completion", e.Type)
	}
	var s SessionPayload
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("session payload has no id")
	}
	return &s, nil
}

package config

import (
	"os"
	"testing"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	_, err := Load()
	if err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/labportal_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if !cfg.IsDev() {
		t.Error("expected default env to be development")
	}
}

func TestValidate_ProductionRequiresAuth(t *testing.T) {
	cfg := &Config{Env: "production", PaymentSecretKey: "sk_live_x", PaymentWebhookSecret: "whsec_x"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when no auth source configured in production")
	}

	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionRequiresPaymentKeys(t *testing.T) {
	cfg := &Config{Env: "production", JWTSecret: "secret"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when payment keys missing in production")
	}

	cfg.PaymentSecretKey = "sk_live_x"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when webhook secret missing in production")
	}

	cfg.PaymentWebhookSecret = "whsec_x"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_MailEnabledRequiresHost(t *testing.T) {
	cfg := &Config{Env: "development", MailEnabled: true}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when MAIL_ENABLED without SMTP_HOST")
	}

	cfg.SMTPHost = "smtp.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_DevelopmentPermissive(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error in development: %v", err)
	}
}

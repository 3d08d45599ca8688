package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiwari-pos/cashier/internal/pricing"
	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BACKEND_TIMEOUT", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	if cfg.Port != "8081" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.BackendTimeout != 0 {
		t.Errorf("expected no backend timeout by default, got %s", cfg.BackendTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("expected in-memory sessions by default, got %q", cfg.DatabaseURL)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SOURCE", "kiosk")

	cfg := Load()
	if cfg.BackendTimeout != 3*time.Second {
		t.Errorf("timeout: got %s", cfg.BackendTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins: got %v", cfg.AllowedOrigins)
	}
	if cfg.Source != "kiosk" {
		t.Errorf("source: got %q", cfg.Source)
	}
}

func TestLoad_InvalidTimeoutFallsBack(t *testing.T) {
	for _, v := range []string{"soon", "-5s"} {
		t.Setenv("BACKEND_TIMEOUT", v)
		if got := Load().BackendTimeout; got != 0 {
			t.Errorf("%s: got %s", v, got)
		}
	}
}

func TestLoad_ZeroTimeoutAccepted(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "0s")
	if got := Load().BackendTimeout; got != 0 {
		t.Errorf("timeout: got %s", got)
	}
}

func TestLoadPricing(t *testing.T) {
	path := writeFile(t, `
source: cashier
service_fee:
  type: fixed
  amount: "7.5"
financial_accounts:
  - id: "1"
    name: Cash
  - id: "2"
    name: QRIS
`)
	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.ServiceFee.Type != "fixed" || !p.ServiceFee.Amount.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("service fee: got %+v", p.ServiceFee)
	}
	if len(p.Accounts) != 2 || p.Accounts[1].Name != "QRIS" {
		t.Errorf("accounts: got %+v", p.Accounts)
	}
}

func TestLoadPricing_EmptyPath(t *testing.T) {
	p, err := LoadPricing("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.ServiceFee.Amount.IsZero() || len(p.Accounts) != 0 {
		t.Errorf("expected zero pricing, got %+v", p)
	}
}

func TestLoadPricing_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"fee type", "service_fee:\n  type: tip\n  amount: \"1\"\n", pricing.ErrInvalidServiceFee},
		{"negative fee", "service_fee:\n  type: fixed\n  amount: \"-1\"\n", pricing.ErrNegativeFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadPricing(writeFile(t, tt.body)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got: %v", tt.want, err)
			}
		})
	}

	if _, err := LoadPricing(writeFile(t, "financial_accounts:\n  - name: Cash\n")); err == nil {
		t.Error("expected error for account without id")
	}
	if _, err := LoadPricing(writeFile(t, "service_fee: [")); err == nil {
		t.Error("expected YAML error")
	}
}

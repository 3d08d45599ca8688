// Package config loads the cashier server settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/pricing"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "dev-secret-change-in-production"

type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	BackendURL     string
	BackendToken   string
	// BackendTimeout bounds each backend call; zero means none.
	BackendTimeout time.Duration
	AMQPURL        string
	AMQPExchange   string
	PricingFile    string
	Source         string
	AllowedOrigins []string
}

// Load reads the configuration. An empty DATABASE_URL keeps session scratch
// data in memory; an empty AMQP_URL disables broker events.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8080/api"),
		BackendToken:   getEnv("BACKEND_TOKEN", ""),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 0),
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "cashier_topic"),
		PricingFile:    getEnv("PRICING_FILE", ""),
		Source:         getEnv("SOURCE", "cashier"),
		AllowedOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("WARN: invalid %s %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

// Pricing holds the outlet-wide defaults applied to new sessions.
type Pricing struct {
	Source     string
	ServiceFee pricing.ServiceFee
	// Accounts are offered when the backend cannot list financial accounts.
	Accounts []payment.Account
}

type pricingFile struct {
	Source     string `yaml:"source"`
	ServiceFee struct {
		Type   string `yaml:"type"`
		Amount string `yaml:"amount"`
	} `yaml:"service_fee"`
	FinancialAccounts []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"financial_accounts"`
}

// LoadPricing reads a YAML pricing file:
//
//	source: cashier
//	service_fee:
//	  type: percentage
//	  amount: "5"
//	financial_accounts:
//	  - id: "1"
//	    name: Cash
//
// An empty path yields no service fee and no fallback accounts.
func LoadPricing(path string) (Pricing, error) {
	if path == "" {
		return Pricing{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("read pricing file: %w", err)
	}

	var f pricingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Pricing{}, fmt.Errorf("parse pricing file %s: %w", path, err)
	}

	amount, err := money.Parse(f.ServiceFee.Amount)
	if err != nil {
		return Pricing{}, fmt.Errorf("service_fee.amount: %w", err)
	}
	p := Pricing{
		Source:     f.Source,
		ServiceFee: pricing.ServiceFee{Type: f.ServiceFee.Type, Amount: amount},
	}
	if p.ServiceFee.Type == "" && amount.IsPositive() {
		p.ServiceFee.Type = enum.ServiceFeePercentage
	}
	if err := (pricing.Input{ServiceFee: p.ServiceFee}).Validate(); err != nil {
		return Pricing{}, fmt.Errorf("service_fee: %w", err)
	}

	for i, a := range f.FinancialAccounts {
		if a.ID == "" {
			return Pricing{}, fmt.Errorf("financial_accounts[%d]: id is required", i)
		}
		p.Accounts = append(p.Accounts, payment.Account{ID: a.ID, Name: a.Name})
	}
	return p, nil
}

// Package config builds server configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures the process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	ImageryURL     string
	ImageryAPIKey  string
	ImageryTimeout time.Duration
	SceneCacheTTL  time.Duration
	PassThreshold  float64
	FallbackSeed   int64

	LedgerURL        string
	LedgerContract   string
	LedgerTimeout    time.Duration
	CreditMultiplier int64

	AuditBuffer int
}

// FromEnv reads CANOPY_* environment variables, applying defaults for
// anything unset. Absent imagery or ledger endpoints disable those
// integrations rather than failing startup.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("CANOPY_ADDR", ":8080"),
		JWTSigningKey:    envOr("CANOPY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ImageryURL:       os.Getenv("CANOPY_IMAGERY_URL"),
		ImageryAPIKey:    os.Getenv("CANOPY_IMAGERY_API_KEY"),
		ImageryTimeout:   envDuration("CANOPY_IMAGERY_TIMEOUT", 10*time.Second),
		SceneCacheTTL:    envDuration("CANOPY_SCENE_CACHE_TTL", 15*time.Minute),
		PassThreshold:    envFloat("CANOPY_PASS_THRESHOLD", 0.10),
		FallbackSeed:     envInt("CANOPY_FALLBACK_SEED", time.Now().UnixNano()),
		LedgerURL:        os.Getenv("CANOPY_LEDGER_URL"),
		LedgerContract:   os.Getenv("CANOPY_LEDGER_CONTRACT"),
		LedgerTimeout:    envDuration("CANOPY_LEDGER_TIMEOUT", 15*time.Second),
		CreditMultiplier: envInt("CANOPY_CREDIT_MULTIPLIER", 100),
		AuditBuffer:      int(envInt("CANOPY_AUDIT_BUFFER", 256)),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort || cfg.Address() != ":8080" {
		t.Fatalf("unexpected port %q / %q", cfg.Port, cfg.Address())
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay {
		t.Fatalf("expected default shutdown period, got %v", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != defaultIdempotencyTTL {
		t.Fatalf("expected default idempotency ttl, got %v", cfg.IdempotencyTTL)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("expected a development jwt secret")
	}
	if cfg.ReservePending {
		t.Fatalf("reservations should be off by default")
	}
}

func TestLoadSecondsOverrideDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(shutdownDurationEnvVar, "1m")
	t.Setenv(idemTTLDurEnvVar, "90s")
	t.Setenv("RESERVE_PENDING", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("expected 90s, got %v", cfg.IdempotencyTTL)
	}
	if !cfg.ReservePending {
		t.Fatalf("expected reservations to be enabled")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv(shutdownSecondsEnvVar, "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid %s", shutdownSecondsEnvVar)
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/multisig")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing JWT_SECRET to fail")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be treated as dev")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multisig.yaml")
	if err := os.WriteFile(path, []byte("PORT: \"9090\"\nEVENTS_CHANNEL: wallets\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("APP_ENV", "dev")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port from file, got %q", cfg.Port)
	}
	if cfg.EventsChannel != "wallets" {
		t.Fatalf("expected channel from file, got %q", cfg.EventsChannel)
	}
}

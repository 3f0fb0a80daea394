package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.StorageDriver != config.StorageMemory {
		t.Errorf("expected memory storage by default, got %q", cfg.StorageDriver)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected retries disabled by default, got %d", cfg.MaxRetries)
	}
	if cfg.AllowFirstStoreFallback {
		t.Error("expected first-store fallback off by default")
	}
	if !cfg.DevHostsEnabled {
		t.Error("expected dev hosts enabled by default")
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("DEV_HOSTS_ENABLED", "false")
	t.Setenv("DEV_HOST_PATTERNS", " preview , ,staging")
	t.Setenv("DEFAULT_TAX_RATE", "6.5")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	if cfg.StorageDriver != config.StorageSQLite {
		t.Errorf("storage driver = %q", cfg.StorageDriver)
	}
	if cfg.SessionTTL != 90*time.Second {
		t.Errorf("session ttl = %v", cfg.SessionTTL)
	}
	opts := cfg.TenantOptions()
	if opts.DevHostsEnabled {
		t.Error("expected dev hosts disabled")
	}
	if len(opts.DevHostPatterns) != 2 || opts.DevHostPatterns[0] != "preview" || opts.DevHostPatterns[1] != "staging" {
		t.Errorf("dev host patterns = %v", opts.DevHostPatterns)
	}
	if cfg.DefaultTaxRate != 6.5 {
		t.Errorf("default tax = %v", cfg.DefaultTaxRate)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected fallback for unparsable value, got %d", cfg.MaxRetries)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KU_TEST_A=from-file\nKU_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KU_TEST_A", "from-env")
	t.Setenv("KU_TEST_B", "")
	os.Unsetenv("KU_TEST_B")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("KU_TEST_A"); got != "from-env" {
		t.Errorf("KU_TEST_A = %q, env must win", got)
	}
	if got := os.Getenv("KU_TEST_B"); got != "quoted" {
		t.Errorf("KU_TEST_B = %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.AccessExpiry != 12*time.Hour {
		t.Errorf("Expected 12h access expiry, got %v", cfg.Auth.AccessExpiry)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("Expected bcrypt cost 12, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.Auth.JWTSecret != developmentJWTSecret {
		t.Errorf("Expected development secret outside production")
	}
	if cfg.Codes.MaxAttempts != 5 {
		t.Errorf("Expected 5 code attempts, got %d", cfg.Codes.MaxAttempts)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cims.yaml")
	content := `
env: test
http:
  addr: ":8080"
database:
  path: /var/lib/cims/cims.db
alerts:
  schedule: "0 * * * *"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CIMS_HTTP_ADDR", ":9090")
	t.Setenv("JWT_EXPIRES_IN", "1h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("Expected env to override addr, got %s", cfg.HTTP.Addr)
	}
	if cfg.Database.Path != "/var/lib/cims/cims.db" {
		t.Errorf("Expected database path from file, got %s", cfg.Database.Path)
	}
	if cfg.Alerts.Schedule != "0 * * * *" {
		t.Errorf("Expected schedule from file, got %s", cfg.Alerts.Schedule)
	}
	if cfg.Auth.AccessExpiry != time.Hour {
		t.Errorf("Expected access expiry 1h, got %v", cfg.Auth.AccessExpiry)
	}
	if cfg.Auth.RefreshExpiry != 7*24*time.Hour {
		t.Errorf("Expected default refresh expiry to survive, got %v", cfg.Auth.RefreshExpiry)
	}
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("CIMS_ENV", "production")

	_, err := Load("")
	if err == nil {
		t.Fatal("Expected error without JWT_SECRET in production")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("Expected JWT_SECRET in error, got %v", err)
	}

	t.Setenv("JWT_SECRET", "a-real-secret")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed with secret: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("Expected production config")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Env = "staging"
	cfg.Codes.MaxAttempts = 0
	cfg.Alerts.Schedule = "every now and then"
	cfg.Auth.JWTSecret = "x"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"staging", "max attempts", "alert schedule"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("BCRYPT_ROUNDS", "twelve")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("Expected parse env error, got %v", err)
	}
}

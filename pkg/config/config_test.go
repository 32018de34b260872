package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSuccess(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: postgres
  host: localhost
  user: test-user
  password: test-pass
  dbname: testdb
  port: 5433
sync:
  base_url: https://sync.example.com
  timeout_seconds: 30
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	if err := Load(configPath, nil); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if AppConfig.Database.Driver != "postgres" {
		t.Errorf("expected driver postgres, got %q", AppConfig.Database.Driver)
	}
	if AppConfig.Database.Port != 5433 {
		t.Errorf("expected port 5433, got %d", AppConfig.Database.Port)
	}
	if AppConfig.Sync.BaseURL != "https://sync.example.com" {
		t.Errorf("expected sync base URL, got %q", AppConfig.Sync.BaseURL)
	}
	if AppConfig.Sync.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", AppConfig.Sync.TimeoutSeconds)
	}
	if AppConfig.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %q", AppConfig.Logging.Level)
	}
	if AppConfig.Database.SSLMode != "disable" {
		t.Errorf("expected default sslmode, got %q", AppConfig.Database.SSLMode)
	}
}

func TestLoadDefaults(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	if err := Load("", nil); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if AppConfig.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite default, got %q", AppConfig.Database.Driver)
	}
	if AppConfig.Database.Path != "vocadrill.db" {
		t.Errorf("expected default db path, got %q", AppConfig.Database.Path)
	}
	if AppConfig.Sync.TimeoutSeconds != 15 {
		t.Errorf("expected default timeout 15, got %d", AppConfig.Sync.TimeoutSeconds)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	t.Setenv("VOCADRILL_DATABASE__PATH", "/tmp/override.db")
	t.Setenv("VOCADRILL_SYNC__BASE_URL", "https://env.example.com")

	if err := Load("", nil); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if AppConfig.Database.Path != "/tmp/override.db" {
		t.Errorf("expected env override for db path, got %q", AppConfig.Database.Path)
	}
	if AppConfig.Sync.BaseURL != "https://env.example.com" {
		t.Errorf("expected env override for base URL, got %q", AppConfig.Sync.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected an error when loading a missing config file")
	}
}

func TestLoadRejectsInvalidDriver(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	t.Setenv("VOCADRILL_DATABASE__DRIVER", "oracle")

	if err := Load("", nil); err == nil {
		t.Fatal("expected validation error for unsupported driver")
	}
}

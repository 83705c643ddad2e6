package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Пустая переменная окружения не переопределяет значение по умолчанию
	for _, key := range []string{"API_PORT", "LOG_FORMAT", "SHUTDOWN_TIMEOUT", "STORAGE", "EVENTS_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q, want 8080", cfg.APIPort)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr())
	}
	if cfg.EventsAddr() != ":8082" {
		t.Errorf("EventsAddr = %q, want :8082", cfg.EventsAddr())
	}
	if cfg.Storage != StoragePostgres {
		t.Errorf("Storage = %q, want %s", cfg.Storage, StoragePostgres)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DB_URL", "postgresql://example/db")
	t.Setenv("API_PORT", "9090")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DBURL != "postgresql://example/db" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr())
	}
	if !cfg.AutoMigrate {
		t.Error("AutoMigrate must be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_FileAndEnvironmentPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questionary.yaml")
	content := "api_port: \"7070\"\nlog_level: DEBUG\nrabbitmq_url: amqp://file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != "7070" {
		t.Errorf("APIPort = %q, want 7070 from file", cfg.APIPort)
	}
	if cfg.LogLevel != "WARN" {
		t.Errorf("LogLevel = %q, want WARN from environment", cfg.LogLevel)
	}
	if cfg.RabbitMQURL != "amqp://file" {
		t.Errorf("RabbitMQURL = %q", cfg.RabbitMQURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
}

func TestValidate_Storage(t *testing.T) {
	cfg := &Config{JWTSecret: "secret", Storage: "redis"}
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownStorage) {
		t.Errorf("expected ErrUnknownStorage, got %v", err)
	}

	cfg.Storage = StorageMemory
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

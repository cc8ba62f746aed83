package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const validConfig = `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "api.yosmart.com"
    port: 8003
    client_id: "test-client"
  qos: 0
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "api.yosmart.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "api.yosmart.com")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("default API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.WebSocket.Path != "/api/ws" {
		t.Errorf("default WebSocket.Path = %q, want /api/ws", cfg.WebSocket.Path)
	}
	if !cfg.Database.WALMode {
		t.Error("default Database.WALMode should be true")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
`))
	if err == nil {
		t.Error("Load() should fail without a JWT secret")
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
security:
  jwt:
    secret: "too-short"
`))
	if err == nil {
		t.Error("Load() should reject a secret under 32 characters")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FUSION_DATABASE_PATH", "/env/override.db")
	t.Setenv("FUSION_JWT_SECRET", "environment-secret-at-least-32-chars!")

	cfg, err := Load(writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Security.JWT.Secret != "environment-secret-at-least-32-chars!" {
		t.Errorf("JWT.Secret = %q, want env override", cfg.Security.JWT.Secret)
	}
}

func TestValidate_BadPort(t *testing.T) {
	_, err := Load(writeConfig(t, `
api:
  port: 99999
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`))
	if err == nil {
		t.Error("Load() should reject an out-of-range port")
	}
}

func TestValidate_BadQoS(t *testing.T) {
	_, err := Load(writeConfig(t, `
mqtt:
  qos: 7
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`))
	if err == nil {
		t.Error("Load() should reject an invalid QoS")
	}
}

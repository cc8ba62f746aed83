package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("FUSION_CONFIG")
	defer os.Setenv("FUSION_CONFIG", originalEnv)

	os.Setenv("FUSION_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies run fails when the JWT secret is
// absent.
func TestRun_MissingJWTSecret(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: ""

influxdb:
  enabled: false

sync:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18099
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("FUSION_CONFIG")
	defer os.Setenv("FUSION_CONFIG", originalEnv)
	os.Setenv("FUSION_CONFIG", configPath)

	// Make sure the environment doesn't supply a secret.
	originalSecret := os.Getenv("FUSION_JWT_SECRET")
	defer os.Setenv("FUSION_JWT_SECRET", originalSecret)
	os.Unsetenv("FUSION_JWT_SECRET")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("FUSION_CONFIG")
	defer os.Setenv("FUSION_CONFIG", originalEnv)

	os.Unsetenv("FUSION_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("FUSION_CONFIG")
	defer os.Setenv("FUSION_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("FUSION_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown starts the full stack with MQTT and
// InfluxDB disabled, then shuts down on context expiry.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: ""

influxdb:
  enabled: false

sync:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18742

security:
  jwt:
    secret: "test-secret-for-development-only-0000"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("FUSION_CONFIG")
	defer os.Setenv("FUSION_CONFIG", originalEnv)
	os.Setenv("FUSION_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
}

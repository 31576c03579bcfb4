package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("bypass_authentication: false\njwt_secret: ${SSE_TEST_SECRET}\n"), 0600)
	os.Setenv("SSE_TEST_SECRET", "secret123")
	defer os.Unsetenv("SSE_TEST_SECRET")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.JWTSecret != "secret123" {
		t.Errorf("jwt_secret = %q, want %q", cfg.JWTSecret, "secret123")
	}
}

func TestLoad_InlineValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("bypass_authentication: true\nmount: /events\nallowed_origins:\n  - https://example.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Mount != "/events" {
		t.Errorf("mount = %q, want %q", cfg.Mount, "/events")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("allowed_origins = %v, want [https://example.com]", cfg.AllowedOrigins)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{BypassAuthentication: true}
	cfg.applyDefaults()

	if cfg.Listen.Port != 8080 {
		t.Errorf("default listen.port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Mount != "/sse/broadcast" {
		t.Errorf("default mount = %q, want /sse/broadcast", cfg.Mount)
	}
	if cfg.HeartbeatIntervalSec != 15 {
		t.Errorf("default heartbeat_interval_sec = %d, want 15", cfg.HeartbeatIntervalSec)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("default metrics.port = %d, want 9090", cfg.Metrics.Port)
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range listen.port")
	}
}

func TestValidate_MountMustBeAbsolute(t *testing.T) {
	cfg := Default()
	cfg.Mount = "sse"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for relative mount path")
	}
	if !strings.Contains(err.Error(), "mount") {
		t.Errorf("error should mention mount, got: %v", err)
	}
}

func TestValidate_JWTSecretRequiredWithoutBypass(t *testing.T) {
	cfg := Default()
	cfg.BypassAuthentication = false
	cfg.JWTSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing jwt_secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("error should mention jwt_secret, got: %v", err)
	}
}

func TestValidate_JWTSecretNotRequiredWithBypass(t *testing.T) {
	cfg := Default()
	cfg.BypassAuthentication = true
	cfg.JWTSecret = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidate_HeartbeatMustBePositive(t *testing.T) {
	cfg := Default()
	cfg.HeartbeatIntervalSec = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero heartbeat_interval_sec")
	}
	if !strings.Contains(err.Error(), "heartbeat_interval_sec") {
		t.Errorf("error should mention heartbeat_interval_sec, got: %v", err)
	}
}

func TestValidate_MetricsPortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid metrics.port")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.BypassAuthentication {
		t.Error("Default() should bypass authentication for local development")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate cleanly, got: %v", err)
	}
}

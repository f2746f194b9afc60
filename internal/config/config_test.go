package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear everything Load reads. t.Setenv would leave the variables set
	// (to ""), which envconfig treats as explicit values.
	for _, key := range []string{
		"SELENIUM_SERVER_JAR",
		"HEADLESS_XVFB_PATH", "HEADLESS_JAVA_PATH", "HEADLESS_BROWSER",
		"HEADLESS_DISPLAY_MAX", "HEADLESS_PORT_MIN", "HEADLESS_PORT_MAX",
		"HEADLESS_STARTUP_GRACE", "HEADLESS_MAX_ATTEMPTS",
		"HEADLESS_CLIENT_RETRIES", "HEADLESS_CLIENT_BACKOFF",
		"HEADLESS_METRICS_ADDR", "HEADLESS_LOG_FORMAT", "HEADLESS_LOG_LEVEL",
	} {
		t.Setenv(key, "placeholder")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	if cfg.XvfbPath != want.XvfbPath || cfg.JavaPath != want.JavaPath {
		t.Errorf("binary defaults: got %q/%q", cfg.XvfbPath, cfg.JavaPath)
	}
	if cfg.DisplayMax != 400 || cfg.PortMin != 1025 || cfg.PortMax != 65535 {
		t.Errorf("range defaults: got %d/%d/%d", cfg.DisplayMax, cfg.PortMin, cfg.PortMax)
	}
	if cfg.MaxAttempts != 10 || cfg.ClientRetries != 10 {
		t.Errorf("retry defaults: got %d/%d", cfg.MaxAttempts, cfg.ClientRetries)
	}
	if cfg.ClientBackoff != 2*time.Second {
		t.Errorf("client backoff default: got %v", cfg.ClientBackoff)
	}
	if cfg.ServerJar != "" {
		t.Errorf("server jar should be empty, got %q", cfg.ServerJar)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SELENIUM_SERVER_JAR", "/opt/selenium/server.jar")
	t.Setenv("HEADLESS_XVFB_PATH", "/usr/local/bin/Xvfb")
	t.Setenv("HEADLESS_STARTUP_GRACE", "100ms")
	t.Setenv("HEADLESS_DISPLAY_MAX", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerJar != "/opt/selenium/server.jar" {
		t.Errorf("server jar: got %q", cfg.ServerJar)
	}
	if cfg.XvfbPath != "/usr/local/bin/Xvfb" {
		t.Errorf("xvfb path: got %q", cfg.XvfbPath)
	}
	if cfg.StartupGrace != 100*time.Millisecond {
		t.Errorf("startup grace: got %v", cfg.StartupGrace)
	}
	if cfg.DisplayMax != 50 {
		t.Errorf("display max: got %d", cfg.DisplayMax)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg := Default()
	cfg.PortMin = 9000
	cfg.PortMax = 80

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected a ValidationError in chain, got %v", err)
	}
}

func TestValidateRejectsZeroAttempts(t *testing.T) {
	cfg := Default()
	cfg.MaxAttempts = 0
	if Validate(cfg) == nil {
		t.Error("expected validation error for max_attempts=0")
	}
}

// Missing jar is not a validation failure: it only matters when the
// automation server is actually launched.
func TestValidateIgnoresMissingJar(t *testing.T) {
	cfg := Default()
	cfg.ServerJar = ""
	if err := Validate(cfg); err != nil {
		t.Errorf("missing jar should not fail Validate: %v", err)
	}
}

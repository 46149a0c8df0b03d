package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".tracewright")
	if err := os.MkdirAll(cfgDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(content), 0o640); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := DefaultConfig()
	if cfg.General.LogLevel != def.General.LogLevel {
		t.Fatalf("log_level = %q, want default %q", cfg.General.LogLevel, def.General.LogLevel)
	}
	if !cfg.Capture.Enabled {
		t.Fatal("capture.enabled default should be true")
	}
	if cfg.Browser.WindowWidth != 1920 {
		t.Fatalf("window_width = %d, want 1920", cfg.Browser.WindowWidth)
	}
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
[general]
log_level = "debug"

[capture]
enabled = false

[browser]
window_width = 1280
window_height = 800
`)

	cfg, err := Load(LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Fatalf("log_level = %q, want debug", cfg.General.LogLevel)
	}
	if cfg.Capture.Enabled {
		t.Fatal("capture.enabled should be false from project config")
	}
	if cfg.Browser.WindowWidth != 1280 || cfg.Browser.WindowHeight != 800 {
		t.Fatalf("window = %dx%d, want 1280x800", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
	}
	// Untouched sections keep defaults.
	if cfg.History.RetentionDays != DefaultConfig().History.RetentionDays {
		t.Fatalf("retention_days = %d, want default", cfg.History.RetentionDays)
	}
}

func TestLoadEnvOverridesProject(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
[capture]
enabled = true
`)
	t.Setenv("TRACEWRIGHT_CAPTURE", "false")
	t.Setenv("TRACEWRIGHT_STEP_TIMEOUT", "5")

	cfg, err := Load(LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capture.Enabled {
		t.Fatal("env override should disable capture")
	}
	if cfg.Browser.StepTimeoutSecs != 5 {
		t.Fatalf("step_timeout = %d, want 5", cfg.Browser.StepTimeoutSecs)
	}
}

func TestLoadFlagOverridesBeatEnv(t *testing.T) {
	t.Setenv("TRACEWRIGHT_HEADLESS", "true")

	cfg, err := Load(LoadOptions{
		ProjectDir:    t.TempDir(),
		FlagOverrides: map[string]any{"browser.headless": false},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Browser.Headless {
		t.Fatal("flag override should beat env")
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("TRACEWRIGHT_CAPTURE", "maybe")

	_, err := Load(LoadOptions{ProjectDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "TRACEWRIGHT_CAPTURE") {
		t.Fatalf("Load() error = %v, want env parse error", err)
	}
}

func TestLoadBadTomlSyntax(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, "[general\nlog_level = ")

	_, err := Load(LoadOptions{ProjectDir: dir})
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load() error = %v, want toml parse error", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.WindowWidth = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() should reject zero window width")
	}

	cfg = DefaultConfig()
	cfg.General.LogLevel = "chatty"
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() should reject unknown log level")
	}

	cfg = DefaultConfig()
	cfg.History.RetentionDays = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() should reject negative retention")
	}
}

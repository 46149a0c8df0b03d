package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if !oneOf(cfg.General.LogLevel, "debug", "info", "warn", "warning", "error", "fatal") {
		errs = append(errs, "general.log_level must be one of debug|info|warn|error|fatal")
	}
	if cfg.General.ArtifactDir == "" {
		errs = append(errs, "general.artifact_dir must not be empty")
	}

	if cfg.Capture.ConsoleBuffer < 0 {
		errs = append(errs, "capture.console_buffer cannot be negative")
	}

	if cfg.Browser.WindowWidth <= 0 || cfg.Browser.WindowHeight <= 0 {
		errs = append(errs, "browser.window_width and browser.window_height must be > 0")
	}
	if cfg.Browser.StepTimeoutSecs <= 0 {
		errs = append(errs, "browser.step_timeout must be > 0 seconds")
	}
	if cfg.Browser.FlowTimeoutSecs <= 0 {
		errs = append(errs, "browser.flow_timeout must be > 0 seconds")
	}
	if cfg.Browser.WaitTimeoutSecs <= 0 {
		errs = append(errs, "browser.wait_timeout must be > 0 seconds")
	}

	if cfg.History.Enabled && cfg.History.DatabasePath == "" {
		errs = append(errs, "history.database_path must not be empty when history is enabled")
	}
	if cfg.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(val string, options ...string) bool {
	for _, opt := range options {
		if val == opt {
			return true
		}
	}
	return false
}

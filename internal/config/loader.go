package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ProjectDir is used to locate .tracewright/config.toml. Defaults to
	// CWD when empty.
	ProjectDir string
	// ConfigPath overrides the project config path if provided.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags
	// (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < user < project < env (TRACEWRIGHT_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	projectDir := opts.ProjectDir
	if projectDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectDir = cwd
		}
	}

	// 1) User config
	if err := mergeConfigFile(v, userConfigPath()); err != nil {
		return Config{}, err
	}
	// 2) Project config
	if err := mergeConfigFile(v, projectConfigPath(projectDir, opts.ConfigPath)); err != nil {
		return Config{}, err
	}
	// 3) Environment variables
	if err := applyEnvOverrides(v); err != nil {
		return Config{}, err
	}
	// 4) CLI flags (highest)
	applyFlagOverrides(v, opts.FlagOverrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("general.log_level", def.General.LogLevel)
	v.SetDefault("general.artifact_dir", def.General.ArtifactDir)

	v.SetDefault("capture.enabled", def.Capture.Enabled)
	v.SetDefault("capture.screenshot_on_success", def.Capture.ScreenshotOnSuccess)
	v.SetDefault("capture.tracing", def.Capture.Tracing)
	v.SetDefault("capture.console_buffer", def.Capture.ConsoleBuffer)

	v.SetDefault("browser.headless", def.Browser.Headless)
	v.SetDefault("browser.window_width", def.Browser.WindowWidth)
	v.SetDefault("browser.window_height", def.Browser.WindowHeight)
	v.SetDefault("browser.step_timeout", def.Browser.StepTimeoutSecs)
	v.SetDefault("browser.flow_timeout", def.Browser.FlowTimeoutSecs)
	v.SetDefault("browser.wait_timeout", def.Browser.WaitTimeoutSecs)

	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.database_path", def.History.DatabasePath)
	v.SetDefault("history.retention_days", def.History.RetentionDays)
}

// mergeConfigFile merges the TOML config file if it exists. The file is
// syntax-checked with a strict TOML parser first so syntax errors carry
// line information instead of viper's generic merge error.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	var syntaxCheck map[string]any
	if _, err := toml.DecodeFile(path, &syntaxCheck); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// envBinding maps one environment variable onto a config key.
type envBinding struct {
	Env  string
	Key  string
	Kind string // string | bool | int
}

var envBindings = []envBinding{
	{Env: "TRACEWRIGHT_LOG_LEVEL", Key: "general.log_level", Kind: "string"},
	{Env: "TRACEWRIGHT_ARTIFACT_DIR", Key: "general.artifact_dir", Kind: "string"},
	{Env: "TRACEWRIGHT_CAPTURE", Key: "capture.enabled", Kind: "bool"},
	{Env: "TRACEWRIGHT_TRACING", Key: "capture.tracing", Kind: "bool"},
	{Env: "TRACEWRIGHT_HEADLESS", Key: "browser.headless", Kind: "bool"},
	{Env: "TRACEWRIGHT_STEP_TIMEOUT", Key: "browser.step_timeout", Kind: "int"},
	{Env: "TRACEWRIGHT_DB", Key: "history.database_path", Kind: "string"},
}

// applyEnvOverrides reads TRACEWRIGHT_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper) error {
	for _, binding := range envBindings {
		val := os.Getenv(binding.Env)
		if val == "" {
			continue
		}
		parsed, err := parseValueByKind(val, binding.Kind)
		if err != nil {
			return fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}

// applyFlagOverrides applies CLI overrides as highest-precedence values.
func applyFlagOverrides(v *viper.Viper, overrides map[string]any) {
	for k, val := range overrides {
		v.Set(k, val)
	}
}

func parseValueByKind(raw, kind string) (any, error) {
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", raw)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configOverride string) (string, string) {
	return userConfigPath(), projectConfigPath(projectDir, configOverride)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tracewright", "config.toml")
}

func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	if projectDir == "" {
		return ".tracewright/config.toml"
	}
	return filepath.Join(projectDir, ".tracewright", "config.toml")
}

// Package config implements hierarchical configuration for tracewright.
// Precedence: defaults < user (~/.tracewright/config.toml) < project
// (.tracewright/config.toml) < env (TRACEWRIGHT_*) < flags.
package config

// Config is the top-level configuration structure.
type Config struct {
	General GeneralConfig `toml:"general" mapstructure:"general"`
	Capture CaptureConfig `toml:"capture" mapstructure:"capture"`
	Browser BrowserConfig `toml:"browser" mapstructure:"browser"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
}

// GeneralConfig holds core behavior knobs.
type GeneralConfig struct {
	LogLevel    string `toml:"log_level" mapstructure:"log_level"` // debug | info | warn | error
	ArtifactDir string `toml:"artifact_dir" mapstructure:"artifact_dir"`
}

// CaptureConfig holds diagnostic-capture settings. The effective values
// are resolved once when a session starts and frozen on it, so flipping
// a toggle mid-run never affects a session already in flight.
type CaptureConfig struct {
	Enabled             bool `toml:"enabled" mapstructure:"enabled"`
	ScreenshotOnSuccess bool `toml:"screenshot_on_success" mapstructure:"screenshot_on_success"`
	Tracing             bool `toml:"tracing" mapstructure:"tracing"`
	ConsoleBuffer       int  `toml:"console_buffer" mapstructure:"console_buffer"`
}

// BrowserConfig holds browser launch and timing settings.
type BrowserConfig struct {
	Headless           bool `toml:"headless" mapstructure:"headless"`
	WindowWidth        int  `toml:"window_width" mapstructure:"window_width"`
	WindowHeight       int  `toml:"window_height" mapstructure:"window_height"`
	StepTimeoutSecs    int  `toml:"step_timeout" mapstructure:"step_timeout"`
	FlowTimeoutSecs    int  `toml:"flow_timeout" mapstructure:"flow_timeout"`
	WaitTimeoutSecs    int  `toml:"wait_timeout" mapstructure:"wait_timeout"`
}

// HistoryConfig holds report history persistence settings.
type HistoryConfig struct {
	Enabled       bool   `toml:"enabled" mapstructure:"enabled"`
	DatabasePath  string `toml:"database_path" mapstructure:"database_path"`
	RetentionDays int    `toml:"retention_days" mapstructure:"retention_days"`
}

package config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel:    "info",
			ArtifactDir: "tracewright-artifacts",
		},
		Capture: CaptureConfig{
			Enabled:             true,
			ScreenshotOnSuccess: false,
			Tracing:             true,
			ConsoleBuffer:       50,
		},
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			StepTimeoutSecs: 30,
			FlowTimeoutSecs: 300,
			WaitTimeoutSecs: 10,
		},
		History: HistoryConfig{
			Enabled:       true,
			DatabasePath:  ".tracewright/history.db",
			RetentionDays: 30,
		},
	}
}

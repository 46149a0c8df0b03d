// Package cli implements the tracewright command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracewright/tracewright/internal/config"
	"github.com/tracewright/tracewright/internal/logging"
	"github.com/tracewright/tracewright/internal/output"
)

var (
	flagConfig    string
	flagJSON      bool
	flagArtifacts string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "tracewright",
	Short: "Instrumented browser test runner",
	Long: `tracewright runs YAML-defined browser test flows with full
instrumentation: every step is timed and logged, failures capture
screenshots, page HTML, console output and a browser trace, and each run
produces a step-by-step report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Human-readable rendering goes to stderr; stdout carries JSON.
		// When stdout is piped the consumer is a machine, so JSON is the
		// default even without --json.
		output.SetJSON(flagJSON || !output.StdoutIsTerminal())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default .tracewright/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output on stdout")
	rootCmd.PersistentFlags().StringVar(&flagArtifacts, "artifacts", "", "artifact output directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug|info|warn|error)")
}

// Execute runs the CLI. Errors are rendered in the active output mode.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		output.Error(err, 1)
		return 1
	}
	return 0
}

// loadConfig loads the layered configuration with persistent-flag
// overrides applied on top.
func loadConfig(extra map[string]any) (config.Config, error) {
	overrides := make(map[string]any)
	if flagArtifacts != "" {
		overrides["general.artifact_dir"] = flagArtifacts
	}
	if flagLogLevel != "" {
		overrides["general.log_level"] = flagLogLevel
	}
	for k, v := range extra {
		overrides[k] = v
	}

	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolving working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ProjectDir:    cwd,
		ConfigPath:    flagConfig,
		FlagOverrides: overrides,
	})
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the loaded config.
func newLogger(cfg config.Config) {
	opts := logging.DefaultLoggerOptions()
	opts.Level = cfg.General.LogLevel
	logging.SetDefaultLogger(logging.InitLogger(opts))
}

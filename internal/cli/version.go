package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracewright/tracewright/internal/output"
)

// Build metadata, set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if output.IsJSON() {
			return output.JSON(map[string]string{
				"version": Version,
				"commit":  Commit,
			})
		}
		fmt.Printf("tracewright %s (%s)\n", Version, Commit)
		return nil
	},
}

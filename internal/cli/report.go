package cli

import (
	"github.com/spf13/cobra"

	"github.com/tracewright/tracewright/internal/history"
	"github.com/tracewright/tracewright/internal/output"
)

var flagReportLimit int

func init() {
	reportListCmd.Flags().IntVar(&flagReportLimit, "limit", 20, "maximum number of reports to list")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect saved run reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		db, err := history.Open(cfg.History.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.ListReports(flagReportLimit)
		if err != nil {
			return err
		}
		return output.RenderReportList(rows)
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show one saved report with its steps (unique ID prefix accepted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		db, err := history.Open(cfg.History.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.GetReport(args[0])
		if err != nil {
			return err
		}
		return output.RenderStoredReport(r)
	},
}

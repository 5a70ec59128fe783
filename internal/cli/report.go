package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youmna-rabie/line-assistant/internal/app"
	"github.com/youmna-rabie/line-assistant/internal/report"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:       "report daily|weekly",
	Short:     "Push tomorrow's or next week's schedule to the report target",
	ValidArgs: []string{string(report.Daily), string(report.Weekly)},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      sendReport,
}

func sendReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, newLogger(cfg.Logging))
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.Reporter()
	if err != nil {
		return err
	}
	if err := r.Send(cmd.Context(), report.Kind(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s report sent to %s\n", args[0], cfg.Report.Target)
	return nil
}

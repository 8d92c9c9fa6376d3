package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-extractor/internal/monitoring"
)

var (
	statsLookback int
	statsCheck    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored extraction quality",
	Long:  "Prints record counts, unknown-analysis and LinkedIn coverage rates, and market type counts. With --check, evaluates alert thresholds and sends any alerts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, statsLookback)
		if err != nil {
			return err
		}

		out := struct {
			*monitoring.Snapshot
			Alerts []monitoring.Alert `json:"alerts,omitempty"`
		}{Snapshot: snap}
		if statsCheck {
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			out.Alerts = alerter.Evaluate(snap)
			alerter.SendAlerts(ctx, out.Alerts)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsLookback, "lookback-hours", 0, "only count records from the last N hours (0 = all)")
	statsCmd.Flags().BoolVar(&statsCheck, "check", false, "evaluate alert thresholds")
	rootCmd.AddCommand(statsCmd)
}

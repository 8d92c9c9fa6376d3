package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var showName string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the most recent stored record for a company",
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

		rec, err := st.FindLatest(ctx, showName)
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("no record for %q", showName)
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	showCmd.Flags().StringVar(&showName, "name", "", "company name (required)")
	_ = showCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(showCmd)
}

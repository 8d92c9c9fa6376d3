package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-extractor/internal/store"
)

var (
	listLimit int
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List previously processed companies, newest first",
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

		recs, err := st.ListAll(ctx, store.ListOptions{Limit: listLimit})
		if err != nil {
			return err
		}

		if listJSON {
			return printJSON(cmd.OutOrStdout(), recs)
		}
		return printRecords(cmd.OutOrStdout(), recs)
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "max records to show (0 = all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(listCmd)
}

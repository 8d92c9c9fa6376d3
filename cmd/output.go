package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/company-extractor/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecords writes records as an aligned table, one row per record.
func printRecords(w io.Writer, recs []model.CompanyRecord) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no companies processed yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tDOMAIN\tCHEAPEST PLAN\tFREE TRIAL\tENTERPRISE\tAPI\tMARKET\tPROCESSED") //nolint:errcheck
	for _, r := range recs {
		a := r.Analysis
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
			r.CompanyName,
			orDash(r.Domain),
			a.CheapestPlan,
			a.FreeTrial,
			a.EnterprisePlan,
			a.APIAvailability,
			a.MarketType,
			r.Timestamp.Local().Format(time.DateTime),
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

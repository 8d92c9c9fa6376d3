package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/pipeline"
)

var runName string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extraction for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, runName)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("extraction complete",
			zap.String("company", result.Company),
			zap.String("state", string(result.State)),
			zap.Bool("persisted", result.Persisted()),
		)

		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		return runError(result)
	},
}

// runError converts a finished run into the command's exit status.
func runError(result *pipeline.Result) error {
	switch {
	case result.Failure != nil:
		return eris.Errorf("%s failed (%s): %s", result.Failure.Stage, result.Failure.Kind, result.Failure.Reason)
	case result.PersistErr != "":
		return eris.Errorf("record not saved: %s", result.PersistErr)
	default:
		return nil
	}
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "company name (required)")
	_ = runCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(runCmd)
}

package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/company-extractor/internal/pipeline"
)

var (
	batchFile        string
	batchConcurrency int
	batchRate        float64
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run extraction for every company listed in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		names, err := loadCompanies(batchFile)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return eris.Errorf("no companies in %s", batchFile)
		}

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.BatchOptions{
			MaxConcurrent: cfg.Batch.MaxConcurrentCompanies,
			RatePerSec:    cfg.Batch.RatePerSec,
		}
		if batchConcurrency > 0 {
			opts.MaxConcurrent = batchConcurrency
		}
		if cmd.Flags().Changed("rate") {
			opts.RatePerSec = batchRate
		}

		results, err := env.Pipeline.RunBatch(ctx, names, opts)
		if err != nil {
			zap.L().Warn("batch interrupted", zap.Error(err))
		}

		if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
			return perr
		}
		return err
	},
}

// batchFileSpec is the YAML layout of a batch file:
//
//	companies:
//	  - Stripe
//	  - Notion
//
// A bare top-level list of names is also accepted.
type batchFileSpec struct {
	Companies []string `yaml:"companies"`
}

func loadCompanies(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "parse batch file %s", path)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := root.Decode(&names); err != nil {
			return nil, eris.Wrapf(err, "decode batch file %s", path)
		}
		return names, nil
	case yaml.MappingNode:
		var spec batchFileSpec
		if err := root.Decode(&spec); err != nil {
			return nil, eris.Wrapf(err, "decode batch file %s", path)
		}
		return spec.Companies, nil
	default:
		return nil, eris.Errorf("batch file %s: expected a list or a companies key", path)
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file listing company names (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max companies in flight (default from config)")
	batchCmd.Flags().Float64Var(&batchRate, "rate", 0, "max company starts per second, 0 = unlimited (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/download"
)

// NewEstimateCmd creates the estimate command.
func NewEstimateCmd() *cobra.Command {
	var sampleSize int

	cmd := &cobra.Command{
		Use:   "estimate <item-collection.json>",
		Short: "Estimate the total download size of an item collection",
		Long: `Download a small fixed-seed random subsample into a scratch directory
and project the total download size with a 95% confidence interval. The
scratch directory is removed afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sample-size") && sampleSize > 0 {
				cfg.Download.PreviewSize = sampleSize
			}

			coll, err := loadItemCollection(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, err := buildRunner(ctx, cfg)
			if err != nil {
				return err
			}
			estimator := &download.Estimator{
				Orchestrator: runner.Orchestrator,
				SampleSize:   cfg.Download.PreviewSize,
				Threshold:    cfg.Download.PreviewThreshold,
				Seed:         cfg.Download.PreviewSeed,
				Interval:     cfg.Settings.ProgressInterval,
			}
			estimate, err := estimator.Estimate(ctx, coll, ".")
			if err != nil {
				return err
			}
			if estimate.Skipped {
				return nil
			}
			logger.Debug("estimate finished", logger.Fields{"sampled": estimate.SampleCount})
			return nil
		},
	}

	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "number of items to preview")
	return cmd
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/catalog"
	"github.com/glorpus-work/stacgrab/pkg/config"
	"github.com/glorpus-work/stacgrab/pkg/hook"
)

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var (
		outDir      string
		assets      []string
		batchSize   int
		maxAttempts int
		filterExpr  string
		flat        bool
		skipPreview bool
	)

	cmd := &cobra.Command{
		Use:   "download <item-collection.json>",
		Short: "Download the assets of an item collection",
		Long: `Download the assets referenced by an item collection into a local
directory and assemble a self-contained metadata catalog over the result.
Items are fetched in sequential re-signed batches with concurrent asset
downloads inside each batch; incomplete attempts are retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyDownloadFlags(cfg, cmd, assets, batchSize, maxAttempts, flat, skipPreview)

			coll, err := loadItemCollection(args[0])
			if err != nil {
				return err
			}
			if filterExpr != "" {
				filter, err := hook.NewFilter(filterExpr)
				if err != nil {
					return err
				}
				before := coll.Len()
				if coll, err = filter.Apply(coll); err != nil {
					return err
				}
				logger.Debugf("filter kept %d/%d items", coll.Len(), before)
			}
			if coll.Len() == 0 {
				return fmt.Errorf("no items to download")
			}

			if outDir == "" {
				outDir = fmt.Sprintf("data_%s", time.Now().Format("20060102_150405"))
			}

			ctx := cmd.Context()
			runner, err := buildRunner(ctx, cfg)
			if err != nil {
				return err
			}

			hooks := hookExecutor(cfg)
			if err := hooks.Execute(hook.PreDownload, hook.Context{
				OutputDir: outDir,
				Requested: coll.Len(),
			}); err != nil {
				return err
			}

			summary, err := runner.Run(ctx, coll, outDir)
			if err != nil {
				return err
			}

			if _, err := catalog.NewBuilder().Build(outDir); err != nil {
				return err
			}

			if err := hooks.Execute(hook.PostDownload, hook.Context{
				OutputDir: outDir,
				Requested: summary.Requested,
				Retrieved: summary.Retrieved,
				Ratio:     summary.Ratio(),
			}); err != nil {
				return err
			}

			logger.Success("download finished", logger.Fields{
				"retrieved": summary.Retrieved,
				"requested": summary.Requested,
				"out":       outDir,
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "O", "", "output directory (default: data_<timestamp>)")
	cmd.Flags().StringSliceVar(&assets, "assets", nil, "asset keys to download (default: all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", -1, "re-signing batch size; 0 signs the whole collection once")
	cmd.Flags().IntVar(&maxAttempts, "retries", -1, "whole-collection retry budget")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "Tengo expression selecting items (vars: id, collection, datetime)")
	cmd.Flags().BoolVar(&flat, "flat", false, "download into one flat directory instead of per-collection subdirectories")
	cmd.Flags().BoolVar(&skipPreview, "skip-preview", false, "skip the size estimate")

	return cmd
}

// applyDownloadFlags lets explicitly set flags override the configuration.
func applyDownloadFlags(cfg *config.Config, cmd *cobra.Command, assets []string, batchSize, maxAttempts int, flat, skipPreview bool) {
	if len(assets) > 0 {
		cfg.Download.Assets = assets
	}
	if cmd.Flags().Changed("batch-size") && batchSize >= 0 {
		cfg.Download.ResignBatchSize = batchSize
	}
	if cmd.Flags().Changed("retries") && maxAttempts > 0 {
		cfg.Download.MaxAttempts = maxAttempts
	}
	if flat {
		cfg.Download.Grouped = false
	}
	if skipPreview {
		cfg.Download.SkipPreview = true
	}
}

// hookExecutor builds the Tengo hook executor from the configured scripts.
func hookExecutor(cfg *config.Config) *hook.Executor {
	exec := hook.NewExecutor()
	if cfg.Hooks.PreDownload != "" {
		exec.AddScript(hook.PreDownload, cfg.Hooks.PreDownload)
	}
	if cfg.Hooks.PostDownload != "" {
		exec.AddScript(hook.PostDownload, cfg.Hooks.PostDownload)
	}
	return exec
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/stacgrab/internal/cli"
	"github.com/glorpus-work/stacgrab/internal/logger"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stacgrab",
		Short: "Batched STAC asset downloader",
		Long: `stacgrab downloads the assets of a STAC item collection to local storage
and assembles a browsable, portable metadata catalog over the result:
- download: batched, re-signed, retrying asset downloads
- estimate: statistical size preview before long downloads
- catalog/bundle: self-contained metadata catalogs, packed for transport`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := "info"
			if verbose {
				level = "debug"
			}
			logger.InitLogger(level)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set up CLI pkg variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose

	// Add subcommands
	cmd.AddCommand(
		cli.NewDownloadCmd(),
		cli.NewEstimateCmd(),
		cli.NewCatalogCmd(),
		cli.NewBundleCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}

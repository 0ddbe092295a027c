package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/bundle"
)

// NewBundleCmd creates the bundle command.
func NewBundleCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "bundle <dir>",
		Short: "Pack a catalog tree into a portable archive",
		Long:  "Pack a finished catalog directory into a single gzipped tar archive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := strings.TrimRight(args[0], "/")
			if out == "" {
				out = dir + bundle.Suffix
			}
			if err := bundle.Create(cmd.Context(), dir, out); err != nil {
				return err
			}
			logger.Success("bundle created", logger.Fields{"archive": out})
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "O", "", "archive path (default: <dir>.tar.gz)")
	return cmd
}

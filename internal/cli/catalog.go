package cli

import (
	"github.com/spf13/cobra"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/catalog"
)

// NewCatalogCmd creates the catalog command.
func NewCatalogCmd() *cobra.Command {
	var (
		id          string
		description string
	)

	cmd := &cobra.Command{
		Use:   "catalog <dir>",
		Short: "Assemble a catalog from downloaded item collections",
		Long: `Assemble a self-contained metadata catalog from the item-collection
artifacts below a download directory: one collection per directory, with
derived spatial and temporal extents and only relative links.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder := catalog.NewBuilder()
			if id != "" {
				builder.ID = id
			}
			if description != "" {
				builder.Description = description
			}
			if _, err := builder.Build(args[0]); err != nil {
				return err
			}
			logger.Success("catalog assembled", logger.Fields{"dir": args[0]})
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "catalog id (default: root_catalog)")
	cmd.Flags().StringVar(&description, "description", "", "catalog description")
	return cmd
}

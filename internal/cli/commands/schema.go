package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docref/internal/cli/config"
	"github.com/conduit-lang/docref/internal/cli/ui"
)

var schemaTargets bool

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the declared entity types and relations",
		Long: `Show the entity types and relations declared in the configuration.

With --targets the relations are grouped by the collection they point at, which is
the view the delete guard uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := config.BuildRegistry(cfg)
			if err != nil {
				return err
			}

			if schemaTargets {
				ui.RenderTargets(cmd.OutOrStdout(), registry, noColor)
			} else {
				ui.RenderRegistry(cmd.OutOrStdout(), registry, noColor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schemaTargets, "targets", false, "Group relations by target collection")

	return cmd
}

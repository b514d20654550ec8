package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docref/internal/cli/ui"
)

var auditIncludeUnchecked bool

// NewAuditCommand creates the audit command
func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report stored references that point at nothing",
		Long: `Scan every stored document and report references whose target does not exist.

Checked relations only dangle after writes that bypassed docref. Unchecked relations
dangle whenever their targets are deleted; include them with --include-unchecked.
The command fails when a dangling reference is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.manager.Audit(cmd.Context(), auditIncludeUnchecked)
			if err != nil {
				return err
			}

			ui.RenderAudit(cmd.OutOrStdout(), report, noColor)
			if !report.Clean() {
				return fmt.Errorf("found %d dangling references", len(report.Dangling))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&auditIncludeUnchecked, "include-unchecked", false, "Also audit unchecked relations")

	return cmd
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docref/internal/cli/ui"
	"github.com/conduit-lang/docref/internal/orm/docstore"
)

var (
	populateIncludes []string
	documentFile     string
)

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.manager.ResolveID(cmd.Context(), args[0], args[1])
			if err != nil {
				return withCollection(err, args[0], a)
			}
			doc, err := a.manager.FindByID(cmd.Context(), args[0], id)
			if err != nil {
				return withCollection(err, args[0], a)
			}
			return ui.WriteJSON(cmd.OutOrStdout(), doc)
		},
	}
}

// NewPopulateCommand creates the populate command
func NewPopulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "populate <collection> <id>...",
		Short: "Print documents with their relations resolved",
		Long: `Load documents and attach the documents their relations reference.

A single id prints one document; several ids print an array in the order given,
skipping ids that do not exist. All ids are resolved with one query per relation.

Examples:
  docref populate parents p1
  docref populate parents p1 p2 p3 --include child`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			collection := args[0]
			includes := splitList(populateIncludes)

			ids, err := a.manager.ResolveIDs(cmd.Context(), collection, args[1:])
			if err != nil {
				return withCollection(err, collection, a)
			}

			if len(ids) == 1 {
				doc, err := a.manager.FindPopulated(cmd.Context(), collection, ids[0], includes...)
				if err != nil {
					return withCollection(err, collection, a)
				}
				return ui.WriteJSON(cmd.OutOrStdout(), doc)
			}

			docs, err := a.manager.FindManyPopulated(cmd.Context(), collection, ids, includes...)
			if err != nil {
				return withCollection(err, collection, a)
			}
			return ui.WriteJSON(cmd.OutOrStdout(), docs)
		},
	}

	cmd.Flags().StringSliceVarP(&populateIncludes, "include", "i", nil, "Populate only these relations (by populated key)")

	return cmd
}

// NewInsertCommand creates the insert command
func NewInsertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <collection> [document]",
		Short: "Validate and store a new document",
		Long: `Store a new document after checking every checked relation it declares.

The document is a JSON object given as an argument, or read from --file
("-" reads standard input). An id is generated when the document has none.

Examples:
  docref insert parents '{"childId": "c1"}'
  docref insert parents --file parent.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args[1:])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.manager.Create(cmd.Context(), args[0], doc)
			if err != nil {
				return withCollection(err, args[0], a)
			}
			return ui.WriteJSON(cmd.OutOrStdout(), created)
		},
	}

	cmd.Flags().StringVarP(&documentFile, "file", "f", "", "Read the document from a file (- for stdin)")

	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <collection> <id> [changes]",
		Short: "Merge changes into a stored document",
		Long: `Merge a JSON object of changes into a stored document and store the result
after checking its relations. A null value removes the field.

Examples:
  docref update parents p1 '{"childIds": ["c2", "c3"]}'
  docref update parents p1 '{"childId": null}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := readDocument(cmd, args[2:])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.manager.ResolveID(cmd.Context(), args[0], args[1])
			if err != nil {
				return withCollection(err, args[0], a)
			}
			updated, err := a.manager.Update(cmd.Context(), args[0], id, changes)
			if err != nil {
				return withCollection(err, args[0], a)
			}
			return ui.WriteJSON(cmd.OutOrStdout(), updated)
		},
	}

	cmd.Flags().StringVarP(&documentFile, "file", "f", "", "Read the changes from a file (- for stdin)")

	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a document that nothing references",
		Long: `Delete a stored document. The delete is refused while a document of another
collection still references it through a checked relation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.manager.ResolveID(cmd.Context(), args[0], args[1])
			if err != nil {
				return withCollection(err, args[0], a)
			}
			if err := a.manager.Delete(cmd.Context(), args[0], id); err != nil {
				return withCollection(err, args[0], a)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("deleted %s %s", args[0], args[1]), noColor)
			return nil
		},
	}
}

// readDocument decodes a JSON object from the first argument or from --file
func readDocument(cmd *cobra.Command, args []string) (docstore.Document, error) {
	var r io.Reader
	switch {
	case len(args) > 0 && documentFile != "":
		return nil, errors.New("give the document as an argument or with --file, not both")
	case len(args) > 0:
		r = strings.NewReader(args[0])
	case documentFile == "-":
		r = cmd.InOrStdin()
	case documentFile != "":
		f, err := os.Open(documentFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open document file: %w", err)
		}
		defer f.Close()
		r = f
	default:
		return nil, errors.New("no document given")
	}

	doc, err := docstore.DecodeDocument(r)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("document must be a JSON object")
	}
	return doc, nil
}

// splitList accepts both repeated flags and comma separated values
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}

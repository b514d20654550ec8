package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/relationships"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	❌ RELATION VIOLATION: cannot create parents: childId references children with _id c9, which does not exist
//
//	   Did you mean: children?
//
//	   → See declared relations: docref schema
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	default:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{headerColor, bodyColor, yellow, cyan} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Details) > 0 {
		b.WriteString("\n")
		for _, detail := range opts.Details {
			bodyColor.Fprintf(&b, "   %s\n", detail)
		}
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Problem: message,
		NoColor: noColor,
	})
}

// DescribeError turns an error returned by the entity layer into display options.
// collection is the collection the command addressed and is used for suggestions when
// it is not registered.
func DescribeError(err error, collection string, registry *schema.Registry) ErrorOptions {
	opts := ErrorOptions{Level: ErrorLevelError, Problem: err.Error()}

	var one *integrity.OneToOneRelationError
	var many *integrity.OneToManyRelationError
	var blocked *integrity.DeleteBlockedError

	switch {
	case errors.As(err, &one):
		opts.Context = "relation violation"
		opts.Details = []string{
			fmt.Sprintf("%s.%s = %v", one.SourceCollection, one.SourceKey, one.Value),
			fmt.Sprintf("no %s document has %s %v", one.TargetCollection, one.TargetKey, one.Value),
		}
		opts.HelpCommands = []string{"See declared relations: docref schema"}
	case errors.As(err, &many):
		opts.Context = "relation violation"
		opts.Details = []string{
			fmt.Sprintf("%s.%s = %v", many.SourceCollection, many.SourceKey, many.Values),
			fmt.Sprintf("missing from %s.%s: %v", many.TargetCollection, many.TargetKey, many.Diff),
		}
		opts.HelpCommands = []string{"See declared relations: docref schema"}
	case errors.As(err, &blocked):
		opts.Context = "delete blocked"
		opts.Details = []string{
			fmt.Sprintf("%s %v references it through %s", blocked.ParentCollection, blocked.ParentID, blocked.ParentKey),
			fmt.Sprintf("relations targeting %s: docref schema --targets", blocked.ChildCollection),
		}
	case errors.Is(err, schema.ErrUnknownEntity):
		opts.Context = "unknown entity type"
		if registry != nil {
			opts.Suggestions = FindSimilar(collection, registry.Collections(), 3)
		}
		opts.HelpCommands = []string{"See all entity types: docref schema"}
	case errors.Is(err, relationships.ErrUnknownRelation):
		opts.Context = "unknown relation"
		opts.HelpCommands = []string{"See declared relations: docref schema"}
	case crud.IsNotFound(err):
		opts.Context = "not found"
	case crud.IsDuplicate(err):
		opts.Context = "duplicate"
	}

	return opts
}

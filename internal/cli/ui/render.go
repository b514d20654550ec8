package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// RenderRegistry prints every entity type followed by the relations it declares
func RenderRegistry(w io.Writer, registry *schema.Registry, noColor bool) {
	Header(w, "Entity types", noColor)
	entities := NewTable(w, noColor, "COLLECTION", "ID FIELD", "UNIQUE", "INDEXED")
	for _, entity := range registry.Entities() {
		var unique, indexed []string
		for _, index := range entity.Indexes {
			if index.Unique {
				unique = append(unique, index.Field)
			} else {
				indexed = append(indexed, index.Field)
			}
		}
		entities.AddRow(entity.Collection, entity.IDField, dash(unique), dash(indexed))
	}
	entities.Render()
	fmt.Fprintln(w)

	Header(w, "Relations", noColor)
	renderRelations(w, registry.Relations(), noColor)

	stats := registry.GetStats()
	fmt.Fprintf(w, "\n%d entity types, %d relations (%d checked, %d unchecked)\n",
		stats.TotalEntities, stats.TotalRelations, stats.CheckedRelations, stats.UncheckedRelations)
}

// RenderTargets prints, for each collection, the relations that point at it. These are
// the references the delete guard consults.
func RenderTargets(w io.Writer, registry *schema.Registry, noColor bool) {
	for _, collection := range registry.Collections() {
		Header(w, collection, noColor)
		targeting := registry.DeclarationsTargeting(collection)
		if len(targeting) == 0 {
			fmt.Fprintln(w, "(not referenced)")
		} else {
			renderRelations(w, targeting, noColor)
		}
		fmt.Fprintln(w)
	}
}

func renderRelations(w io.Writer, relations []*schema.Relation, noColor bool) {
	table := NewTable(w, noColor, "SOURCE", "TARGET", "CARDINALITY", "POPULATES", "CHECKED")
	for _, rel := range relations {
		checked := "yes"
		if !rel.CheckRelation {
			checked = "no"
		}
		table.AddRow(
			rel.SourceCollection+"."+rel.SourceKey,
			rel.TargetCollection+"."+rel.TargetKey,
			rel.Cardinality.String(),
			rel.PopulatedKey,
			checked,
		)
	}
	table.Render()
}

// RenderAudit prints the dangling references of an audit report
func RenderAudit(w io.Writer, report *integrity.AuditReport, noColor bool) {
	if report.Clean() {
		WriteSuccess(w, fmt.Sprintf("%d documents scanned, no dangling references", report.Scanned), noColor)
		return
	}

	table := NewTable(w, noColor, "RELATION", "DOCUMENT", "VALUE")
	for _, d := range report.Dangling {
		table.AddRow(d.Relation.String(), fmt.Sprint(d.SourceID), fmt.Sprint(d.Value))
	}
	table.Render()
	fmt.Fprintln(w)
	fmt.Fprint(w, Warning(fmt.Sprintf("%d dangling references in %d documents scanned",
		len(report.Dangling), report.Scanned), noColor))
}

// WriteJSON prints v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

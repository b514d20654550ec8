package integrity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Dangling is a stored reference whose target does not exist
type Dangling struct {
	Relation *schema.Relation
	SourceID interface{}
	Value    interface{}
}

// String renders the finding on one line
func (d Dangling) String() string {
	return fmt.Sprintf("%s %v: %s=%v has no %s.%s",
		d.Relation.SourceCollection, d.SourceID, d.Relation.SourceKey, d.Value,
		d.Relation.TargetCollection, d.Relation.TargetKey)
}

// AuditReport lists the dangling references found by an audit
type AuditReport struct {
	Scanned  int
	Dangling []Dangling
}

// Clean returns true if no dangling reference was found
func (r *AuditReport) Clean() bool {
	return len(r.Dangling) == 0
}

// Auditor scans stored documents for references that no longer resolve. Checked relations
// can only dangle through writes that bypass the validator; unchecked relations dangle
// whenever their targets are deleted.
type Auditor struct {
	registry *schema.Registry
	store    docstore.Finder
	reader   RelationReader
	logger   *zap.Logger
}

// NewAuditor creates an auditor
func NewAuditor(registry *schema.Registry, store docstore.Finder, reader RelationReader, opts ...Option) *Auditor {
	o := buildOptions(opts)
	return &Auditor{
		registry: registry,
		store:    store,
		reader:   reader,
		logger:   o.logger,
	}
}

// Audit checks every relation of every registered entity type. Each relation costs one
// scan of its source collection and one batched lookup in its target collection.
func (a *Auditor) Audit(ctx context.Context, includeUnchecked bool) (*AuditReport, error) {
	report := &AuditReport{}

	for _, entity := range a.registry.Entities() {
		decls := a.registry.DeclarationsFor(entity.Collection)
		if len(decls) == 0 {
			continue
		}

		docs, err := a.store.Find(ctx, entity.Collection, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", entity.Collection, err)
		}
		report.Scanned += len(docs)

		for _, rel := range decls {
			if !rel.CheckRelation && !includeUnchecked {
				continue
			}
			found, err := a.auditRelation(ctx, entity, rel, docs)
			if err != nil {
				return nil, err
			}
			report.Dangling = append(report.Dangling, found...)
		}
	}

	a.logger.Info("audit finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("dangling", len(report.Dangling)),
	)
	return report, nil
}

func (a *Auditor) auditRelation(
	ctx context.Context,
	entity *schema.EntityType,
	rel *schema.Relation,
	docs []docstore.Document,
) ([]Dangling, error) {
	var values []interface{}
	for _, doc := range docs {
		values = append(values, docstore.References(doc[rel.SourceKey])...)
	}
	if len(values) == 0 {
		return nil, nil
	}

	matched, err := a.reader.FindMatching(ctx, rel.TargetCollection, rel.TargetKey, values)
	if err != nil {
		return nil, err
	}
	missing := make(map[string]bool)
	for _, v := range Diff(values, matched) {
		key, _ := docstore.KeyOf(v)
		missing[key] = true
	}
	if len(missing) == 0 {
		return nil, nil
	}

	var found []Dangling
	for _, doc := range docs {
		for _, ref := range docstore.Unique(docstore.References(doc[rel.SourceKey])) {
			if key, _ := docstore.KeyOf(ref); missing[key] {
				found = append(found, Dangling{
					Relation: rel,
					SourceID: doc[entity.IDField],
					Value:    ref,
				})
			}
		}
	}
	return found, nil
}

package docstore

import (
	"context"
	"fmt"
)

// MatchStage restricts the pipeline to documents whose Field is one of Values
type MatchStage struct {
	Field  string
	Values []interface{}
}

// Lookup joins a foreign collection into each document.
// Documents whose LocalField (scalar or list) matches ForeignField are attached under As.
// With Single set the matches collapse to the first document or nil; otherwise they are
// attached as a possibly empty []Document. Documents with no matches are always kept.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Single       bool
}

// Pipeline is a match followed by lookups, executed in order
type Pipeline struct {
	Match   MatchStage
	Lookups []Lookup
}

// RunPipeline executes a pipeline with one Find for the matched documents and one Find
// per lookup, attaching lookup results in memory
func RunPipeline(ctx context.Context, finder Finder, collection string, p Pipeline) ([]Document, error) {
	if len(p.Match.Values) == 0 {
		return []Document{}, nil
	}

	docs, err := finder.Find(ctx, collection, Where(In(p.Match.Field, p.Match.Values)))
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", collection, err)
	}
	if len(docs) == 0 {
		return []Document{}, nil
	}

	for _, lookup := range p.Lookups {
		if err := runLookup(ctx, finder, docs, lookup); err != nil {
			return nil, err
		}
	}

	return docs, nil
}

func runLookup(ctx context.Context, finder Finder, docs []Document, lookup Lookup) error {
	// Collect the local values of the whole batch so the foreign collection is read once
	var values []interface{}
	for _, doc := range docs {
		values = append(values, References(doc[lookup.LocalField])...)
	}
	values = Unique(values)

	related := make(map[string][]Document)
	if len(values) > 0 {
		foreign, err := finder.Find(ctx, lookup.From, Where(In(lookup.ForeignField, values)))
		if err != nil {
			return fmt.Errorf("failed to look up %s.%s: %w", lookup.From, lookup.ForeignField, err)
		}
		for _, f := range foreign {
			key, ok := KeyOf(f[lookup.ForeignField])
			if !ok {
				continue
			}
			related[key] = append(related[key], f)
		}
	}

	for _, doc := range docs {
		matches := make([]Document, 0)
		for _, ref := range Unique(References(doc[lookup.LocalField])) {
			key, _ := KeyOf(ref)
			for _, candidate := range related[key] {
				matches = append(matches, candidate.Clone())
			}
		}

		if lookup.Single {
			if len(matches) > 0 {
				doc[lookup.As] = matches[0]
			} else {
				doc[lookup.As] = nil
			}
		} else {
			doc[lookup.As] = matches
		}
	}

	return nil
}

package docstore

import "fmt"

// Match evaluates a filter against a document in memory. Stores without a query
// language of their own (memory, redis) use it directly.
func Match(doc Document, filter Filter) (bool, error) {
	for _, cond := range filter {
		ok, err := matchCondition(doc, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(doc Document, cond Condition) (bool, error) {
	value, present := doc[cond.Field]

	switch cond.Op {
	case OpEq:
		return present && SameValue(value, cond.Value), nil
	case OpIn:
		if !present {
			return false, nil
		}
		candidates, ok := AsList(cond.Value)
		if !ok {
			return false, fmt.Errorf("%w: in requires a list, got %T", ErrUnsupportedOp, cond.Value)
		}
		for _, candidate := range candidates {
			if SameValue(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpContains:
		list, ok := AsList(value)
		if !ok {
			return false, nil
		}
		for _, item := range list {
			if SameValue(item, cond.Value) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOp, cond.Op)
	}
}

// FilterDocuments returns the documents matching filter, honoring the limit in opts
func FilterDocuments(docs []Document, filter Filter, opts FindOptions) ([]Document, error) {
	var out []Document
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, doc)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

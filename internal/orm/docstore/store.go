// Package docstore defines the document store contract consumed by the relation engine
// and the generic pieces shared by every store implementation.
package docstore

import (
	"context"
)

// Document is a schemaless stored document
type Document map[string]interface{}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(d).(Document)
}

// Op is a filter operator
type Op int

const (
	// OpEq matches documents whose field equals the value
	OpEq Op = iota
	// OpIn matches documents whose field equals any of the values
	OpIn
	// OpContains matches documents whose list field contains the value
	OpContains
)

// String returns the string representation of the operator
func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Condition is a single field predicate
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter is a conjunction of conditions. An empty filter matches every document.
type Filter []Condition

// Eq builds an equality condition
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// In builds a set membership condition
func In(field string, values []interface{}) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Contains builds a list containment condition
func Contains(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// Where builds a filter from conditions
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// FindOptions controls a Find call
type FindOptions struct {
	Limit int
}

// FindOption configures FindOptions
type FindOption func(*FindOptions)

// Limit caps the number of returned documents
func Limit(n int) FindOption {
	return func(o *FindOptions) {
		o.Limit = n
	}
}

// ApplyFindOptions resolves the options passed to Find
func ApplyFindOptions(opts []FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the document store contract. Ids are opaque and compared with KeyOf.
// Returned documents are owned by the caller.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter, opts ...FindOption) ([]Document, error)
	FindByID(ctx context.Context, collection string, id interface{}) (Document, error)
	Insert(ctx context.Context, collection string, id interface{}, doc Document) error
	Replace(ctx context.Context, collection string, id interface{}, doc Document) error
	Delete(ctx context.Context, collection string, id interface{}) error
	Close() error
}

// Finder is the read-only part of a Store
type Finder interface {
	Find(ctx context.Context, collection string, filter Filter, opts ...FindOption) ([]Document, error)
}

// Aggregator is implemented by stores that can execute a join pipeline natively
type Aggregator interface {
	Aggregate(ctx context.Context, collection string, p Pipeline) ([]Document, error)
}

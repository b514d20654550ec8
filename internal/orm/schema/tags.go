package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// TagName is the struct tag read by RegisterStruct
const TagName = "docref"

// RegisterStruct registers an entity type described by the docref tags of a struct.
// Field names come from the json tag when present.
//
//	type Parent struct {
//		ID       string   `json:"_id" docref:"id"`
//		Email    string   `json:"email" docref:"unique"`
//		ChildID  string   `json:"childId" docref:"ref=children"`
//		ChildIDs []string `json:"childIds" docref:"ref=children,as=kids,nocheck"`
//	}
//
// Slice and array fields default to CardinalityMany; "one" or "many" overrides that.
func RegisterStruct(registry *Registry, collection string, v interface{}) error {
	b, err := StructBuilder(collection, v)
	if err != nil {
		return err
	}
	return b.Into(registry)
}

// StructBuilder converts the docref tags of a struct into a Builder
func StructBuilder(collection string, v interface{}) (*Builder, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s: expected a struct, got %v", ErrInvalidRelation, collection, t)
	}

	b := Define(collection)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(TagName)
		if !ok || tag == "-" || !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if err := applyTag(b, name, field.Type, tag); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", collection, field.Name, err)
		}
	}
	return b, nil
}

func applyTag(b *Builder, name string, typ reflect.Type, tag string) error {
	var (
		target      string
		opts        []RelationOption
		cardinality = CardinalityOne
	)

	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array {
		cardinality = CardinalityMany
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "":
		case "id":
			b.ID(name)
		case "unique":
			b.Unique(name)
		case "index":
			b.Index(name)
		case "ref":
			target = value
		case "key":
			opts = append(opts, TargetKey(value))
		case "as":
			opts = append(opts, As(value))
		case "nocheck":
			opts = append(opts, Unchecked())
		case "one":
			cardinality = CardinalityOne
		case "many":
			cardinality = CardinalityMany
		default:
			return fmt.Errorf("%w: unknown tag option %q", ErrInvalidRelation, key)
		}
	}

	if target == "" {
		if len(opts) > 0 {
			return fmt.Errorf("%w: relation options without ref=", ErrInvalidRelation)
		}
		return nil
	}

	b.relation(name, target, cardinality, opts)
	return nil
}

func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

package config

import (
	"fmt"

	"github.com/conduit-lang/docref/internal/orm/schema"
)

// BuildRegistry registers every configured entity type and relation and freezes the
// registry
func BuildRegistry(cfg *Config) (*schema.Registry, error) {
	registry := schema.NewRegistry()

	for _, entity := range cfg.Entities {
		if err := registry.RegisterEntity(entityType(entity)); err != nil {
			return nil, err
		}
	}

	for _, entity := range cfg.Entities {
		for _, rc := range entity.Relations {
			rel, err := relation(rc)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", entity.Collection, rc.SourceKey, err)
			}
			if err := registry.Register(entity.Collection, rel); err != nil {
				return nil, err
			}
		}
	}

	if err := registry.Freeze(); err != nil {
		return nil, fmt.Errorf("invalid entity configuration: %w", err)
	}
	return registry, nil
}

func entityType(ec EntityConfig) *schema.EntityType {
	entity := schema.NewEntityType(ec.Collection)
	if ec.IDField != "" {
		entity.IDField = ec.IDField
	}
	for _, field := range ec.Unique {
		entity.Indexes = append(entity.Indexes, schema.Index{Field: field, Unique: true})
	}
	for _, field := range ec.Index {
		entity.Indexes = append(entity.Indexes, schema.Index{Field: field})
	}
	return entity
}

func relation(rc RelationConfig) (schema.Relation, error) {
	cardinality, err := schema.ParseCardinality(rc.Cardinality)
	if err != nil {
		return schema.Relation{}, err
	}

	check := true
	if rc.Check != nil {
		check = *rc.Check
	}

	return schema.Relation{
		SourceKey:        rc.SourceKey,
		TargetCollection: rc.Target,
		TargetKey:        rc.TargetKey,
		Cardinality:      cardinality,
		CheckRelation:    check,
		PopulatedKey:     rc.PopulatedKey,
	}, nil
}

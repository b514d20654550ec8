package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedChild struct {
	Code string `json:"code" docref:"id"`
	Slug string `json:"slug" docref:"unique"`
}

type taggedParent struct {
	ID        string   `json:"_id" docref:"id"`
	ChildCode string   `json:"childCode" docref:"ref=children"`
	Kids      []string `json:"kidCodes" docref:"ref=children,as=kids,nocheck"`
	Favorite  *string  `json:"favoriteSlug,omitempty" docref:"ref=children,key=slug"`
	Name      string   `json:"name"`
	Ignored   string   `docref:"-"`
}

func TestRegisterStruct(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, RegisterStruct(registry, "children", taggedChild{}))
	require.NoError(t, RegisterStruct(registry, "parents", &taggedParent{}))

	child, ok := registry.Entity("children")
	require.True(t, ok)
	assert.Equal(t, "code", child.IDField)
	assert.True(t, child.IsUnique("slug"))

	decls := registry.DeclarationsFor("parents")
	require.Len(t, decls, 3)

	assert.Equal(t, "childCode", decls[0].SourceKey)
	assert.Equal(t, "code", decls[0].TargetKey)
	assert.Equal(t, CardinalityOne, decls[0].Cardinality)
	assert.True(t, decls[0].CheckRelation)

	assert.Equal(t, "kidCodes", decls[1].SourceKey)
	assert.Equal(t, CardinalityMany, decls[1].Cardinality)
	assert.Equal(t, "kids", decls[1].PopulatedKey)
	assert.False(t, decls[1].CheckRelation)

	assert.Equal(t, "favoriteSlug", decls[2].SourceKey)
	assert.Equal(t, "slug", decls[2].TargetKey)
	assert.Equal(t, CardinalityOne, decls[2].Cardinality)

	assert.NoError(t, registry.Validate())
}

func TestRegisterStructErrors(t *testing.T) {
	registry := NewRegistry()

	err := RegisterStruct(registry, "numbers", 42)
	assert.ErrorIs(t, err, ErrInvalidRelation)

	type badOption struct {
		Ref string `json:"ref" docref:"ref=x,cascade"`
	}
	err = RegisterStruct(registry, "bad", badOption{})
	assert.ErrorIs(t, err, ErrInvalidRelation)

	type orphanOption struct {
		Ref string `json:"ref" docref:"as=thing"`
	}
	err = RegisterStruct(registry, "orphan", orphanOption{})
	assert.ErrorIs(t, err, ErrInvalidRelation)
}

package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	doc := Document{
		"_id":      "p1",
		"childId":  "c1",
		"childIds": []interface{}{"c1", "c2"},
		"rank":     float64(3),
	}

	tests := []struct {
		name     string
		filter   Filter
		expected bool
	}{
		{"empty filter", nil, true},
		{"eq", Where(Eq("childId", "c1")), true},
		{"eq mismatch", Where(Eq("childId", "c2")), false},
		{"eq missing field", Where(Eq("other", "c1")), false},
		{"eq numeric kinds", Where(Eq("rank", 3)), true},
		{"in", Where(In("childId", []interface{}{"c9", "c1"})), true},
		{"in mismatch", Where(In("childId", []interface{}{"c9"})), false},
		{"contains", Where(Contains("childIds", "c2")), true},
		{"contains mismatch", Where(Contains("childIds", "c3")), false},
		{"contains on scalar", Where(Contains("childId", "c1")), false},
		{"conjunction", Where(Eq("_id", "p1"), Contains("childIds", "c1")), true},
		{"conjunction mismatch", Where(Eq("_id", "p2"), Contains("childIds", "c1")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Match(doc, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}

	t.Run("in requires a list", func(t *testing.T) {
		_, err := Match(doc, Filter{{Field: "childId", Op: OpIn, Value: "c1"}})
		assert.ErrorIs(t, err, ErrUnsupportedOp)
	})
}

func TestFilterDocumentsLimit(t *testing.T) {
	docs := []Document{{"k": 1}, {"k": 1}, {"k": 2}, {"k": 1}}

	all, err := FilterDocuments(docs, Where(Eq("k", 1)), FindOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := FilterDocuments(docs, Where(Eq("k", 1)), ApplyFindOptions([]FindOption{Limit(1)}))
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

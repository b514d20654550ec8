package schema

import "testing"

func TestDefaultPopulatedKey(t *testing.T) {
	tests := []struct {
		sourceKey   string
		cardinality Cardinality
		expected    string
	}{
		{"childId", CardinalityOne, "child"},
		{"child_id", CardinalityOne, "child"},
		{"authorID", CardinalityOne, "author"},
		{"childIds", CardinalityMany, "children"},
		{"tag_ids", CardinalityMany, "tags"},
		{"categoryIDs", CardinalityMany, "categories"},
		{"owner", CardinalityOne, "ownerPopulated"},
		{"Id", CardinalityOne, "IdPopulated"},
	}

	for _, tt := range tests {
		t.Run(tt.sourceKey, func(t *testing.T) {
			got := DefaultPopulatedKey(tt.sourceKey, tt.cardinality)
			if got != tt.expected {
				t.Errorf("DefaultPopulatedKey(%q, %s) = %q, want %q", tt.sourceKey, tt.cardinality, got, tt.expected)
			}
		})
	}
}

func TestParseCardinality(t *testing.T) {
	for _, s := range []string{"one", "many"} {
		c, err := ParseCardinality(s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.String() != s {
			t.Errorf("expected %s, got %s", s, c)
		}
	}

	if _, err := ParseCardinality("several"); err == nil {
		t.Error("expected error for unknown cardinality")
	}
}

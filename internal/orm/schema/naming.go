package schema

import (
	"strings"

	"github.com/jinzhu/inflection"
)

var (
	oneSuffixes  = []string{"_id", "Id", "ID"}
	manySuffixes = []string{"_ids", "Ids", "IDs"}
)

// DefaultPopulatedKey derives the output field for a relation from its source key:
// "childId" -> "child", "childIds" -> "children", "child_ids" -> "children".
// Keys without a recognizable suffix get "Populated" appended.
func DefaultPopulatedKey(sourceKey string, cardinality Cardinality) string {
	suffixes := oneSuffixes
	if cardinality == CardinalityMany {
		suffixes = append(manySuffixes, oneSuffixes...)
	}

	base := sourceKey
	for _, suffix := range suffixes {
		if len(sourceKey) > len(suffix) && strings.HasSuffix(sourceKey, suffix) {
			base = strings.TrimSuffix(sourceKey, suffix)
			break
		}
	}

	if cardinality == CardinalityMany {
		base = inflection.Plural(base)
	}
	if base == sourceKey {
		return sourceKey + "Populated"
	}
	return base
}

package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// KeyOf normalizes a reference value into a comparable map key.
// Integers compare exactly by value, and a float that holds a whole number inside the
// exactly representable range (±2^53) compares equal to that integer, so int 7 and the
// float64 7 decoded from JSON produce the same key. fmt.Stringer values such as
// uuid.UUID compare as strings.
// The second result is false for nil and for values that cannot be compared.
func KeyOf(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return "s:" + val, true
	case []byte:
		return "s:" + string(val), true
	case bool:
		return "b:" + strconv.FormatBool(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return intKey(i), true
		}
		if u, err := strconv.ParseUint(val.String(), 10, 64); err == nil {
			return uintKey(u), true
		}
		if f, err := val.Float64(); err == nil {
			return floatKey(f), true
		}
		return "s:" + val.String(), true
	case int:
		return intKey(int64(val)), true
	case int8:
		return intKey(int64(val)), true
	case int16:
		return intKey(int64(val)), true
	case int32:
		return intKey(int64(val)), true
	case int64:
		return intKey(val), true
	case uint:
		return uintKey(uint64(val)), true
	case uint8:
		return uintKey(uint64(val)), true
	case uint16:
		return uintKey(uint64(val)), true
	case uint32:
		return uintKey(uint64(val)), true
	case uint64:
		return uintKey(val), true
	case float32:
		return floatKey(float64(val)), true
	case float64:
		return floatKey(val), true
	case fmt.Stringer:
		return "s:" + val.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Array, reflect.Struct:
		return "", false
	case reflect.Ptr:
		if rv.IsNil() {
			return "", false
		}
		return KeyOf(rv.Elem().Interface())
	}
	return fmt.Sprintf("%T:%v", v, v), true
}

// maxExactFloat is the largest magnitude below which every whole float64 is exact
const maxExactFloat = 1 << 53

func intKey(i int64) string {
	return "n:" + strconv.FormatInt(i, 10)
}

func uintKey(u uint64) string {
	return "n:" + strconv.FormatUint(u, 10)
}

func floatKey(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return intKey(int64(f))
	}
	return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
}

// SameValue reports whether two reference values are equal under KeyOf
func SameValue(a, b interface{}) bool {
	ka, ok := KeyOf(a)
	if !ok {
		return false
	}
	kb, ok := KeyOf(b)
	return ok && ka == kb
}

// IDString renders an id for use as a storage key
func IDString(id interface{}) (string, error) {
	key, ok := KeyOf(id)
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrInvalidID, id)
	}
	// Strip the type prefix so string ids stay readable in storage
	if key[0] == 's' {
		key = key[2:]
	}
	if key == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	return key, nil
}

// AsList returns the elements of a slice or array value
func AsList(v interface{}) ([]interface{}, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return val, true
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// IsEmpty reports whether a reference value holds nothing to check or resolve:
// nil, the empty string, or an empty list
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if list, ok := AsList(v); ok {
		return len(list) == 0
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// References returns the reference values held by v: the list elements for a list
// value, the value itself otherwise. Nil elements are dropped.
func References(v interface{}) []interface{} {
	if IsEmpty(v) {
		return nil
	}
	list, ok := AsList(v)
	if !ok {
		return []interface{}{v}
	}
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// Unique removes duplicate values (by KeyOf) keeping first occurrences
func Unique(values []interface{}) []interface{} {
	seen := make(map[string]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		key, ok := KeyOf(v)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// AsDocuments converts a populated list value into documents
func AsDocuments(v interface{}) []Document {
	list, ok := AsList(v)
	if !ok {
		if doc, ok := AsDocument(v); ok {
			return []Document{doc}
		}
		return []Document{}
	}
	out := make([]Document, 0, len(list))
	for _, item := range list {
		if doc, ok := AsDocument(item); ok {
			out = append(out, doc)
		}
	}
	return out
}

// AsDocument converts a map value into a Document
func AsDocument(v interface{}) (Document, bool) {
	switch val := v.(type) {
	case Document:
		return val, true
	case map[string]interface{}:
		return Document(val), true
	}
	return nil, false
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		out := make(Document, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []Document:
		out := make([]Document, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

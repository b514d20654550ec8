package docstore

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// DecodeDocument reads one JSON object. Numbers decode as float64 unless they are
// integers too large for float64 to hold exactly, which decode as int64 or uint64.
// A JSON null decodes to a nil Document.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return NormalizeNumbers(doc), nil
}

// UnmarshalDocument is DecodeDocument over a byte slice
func UnmarshalDocument(data []byte) (Document, error) {
	return DecodeDocument(bytes.NewReader(data))
}

// NewNumberDecoder returns a JSON decoder that keeps numbers as json.Number, for
// callers decoding documents nested in a larger structure. Pass the results
// through NormalizeNumbers.
func NewNumberDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// NormalizeNumbers replaces the json.Number values of a decoded document in place
func NormalizeNumbers(doc Document) Document {
	for k, v := range doc {
		doc[k] = normalizeNumber(v)
	}
	return doc
}

func normalizeNumber(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		return numberValue(val)
	case Document:
		return NormalizeNumbers(val)
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumber(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumber(item)
		}
		return val
	default:
		return v
	}
}

func numberValue(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		if i >= -maxExactFloat && i <= maxExactFloat {
			return float64(i)
		}
		return i
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

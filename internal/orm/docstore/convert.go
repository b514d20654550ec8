package docstore

import (
	"encoding/json"
	"fmt"
)

// ToDocument converts a struct (or map) into a Document through its JSON form
func ToDocument(v interface{}) (Document, error) {
	if doc, ok := AsDocument(v); ok {
		return doc.Clone(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	doc, err := UnmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Decode fills out from a document through its JSON form
func Decode(doc Document, out interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// EncodeJSON serializes a document for backends that store JSON text.
// HTML escaping is disabled so stored text matches the field values.
func EncodeJSON(data Data) (string, error) {
	if data == nil {
		data = Data{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DecodeJSON parses stored JSON text. Numbers decode as json.Number so
// integers survive without float64 rounding.
func DecodeJSON(text string) (Data, error) {
	if text == "" {
		return Data{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var data Data
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if data == nil {
		data = Data{}
	}
	return data, nil
}

// MergeData returns a copy of base with the top-level fields of patch applied.
func MergeData(base, patch Data) Data {
	out := make(Data, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}

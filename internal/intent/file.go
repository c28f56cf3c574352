package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"gopkg.in/yaml.v3"
)

// ReadFile decodes one intent, or a list of intents, from a JSON or YAML file.
func ReadFile(path string) ([]model.Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(data)
	default:
		return DecodeYAML(data)
	}
}

// DecodeJSON decodes one intent object or an array of them.
func DecodeJSON(data []byte) ([]model.Intent, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, failure.Validation(decodeOp, "invalid json: "+err.Error())
	}
	return decodeDocument(normalizeNumbers(doc))
}

// DecodeYAML decodes one intent mapping or a sequence of them.
func DecodeYAML(data []byte) ([]model.Intent, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, failure.Validation(decodeOp, "invalid yaml: "+err.Error())
	}
	return decodeDocument(doc)
}

func decodeDocument(doc any) ([]model.Intent, error) {
	switch v := doc.(type) {
	case map[string]any:
		in, err := Decode(v)
		if err != nil {
			return nil, err
		}
		return []model.Intent{in}, nil
	case []any:
		out := make([]model.Intent, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, failure.Validation(decodeOp, fmt.Sprintf("item %d is not an object", i))
			}
			in, err := Decode(m)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, in)
		}
		return out, nil
	default:
		return nil, failure.Validation(decodeOp, "document must be an object or a list of objects")
	}
}

// normalizeNumbers turns json.Number into int64 or float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}

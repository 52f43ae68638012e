package apidoc

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML or JSON API document from disk.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api doc %s: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api doc %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a YAML or JSON API document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := DecodeYAML(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeYAML decodes YAML (or JSON, which is a YAML subset) into v by way of
// the JSON decoders, so every type in this package only needs one codec.
func DecodeYAML(data []byte, v any) error {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if root == nil {
		return fmt.Errorf("parse yaml: empty document")
	}
	buf, err := json.Marshal(normalizeYAML(root))
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return json.Unmarshal(buf, v)
}

// normalizeYAML rewrites mapping keys to strings. Unquoted status codes such
// as `200:` decode as integers and would otherwise produce
// map[any]any, which encoding/json rejects.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	}
	return v
}

package stages

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// maxRefDepth bounds $ref inlining so recursive definitions terminate.
const maxRefDepth = 16

const definitionsPrefix = "#/definitions/"

// schemaKeywords are the Swagger 2.0 schema keywords that carry over to an
// openapi3.Schema unchanged.
var schemaKeywords = map[string]bool{
	"type": true, "format": true, "title": true, "description": true,
	"default": true, "enum": true, "example": true,
	"multipleOf": true, "maximum": true, "exclusiveMaximum": true,
	"minimum": true, "exclusiveMinimum": true,
	"maxLength": true, "minLength": true, "pattern": true,
	"maxItems": true, "minItems": true, "uniqueItems": true,
	"maxProperties": true, "minProperties": true, "required": true,
	"readOnly": true,
}

// nestedKeywords hold a schema or a list of schemas.
var nestedKeywords = map[string]bool{
	"items": true, "properties": true, "additionalProperties": true,
	"allOf": true, "anyOf": true, "oneOf": true, "not": true,
}

// compiledSchema pairs a kin-openapi schema with the inlined source it was
// built from. The source drives custom format checks.
type compiledSchema struct {
	schema *openapi3.Schema
	source map[string]any
}

// compileSchema inlines local definitions into raw and converts the result
// into an openapi3.Schema.
func compileSchema(raw map[string]any, definitions map[string]any) (*compiledSchema, error) {
	source := inlineSchema(raw, definitions, 0)
	data, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	schema := openapi3.NewSchema()
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &compiledSchema{schema: schema, source: source}, nil
}

// parameterSchema builds the schema of a non-body parameter from its
// inline keywords.
func parameterSchema(p apidoc.Parameter) map[string]any {
	out := map[string]any{}
	for k, v := range p.Extra {
		if schemaKeywords[k] {
			out[k] = v
		}
	}
	if p.Type != "" && p.Type != "file" {
		out["type"] = p.Type
	}
	if p.Format != "" {
		out["format"] = p.Format
	}
	if p.Enum != nil {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items
	}
	return out
}

func inlineSchema(raw map[string]any, definitions map[string]any, depth int) map[string]any {
	if ref, ok := raw["$ref"].(string); ok {
		if depth >= maxRefDepth || !strings.HasPrefix(ref, definitionsPrefix) {
			return map[string]any{}
		}
		target, ok := definitions[strings.TrimPrefix(ref, definitionsPrefix)].(map[string]any)
		if !ok {
			return map[string]any{}
		}
		return inlineSchema(target, definitions, depth+1)
	}

	out := map[string]any{}
	for k, v := range raw {
		switch {
		case k == "type":
			if s, ok := v.(string); ok && s == "file" {
				continue
			}
			out[k] = v
		case k == "x-nullable":
			if b, ok := v.(bool); ok {
				out["nullable"] = b
			}
		case schemaKeywords[k]:
			out[k] = v
		case nestedKeywords[k]:
			if nested, ok := inlineNested(k, v, definitions, depth); ok {
				out[k] = nested
			}
		}
	}
	return out
}

func inlineNested(keyword string, v any, definitions map[string]any, depth int) (any, bool) {
	switch keyword {
	case "properties":
		props, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		out := make(map[string]any, len(props))
		for name, p := range props {
			if m, ok := p.(map[string]any); ok {
				out[name] = inlineSchema(m, definitions, depth)
			}
		}
		return out, true
	case "allOf", "anyOf", "oneOf":
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, inlineSchema(m, definitions, depth))
			}
		}
		return out, true
	case "additionalProperties":
		if b, ok := v.(bool); ok {
			return b, true
		}
	case "items":
		// Tuple-style items are not part of Swagger 2.0.
		if list, ok := v.([]any); ok && len(list) > 0 {
			v = list[0]
		}
	}
	if m, ok := v.(map[string]any); ok {
		return inlineSchema(m, definitions, depth), true
	}
	return nil, false
}

// visit validates value against the schema and returns one entry per
// failure. value must already be in JSON form.
func (c *compiledSchema) visit(value any) []*openapi3.SchemaError {
	err := c.schema.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	return flattenSchemaErrors(err)
}

func flattenSchemaErrors(err error) []*openapi3.SchemaError {
	var me openapi3.MultiError
	if errors.As(err, &me) {
		var out []*openapi3.SchemaError
		for _, e := range me {
			out = append(out, flattenSchemaErrors(e)...)
		}
		return out
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return []*openapi3.SchemaError{se}
	}
	return []*openapi3.SchemaError{{Reason: err.Error(), Origin: err}}
}

// schemaErrorPath renders the location of the failing value inside the
// validated document, e.g. "name" or "tags/0".
func schemaErrorPath(se *openapi3.SchemaError) string {
	return strings.Join(se.JSONPointer(), "/")
}

func schemaErrorField(se *openapi3.SchemaError) string {
	if se.SchemaField != "" {
		return se.SchemaField
	}
	return "schema"
}

// normalize converts v into the shape encoding/json produces, which is
// what the schema validator expects: float64 numbers, []any and
// map[string]any.
func normalize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// formatIssue is a custom format failure found while walking a value.
type formatIssue struct {
	path   string
	format string
	err    error
}

// checkFormats walks value alongside the schema source and runs every
// registered custom format checker that applies.
func checkFormats(schema map[string]any, value any, formats pipeline.CustomFormats, path []string) []formatIssue {
	if len(formats) == 0 || schema == nil {
		return nil
	}
	var out []formatIssue
	if name, ok := schema["format"].(string); ok {
		if check, ok := formats[name]; ok {
			if s, ok := value.(string); ok {
				if err := check(s); err != nil {
					out = append(out, formatIssue{path: strings.Join(path, "/"), format: name, err: err})
				}
			}
		}
	}
	switch v := value.(type) {
	case map[string]any:
		props, _ := schema["properties"].(map[string]any)
		for _, key := range slices.Sorted(maps.Keys(v)) {
			child := v[key]
			if sub, ok := props[key].(map[string]any); ok {
				out = append(out, checkFormats(sub, child, formats, append(path[:len(path):len(path)], key))...)
			}
		}
	case []any:
		if items, ok := schema["items"].(map[string]any); ok {
			for i, child := range v {
				out = append(out, checkFormats(items, child, formats, append(path[:len(path):len(path)], fmt.Sprint(i)))...)
			}
		}
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		list, _ := schema[key].([]any)
		for _, item := range list {
			if sub, ok := item.(map[string]any); ok {
				out = append(out, checkFormats(sub, value, formats, path)...)
			}
		}
	}
	return out
}

// Package apidoc models the Swagger 2.0 API description that drives route
// assembly.
//
// Only the parts of the document the pipeline engine reads or mutates are
// typed (base path, paths, operations, parameters, tags and vendor
// extensions). Every other key is retained verbatim in an Extra map so a
// document survives a decode/encode round trip unchanged.
package apidoc

import (
	"encoding/json"
	"strings"
)

// Methods lists, in registration order, the HTTP methods a path item or a
// route module may declare. Any other key is not an operation.
var Methods = []string{"get", "put", "post", "delete", "options", "head", "patch"}

// IsMethod reports whether name is one of Methods.
func IsMethod(name string) bool {
	for _, m := range Methods {
		if m == name {
			return true
		}
	}
	return false
}

// Document is the API description.
type Document struct {
	BasePath    string
	Paths       map[string]*PathItem
	Definitions map[string]any
	// Tags is nil when the document declares no tag list.
	Tags       []Tag
	Extensions Extensions
	Extra      map[string]any
}

// Tag is a named operation group.
type Tag struct {
	Name  string
	Extra map[string]any
}

// PathItem describes every operation available at one path template.
type PathItem struct {
	Operations map[string]*Operation
	Parameters []Parameter
	Extensions Extensions
	Extra      map[string]any
}

// Operation describes one HTTP method at a path.
type Operation struct {
	OperationID string
	// Parameters is nil when the operation declares no parameter list.
	Parameters []Parameter
	// Responses is nil when the operation declares no responses object.
	Responses  map[string]any
	Tags       []string
	Extensions Extensions
	Extra      map[string]any
}

// Extension implements Extensible. A nil document has no extensions.
func (d *Document) Extension(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	return d.Extensions.Get(name)
}

// Extension implements Extensible. A nil path item has no extensions.
func (p *PathItem) Extension(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	return p.Extensions.Get(name)
}

// Extension implements Extensible. A nil operation has no extensions.
func (o *Operation) Extension(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	return o.Extensions.Get(name)
}

// HasTag reports whether the document's tag list contains name.
func (d *Document) HasTag(name string) bool {
	for _, t := range d.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// PathItem returns the path item registered for template, or nil.
func (d *Document) PathItem(template string) *PathItem {
	if d == nil || d.Paths == nil {
		return nil
	}
	return d.Paths[template]
}

// SetPathItem stores item under template, allocating the path map on demand.
func (d *Document) SetPathItem(template string, item *PathItem) {
	if d.Paths == nil {
		d.Paths = make(map[string]*PathItem)
	}
	d.Paths[template] = item
}

// SetOperation stores op under the lowercase method name.
func (p *PathItem) SetOperation(method string, op *Operation) {
	if p.Operations == nil {
		p.Operations = make(map[string]*Operation)
	}
	p.Operations[strings.ToLower(method)] = op
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{}
	for key, value := range raw {
		var err error
		switch {
		case key == "basePath":
			err = json.Unmarshal(value, &d.BasePath)
		case key == "paths":
			err = json.Unmarshal(value, &d.Paths)
		case key == "definitions":
			err = json.Unmarshal(value, &d.Definitions)
		case key == "tags":
			err = json.Unmarshal(value, &d.Tags)
		case isExtension(key):
			d.Extensions, err = decodeInto(d.Extensions, key, value)
		default:
			d.Extra, err = decodeInto(d.Extra, key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := merged(d.Extra, d.Extensions)
	if d.BasePath != "" {
		out["basePath"] = d.BasePath
	}
	if d.Paths != nil {
		out["paths"] = d.Paths
	}
	if d.Definitions != nil {
		out["definitions"] = sanitize(d.Definitions)
	}
	if d.Tags != nil {
		out["tags"] = d.Tags
	}
	return json.Marshal(out)
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Tag{}
	for key, value := range raw {
		var err error
		if key == "name" {
			err = json.Unmarshal(value, &t.Name)
		} else {
			t.Extra, err = decodeInto(t.Extra, key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	out := merged(t.Extra, nil)
	out["name"] = t.Name
	return json.Marshal(out)
}

func (p *PathItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PathItem{}
	for key, value := range raw {
		var err error
		switch {
		case IsMethod(key):
			var op Operation
			if err = json.Unmarshal(value, &op); err == nil {
				p.SetOperation(key, &op)
			}
		case key == "parameters":
			err = json.Unmarshal(value, &p.Parameters)
		case isExtension(key):
			p.Extensions, err = decodeInto(p.Extensions, key, value)
		default:
			p.Extra, err = decodeInto(p.Extra, key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p PathItem) MarshalJSON() ([]byte, error) {
	out := merged(p.Extra, p.Extensions)
	for method, op := range p.Operations {
		if op != nil {
			out[method] = op
		}
	}
	if p.Parameters != nil {
		out["parameters"] = p.Parameters
	}
	return json.Marshal(out)
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Operation{}
	for key, value := range raw {
		var err error
		switch {
		case key == "operationId":
			err = json.Unmarshal(value, &o.OperationID)
		case key == "parameters":
			err = json.Unmarshal(value, &o.Parameters)
		case key == "responses":
			err = json.Unmarshal(value, &o.Responses)
		case key == "tags":
			err = json.Unmarshal(value, &o.Tags)
		case isExtension(key):
			o.Extensions, err = decodeInto(o.Extensions, key, value)
		default:
			o.Extra, err = decodeInto(o.Extra, key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	out := merged(o.Extra, o.Extensions)
	if o.OperationID != "" {
		out["operationId"] = o.OperationID
	}
	if o.Parameters != nil {
		out["parameters"] = o.Parameters
	}
	if o.Responses != nil {
		out["responses"] = sanitize(o.Responses)
	}
	if o.Tags != nil {
		out["tags"] = o.Tags
	}
	return json.Marshal(out)
}

func isExtension(key string) bool {
	return strings.HasPrefix(key, "x-")
}

func decodeInto[M ~map[string]any](m M, key string, value json.RawMessage) (M, error) {
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return m, err
	}
	if m == nil {
		m = make(M)
	}
	m[key] = v
	return m, nil
}

// merged builds the output object for MarshalJSON from the untyped keys.
// Values that cannot be serialised (functions) are left out.
func merged(extra map[string]any, ext Extensions) map[string]any {
	out := make(map[string]any, len(extra)+len(ext)+4)
	for k, v := range extra {
		if c, ok := cloneValue(v); ok {
			out[k] = c
		}
	}
	for k, v := range ext {
		if c, ok := cloneValue(v); ok {
			out[k] = c
		}
	}
	return out
}

func sanitize(m map[string]any) map[string]any {
	out, _ := cloneValue(m)
	if out == nil {
		return nil
	}
	return out.(map[string]any)
}

package apidoc

import (
	"encoding/json"
)

// Parameter locations.
const (
	InPath     = "path"
	InQuery    = "query"
	InHeader   = "header"
	InBody     = "body"
	InFormData = "formData"
)

// Parameter is a Swagger 2.0 parameter object. Two parameters are the same
// parameter when they share Name and In.
type Parameter struct {
	Name             string
	In               string
	Required         bool
	Type             string
	Format           string
	CollectionFormat string
	Items            map[string]any
	Schema           map[string]any
	Enum             []any
	Default          any
	// HasDefault distinguishes an explicit `default: null` from no default.
	HasDefault bool
	Extra      map[string]any
}

// ParamKey identifies a parameter for de-duplication.
type ParamKey struct {
	Name string
	In   string
}

// Key returns the (name, location) identity of p.
func (p Parameter) Key() ParamKey {
	return ParamKey{Name: p.Name, In: p.In}
}

// Keyword returns a schema keyword that is not modelled as a field
// (minimum, maxLength, pattern and so on).
func (p Parameter) Keyword(name string) (any, bool) {
	v, ok := p.Extra[name]
	return v, ok
}

var parameterFields = map[string]bool{
	"name": true, "in": true, "required": true, "type": true, "format": true,
	"collectionFormat": true, "items": true, "schema": true, "enum": true, "default": true,
}

func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Parameter{}
	for key, value := range raw {
		var err error
		switch key {
		case "name":
			err = json.Unmarshal(value, &p.Name)
		case "in":
			err = json.Unmarshal(value, &p.In)
		case "required":
			err = json.Unmarshal(value, &p.Required)
		case "type":
			err = json.Unmarshal(value, &p.Type)
		case "format":
			err = json.Unmarshal(value, &p.Format)
		case "collectionFormat":
			err = json.Unmarshal(value, &p.CollectionFormat)
		case "items":
			err = json.Unmarshal(value, &p.Items)
		case "schema":
			err = json.Unmarshal(value, &p.Schema)
		case "enum":
			err = json.Unmarshal(value, &p.Enum)
		case "default":
			p.HasDefault = true
			err = json.Unmarshal(value, &p.Default)
		default:
			p.Extra, err = decodeInto(p.Extra, key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		if parameterFields[k] {
			continue
		}
		if c, ok := cloneValue(v); ok {
			out[k] = c
		}
	}
	out["name"] = p.Name
	out["in"] = p.In
	if p.Required {
		out["required"] = true
	}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.Format != "" {
		out["format"] = p.Format
	}
	if p.CollectionFormat != "" {
		out["collectionFormat"] = p.CollectionFormat
	}
	if p.Items != nil {
		out["items"] = sanitize(p.Items)
	}
	if p.Schema != nil {
		out["schema"] = sanitize(p.Schema)
	}
	if p.Enum != nil {
		out["enum"] = p.Enum
	}
	if p.HasDefault {
		out["default"] = p.Default
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of p.
func (p Parameter) Clone() Parameter {
	c := p
	c.Items = cloneMap(p.Items)
	c.Schema = cloneMap(p.Schema)
	c.Extra = cloneMap(p.Extra)
	if p.Enum != nil {
		v, _ := cloneValue(p.Enum)
		c.Enum = v.([]any)
	}
	if p.Default != nil {
		c.Default, _ = cloneValue(p.Default)
	}
	return c
}

// CloneParameters deep-copies a parameter list, keeping nil as nil.
func CloneParameters(params []Parameter) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, len(params))
	for i, p := range params {
		out[i] = p.Clone()
	}
	return out
}

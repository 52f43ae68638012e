package apidoc

import "reflect"

// Clone returns a deep copy of d suitable for use as a mutable working
// document. Function values held in extensions are not carried over.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		BasePath:    d.BasePath,
		Definitions: cloneMap(d.Definitions),
		Extensions:  d.Extensions.Clone(),
		Extra:       cloneMap(d.Extra),
	}
	if d.Paths != nil {
		c.Paths = make(map[string]*PathItem, len(d.Paths))
		for k, item := range d.Paths {
			c.Paths[k] = item.Clone()
		}
	}
	if d.Tags != nil {
		c.Tags = make([]Tag, len(d.Tags))
		for i, t := range d.Tags {
			c.Tags[i] = Tag{Name: t.Name, Extra: cloneMap(t.Extra)}
		}
	}
	return c
}

// Clone returns a deep copy of p.
func (p *PathItem) Clone() *PathItem {
	if p == nil {
		return nil
	}
	c := &PathItem{
		Parameters: CloneParameters(p.Parameters),
		Extensions: p.Extensions.Clone(),
		Extra:      cloneMap(p.Extra),
	}
	if p.Operations != nil {
		c.Operations = make(map[string]*Operation, len(p.Operations))
		for m, op := range p.Operations {
			c.Operations[m] = op.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of o.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	c := &Operation{
		OperationID: o.OperationID,
		Parameters:  CloneParameters(o.Parameters),
		Responses:   cloneMap(o.Responses),
		Extensions:  o.Extensions.Clone(),
		Extra:       cloneMap(o.Extra),
	}
	if o.Tags != nil {
		c.Tags = append([]string{}, o.Tags...)
	}
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if c, ok := cloneValue(v); ok {
			out[k] = c
		}
	}
	return out
}

// cloneValue deep-copies JSON-like data. ok is false for function values,
// which are dropped from the enclosing container.
func cloneValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		return cloneMap(t), true
	case []any:
		if t == nil {
			return []any(nil), true
		}
		out := make([]any, 0, len(t))
		for _, item := range t {
			if c, ok := cloneValue(item); ok {
				out = append(out, c)
			}
		}
		return out, true
	case string, bool, float64, int, int64:
		return t, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return nil, false
	case reflect.Slice, reflect.Array:
		list, _ := AsArray(v)
		return cloneValue(list)
	}
	return v, true
}

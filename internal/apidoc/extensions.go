package apidoc

import "reflect"

// Extensible is implemented by every document level that can carry vendor
// extensions: the document, a path item, an operation and a route module.
// Implementations must accept a nil receiver and report no extensions.
type Extensible interface {
	Extension(name string) (any, bool)
}

// Extensions holds the `x-` keys of one document object.
type Extensions map[string]any

// Get returns the raw extension value.
func (e Extensions) Get(name string) (any, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e[name]
	return v, ok
}

// Bool returns the extension as a boolean. ok is false when the extension is
// absent or is not a boolean.
func (e Extensions) Bool(name string) (value, ok bool) {
	v, present := e.Get(name)
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// Array returns the extension as a list of entries. Any slice type is
// accepted so programmatic callers can store typed slices.
func (e Extensions) Array(name string) ([]any, bool) {
	v, present := e.Get(name)
	if !present {
		return nil, false
	}
	return AsArray(v)
}

// AsArray converts v to []any when v is a slice or array.
func AsArray(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Clone deep-copies e, dropping function values.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	return Extensions(cloneMap(e))
}

// BoolFlag reports whether doc carries name set to exactly true.
func BoolFlag(doc Extensible, name string) bool {
	if doc == nil {
		return false
	}
	v, ok := doc.Extension(name)
	b, isBool := v.(bool)
	return ok && isBool && b
}

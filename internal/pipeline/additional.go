package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
)

// Middleware wraps the next handler in the chain.
type Middleware = func(http.Handler) http.Handler

// Lookup resolves a middleware declared by name.
type Lookup func(name string) (Middleware, bool)

// Entry is one declared additional-middleware item: either a usable
// middleware or the invalid value that was declared in its place.
type Entry struct {
	mw   Middleware
	raw  any
	name string
}

// Valid wraps a usable middleware.
func Valid(mw Middleware) Entry {
	return Entry{mw: mw, raw: mw}
}

// Invalid records a declared value that is not a middleware.
func Invalid(raw any) Entry {
	return Entry{raw: raw}
}

// Middleware returns the wrapped middleware and whether the entry is usable.
func (e Entry) Middleware() (Middleware, bool) {
	return e.mw, e.mw != nil
}

// Raw returns the value as it was declared.
func (e Entry) Raw() any { return e.raw }

// Name returns the registry name the entry was declared with, if any.
func (e Entry) Name() string { return e.name }

func (e Entry) String() string {
	switch {
	case e.name != "":
		return e.name
	case e.mw != nil:
		return "<middleware>"
	}
	return fmt.Sprintf("%v", e.raw)
}

// ToEntry classifies one declared array item. Strings are resolved through
// lookup; middleware functions are used directly; anything else is invalid.
func ToEntry(raw any, lookup Lookup) Entry {
	switch v := raw.(type) {
	case Entry:
		return v
	case Middleware:
		if v == nil {
			return Invalid(raw)
		}
		return Valid(v)
	case string:
		if lookup != nil {
			if mw, ok := lookup(v); ok && mw != nil {
				return Entry{mw: mw, raw: raw, name: v}
			}
		}
		return Entry{raw: raw, name: v}
	}
	return Invalid(raw)
}

// declaredEntries returns the additional-middleware array declared directly
// on doc, or nil when doc is absent or declares none.
func declaredEntries(doc apidoc.Extensible, lookup Lookup) []Entry {
	if doc == nil {
		return nil
	}
	v, ok := doc.Extension(FlagAdditionalMiddleware)
	if !ok {
		return nil
	}
	list, ok := apidoc.AsArray(v)
	if !ok {
		return nil
	}
	entries := make([]Entry, len(list))
	for i, raw := range list {
		entries[i] = ToEntry(raw, lookup)
	}
	return entries
}

func stopsInheriting(doc apidoc.Extensible) bool {
	if doc == nil {
		return false
	}
	v, ok := doc.Extension(FlagInheritAdditionalMiddleware)
	inherit, isBool := v.(bool)
	return ok && isBool && !inherit
}

// CollectAdditional walks levels ordered outermost first, usually
// [document, path item, route module, operation], from the innermost pair
// outward. At each step the inner ("current") level is checked for
// x-oapi-pipeline-inherit-additional-middleware: false, which ends the walk;
// otherwise the array of the next level out is prepended to the result.
//
// The innermost level only ever acts as "current", so an operation's own
// array is never collected. Callers rely on this exact behaviour.
func CollectAdditional(lookup Lookup, levels ...apidoc.Extensible) []Entry {
	var collected []Entry
	for index := len(levels) - 1; index > 0; {
		index--
		current, parent := levels[index+1], levels[index]
		if stopsInheriting(current) {
			break
		}
		collected = append(declaredEntries(parent, lookup), collected...)
	}
	return collected
}

// Callable keeps the usable entries and logs a warning for every other one.
func Callable(logger *slog.Logger, entries []Entry) []Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Middleware, 0, len(entries))
	for _, e := range entries {
		if mw, ok := e.Middleware(); ok {
			out = append(out, mw)
			continue
		}
		logger.Warn("ignoring additional middleware entry that is not a middleware",
			slog.String("property", FlagAdditionalMiddleware),
			slog.String("entry", e.String()),
		)
	}
	return out
}

// ResolveAdditional returns the usable additional middleware for one
// operation. See CollectAdditional for the inheritance rules.
func ResolveAdditional(logger *slog.Logger, lookup Lookup, levels ...apidoc.Extensible) []Middleware {
	return Callable(logger, CollectAdditional(lookup, levels...))
}

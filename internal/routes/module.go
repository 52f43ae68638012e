// Package routes loads route modules: the per-path handlers, documentation
// and vendor flags that the initializer assembles into pipelines.
package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// FlagHandler names the registry handler of an operation when it differs
// from the operationId.
const FlagHandler = "x-oapi-pipeline-handler"

// Module is the route module of one path template.
type Module struct {
	// Parameters seeds the path item's parameters. nil means the module
	// declares none.
	Parameters []apidoc.Parameter
	Extensions apidoc.Extensions
	// Methods is keyed by lower-case HTTP method.
	Methods map[string]*Method
}

// Method is one operation of a route module.
type Method struct {
	// Doc is nil when the operation is undocumented.
	Doc     *apidoc.Operation
	Chain   []pipeline.Middleware
	Handler http.Handler
}

// Extension implements apidoc.Extensible.
func (m *Module) Extension(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m.Extensions.Get(name)
}

// MethodNames lists the module's supported methods in the canonical method
// order. Keys that are not HTTP methods are ignored.
func (m *Module) MethodNames() []string {
	if m == nil {
		return nil
	}
	var names []string
	for _, method := range apidoc.Methods {
		if _, ok := m.Methods[method]; ok {
			names = append(names, method)
		}
	}
	return names
}

// Route pairs a path template with its module.
type Route struct {
	Template string
	Module   *Module
	// Source is the file the module was loaded from, empty for modules
	// supplied in code.
	Source string
}

// moduleFile is the on-disk shape of a route module.
//
//	parameters: [...]
//	x-oapi-pipeline-additional-middleware: [audit]
//	get:
//	  handler: getWidget
//	  chain: [auth]
//	  doc: {operationId: getWidget, responses: {...}}
type moduleFile struct {
	Parameters []apidoc.Parameter
	Extensions apidoc.Extensions
	Methods    map[string]methodFile
}

type methodFile struct {
	Handler string            `json:"handler"`
	Chain   []string          `json:"chain"`
	Doc     *apidoc.Operation `json:"doc"`
}

func (f *moduleFile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = moduleFile{Methods: make(map[string]methodFile)}
	for key, value := range raw {
		switch {
		case key == "parameters":
			if err := json.Unmarshal(value, &f.Parameters); err != nil {
				return fmt.Errorf("parameters: %w", err)
			}
		case strings.HasPrefix(key, "x-"):
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if f.Extensions == nil {
				f.Extensions = apidoc.Extensions{}
			}
			f.Extensions[key] = v
		case apidoc.IsMethod(key):
			var m methodFile
			if err := json.Unmarshal(value, &m); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			f.Methods[key] = m
		}
	}
	return nil
}

// handlerName picks the registry name that binds an operation.
func (m methodFile) handlerName() string {
	if m.Handler != "" {
		return m.Handler
	}
	if m.Doc == nil {
		return ""
	}
	if v, ok := m.Doc.Extension(FlagHandler); ok {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	return m.Doc.OperationID
}

// bind resolves the names in f against the registry.
func (f *moduleFile) bind(registry *Registry) (*Module, error) {
	mod := &Module{
		Parameters: f.Parameters,
		Extensions: f.Extensions,
		Methods:    make(map[string]*Method, len(f.Methods)),
	}

	methods := make([]string, 0, len(f.Methods))
	for method := range f.Methods {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	for _, method := range methods {
		mf := f.Methods[method]
		name := mf.handlerName()
		handler, ok := registry.Handler(name)
		if !ok {
			if name == "" {
				return nil, fmt.Errorf("%w: %s has no handler name or operationId", ErrUnboundHandler, method)
			}
			return nil, fmt.Errorf("%w: %s handler %q is not registered", ErrUnboundHandler, method, name)
		}

		chain := make([]pipeline.Middleware, 0, len(mf.Chain))
		for _, mwName := range mf.Chain {
			mw, ok := registry.Middleware(mwName)
			if !ok {
				return nil, fmt.Errorf("%w: %s chain middleware %q is not registered", ErrUnboundMiddleware, method, mwName)
			}
			chain = append(chain, mw)
		}

		mod.Methods[method] = &Method{Doc: mf.Doc, Chain: chain, Handler: handler}
	}
	return mod, nil
}

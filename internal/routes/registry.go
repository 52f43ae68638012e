package routes

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// Registry resolves the names used in route module files: handlers bound by
// operation and middleware referenced from handler chains or
// x-oapi-pipeline-additional-middleware arrays.
//
// Registration follows http.ServeMux: programming errors such as an empty
// name, a nil value or a duplicate registration panic.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[string]http.Handler
	middleware map[string]pipeline.Middleware
	fallback   http.Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:   make(map[string]http.Handler),
		middleware: make(map[string]pipeline.Middleware),
	}
}

// RegisterHandler binds name, usually an operationId, to a handler.
func (r *Registry) RegisterHandler(name string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic("routes: handler name cannot be empty")
	}
	if h == nil {
		panic(fmt.Sprintf("routes: handler %q is nil", name))
	}
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("routes: handler %q already registered", name))
	}
	r.handlers[name] = h
}

// RegisterHandlerFunc is RegisterHandler for plain functions.
func (r *Registry) RegisterHandlerFunc(name string, fn func(http.ResponseWriter, *http.Request)) {
	r.RegisterHandler(name, http.HandlerFunc(fn))
}

// RegisterMiddleware makes a middleware available by name.
func (r *Registry) RegisterMiddleware(name string, mw pipeline.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic("routes: middleware name cannot be empty")
	}
	if mw == nil {
		panic(fmt.Sprintf("routes: middleware %q is nil", name))
	}
	if _, exists := r.middleware[name]; exists {
		panic(fmt.Sprintf("routes: middleware %q already registered", name))
	}
	r.middleware[name] = mw
}

// SetFallback sets the handler used for operations whose name is not
// registered. Without a fallback such operations fail discovery.
func (r *Registry) SetFallback(h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Handler returns the handler bound to name, or the fallback.
func (r *Registry) Handler(name string) (http.Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[name]; ok {
		return h, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Middleware returns the middleware registered as name.
func (r *Registry) Middleware(name string) (pipeline.Middleware, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	mw, ok := r.middleware[name]
	return mw, ok
}

// Lookup adapts the registry for resolving named additional middleware.
func (r *Registry) Lookup() pipeline.Lookup {
	return r.Middleware
}

// HandlerNames lists the registered handler names in sorted order.
func (r *Registry) HandlerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.handlers)
}

// MiddlewareNames lists the registered middleware names in sorted order.
func (r *Registry) MiddlewareNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.middleware)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

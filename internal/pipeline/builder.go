package pipeline

import (
	"net/http"
	"sync"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
)

// StageKind identifies what a pipeline stage does.
type StageKind string

const (
	StageDefaults           StageKind = "defaults"
	StageCoercion           StageKind = "coercion"
	StageRequestValidation  StageKind = "request-validation"
	StageResponseValidation StageKind = "response-validation"
	StageAdditional         StageKind = "additional"
	// StageHandlerChain marks middleware the route declared in front of its
	// handler.
	StageHandlerChain StageKind = "handler-chain"
)

// Stage is one unit of a pipeline.
type Stage struct {
	Kind       StageKind
	Middleware Middleware
}

// Pipeline is the ordered middleware sequence of one operation followed by
// its handler. The first stage runs first.
type Pipeline struct {
	Stages  []Stage
	Handler http.Handler

	once     sync.Once
	composed http.Handler
}

// Kinds lists the stage kinds in order.
func (p *Pipeline) Kinds() []StageKind {
	kinds := make([]StageKind, len(p.Stages))
	for i, s := range p.Stages {
		kinds[i] = s.Kind
	}
	return kinds
}

// Has reports whether the pipeline includes a stage of the given kind.
func (p *Pipeline) Has(kind StageKind) bool {
	for _, s := range p.Stages {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// Middlewares returns the stage middleware in order, ready for a router's
// middleware stack.
func (p *Pipeline) Middlewares() []Middleware {
	out := make([]Middleware, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = s.Middleware
	}
	return out
}

// ServeHTTP runs the request through every stage and then the handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.once.Do(func() {
		h := p.Handler
		if h == nil {
			h = http.NotFoundHandler()
		}
		for i := len(p.Stages) - 1; i >= 0; i-- {
			h = p.Stages[i].Middleware(h)
		}
		p.composed = h
	})
	p.composed.ServeHTTP(w, r)
}

// Route names the operation a stage is built for.
type Route struct {
	Method   string
	Template string
}

// DefaultsArgs are the construction inputs of the defaults stage.
type DefaultsArgs struct {
	Route      Route
	Parameters []apidoc.Parameter
}

// CoercionArgs are the construction inputs of the coercion stage.
type CoercionArgs struct {
	Route      Route
	Parameters []apidoc.Parameter
}

// RequestValidationArgs are the construction inputs of the request
// validation stage.
type RequestValidationArgs struct {
	Route            Route
	Parameters       []apidoc.Parameter
	Definitions      map[string]any
	ErrorTransformer ErrorTransformer
	CustomFormats    CustomFormats
}

// ResponseValidationArgs are the construction inputs of the response
// validation stage.
type ResponseValidationArgs struct {
	Route            Route
	Responses        map[string]any
	Definitions      map[string]any
	ErrorTransformer ErrorTransformer
	CustomFormats    CustomFormats
}

// ValidationIssue is one request or response validation failure.
type ValidationIssue struct {
	Path      string `json:"path"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Location  string `json:"location,omitempty"`
}

// ErrorTransformer rewrites a validation issue before it is reported to the
// client. cause is the underlying schema error, when there is one.
type ErrorTransformer func(issue ValidationIssue, cause error) any

// FormatChecker validates a string against a custom format.
type FormatChecker func(value string) error

// CustomFormats maps a format name to its checker.
type CustomFormats map[string]FormatChecker

// StageFactory builds the four built-in stages.
type StageFactory interface {
	Defaults(args DefaultsArgs) Middleware
	Coercion(args CoercionArgs) Middleware
	RequestValidation(args RequestValidationArgs) Middleware
	ResponseValidation(args ResponseValidationArgs) Middleware
}

// Input carries everything Build needs for one operation.
type Input struct {
	Route Route
	// Operation is nil when the route declares no operation document, in
	// which case none of the built-in stages apply.
	Operation   *apidoc.Operation
	Parameters  []apidoc.Parameter
	Definitions map[string]any
	Permissions Permissions
	Additional  []Middleware
	Chain       []Middleware
	Handler     http.Handler

	ErrorTransformer ErrorTransformer
	CustomFormats    CustomFormats
}

// Build composes the pipeline for one operation in the fixed order
// defaults, coercion, request validation, response validation, additional
// middleware, handler chain.
func Build(factory StageFactory, in Input) *Pipeline {
	p := &Pipeline{Handler: in.Handler}
	add := func(kind StageKind, mw Middleware) {
		p.Stages = append(p.Stages, Stage{Kind: kind, Middleware: mw})
	}

	if in.Operation != nil {
		params := in.Parameters
		if len(params) > 0 {
			if HasDefaults(params) && in.Permissions.Defaults {
				add(StageDefaults, factory.Defaults(DefaultsArgs{Route: in.Route, Parameters: params}))
			}
			if in.Permissions.Coercion {
				add(StageCoercion, factory.Coercion(CoercionArgs{Route: in.Route, Parameters: params}))
			}
			if in.Permissions.RequestValidation {
				add(StageRequestValidation, factory.RequestValidation(RequestValidationArgs{
					Route:            in.Route,
					Parameters:       params,
					Definitions:      in.Definitions,
					ErrorTransformer: in.ErrorTransformer,
					CustomFormats:    in.CustomFormats,
				}))
			}
		}
		// Response validation instruments the response, so it has to wrap
		// the handler rather than follow it.
		if in.Operation.Responses != nil && in.Permissions.ResponseValidation {
			add(StageResponseValidation, factory.ResponseValidation(ResponseValidationArgs{
				Route:            in.Route,
				Responses:        in.Operation.Responses,
				Definitions:      in.Definitions,
				ErrorTransformer: in.ErrorTransformer,
				CustomFormats:    in.CustomFormats,
			}))
		}
	}

	for _, mw := range in.Additional {
		add(StageAdditional, mw)
	}
	for _, mw := range in.Chain {
		add(StageHandlerChain, mw)
	}
	return p
}

// Package openapi provides the public API for assembling request pipelines
// from a Swagger 2.0 document and a directory of route modules.
// This is the stable API for external consumers.
package openapi

import (
	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/openapi"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/router"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
	"github.com/tjfontaine/oapi-pipeline/internal/stages"
)

// Document types
type (
	Document  = apidoc.Document
	PathItem  = apidoc.PathItem
	Operation = apidoc.Operation
	Parameter = apidoc.Parameter
)

// Assembly types
type (
	// API is the result of Initialize.
	API = openapi.API
	// Route describes one registered operation.
	Route = openapi.Route
	// Router receives the assembled pipelines.
	Router = openapi.Router
	// Option is a functional option for Initialize.
	Option = openapi.Option
	// DocumentError reports a document that failed validation.
	DocumentError = openapi.DocumentError
	// ValidationError is the body of a rejected request or response.
	ValidationError = stages.ValidationError
	// Values holds a request's parameters by location.
	Values = stages.Values

	Pipeline         = pipeline.Pipeline
	Middleware       = pipeline.Middleware
	ValidationIssue  = pipeline.ValidationIssue
	ErrorTransformer = pipeline.ErrorTransformer
	CustomFormats    = pipeline.CustomFormats

	Registry = routes.Registry
	Module   = routes.Module
	Method   = routes.Method
)

// Initialize discovers route modules and registers their pipelines.
// Example:
//
//	reg := openapi.NewRegistry()
//	reg.RegisterHandlerFunc("getWidget", getWidget)
//	mux := chi.NewRouter()
//	api, err := openapi.Initialize(ctx, openapi.NewChiRouter(mux, logger), doc, "./routes",
//	    openapi.WithRegistry(reg),
//	)
var Initialize = openapi.Initialize

var (
	// LoadDocument reads a YAML or JSON document from disk.
	LoadDocument = apidoc.Load
	// ParseDocument decodes a YAML or JSON document.
	ParseDocument = apidoc.Parse

	NewRegistry  = routes.NewRegistry
	NewChiRouter = router.NewChi

	// ValidateResponse checks a response body against the operation's
	// declared responses when response validation is enabled for it.
	ValidateResponse = stages.ValidateResponse
	// Param returns a request parameter as the stages left it: coerced to
	// its declared type, with its default applied.
	Param = stages.Param
	// ParamsFromContext returns every extracted request parameter.
	ParamsFromContext = stages.FromContext

	// ErrConfig is wrapped by every configuration error.
	ErrConfig     = openapi.ErrConfig
	IsConfigError = openapi.IsConfigError
)

// Configuration options
var (
	WithDocsPath         = openapi.WithDocsPath
	WithExposeAPIDocs    = openapi.WithExposeAPIDocs
	WithValidateAPIDoc   = openapi.WithValidateAPIDoc
	WithErrorTransformer = openapi.WithErrorTransformer
	WithCustomFormats    = openapi.WithCustomFormats
	WithRegistry         = openapi.WithRegistry
	WithRouteModule      = openapi.WithRouteModule

	// Advanced options
	WithStageFactory = openapi.WithStageFactory
	WithDocValidator = openapi.WithDocValidator
	WithLogger       = openapi.WithLogger
	WithMetrics      = openapi.WithMetrics
)

// Package openapi assembles request pipelines from an API document and a
// directory of route modules, and registers them with a router.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
	"github.com/tjfontaine/oapi-pipeline/internal/stages"
)

const tracerName = "github.com/tjfontaine/oapi-pipeline/internal/openapi"

// Router receives the assembled pipelines. method is upper case and pattern
// uses `:name` path parameters, prefixed with the document's base path.
type Router interface {
	Register(method, pattern string, p *pipeline.Pipeline)
}

// Route describes one registered operation.
type Route struct {
	Method   string
	Path     string
	Template string
	Stages   []pipeline.StageKind
}

// API is the result of a successful Initialize.
type API struct {
	// Doc is the finalized document: the input document with every
	// discovered operation, path parameter list and tag recorded.
	Doc    *apidoc.Document
	Routes []Route
	// DocsPath is the full path of the document endpoint, empty when the
	// endpoint is not exposed.
	DocsPath string
}

// Initialize discovers the route modules under routesDir, builds the
// pipeline of every operation and registers it with app.
//
// doc is never modified; the finalized copy is returned in API.Doc. Any
// error aborts initialization: configuration errors wrap ErrConfig and
// document validation failures are returned as *DocumentError.
func Initialize(ctx context.Context, app Router, doc *apidoc.Document, routesDir string, opts ...Option) (api *API, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "openapi.Initialize",
		trace.WithAttributes(attribute.String("oapi.routes_dir", routesDir)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("oapi.routes", len(api.Routes)))
		}
		span.End()
	}()

	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := checkArgs(app, doc, routesDir); err != nil {
		return nil, err
	}
	s.fillDefaults()
	logger := s.logger

	if s.validateDoc {
		if err := validateDocument(ctx, s.validator, doc, PhaseBeforeAssembly, logger); err != nil {
			return nil, err
		}
	}

	discovered, err := discover(routesDir, s)
	if err != nil {
		return nil, err
	}

	a := &assembler{
		settings: s,
		app:      app,
		original: doc,
		working:  doc.Clone(),
		lookup:   s.registry.Lookup(),
	}
	if a.working.Paths == nil {
		a.working.Paths = make(map[string]*apidoc.PathItem)
	}
	for _, route := range discovered {
		a.addRoute(route)
	}
	pipeline.SortTags(a.working)

	if s.validateDoc {
		if err := validateDocument(ctx, s.validator, a.working, PhaseAfterAssembly, logger); err != nil {
			return nil, err
		}
	}

	api = &API{Doc: a.working, Routes: a.routes}
	if s.exposeDocs {
		path, err := a.exposeDocs()
		if err != nil {
			return nil, err
		}
		api.DocsPath = path
	}

	logger.Info("api initialized",
		slog.Int("routes", len(api.Routes)),
		slog.Int("tags", len(api.Doc.Tags)),
		slog.String("docs_path", api.DocsPath),
	)
	return api, nil
}

func checkArgs(app Router, doc *apidoc.Document, routesDir string) error {
	if app == nil {
		return configError("router is required")
	}
	if doc == nil {
		return configError("api doc is required")
	}
	if routesDir == "" {
		return configError("routes dir is required")
	}
	info, err := os.Stat(routesDir)
	if err != nil || !info.IsDir() {
		return configError("routes %q is not a path to a directory", routesDir)
	}
	return nil
}

func (s *settings) fillDefaults() {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = routes.NewRegistry()
	}
	if s.validator == nil {
		s.validator = docvalidate.New()
	}
	if s.factory == nil {
		var observer stages.Observer
		if s.metrics != nil {
			observer = s.metrics
		}
		s.factory = stages.NewFactory(s.logger, observer)
	}
}

func validateDocument(ctx context.Context, v docvalidate.Validator, doc *apidoc.Document, phase string, logger *slog.Logger) error {
	issues, err := v.Validate(ctx, doc)
	if err != nil {
		return fmt.Errorf("validate api doc (%s): %w", phase, err)
	}
	if len(issues) == 0 {
		return nil
	}
	logger.Error("api doc validation failed",
		slog.String("phase", phase),
		slog.Any("issues", issues),
	)
	return &DocumentError{Phase: phase, Issues: issues}
}

// discover loads the modules on disk and merges in the ones given as
// options.
func discover(routesDir string, s *settings) ([]routes.Route, error) {
	found, err := routes.Discover(routesDir, s.registry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	seen := make(map[string]bool, len(found))
	for _, r := range found {
		seen[r.Template] = true
	}
	for _, r := range s.modules {
		if seen[r.Template] {
			return nil, configError("route %s is declared both on disk and in code", r.Template)
		}
		seen[r.Template] = true
		found = append(found, r)
	}
	routes.Sort(found)
	return found, nil
}

type assembler struct {
	*settings
	app      Router
	original *apidoc.Document
	working  *apidoc.Document
	lookup   pipeline.Lookup
	routes   []Route
}

func (a *assembler) addRoute(route routes.Route) {
	template, mod := route.Template, route.Module

	originalItem := a.original.PathItem(template)
	item := a.working.PathItem(template)
	if item == nil {
		item = &apidoc.PathItem{}
	}
	if mod.Parameters != nil {
		item.Parameters = apidoc.CloneParameters(mod.Parameters)
	} else {
		item.Parameters = []apidoc.Parameter{}
	}
	a.working.SetPathItem(template, item)

	path := pipeline.ToRouterPath(a.working.BasePath, template)

	for _, method := range mod.MethodNames() {
		m := mod.Methods[method]
		op := m.Doc

		additional := pipeline.ResolveAdditional(a.logger, a.lookup,
			a.original, originalItem, mod, op)

		var params []apidoc.Parameter
		if op != nil {
			pipeline.AddTags(a.working, op.Tags...)
			if pipeline.Permits(pipeline.FlagDisableMiddleware, a.working, mod, item, op) {
				item.SetOperation(method, op.Clone())
			}
			params = pipeline.MergeParameters(item.Parameters, op.Parameters)
		}

		p := pipeline.Build(a.factory, pipeline.Input{
			Route:            pipeline.Route{Method: method, Template: template},
			Operation:        op,
			Parameters:       params,
			Definitions:      a.working.Definitions,
			Permissions:      pipeline.Evaluate(a.working, mod, item, op),
			Additional:       additional,
			Chain:            m.Chain,
			Handler:          m.Handler,
			ErrorTransformer: a.errorTransformer,
			CustomFormats:    a.customFormats,
		})

		httpMethod := strings.ToUpper(method)
		a.app.Register(httpMethod, path, p)
		a.metrics.RouteRegistered(method, p.Kinds())
		a.routes = append(a.routes, Route{
			Method:   httpMethod,
			Path:     path,
			Template: template,
			Stages:   p.Kinds(),
		})

		a.logger.Debug("registered operation",
			slog.String("method", httpMethod),
			slog.String("path", path),
			slog.Any("stages", p.Kinds()),
		)
	}
}

// exposeDocs registers the endpoint serving the finalized document.
func (a *assembler) exposeDocs() (string, error) {
	body, err := json.Marshal(a.working)
	if err != nil {
		return "", fmt.Errorf("encode api doc: %w", err)
	}
	path := a.working.BasePath + a.docsPath
	a.app.Register(http.MethodGet, path, &pipeline.Pipeline{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
		}),
	})
	return path, nil
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

package openapi

import (
	"log/slog"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
	"github.com/tjfontaine/oapi-pipeline/internal/metrics"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
)

// DefaultDocsPath is where the finalized document is served, relative to
// the base path.
const DefaultDocsPath = "/api-docs"

type settings struct {
	docsPath         string
	exposeDocs       bool
	validateDoc      bool
	errorTransformer pipeline.ErrorTransformer
	customFormats    pipeline.CustomFormats
	registry         *routes.Registry
	modules          []routes.Route
	factory          pipeline.StageFactory
	validator        docvalidate.Validator
	logger           *slog.Logger
	metrics          *metrics.Recorder
}

func defaultSettings() *settings {
	return &settings{
		docsPath:    DefaultDocsPath,
		exposeDocs:  true,
		validateDoc: true,
	}
}

// Option is a functional option for Initialize.
type Option func(*settings) error

// WithDocsPath overrides where the finalized document is served.
func WithDocsPath(path string) Option {
	return func(s *settings) error {
		if !strings.HasPrefix(path, "/") {
			return configError("docs path %q must start with /", path)
		}
		s.docsPath = path
		return nil
	}
}

// WithExposeAPIDocs toggles the document endpoint (default on).
func WithExposeAPIDocs(enabled bool) Option {
	return func(s *settings) error {
		s.exposeDocs = enabled
		return nil
	}
}

// WithValidateAPIDoc toggles validation of the document before and after
// assembly (default on).
func WithValidateAPIDoc(enabled bool) Option {
	return func(s *settings) error {
		s.validateDoc = enabled
		return nil
	}
}

// WithErrorTransformer rewrites every validation issue reported by the
// request and response validation stages.
func WithErrorTransformer(fn pipeline.ErrorTransformer) Option {
	return func(s *settings) error {
		if fn == nil {
			return configError("error transformer must be a function when given")
		}
		s.errorTransformer = fn
		return nil
	}
}

// WithCustomFormats registers string formats for schema validation.
func WithCustomFormats(formats pipeline.CustomFormats) Option {
	return func(s *settings) error {
		if s.customFormats == nil {
			s.customFormats = make(pipeline.CustomFormats, len(formats))
		}
		for name, check := range formats {
			if check == nil {
				return configError("custom format %q has no checker", name)
			}
			s.customFormats[name] = check
		}
		return nil
	}
}

// WithRegistry supplies the handlers and named middleware that route
// modules refer to.
func WithRegistry(r *routes.Registry) Option {
	return func(s *settings) error {
		if r == nil {
			return configError("registry is nil")
		}
		s.registry = r
		return nil
	}
}

// WithRouteModule adds a route module built in code alongside the ones
// discovered on disk.
func WithRouteModule(template string, m *routes.Module) Option {
	return func(s *settings) error {
		if !strings.HasPrefix(template, "/") {
			return configError("route template %q must start with /", template)
		}
		if m == nil {
			return configError("route module %s is nil", template)
		}
		for method, h := range m.Methods {
			if h == nil || h.Handler == nil {
				return configError("route module %s: %s has no handler", template, method)
			}
		}
		s.modules = append(s.modules, routes.Route{Template: template, Module: m})
		return nil
	}
}

// WithStageFactory replaces the built-in stage implementations.
func WithStageFactory(f pipeline.StageFactory) Option {
	return func(s *settings) error {
		if f == nil {
			return configError("stage factory is nil")
		}
		s.factory = f
		return nil
	}
}

// WithDocValidator replaces the document validator.
func WithDocValidator(v docvalidate.Validator) Option {
	return func(s *settings) error {
		if v == nil {
			return configError("document validator is nil")
		}
		s.validator = v
		return nil
	}
}

// WithLogger sets the logger used during assembly and by the stages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics records assembly and validation metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// Package stages implements the four built-in request stages: parameter
// defaults, type coercion, request validation and response validation.
package stages

import (
	"log/slog"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// Factory builds the built-in stages. It satisfies pipeline.StageFactory.
type Factory struct {
	logger   *slog.Logger
	observer Observer
}

// NewFactory returns a Factory. observer may be nil.
func NewFactory(logger *slog.Logger, observer Observer) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger, observer: observer}
}

var _ pipeline.StageFactory = (*Factory)(nil)

func (f *Factory) Defaults(args pipeline.DefaultsArgs) pipeline.Middleware {
	return Defaults(args)
}

func (f *Factory) Coercion(args pipeline.CoercionArgs) pipeline.Middleware {
	return Coercion(args)
}

func (f *Factory) RequestValidation(args pipeline.RequestValidationArgs) pipeline.Middleware {
	return RequestValidation(f.logger, f.observer, args)
}

func (f *Factory) ResponseValidation(args pipeline.ResponseValidationArgs) pipeline.Middleware {
	return ResponseValidation(f.logger, f.observer, args)
}

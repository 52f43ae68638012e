package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/config"
	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
	"github.com/tjfontaine/oapi-pipeline/internal/metrics"
	"github.com/tjfontaine/oapi-pipeline/internal/openapi"
	"github.com/tjfontaine/oapi-pipeline/internal/reload"
	"github.com/tjfontaine/oapi-pipeline/internal/router"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
	"github.com/tjfontaine/oapi-pipeline/internal/server"
	"github.com/tjfontaine/oapi-pipeline/internal/telemetry"
)

func newServeCmd(registry *routes.Registry, extra []openapi.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Assemble the API and serve it over HTTP",
		Example: strings.TrimSpace(`  oapi-pipeline serve --doc api.yaml --routes ./routes
  oapi-pipeline --config oapi-pipeline.yaml serve --port 9000`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return newUsageError(err.Error())
			}
			watch, err := cmd.Flags().GetBool("watch")
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, registry, extra, watch, newLogger(cmd, cmd.ErrOrStderr()))
		},
	}
	apiFlags(cmd)
	cmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().Bool("watch", false, "Re-assemble the API when the document or route modules change")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, registry *routes.Registry, extra []openapi.Option, watch bool, logger *slog.Logger) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRatio: cfg.Telemetry.SampleRatio,
		}, logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	var recorder *metrics.Recorder
	opts := server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Telemetry.ServiceName,
	}
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		opts.Metrics = recorder.Handler()
	}
	srv := server.New(opts, logger)

	if !watch {
		if _, err := assemble(ctx, cfg, registry, extra, logger, recorder, router.NewChi(srv.Router, logger)); err != nil {
			return err
		}
		return srv.Start(ctx)
	}

	var current reload.Handler
	build := func() error {
		mux := chi.NewRouter()
		if _, err := assemble(ctx, cfg, registry, extra, logger, recorder, router.NewChi(mux, logger)); err != nil {
			return err
		}
		current.Store(mux)
		return nil
	}
	if err := build(); err != nil {
		return err
	}
	srv.Router.Handle("/*", &current)

	watcher := reload.NewWatcher(logger, cfg.API.Doc, cfg.API.Routes)
	if err := watcher.Watch(ctx, func() {
		if err := build(); err != nil {
			logger.Error("failed to reload api, keeping previous routes", slog.String("error", err.Error()))
		}
	}); err != nil {
		return err
	}
	return srv.Start(ctx)
}

// assemble loads the document and registers every route on app.
func assemble(ctx context.Context, cfg *config.Config, registry *routes.Registry, extra []openapi.Option, logger *slog.Logger, recorder *metrics.Recorder, app openapi.Router) (*openapi.API, error) {
	doc, err := apidoc.Load(cfg.API.Doc)
	if err != nil {
		return nil, err
	}

	opts := []openapi.Option{
		openapi.WithRegistry(registry),
		openapi.WithLogger(logger),
		openapi.WithExposeAPIDocs(cfg.API.ExposeDocs),
		openapi.WithValidateAPIDoc(cfg.API.ValidateDoc),
		openapi.WithDocValidator(&docvalidate.OASValidator{Strict: cfg.API.StrictValidation}),
	}
	if cfg.API.DocsPath != "" {
		opts = append(opts, openapi.WithDocsPath(cfg.API.DocsPath))
	}
	if recorder != nil {
		opts = append(opts, openapi.WithMetrics(recorder))
	}
	opts = append(opts, extra...)
	return openapi.Initialize(ctx, app, doc, cfg.API.Routes, opts...)
}

// Package cli implements the oapi-pipeline command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/oapi-pipeline/internal/config"
	"github.com/tjfontaine/oapi-pipeline/internal/openapi"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
)

// Execute runs the oapi-pipeline CLI with the handlers in registry.
func Execute(ctx context.Context, registry *routes.Registry, opts ...openapi.Option) error {
	return NewRootCmd(registry, opts...).ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
// registry binds the handler and middleware names used by route modules; nil
// means an empty registry. opts are applied after the options derived from
// the configuration.
func NewRootCmd(registry *routes.Registry, opts ...openapi.Option) *cobra.Command {
	if registry == nil {
		registry = routes.NewRegistry()
	}

	cmd := &cobra.Command{
		Use:           "oapi-pipeline",
		Short:         "Serve an API assembled from a Swagger 2.0 document and route modules",
		Long:          "oapi-pipeline discovers route modules, builds a validation pipeline for every operation and serves the result.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{
		newServeCmd(registry, opts),
		newValidateCmd(),
		newRoutesCmd(registry, opts),
	} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}
	// Convert Cobra flag errors (like unknown flags) into usage errors that
	// also show the command's help text.
	cmd.SetFlagErrorFunc(flagError)

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

// apiFlags adds the flags that locate the document and route modules.
func apiFlags(cmd *cobra.Command) {
	cmd.Flags().String("doc", "", "Path to the Swagger 2.0 document (overrides api.doc)")
	cmd.Flags().String("routes", "", "Directory of route modules (overrides api.routes)")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for flag, dst := range map[string]*string{
		"doc":    &cfg.API.Doc,
		"routes": &cfg.API.Routes,
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return nil, err
		}
		cfg.Server.Port = port
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

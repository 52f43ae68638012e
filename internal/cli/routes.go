package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/oapi-pipeline/internal/openapi"
	"github.com/tjfontaine/oapi-pipeline/internal/router"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
)

func newRoutesCmd(registry *routes.Registry, extra []openapi.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Assemble the API and list the registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.API.Doc == "" || cfg.API.Routes == "" {
				return newUsageError("both --doc and --routes (or api.doc and api.routes) are required")
			}
			logger := newLogger(cmd, cmd.ErrOrStderr())
			api, err := assemble(cmd.Context(), cfg, registry, extra, logger, nil, router.NewChi(chi.NewRouter(), logger))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHOD\tPATH\tSTAGES")
			for _, r := range api.Routes {
				stages := make([]string, len(r.Stages))
				for i, s := range r.Stages {
					stages[i] = string(s)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Method, r.Path, strings.Join(stages, ","))
			}
			if api.DocsPath != "" {
				fmt.Fprintf(tw, "GET\t%s\t(api docs)\n", api.DocsPath)
			}
			return tw.Flush()
		},
	}
	apiFlags(cmd)
	return cmd
}

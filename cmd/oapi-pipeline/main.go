package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/oapi-pipeline/examples/widgets"
	"github.com/tjfontaine/oapi-pipeline/internal/cli"
	"github.com/tjfontaine/oapi-pipeline/pkg/openapi"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Built-in handlers for the bundled widgets example
	registry := openapi.NewRegistry()
	widgets.Register(registry, widgets.NewStore(), logger)

	err := cli.Execute(ctx, registry, openapi.WithCustomFormats(widgets.Formats))
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, cli.ErrUsage) {
		os.Exit(2)
	}
	os.Exit(1)
}

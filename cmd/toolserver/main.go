// Command toolserver serves the people database as MCP tools over SSE or stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/boat-builder/peoplepod/config"
	"github.com/boat-builder/peoplepod/store"
	"github.com/boat-builder/peoplepod/telemetry"
	"github.com/boat-builder/peoplepod/toolserver"
)

func main() {
	transport, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, transport, logger); err != nil {
		logger.Error("Tool server stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags reads --server_type. -transport is accepted as an alias.
func parseFlags(args []string, output io.Writer) (toolserver.Transport, error) {
	fs := flag.NewFlagSet("toolserver", flag.ContinueOnError)
	fs.SetOutput(output)
	serverType := string(toolserver.TransportSSE)
	fs.StringVar(&serverType, "server_type", serverType, "Transport to serve on: sse or stdio")
	fs.StringVar(&serverType, "transport", serverType, "Alias for -server_type")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	transport, err := toolserver.ParseTransport(serverType)
	if err != nil {
		fmt.Fprintf(output, "Error: %v\n", err)
		fs.PrintDefaults()
		return "", err
	}
	return transport, nil
}

func run(cfg *config.Config, transport toolserver.Transport, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup("peoplepod-toolserver", cfg.Tracing.Enabled, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdown(context.Background())

	st, err := store.Open(ctx, store.Config{
		Backend:     cfg.Server.Backend,
		SQLitePath:  cfg.Server.DatabasePath,
		PostgresDSN: cfg.Server.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	logger.Info("Store opened", "backend", cfg.Server.Backend)

	srv, err := toolserver.New(st, logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, transport, cfg.Server.Addr)
}

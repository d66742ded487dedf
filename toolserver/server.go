// Package toolserver exposes the people store as two MCP tools, add_data
// and read_data, over either an SSE or a stdio binding.
package toolserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/boat-builder/peoplepod/store"
	"github.com/boat-builder/peoplepod/telemetry"
)

const (
	ServerName    = "sqlite-demo"
	ServerVersion = "1.0.0"

	ToolAddData  = "add_data"
	ToolReadData = "read_data"
)

// Transport selects how the server is reached.
type Transport string

const (
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

// ParseTransport accepts exactly "sse" or "stdio".
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportSSE, TransportStdio:
		return Transport(s), nil
	}
	return "", fmt.Errorf("unknown transport %q: must be %q or %q", s, TransportSSE, TransportStdio)
}

// Server owns the MCP server and the store behind its tools.
type Server struct {
	store  store.Store
	mcp    *server.MCPServer
	logger *slog.Logger
	tracer trace.Tracer
}

// New registers add_data and read_data on a fresh MCP server.
func New(st store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  st,
		logger: logger,
		tracer: telemetry.Tracer(),
		mcp: server.NewMCPServer(ServerName, ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	addSchema, err := GenerateSchema[AddDataArgs]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s schema: %w", ToolAddData, err)
	}
	readSchema, err := GenerateSchema[ReadDataArgs]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s schema: %w", ToolReadData, err)
	}

	s.mcp.AddTool(mcp.NewToolWithRawSchema(ToolAddData,
		"Add a new record to the people table. Returns true if the record was added, false otherwise.",
		addSchema,
	), s.addData)
	s.mcp.AddTool(mcp.NewToolWithRawSchema(ToolReadData,
		"Read records from the people table. Without filters every record is returned. "+
			"Each record is a tuple (id, name, age, profession). "+
			"The contains operator matches a substring ignoring ASCII case.",
		readSchema,
	), s.readData)

	return s, nil
}

func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Server) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// MCP returns the underlying MCP server, e.g. for in-process clients.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

func (s *Server) newSSEServer() *server.SSEServer {
	return server.NewSSEServer(s.mcp)
}

// Handler returns the SSE binding (GET /sse, POST /message) instrumented
// with otelhttp.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.newSSEServer(), "toolserver.sse")
}

// Serve runs the selected binding until ctx is done. The stdio binding
// uses the process's standard streams.
func (s *Server) Serve(ctx context.Context, t Transport, addr string) error {
	switch t {
	case TransportSSE:
		return s.ServeSSE(ctx, addr)
	case TransportStdio:
		return s.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	return fmt.Errorf("unknown transport %q", t)
}

// ServeSSE listens on addr and shuts down gracefully when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := s.newSSEServer()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(sse, "toolserver.sse"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("Tool server listening", "transport", TransportSSE, "endpoint", "http://"+addr+"/sse")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down tool server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error closing SSE sessions", "error", err)
	}
	return httpServer.Shutdown(shutdownCtx)
}

// ServeStdio speaks the protocol over in/out until ctx is done or in is
// exhausted.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("Tool server listening", "transport", TransportStdio)

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

package peoplepod

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/boat-builder/peoplepod/telemetry"
)

const (
	clientName    = "peoplepod-agent"
	clientVersion = "1.0.0"
)

// ToolClient is the subset of an MCP client the agent needs.
// *client.Client implements it.
type ToolClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// ConnectSSE opens an SSE session to url (e.g. http://127.0.0.1:8000/sse)
// and completes the MCP handshake.
func ConnectSSE(ctx context.Context, url string) (*client.Client, error) {
	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// ConnectStdio starts command as a subprocess speaking MCP on its standard
// streams and completes the handshake.
func ConnectStdio(ctx context.Context, command string, args ...string) (*client.Client, error) {
	c, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}
	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func initialize(ctx context.Context, c *client.Client) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, req); err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	return nil
}

// RemoteTool forwards calls to one tool of an MCP server.
type RemoteTool struct {
	client ToolClient
	tool   mcp.Tool
	tracer trace.Tracer
}

// DiscoverTools lists the server's tools. Names and input schemas come from
// the server, so nothing about them is hard-coded here.
func DiscoverTools(ctx context.Context, c ToolClient) ([]Tool, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, &RemoteTool{client: c, tool: t, tracer: telemetry.Tracer()})
	}
	return tools, nil
}

func (t *RemoteTool) Name() string {
	return t.tool.Name
}

func (t *RemoteTool) Description() string {
	return t.tool.Description
}

func (t *RemoteTool) OpenAI() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        t.tool.Name,
			Description: openai.String(t.tool.Description),
			Parameters:  t.parameters(),
		},
	}
}

func (t *RemoteTool) parameters() openai.FunctionParameters {
	raw := []byte(t.tool.RawInputSchema)
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(t.tool.InputSchema)
		if err != nil {
			return openai.FunctionParameters{"type": "object"}
		}
	}
	params := openai.FunctionParameters{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return openai.FunctionParameters{"type": "object"}
	}
	return params
}

func (t *RemoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	ctx, span := t.tracer.Start(ctx, "tool.call", trace.WithAttributes(
		attribute.String("tool.name", t.tool.Name),
	))
	defer span.End()

	req := mcp.CallToolRequest{}
	req.Params.Name = t.tool.Name
	req.Params.Arguments = args
	res, err := t.client.CallTool(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return "", fmt.Errorf("call %s: %w", t.tool.Name, err)
	}

	output := resultText(res)
	if res.IsError {
		span.SetStatus(codes.Error, "tool error")
		return "", &ToolError{Tool: t.tool.Name, Message: output}
	}
	return output, nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

package peoplepod

import (
	"context"

	"github.com/openai/openai-go"
)

// Tool is an operation the model may ask the agent to run.
type Tool interface {
	Name() string
	Description() string
	OpenAI() openai.ChatCompletionToolParam
	// Execute returns the tool's textual output. A *ToolError means the tool
	// ran and reported a failure; any other error means it could not be
	// reached.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

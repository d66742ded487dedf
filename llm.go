package peoplepod

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Define a custom type for context keys
type ContextKey string

const sessionIDKey ContextKey = "sessionID"

// LLM is the part of a chat-completions provider the agent relies on.
type LLM interface {
	// New issues a non-streaming chat completion request.
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	// Model is the model name requests are sent with.
	Model() string
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

// OpenAILLM talks to any OpenAI-compatible endpoint, Ollama included.
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM builds a client that never retries on its own; a failed
// request fails the turn.
func NewOpenAILLM(config LLMConfig) *OpenAILLM {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.RequestTimeout))
	}
	return &OpenAILLM{
		client: openai.NewClient(opts...),
		model:  config.Model,
	}
}

func (c *OpenAILLM) Model() string {
	return c.model
}

// New fills in the model when the caller left it empty and tags the request
// with the session id found in ctx.
func (c *OpenAILLM) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if params.Model == "" {
		params.Model = openai.ChatModel(c.model)
	}
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok && sessionID != "" {
		params.User = openai.String(sessionID)
	}
	return c.client.Chat.Completions.New(ctx, params)
}

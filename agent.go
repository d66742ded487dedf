// Package peoplepod runs a tool-calling agent: a chat model that answers the
// user and may call the people database tools on the way.
package peoplepod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

const DefaultMaxToolRounds = 8

// Agent orchestrates calls to the LLM, dispatches the tools it asks for and
// determines when the turn is answered.
type Agent struct {
	prompt        string
	tools         []Tool
	maxToolRounds int
	logger        *slog.Logger
}

// NewAgent creates an Agent whose prompt opens every new conversation as a
// system message.
func NewAgent(prompt string, tools []Tool) *Agent {
	return &Agent{
		prompt:        prompt,
		tools:         tools,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
}

func (a *Agent) SetLogger(logger *slog.Logger) {
	a.logger = logger
}

// SetMaxToolRounds bounds how many model replies in one turn may request
// tools. Values below one are ignored.
func (a *Agent) SetMaxToolRounds(n int) {
	if n > 0 {
		a.maxToolRounds = n
	}
}

func (a *Agent) Tools() []Tool {
	return a.tools
}

func (a *Agent) GetTool(name string) (Tool, error) {
	for _, tool := range a.tools {
		if tool.Name() == name {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("tool %s not found", name)
}

func (a *Agent) toolNames() []string {
	names := make([]string, 0, len(a.tools))
	for _, tool := range a.tools {
		names = append(names, tool.Name())
	}
	return names
}

func (a *Agent) convertToolsToParams() []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(a.tools))
	for _, tool := range a.tools {
		params = append(params, tool.OpenAI())
	}
	return params
}

// Handler is a running turn. Events must be drained, or Wait called, for the
// turn to make progress.
type Handler struct {
	events   chan Event
	done     chan struct{}
	answer   string
	err      error
	usage    Usage
	messages *MessageList
}

func newHandler() *Handler {
	return &Handler{
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// Events streams the turn's events. The channel is closed when the turn ends.
func (h *Handler) Events() <-chan Event {
	return h.events
}

// Wait discards any events not yet received and returns the final answer.
func (h *Handler) Wait() (string, error) {
	for range h.events {
	}
	<-h.done
	return h.answer, h.err
}

// Usage is the token usage of this turn. Valid after Wait returns.
func (h *Handler) Usage() Usage {
	<-h.done
	return h.usage
}

func (h *Handler) emit(ctx context.Context, ev Event) error {
	select {
	case h.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run answers message in the context of history, which is not modified.
// The resulting conversation is only available to sessions, which commit it
// on success.
func (a *Agent) Run(ctx context.Context, llm LLM, history *MessageList, message string) *Handler {
	return a.run(ctx, llm, history, message, nil)
}

type commitFunc func(messages *MessageList, usage Usage, err error)

func (a *Agent) run(ctx context.Context, llm LLM, history *MessageList, message string, commit commitFunc) *Handler {
	h := newHandler()
	messages := history.Clone()
	if messages.Len() == 0 && a.prompt != "" {
		messages.Add(openai.SystemMessage(a.prompt))
	}
	messages.Add(openai.UserMessage(message))
	h.messages = messages

	go func() {
		defer close(h.done)
		defer close(h.events)

		h.answer, h.err = a.loop(ctx, llm, h)
		if h.err != nil {
			a.logger.Error("Turn failed", "message", messages.LastUserMessageString(), "error", h.err)
		}
		if commit != nil {
			commit(h.messages, h.usage, h.err)
		}
	}()
	return h
}

func (a *Agent) loop(ctx context.Context, llm LLM, h *Handler) (string, error) {
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		params := openai.ChatCompletionNewParams{
			Messages: h.messages.All(),
			Model:    openai.ChatModel(llm.Model()),
		}
		if len(a.tools) > 0 {
			params.Tools = a.convertToolsToParams()
		}

		completion, err := llm.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		h.usage.add(completion.Usage)
		if len(completion.Choices) == 0 {
			return "", ErrNoChoices
		}
		reply := completion.Choices[0].Message

		if len(reply.ToolCalls) == 0 {
			h.messages.Add(openai.AssistantMessage(reply.Content))
			if err := h.emit(ctx, FinalAnswer{Content: reply.Content}); err != nil {
				return "", err
			}
			return reply.Content, nil
		}

		if round >= a.maxToolRounds {
			return "", fmt.Errorf("%w (limit %d)", ErrTooManyToolRounds, a.maxToolRounds)
		}
		if reply.Content != "" {
			a.logger.Warn("Model returned content together with tool calls", "content", reply.Content)
		}

		h.messages.Add(assistantToolCallMessage(reply))
		for _, call := range reply.ToolCalls {
			if err := a.dispatch(ctx, h, call); err != nil {
				return "", err
			}
		}
	}
}

// dispatch runs one tool call and appends its tool message. Problems the
// model can fix are reported back to it; only transport failures and
// cancellation end the turn.
func (a *Agent) dispatch(ctx context.Context, h *Handler, call openai.ChatCompletionMessageToolCall) error {
	name := call.Function.Name
	logger := a.logger.With("tool", name, "tool_call_id", call.ID)

	args := map[string]any{}
	var argErr error
	if strings.TrimSpace(call.Function.Arguments) != "" {
		argErr = json.Unmarshal([]byte(call.Function.Arguments), &args)
	}

	if err := h.emit(ctx, ToolCallIssued{ID: call.ID, Name: name, Arguments: args}); err != nil {
		return err
	}

	tool, err := a.GetTool(name)
	if err != nil {
		logger.Error("Error getting tool", "error", err)
		output := fmt.Sprintf("Error: %s. Available tools: %s", err, strings.Join(a.toolNames(), ", "))
		return a.complete(ctx, h, call, output, true)
	}
	if argErr != nil {
		logger.Error("Error unmarshalling tool arguments", "error", argErr, "arguments", call.Function.Arguments)
		return a.complete(ctx, h, call, MessageWhenToolErrorWithRetry("arguments are not a valid JSON object"), true)
	}

	logger.Info("Calling tool", "arguments", call.Function.Arguments)
	output, err := tool.Execute(ctx, args)
	var toolErr *ToolError
	switch {
	case err == nil:
		return a.complete(ctx, h, call, output, false)
	case errors.As(err, &toolErr):
		logger.Warn("Tool reported an error", "error", err)
		return a.complete(ctx, h, call, toolErr.Message, true)
	default:
		logger.Error("Error executing tool", "error", err)
		return err
	}
}

func (a *Agent) complete(ctx context.Context, h *Handler, call openai.ChatCompletionMessageToolCall, output string, isError bool) error {
	h.messages.Add(openai.ToolMessage(output, call.ID))
	return h.emit(ctx, ToolCallCompleted{
		ID:      call.ID,
		Name:    call.Function.Name,
		Output:  output,
		IsError: isError,
	})
}

func MessageWhenToolErrorWithRetry(errorString string) string {
	return fmt.Sprintf("Error: %s.\nFix the arguments and retry", errorString)
}

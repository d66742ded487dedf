package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boat-builder/peoplepod"
)

type countingLLM struct {
	calls int
	err   error
}

func (l *countingLLM) Model() string { return "test-model" }

func (l *countingLLM) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "hi"},
		}},
	}, nil
}

func newTestSession(t *testing.T, llm peoplepod.LLM) *peoplepod.Session {
	t.Helper()
	sess, err := peoplepod.NewSession(llm, peoplepod.NewAgent("prompt", nil))
	require.NoError(t, err)
	return sess
}

func TestRunLoopExitWithoutCalls(t *testing.T) {
	for _, input := range []string{"exit\n", "  EXIT  \nhello\n", "Exit"} {
		llm := &countingLLM{}
		var out bytes.Buffer
		runLoop(context.Background(), strings.NewReader(input), &out, newTestSession(t, llm), true)

		assert.Zero(t, llm.calls, "input %q", input)
		assert.Equal(t, "Enter your message: ", out.String())
	}
}

func TestRunLoopAnswers(t *testing.T) {
	llm := &countingLLM{}
	var out bytes.Buffer
	runLoop(context.Background(), strings.NewReader("hello\n\nexit\n"), &out, newTestSession(t, llm), true)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t,
		"Enter your message: User: hello\nAgent: hi\nEnter your message: Enter your message: ",
		out.String())
}

func TestRunLoopContinuesAfterErrors(t *testing.T) {
	llm := &countingLLM{err: errors.New("connection refused")}
	var out bytes.Buffer
	runLoop(context.Background(), strings.NewReader("one\ntwo\n"), &out, newTestSession(t, llm), false)

	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, 2, strings.Count(out.String(), "Error: chat completion failed: connection refused"))
	assert.True(t, strings.HasSuffix(out.String(), "Enter your message: \n"), "end of input ends the loop")
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A pipe nobody writes to blocks like an idle terminal.
	stdin, stdinWriter := io.Pipe()
	defer stdinWriter.Close()

	llm := &countingLLM{}
	var out bytes.Buffer
	runLoop(ctx, stdin, &out, newTestSession(t, llm), true)

	assert.Zero(t, llm.calls)
	assert.Equal(t, "Enter your message: \n", out.String())
}

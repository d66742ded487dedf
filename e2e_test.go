package peoplepod

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boat-builder/peoplepod/prompts"
	"github.com/boat-builder/peoplepod/store"
	"github.com/boat-builder/peoplepod/toolserver"
)

// startToolServer runs the real tool server on a fresh SQLite file and
// returns an initialized in-process client for it.
func startToolServer(t *testing.T) (*client.Client, store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := toolserver.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	c, err := client.NewInProcessClient(srv.MCP())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { c.Close() })
	require.NoError(t, initialize(ctx, c))
	return c, st
}

func TestDiscoverTools(t *testing.T) {
	c, _ := startToolServer(t)

	tools, err := DiscoverTools(context.Background(), c)
	require.NoError(t, err)

	byName := map[string]Tool{}
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	require.Contains(t, byName, toolserver.ToolAddData)
	require.Contains(t, byName, toolserver.ToolReadData)

	param := byName[toolserver.ToolAddData].OpenAI()
	assert.Equal(t, toolserver.ToolAddData, param.Function.Name)
	assert.Equal(t, "object", param.Function.Parameters["type"])
	props, ok := param.Function.Parameters["properties"].(map[string]any)
	require.True(t, ok, "parameters: %v", param.Function.Parameters)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "age")
	assert.Contains(t, props, "profession")
}

func TestRemoteToolErrors(t *testing.T) {
	c, st := startToolServer(t)
	tools, err := DiscoverTools(context.Background(), c)
	require.NoError(t, err)

	var add Tool
	for _, tool := range tools {
		if tool.Name() == toolserver.ToolAddData {
			add = tool
		}
	}
	require.NotNil(t, add)

	_, err = add.Execute(context.Background(), map[string]any{"name": "Alice"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Message, "invalid arguments")

	require.NoError(t, st.Close())
	_, err = add.Execute(context.Background(), map[string]any{"name": "Alice", "age": 30, "profession": "Engineer"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "false", toolErr.Message)
}

func TestAddPersonConversation(t *testing.T) {
	c, st := startToolServer(t)
	ctx := context.Background()

	tools, err := DiscoverTools(ctx, c)
	require.NoError(t, err)
	summaries := make([]prompts.ToolSummary, 0, len(tools))
	for _, tool := range tools {
		summaries = append(summaries, prompts.ToolSummary{Name: tool.Name(), Description: tool.Description()})
	}
	prompt, err := prompts.SystemPrompt(prompts.SystemPromptData{Tools: summaries})
	require.NoError(t, err)

	llm := newScriptedLLM(
		toolReply(toolCall("call_1", "add_data", `{"name":"Alice","age":30,"profession":"Engineer"}`)),
		func(params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			last := params.Messages[len(params.Messages)-1]
			if last.OfTool == nil || last.OfTool.Content.OfString.Value != "true" {
				return textReply("Alice could not be added.")(params)
			}
			return textReply("Alice, 30, Engineer has been added to the database.")(params)
		},
		toolReply(toolCall("call_2", "read_data", `{"filters":[{"field":"name","op":"eq","value":"Alice"}]}`)),
		func(params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			last := params.Messages[len(params.Messages)-1]
			var rows [][]any
			if err := json.Unmarshal([]byte(last.OfTool.Content.OfString.Value), &rows); err != nil || len(rows) != 1 {
				return textReply("Nobody found.")(params)
			}
			return textReply("Alice is an Engineer.")(params)
		},
	)

	pod := NewPod(llm, NewAgent(prompt, tools))
	sess, err := pod.NewSession()
	require.NoError(t, err)

	var out bytes.Buffer
	answer, err := HandleUserMessage(ctx, sess, "Add a person named Alice, age 30, profession Engineer", &out, true)
	require.NoError(t, err)
	assert.Equal(t, "Alice, 30, Engineer has been added to the database.", answer)
	assert.Equal(t,
		"Calling tool add_data with kwargs {\"age\":30,\"name\":\"Alice\",\"profession\":\"Engineer\"}\n"+
			"Tool add_data returned true\n",
		out.String())

	people, err := st.Query(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, store.Person{ID: 1, Name: "Alice", Age: 30, Profession: "Engineer"}, people[0])

	out.Reset()
	answer, err = HandleUserMessage(ctx, sess, "What does Alice do?", &out, true)
	require.NoError(t, err)
	assert.Equal(t, "Alice is an Engineer.", answer)
	assert.True(t, strings.HasSuffix(out.String(), "Tool read_data returned [[1,\"Alice\",30,\"Engineer\"]]\n"), out.String())

	// The system prompt lists the discovered tools and the second turn
	// carries the first one.
	system := llm.requests[0].Messages[0].OfSystem
	require.NotNil(t, system)
	assert.Contains(t, system.Content.OfString.Value, "- add_data:")
	assert.Len(t, llm.requests[2].Messages, 6)
}

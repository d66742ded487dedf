package prompts

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	prompt, err := SystemPrompt(SystemPromptData{
		Tools: []ToolSummary{
			{Name: "add_data", Description: "Add a new record to the people table."},
			{Name: "read_data", Description: "Read records from the people table."},
		},
		Extra: "Answer in one sentence.",
	})
	if err != nil {
		t.Fatalf("Failed to render prompt: %v", err)
	}

	for _, want := range []string{
		"- add_data: Add a new record to the people table.",
		"- read_data: Read records from the people table.",
		"Do NOT write SQL",
		"Answer in one sentence.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
}

func TestSystemPromptWithoutTools(t *testing.T) {
	prompt, err := SystemPrompt(SystemPromptData{})
	if err != nil {
		t.Fatalf("Failed to render prompt: %v", err)
	}
	if strings.Contains(prompt, "Available tools") {
		t.Fatalf("expected no tool list, got:\n%s", prompt)
	}
}

package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// generateFromTemplate is a generic function that generates a prompt from any template and data.
func generateFromTemplate[T any](templateString string, data T) (string, error) {
	funcMap := template.FuncMap{
		"formatTools": formatTools,
	}

	tmpl, err := template.New("prompt").Funcs(funcMap).Parse(templateString)
	if err != nil {
		return "", err
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", err
	}
	return prompt.String(), nil
}

// ToolSummary is what the prompt says about one discovered tool.
type ToolSummary struct {
	Name        string
	Description string
}

// SystemPromptData contains data for the system prompt template.
type SystemPromptData struct {
	// Extra is appended verbatim, e.g. operator instructions from config.
	Extra string
	Tools []ToolSummary
}

// SystemPromptTemplate is the template for the database assistant.
const SystemPromptTemplate = `You are an AI assistant for Tool Calling.

You have access to tools for working with our database of people.
{{ formatTools .Tools }}
- To add a new person, call ` + "`add_data`" + ` with these arguments:
    - name (string)
    - age (integer)
    - profession (string)

- To read data, call ` + "`read_data`" + `. Without arguments it returns every person.
  To narrow the result pass "filters", a list of {"field", "op", "value"} objects,
  where field is one of id, name, age, profession and op is one of
  eq, ne, lt, le, gt, ge, contains. Results are tuples (id, name, age, profession).

Important:
- Do NOT write SQL. Always use structured arguments.
- Report to the user what the tools returned. A result of false means the record was not added.
{{ with .Extra }}
{{ . }}
{{ end }}`

// SystemPrompt creates the system prompt by applying the provided data.
func SystemPrompt(data SystemPromptData) (string, error) {
	return generateFromTemplate(SystemPromptTemplate, data)
}

// formatTools lists the tools one per line.
func formatTools(tools []ToolSummary) string {
	if len(tools) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("\nAvailable tools:\n")
	for _, tool := range tools {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
	}
	return builder.String()
}

package peoplepod

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// HandleUserMessage runs one turn on sess and returns the final answer. In
// verbose mode every tool call and its result is written to w as it happens.
func HandleUserMessage(ctx context.Context, sess *Session, message string, w io.Writer, verbose bool) (string, error) {
	h, err := sess.Run(ctx, message)
	if err != nil {
		return "", err
	}
	for ev := range h.Events() {
		if !verbose {
			continue
		}
		switch e := ev.(type) {
		case ToolCallIssued:
			fmt.Fprintf(w, "Calling tool %s with kwargs %s\n", e.Name, formatArguments(e.Arguments))
		case ToolCallCompleted:
			fmt.Fprintf(w, "Tool %s returned %s\n", e.Name, e.Output)
		}
	}
	return h.Wait()
}

func formatArguments(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

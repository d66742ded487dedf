package peoplepod

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed     = errors.New("session has been closed")
	ErrTurnInProgress    = errors.New("a turn is already in progress")
	ErrTooManyToolRounds = errors.New("too many tool rounds without a final answer")
	ErrNoChoices         = errors.New("model returned no choices")
)

// ToolError is a failure reported by the tool itself, e.g. rejected
// arguments or a storage error on the server. It is relayed to the model
// instead of ending the turn.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

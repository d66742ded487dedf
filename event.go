package peoplepod

// Event is one step of a turn, delivered in the order it happened.
// It is one of ToolCallIssued, ToolCallCompleted or FinalAnswer.
type Event interface {
	isEvent()
}

// ToolCallIssued is sent right before a tool is invoked.
type ToolCallIssued struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolCallCompleted carries the output of the call with the same ID.
// IsError is set when the tool reported a failure or could not be resolved.
type ToolCallCompleted struct {
	ID      string
	Name    string
	Output  string
	IsError bool
}

// FinalAnswer is the model's reply once it stops calling tools.
type FinalAnswer struct {
	Content string
}

func (ToolCallIssued) isEvent()    {}
func (ToolCallCompleted) isEvent() {}
func (FinalAnswer) isEvent()       {}

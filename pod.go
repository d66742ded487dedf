package peoplepod

import (
	"log/slog"
)

// Pod ties the shared resources of the agent runtime together and opens
// sessions on them.
type Pod struct {
	llm    LLM
	agent  *Agent
	logger *slog.Logger
}

// NewPod constructs a new Pod with the given resources.
func NewPod(llm LLM, ag *Agent) *Pod {
	return &Pod{
		llm:    llm,
		agent:  ag,
		logger: slog.Default(),
	}
}

func (p *Pod) SetLogger(logger *slog.Logger) {
	p.logger = logger
	p.agent.SetLogger(logger)
}

// NewSession creates a new conversation session.
func (p *Pod) NewSession() (*Session, error) {
	sess, err := NewSession(p.llm, p.agent)
	if err != nil {
		return nil, err
	}
	sess.SetLogger(p.logger)
	p.logger.Info("Session started", "session_id", sess.ID(), "model", p.llm.Model())
	return sess, nil
}

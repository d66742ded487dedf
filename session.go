package peoplepod

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Session holds one conversation: its history and the tokens it has used.
// Turns are run one at a time: Run fails with ErrTurnInProgress until the
// previous turn has committed or rolled back.
type Session struct {
	id    string
	llm   LLM
	agent *Agent

	mu      sync.Mutex
	history *MessageList
	usage   Usage
	closed  bool
	running bool

	logger *slog.Logger
}

// NewSession constructs a session with references to the shared LLM and agent, but isolated state.
func NewSession(llm LLM, ag *Agent) (*Session, error) {
	sessionID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	return &Session{
		id:      sessionID,
		llm:     llm,
		agent:   ag,
		history: NewMessageList(),
		logger:  slog.Default().With("session_id", sessionID),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("session_id", s.id)
}

// Run starts a turn for userMessage. The history is updated only if the
// turn succeeds; a failed turn leaves it as it was before.
func (s *Session) Run(ctx context.Context, userMessage string) (*Handler, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	s.running = true
	history := s.history.Clone()
	s.mu.Unlock()

	s.logger.Info("Turn started", "history", history.Len())
	ctx = context.WithValue(ctx, sessionIDKey, s.id)
	return s.agent.run(ctx, s.llm, history, userMessage, s.commit), nil
}

// Send runs a turn and waits for its answer.
func (s *Session) Send(ctx context.Context, userMessage string) (string, error) {
	h, err := s.Run(ctx, userMessage)
	if err != nil {
		return "", err
	}
	return h.Wait()
}

func (s *Session) commit(messages *MessageList, usage Usage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.usage.InputTokens += usage.InputTokens
	s.usage.OutputTokens += usage.OutputTokens
	if err != nil {
		s.logger.Warn("Turn rolled back", "error", err)
		return
	}
	s.history = messages
}

// History returns a copy of the committed conversation.
func (s *Session) History() *MessageList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Close ends the session; later turns fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

package peoplepod

import "github.com/openai/openai-go"

type TokenRates struct {
	Input  float64
	Output float64
}

// Pricing constants for GPT-4o and GPT-4o-mini (in dollars per million tokens)
const (
	GPT4oInputRate      = 2.5
	GPT4oOutputRate     = 10.0
	GPT4oMiniInputRate  = 0.15
	GPT4oMiniOutputRate = 0.60
)

// ModelPricings is a map of model names to their pricing information.
// Local models are listed at zero so their sessions still report a cost.
var ModelPricings = map[string]TokenRates{
	"gpt-4o": {
		Input:  GPT4oInputRate,
		Output: GPT4oOutputRate,
	},
	"gpt-4o-mini": {
		Input:  GPT4oMiniInputRate,
		Output: GPT4oMiniOutputRate,
	},
	"llama3.2:3b": {},
	"llama3.1:8b": {},
}

// Usage counts the tokens spent by a session or a single turn.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u *Usage) add(cu openai.CompletionUsage) {
	u.InputTokens += cu.PromptTokens
	u.OutputTokens += cu.CompletionTokens
}

// CostDetails represents detailed cost information for a session
type CostDetails struct {
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
}

// Cost prices the session's accumulated usage. The second result is false
// when the session's model has no known pricing.
func (s *Session) Cost() (*CostDetails, bool) {
	pricing, exists := ModelPricings[s.llm.Model()]
	if !exists {
		return nil, false
	}

	usage := s.Usage()
	inputCost := float64(usage.InputTokens) * pricing.Input / 1000000
	outputCost := float64(usage.OutputTokens) * pricing.Output / 1000000

	return &CostDetails{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalCost:    inputCost + outputCost,
	}, true
}

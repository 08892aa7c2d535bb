package domain

import "context"

// ChatMessage is one prior exchange passed back by the widget for context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Embedder turns texts into vectors. Implementations must return one vector
// per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// AnswerRequest is everything the synthesis model sees: the system prompt,
// retrieved context blocks, recent history and the visitor's question.
type AnswerRequest struct {
	System      string
	Query       string
	Context     []string
	History     []ChatMessage
	Temperature float64
	MaxTokens   int
}

type AnswerResult struct {
	Text  string
	Model string
}

// Answerer produces the final answer text. It is called once per turn; the
// orchestrator degrades to a fallback answer on failure instead of retrying.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error)
	Model() string
}

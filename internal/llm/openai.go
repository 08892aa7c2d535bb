package llm

import (
	"context"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// openaiEmbeddingDims maps the embedding models we support to their vector
// width. Unknown models fall back to the 3-small width.
var openaiEmbeddingDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

const defaultOpenAIEmbeddingDims = 1536

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	dims, ok := openaiEmbeddingDims[model]
	if !ok {
		dims = defaultOpenAIEmbeddingDims
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, domain.UpstreamError("openai embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.UpstreamError("openai returned an unexpected number of embeddings", nil)
	}

	// Order by input index so a reordered response cannot mismatch
	// chunks and vectors.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}

	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

type OpenAIAnswerer struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnswerer(apiKey, model string) *OpenAIAnswerer {
	return &OpenAIAnswerer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *OpenAIAnswerer) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, msg := range req.History {
		role := openai.ChatMessageRoleUser
		if msg.Role == domain.ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildUserPrompt(req),
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return domain.AnswerResult{}, domain.UpstreamError("openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnswerResult{}, domain.UpstreamError("openai returned no choices", nil)
	}

	return domain.AnswerResult{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
	}, nil
}

func (a *OpenAIAnswerer) Model() string {
	return a.model
}

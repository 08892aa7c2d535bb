package llm

import (
	"context"

	"google.golang.org/genai"

	"github.com/helpdeck/helpdeck/internal/domain"
)

var geminiEmbeddingDims = map[string]int{
	"text-embedding-004":   768,
	"gemini-embedding-001": 768,
}

const defaultGeminiEmbeddingDims = 768

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.UpstreamError("failed to create gemini client", err)
	}

	return client, nil
}

type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	dims, ok := geminiEmbeddingDims[model]
	if !ok {
		dims = defaultGeminiEmbeddingDims
	}

	return &GeminiEmbedder{
		client: client,
		model:  model,
		dims:   dims,
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dims)),
	})
	if err != nil {
		return nil, domain.UpstreamError("gemini embedding request failed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.UpstreamError("gemini returned an unexpected number of embeddings", nil)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, embedding := range resp.Embeddings {
		vectors[i] = embedding.Values
	}

	return vectors, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}

func (e *GeminiEmbedder) Model() string {
	return e.model
}

type GeminiAnswerer struct {
	client *genai.Client
	model  string
}

func NewGeminiAnswerer(ctx context.Context, apiKey, model string) (*GeminiAnswerer, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	return &GeminiAnswerer{
		client: client,
		model:  model,
	}, nil
}

func (a *GeminiAnswerer) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == domain.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(buildUserPrompt(req), genai.RoleUser))

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
	})
	if err != nil {
		return domain.AnswerResult{}, domain.UpstreamError("gemini generation failed", err)
	}

	text := resp.Text()
	if text == "" {
		return domain.AnswerResult{}, domain.UpstreamError("gemini returned an empty response", nil)
	}

	return domain.AnswerResult{
		Text:  text,
		Model: a.model,
	}, nil
}

func (a *GeminiAnswerer) Model() string {
	return a.model
}

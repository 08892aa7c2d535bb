package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/helpdeck/helpdeck/internal/domain"
)

const defaultAnthropicMaxTokens = 1024

type AnthropicAnswerer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicAnswerer(apiKey, model string) *AnthropicAnswerer {
	return &AnthropicAnswerer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *AnthropicAnswerer) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := anthropic.MessageParamRoleUser
		if msg.Role == domain.ChatRoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}
	messages = append(messages, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(buildUserPrompt(req))},
	})

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return domain.AnswerResult{}, domain.UpstreamError("anthropic message request failed", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return domain.AnswerResult{}, domain.UpstreamError("anthropic returned an empty response", nil)
	}

	return domain.AnswerResult{
		Text:  text.String(),
		Model: string(message.Model),
	}, nil
}

func (a *AnthropicAnswerer) Model() string {
	return a.model
}

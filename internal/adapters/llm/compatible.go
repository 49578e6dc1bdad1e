package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/insighter/internal/domain"
)

// CompatibleClient talks to any OpenAI-compatible chat completions endpoint
// (DeepSeek, Qwen, a RAGFlow chat assistant).
type CompatibleClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewCompatibleClient(apiKey, baseURL, model string, maxTokens int) *CompatibleClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &CompatibleClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokensOr(maxTokens),
	}
}

// ChatWithTools implements domain.ChatModel.
func (c *CompatibleClient) ChatWithTools(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    compatibleMessages(req.SystemPrompt, req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = compatibleTools(req.Tools)
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: empty choices")
	}

	msg := resp.Choices[0].Message
	out := &domain.ChatResponse{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArgs(tc.Function.Arguments),
		})
	}
	return out, nil
}

func compatibleMessages(system string, msgs []*domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: messageText(m)})
		case domain.RoleAssistant:
			am := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: messageText(m)}
			for _, tc := range m.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: argsJSON(tc.Arguments),
					},
				})
			}
			out = append(out, am)
		case domain.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    messageText(m),
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func compatibleTools(specs []domain.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}
	return out
}

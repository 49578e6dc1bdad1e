package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/PabloGalante/insighter/internal/domain"
)

// OpenAIClient uses the OpenAI Responses API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIClient(apiKey, baseURL, model string, maxTokens int) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client:    &client,
		model:     model,
		maxTokens: maxTokensOr(maxTokens),
	}
}

// ChatWithTools implements domain.ChatModel.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responseInput(req.SystemPrompt, req.Messages),
		},
		MaxOutputTokens: openai.Int(int64(c.maxTokens)),
		Temperature:     openai.Float(float64(req.Temperature)),
	}
	if len(req.Tools) > 0 {
		params.Tools = responseTools(req.Tools)
	}

	res, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses: %w", err)
	}

	out := &domain.ChatResponse{Text: res.OutputText()}
	for _, item := range res.Output {
		if item.Type != "function_call" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        item.CallID,
			Name:      item.Name,
			Arguments: parseArgs(item.Arguments),
		})
	}
	return out, nil
}

func responseInput(system string, msgs []*domain.Message) responses.ResponseInputParam {
	out := make(responses.ResponseInputParam, 0, len(msgs)+1)
	if system != "" {
		out = append(out, responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem))
	}
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, responses.ResponseInputItemParamOfMessage(messageText(m), responses.EasyInputMessageRoleUser))
		case domain.RoleAssistant:
			if text := messageText(m); text != "" {
				out = append(out, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				out = append(out, responses.ResponseInputItemParamOfFunctionCall(argsJSON(tc.Arguments), tc.ID, tc.Name))
			}
		case domain.RoleTool:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, messageText(m)))
		}
	}
	return out
}

func responseTools(specs []domain.ToolSpec) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, len(specs))
	for i, s := range specs {
		// strict mode would require every property to be listed as required
		out[i] = responses.ToolParamOfFunction(s.Name, s.JSONSchema(), false)
		if s.Description != "" {
			fn := out[i].OfFunction
			fn.Description = openai.String(s.Description)
			out[i].OfFunction = fn
		}
	}
	return out
}

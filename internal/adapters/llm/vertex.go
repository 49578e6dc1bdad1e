package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/insighter/internal/domain"
)

const defaultVertexModel = "gemini-2.5-flash"

type VertexClient struct {
	client    *genai.Client
	modelName string
	maxTokens int
}

// NewVertexClient creates a ChatModel backed by Gemini on Vertex AI.
func NewVertexClient(ctx context.Context, projectID, location, model string, maxTokens int) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex: project and location must be set")
	}
	if model == "" {
		model = defaultVertexModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: model,
		maxTokens: maxTokensOr(maxTokens),
	}, nil
}

// ChatWithTools implements domain.ChatModel using Gemini function calling.
func (v *VertexClient) ChatWithTools(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(v.maxTokens),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: vertexDeclarations(req.Tools)}}
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, vertexContents(req.Messages), cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	out := &domain.ChatResponse{Text: res.Text()}
	for i, fc := range res.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", fc.Name, i)
		}
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: id, Name: fc.Name, Arguments: args})
	}
	return out, nil
}

func vertexContents(msgs []*domain.Message) []*genai.Content {
	names := toolNames(msgs)
	var contents []*genai.Content
	for _, m := range msgs {
		text := messageText(m)
		switch m.Role {
		case domain.RoleUser:
			if text != "" {
				contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
			}
		case domain.RoleAssistant:
			var parts []*genai.Part
			if text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Arguments))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case domain.RoleTool:
			name := names[m.ToolCallID]
			part := genai.NewPartFromFunctionResponse(name, map[string]any{"output": text})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}
	return contents
}

func vertexDeclarations(specs []domain.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.JSONSchema(),
		})
	}
	return out
}

package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// KnowledgeClient asks a retrieval-augmented chat assistant exposed through an
// OpenAI-compatible endpoint, such as a RAGFlow chat.
type KnowledgeClient struct {
	client *openai.Client
	model  string
}

func NewKnowledgeClient(baseURL, apiKey, model string) *KnowledgeClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if model == "" {
		model = "model"
	}
	return &KnowledgeClient{client: openai.NewClientWithConfig(cfg), model: model}
}

// Ask implements tools.Retriever.
func (k *KnowledgeClient) Ask(ctx context.Context, question string) (string, error) {
	resp, err := k.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    k.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: question}},
	})
	if err != nil {
		return "", fmt.Errorf("knowledge base: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("knowledge base: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

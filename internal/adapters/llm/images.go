package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Loader resolves a file URL to its bytes.
type Loader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageClient generates images and describes uploaded ones through an
// OpenAI-compatible API.
type ImageClient struct {
	client      *openai.Client
	model       string
	size        string
	visionModel string
	loader      Loader
}

func NewImageClient(apiKey, baseURL, model, size, visionModel string, loader Loader) *ImageClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	return &ImageClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		size:        size,
		visionModel: visionModel,
		loader:      loader,
	}
}

// GenerateImage returns the PNG bytes of a single rendered image.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		Size:           c.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("create image: empty response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}

// DescribeImage sends the image inline as a data URL so that files held by
// local storage are visible to a remote vision model.
func (c *ImageClient) DescribeImage(ctx context.Context, imageURL, question string) (string, error) {
	if c.visionModel == "" {
		return "", errors.New("no vision model configured")
	}
	data, err := c.loader.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: question},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

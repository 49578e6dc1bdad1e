package tools

import (
	"context"
	"fmt"

	"github.com/PabloGalante/insighter/internal/domain"
)

// ImageDescriber answers questions about an image with a vision model.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, imageURL, question string) (string, error)
}

// ImageGenerator renders an image from a prompt and returns the encoded bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImageFileTool lets the file analyzer look at uploaded images.
type ImageFileTool struct {
	describer ImageDescriber
}

func (t *ImageFileTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "parse_image_file",
		Description: "Describe an uploaded image: charts, tables, diagrams and any visible text.",
		Params: []domain.ToolParam{
			urlParam(),
			{Name: "question", Type: domain.ParamString, Description: "What to look for in the image."},
		},
	}
}

func (t *ImageFileTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	question := getString(args, "question")
	if question == "" {
		question = "Describe this image in detail, including any charts, tables and text."
	}
	out, err := t.describer.DescribeImage(ctx, getString(args, "url"), question)
	if err != nil {
		return "", failed("image analysis", err)
	}
	return out, nil
}

// GenerateImageTool draws an illustration and stores it.
type GenerateImageTool struct {
	generator ImageGenerator
	storage   domain.FileStorage
}

func NewGenerateImageTool(generator ImageGenerator, storage domain.FileStorage) *GenerateImageTool {
	return &GenerateImageTool{generator: generator, storage: storage}
}

func (t *GenerateImageTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "generate_image",
		Description: "Generate an image (dashboard sketch, chart illustration) from a description. Returns its URL.",
		Params: []domain.ToolParam{
			{Name: "prompt", Type: domain.ParamString, Description: "Detailed description of the image.", Required: true},
		},
	}
}

func (t *GenerateImageTool) Call(ctx context.Context, tctx ToolContext, args map[string]any) (string, error) {
	data, err := t.generator.GenerateImage(ctx, getString(args, "prompt"))
	if err != nil {
		return "", failed("image generation", err)
	}

	ref, err := storeBytes(ctx, t.storage, data, "generated.png")
	if err != nil {
		return "", failed("image upload", err)
	}
	return fmt.Sprintf("image generated: %s", ref.URL), nil
}

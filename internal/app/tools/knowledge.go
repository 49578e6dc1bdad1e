package tools

import (
	"context"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
)

// Retriever answers a question from a document knowledge base.
type Retriever interface {
	Ask(ctx context.Context, question string) (string, error)
}

// KnowledgeTool queries the knowledge base.
type KnowledgeTool struct {
	retriever Retriever
}

func NewKnowledgeTool(r Retriever) *KnowledgeTool {
	return &KnowledgeTool{retriever: r}
}

func (t *KnowledgeTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "query_knowledge_base",
		Description: "Search the document knowledge base and return an answer with its sources.",
		Params: []domain.ToolParam{
			{Name: "question", Type: domain.ParamString, Description: "A self-contained question.", Required: true},
		},
	}
}

func (t *KnowledgeTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	answer, err := t.retriever.Ask(ctx, getString(args, "question"))
	if err != nil {
		return "", failed("knowledge query", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "the knowledge base has no answer for this question", nil
	}
	return answer, nil
}

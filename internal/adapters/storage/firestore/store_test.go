package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/insighter/internal/domain"
)

func TestMessageDocKeepsItemsAndToolCalls(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &domain.Message{
		SessionID: "s1",
		Role:      domain.RoleAssistant,
		Author:    domain.AgentFileAnalyzer,
		Content: domain.Content{Items: []domain.ContentItem{
			{Type: domain.ContentText, Text: "see attached"},
			{Type: domain.ContentFile, File: &domain.FileRef{URL: "http://x/a.pdf", Filename: "a.pdf", SizeBytes: 10}},
		}},
		ToolCalls: []domain.ToolCall{{ID: "c1", Name: "parse_pdf_document", Arguments: map[string]any{"url": "http://x/a.pdf"}}},
		CreatedAt: now,
	}

	got := toMessageDoc(msg).toDomain("m1")

	assert.Equal(t, domain.MessageID("m1"), got.ID)
	assert.Equal(t, domain.AgentFileAnalyzer, got.Author)
	assert.Equal(t, msg.Content, got.Content)
	assert.Equal(t, msg.ToolCalls, got.ToolCalls)
	assert.Equal(t, now, got.CreatedAt)
}

func TestPlainMessageStaysPlain(t *testing.T) {
	msg := &domain.Message{Role: domain.RoleUser, Content: domain.TextContent("hi")}
	got := toMessageDoc(msg).toDomain("m1")
	assert.True(t, got.Content.IsPlain())
	assert.Equal(t, "hi", got.Text())
}

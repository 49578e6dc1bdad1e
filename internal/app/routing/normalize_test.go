package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/domain"
)

func fileMessage() *domain.Message {
	return &domain.Message{
		ID:   "m1",
		Role: domain.RoleUser,
		Content: domain.Content{Items: []domain.ContentItem{
			{Type: domain.ContentText, Text: "analyze this"},
			{Type: domain.ContentFile, File: &domain.FileRef{
				URL:       "http://host/files/abc.csv",
				MimeType:  "text/csv",
				Filename:  "q3.csv",
				SizeBytes: 2048,
			}},
			{Type: domain.ContentImage, File: &domain.FileRef{URL: "http://host/files/p.png"}},
		}},
	}
}

func TestNormalizeRendersFileAndImage(t *testing.T) {
	out := routing.Normalize([]*domain.Message{fileMessage()})
	require.Len(t, out, 1)

	items := out[0].Content.Items
	require.Len(t, items, 3)
	assert.Equal(t, domain.ContentText, items[1].Type)
	assert.Equal(t, "[file: q3.csv, type: text/csv, size: 2048 bytes, url: http://host/files/abc.csv]", items[1].Text)
	assert.Equal(t, "[image: uploaded image, url: http://host/files/p.png]", items[2].Text)
}

func TestNormalizeUnknownMetadata(t *testing.T) {
	msg := &domain.Message{Role: domain.RoleUser, Content: domain.Content{Items: []domain.ContentItem{
		{Type: domain.ContentFile, File: &domain.FileRef{URL: "http://host/files/x"}},
	}}}

	out := routing.Normalize([]*domain.Message{msg})
	assert.Equal(t, "[file: unknown, type: unknown, size: 0 bytes, url: http://host/files/x]", out[0].Content.Items[0].Text)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := fileMessage()
	routing.Normalize([]*domain.Message{in})

	assert.Equal(t, domain.ContentFile, in.Content.Items[1].Type)
	assert.NotNil(t, in.Content.Items[1].File)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	msgs := []*domain.Message{
		{Role: domain.RoleUser, Content: domain.TextContent("plain")},
		fileMessage(),
		{Role: domain.RoleUser, Content: domain.Content{Items: []domain.ContentItem{
			{Type: domain.ContentFile}, // malformed
			{Type: "audio", Text: "??"},
		}}},
	}

	once := routing.Normalize(msgs)
	twice := routing.Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalizePassesThroughPlainAndMalformed(t *testing.T) {
	plain := &domain.Message{Role: domain.RoleUser, Content: domain.TextContent("hello")}
	malformed := &domain.Message{Role: domain.RoleUser, Content: domain.Content{Items: []domain.ContentItem{
		{Type: domain.ContentImage},
	}}}

	out := routing.Normalize([]*domain.Message{plain, malformed})
	assert.Same(t, plain, out[0])
	assert.Equal(t, domain.ContentImage, out[1].Content.Items[0].Type)
}

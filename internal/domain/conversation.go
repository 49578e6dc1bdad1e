package domain

import (
	"strings"
)

// ContentType tags an item of multi-modal message content.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentFile  ContentType = "file"
	ContentImage ContentType = "image"
)

// FileRef points at a blob held by the file storage.
type FileRef struct {
	URL       string `json:"url"`
	MimeType  string `json:"mime_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// ContentItem is one element of a multi-modal message.
// File is nil for text items; a file or image item without File is malformed.
type ContentItem struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
	File *FileRef    `json:"file,omitempty"`
}

// Content is either plain text (Items == nil) or a list of items.
type Content struct {
	Text  string        `json:"text,omitempty"`
	Items []ContentItem `json:"items,omitempty"`
}

func TextContent(text string) Content {
	return Content{Text: text}
}

// IsPlain reports whether the content is a plain string.
func (c Content) IsPlain() bool {
	return c.Items == nil
}

// String flattens the content into text. Non-text items are skipped.
func (c Content) String() string {
	if c.IsPlain() {
		return c.Text
	}
	var parts []string
	for _, it := range c.Items {
		if it.Type == ContentText && it.Text != "" {
			parts = append(parts, it.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCall is a tool invocation carried by an assistant message.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message represents any message in a timeline.
// Author is set at construction for assistant messages and never changed.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Author    AgentID
	Content   Content
	CreatedAt Timestamp

	ToolCalls  []ToolCall
	ToolCallID string
}

// Text is a shortcut for Content.String().
func (m *Message) Text() string {
	return m.Content.String()
}

// Session represents a conversation between a user and the agents.
type Session struct {
	ID        SessionID
	UserID    UserID
	CreatedAt Timestamp
	UpdatedAt Timestamp

	Title string
}

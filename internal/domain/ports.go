package domain

import (
	"context"
	"io"
)

// ChatModel is any chat-completion endpoint with function calling.
type ChatModel interface {
	ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one model call.
type ChatRequest struct {
	SystemPrompt string
	Messages     []*Message
	Tools        []ToolSpec
	Temperature  float32
}

// ChatResponse is the assistant turn returned by a ChatModel.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Invocation returns the first tool call, if the model made one.
func (r *ChatResponse) Invocation() (ToolCall, bool) {
	if r == nil || len(r.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return r.ToolCalls[0], true
}

// ParamType is a JSON schema primitive.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// ToolParam describes one argument of a tool.
type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec is the model-facing description of a tool.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as an object schema.
func (t ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.Params))
	required := []string{}
	for _, p := range t.Params {
		typ := p.Type
		if typ == "" {
			typ = ParamString
		}
		prop := map[string]any{
			"type":        string(typ),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// RequiredNames returns the names of the required parameters.
func (t ToolSpec) RequiredNames() []string {
	var out []string
	for _, p := range t.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// SessionStore defines session's persistence
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessionsByUser(ctx context.Context, userID UserID, limit int) ([]*Session, error)
}

// MessageStore defines message's persistence
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID, limit int) ([]*Message, error)
}

// StateStore keeps the latest orchestrator checkpoint per session.
type StateStore interface {
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	LoadCheckpoint(ctx context.Context, sessionID SessionID) (*Checkpoint, error)
}

// RunStore persists run records.
type RunStore interface {
	AppendRun(ctx context.Context, run *RunRecord) error
	ListRunsByUser(ctx context.Context, userID UserID, limit int) ([]*RunRecord, error)
}

// FileStorage holds uploaded and generated files.
type FileStorage interface {
	// Upload stores r under a fresh name derived from filename.
	Upload(ctx context.Context, r io.Reader, filename string) (*FileRef, error)
	// Open returns the stored object by its storage name.
	Open(ctx context.Context, name string) (io.ReadCloser, *FileRef, error)
	// Download fetches the bytes behind a URL returned by Upload.
	Download(ctx context.Context, url string) ([]byte, error)
}

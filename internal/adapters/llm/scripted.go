package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/insighter/internal/domain"
)

// ErrScriptExhausted is returned once every scripted reply has been consumed.
var ErrScriptExhausted = errors.New("scripted llm: no replies left")

// Reply is one scripted model turn.
type Reply struct {
	Response *domain.ChatResponse
	Err      error
}

func TextReply(text string) Reply {
	return Reply{Response: &domain.ChatResponse{Text: text}}
}

func ToolCallReply(name string, args map[string]any) Reply {
	return Reply{Response: &domain.ChatResponse{ToolCalls: []domain.ToolCall{{
		ID:        fmt.Sprintf("call_%s", name),
		Name:      name,
		Arguments: args,
	}}}}
}

func ErrorReply(err error) Reply {
	return Reply{Err: err}
}

// ScriptedLLM replays canned replies in order and records every request.
type ScriptedLLM struct {
	mu      sync.Mutex
	replies []Reply
	calls   []domain.ChatRequest
}

func NewScriptedLLM(replies ...Reply) *ScriptedLLM {
	return &ScriptedLLM{replies: replies}
}

func (s *ScriptedLLM) ChatWithTools(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if len(s.replies) == 0 {
		return nil, ErrScriptExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Response, r.Err
}

// Calls returns the recorded requests.
func (s *ScriptedLLM) Calls() []domain.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatRequest(nil), s.calls...)
}

// Remaining is the number of unconsumed replies.
func (s *ScriptedLLM) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

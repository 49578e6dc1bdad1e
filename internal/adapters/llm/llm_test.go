package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/config"
	"github.com/PabloGalante/insighter/internal/domain"
)

func routingTools(names ...string) []domain.ToolSpec {
	out := make([]domain.ToolSpec, 0, len(names))
	for _, n := range names {
		out = append(out, domain.ToolSpec{Name: n})
	}
	return out
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, map[string]any{"a": "b"}, parseArgs(`{"a":"b"}`))
	assert.Empty(t, parseArgs(""))
	assert.Empty(t, parseArgs("{not json"))
}

func TestArgsJSON(t *testing.T) {
	assert.Equal(t, "{}", argsJSON(nil))
	assert.JSONEq(t, `{"reason":"x"}`, argsJSON(map[string]any{"reason": "x"}))
}

func TestMessageTextRendersAttachments(t *testing.T) {
	m := &domain.Message{Role: domain.RoleUser, Content: domain.Content{Items: []domain.ContentItem{
		{Type: domain.ContentText, Text: "look at this"},
		{Type: domain.ContentFile, File: &domain.FileRef{URL: "http://x/a.pdf", Filename: "a.pdf"}},
	}}}
	assert.Equal(t, "look at this\n[file: a.pdf http://x/a.pdf]", messageText(m))
}

func TestToolNames(t *testing.T) {
	msgs := []*domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "run_query"}}},
		{Role: domain.RoleTool, ToolCallID: "c1"},
	}
	assert.Equal(t, map[string]string{"c1": "run_query"}, toolNames(msgs))
}

func TestMockLLMRoutesByKeyword(t *testing.T) {
	m := NewMockLLM()
	resp, err := m.ChatWithTools(context.Background(), domain.ChatRequest{
		Messages: []*domain.Message{{Role: domain.RoleUser, Content: domain.TextContent("Show me the sales table")}},
		Tools:    routingTools("route_to_data_explorer", "finish_task"),
	})
	require.NoError(t, err)
	call, ok := resp.Invocation()
	require.True(t, ok)
	assert.Equal(t, "route_to_data_explorer", call.Name)
	assert.NotEmpty(t, call.Arguments["reason"])
}

func TestMockLLMFinishesAfterAgentReply(t *testing.T) {
	m := NewMockLLM()
	resp, err := m.ChatWithTools(context.Background(), domain.ChatRequest{
		Messages: []*domain.Message{
			{Role: domain.RoleUser, Content: domain.TextContent("Show me the sales table")},
			{Role: domain.RoleAssistant, Author: domain.AgentDataExplorer, Content: domain.TextContent("Here it is")},
		},
		Tools: routingTools("route_to_data_explorer", "finish_task"),
	})
	require.NoError(t, err)
	call, ok := resp.Invocation()
	require.True(t, ok)
	assert.Equal(t, "finish_task", call.Name)
	assert.Equal(t, "Here it is", call.Arguments["summary"])
}

func TestMockLLMSkipsUnavailableIntents(t *testing.T) {
	m := NewMockLLM()
	resp, err := m.ChatWithTools(context.Background(), domain.ChatRequest{
		Messages: []*domain.Message{{Role: domain.RoleUser, Content: domain.TextContent("query the database")}},
		Tools:    routingTools("finish_task"),
	})
	require.NoError(t, err)
	call, _ := resp.Invocation()
	assert.Equal(t, "finish_task", call.Name)
}

func TestMockLLMAnswersAsAgent(t *testing.T) {
	m := NewMockLLM()
	resp, err := m.ChatWithTools(context.Background(), domain.ChatRequest{
		Messages: []*domain.Message{{Role: domain.RoleUser, Content: domain.TextContent("build a page")}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolCalls)
	assert.Contains(t, resp.Text, "build a page")
}

func TestMockLLMHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockLLM().ChatWithTools(ctx, domain.ChatRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestScriptedLLM(t *testing.T) {
	s := NewScriptedLLM(TextReply("hi"), ErrorReply(errors.New("boom")))
	resp, err := s.ChatWithTools(context.Background(), domain.ChatRequest{SystemPrompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)

	_, err = s.ChatWithTools(context.Background(), domain.ChatRequest{})
	assert.EqualError(t, err, "boom")

	_, err = s.ChatWithTools(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Len(t, s.Calls(), 3)
	assert.Equal(t, 0, s.Remaining())
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()
	cases := map[string]any{
		"mock":       &MockLLM{},
		"compatible": &CompatibleClient{},
		"openai":     &OpenAIClient{},
		"anthropic":  &AnthropicClient{},
	}
	for provider, want := range cases {
		t.Run(provider, func(t *testing.T) {
			cfg := &config.Config{LLM: config.LLMConfig{Provider: provider, APIKey: "k", Model: "m"}}
			got, err := New(ctx, cfg)
			require.NoError(t, err)
			assert.IsType(t, want, got)
		})
	}

	_, err := New(ctx, &config.Config{LLM: config.LLMConfig{Provider: "nope"}})
	assert.Error(t, err)
}

func TestCompatibleToolsCarrySchema(t *testing.T) {
	tools := compatibleTools([]domain.ToolSpec{{
		Name:   "finish_task",
		Params: []domain.ToolParam{{Name: "reason", Required: true}},
	}})
	require.Len(t, tools, 1)
	schema, ok := tools[0].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"reason"}, schema["required"])
}

func TestCompatibleMessagesKeepToolRoundTrip(t *testing.T) {
	msgs := compatibleMessages("sys", []*domain.Message{
		{Role: domain.RoleUser, Content: domain.TextContent("q")},
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "list_tables"}}},
		{Role: domain.RoleTool, ToolCallID: "c1", Content: domain.TextContent("orders")},
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "c1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "{}", msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}

package routing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/adapters/llm"
	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/domain"
)

func newEngine(t *testing.T, model domain.ChatModel) *routing.Engine {
	t.Helper()
	eng, err := routing.NewEngine(model, routing.DefaultCatalog(), routing.DefaultPolicy(), routing.DefaultTemperature)
	require.NoError(t, err)
	return eng
}

func userState(text string) *domain.ConversationState {
	return domain.NewConversationState("s1", "u1", []*domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: domain.TextContent(text)},
	})
}

func TestDecideRoutesAndPlansFollowUp(t *testing.T) {
	model := llm.NewScriptedLLM(llm.ToolCallReply("route_to_data_explorer", map[string]any{
		"reason":          "needs the sales table",
		"expected_output": "rows",
	}))
	eng := newEngine(t, model)
	st := userState("show me the sales table and then build a report")

	d := eng.Decide(context.Background(), st)

	assert.Equal(t, domain.AgentDataExplorer, d.Outcome.Agent)
	assert.Equal(t, "needs the sales table", d.Outcome.Reason)
	assert.Equal(t, []string{"generate visualization report"}, d.PendingTasks)
	assert.Equal(t, []string{"generate visualization report"}, d.Planned)
	require.NotNil(t, d.Invocation)
	assert.NoError(t, d.Fault)

	assert.Empty(t, st.PendingTasks, "Decide must not modify the state")

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.3, calls[0].Temperature, 0.0001)
	assert.Len(t, calls[0].Tools, len(routing.DefaultIntents()))
	assert.Contains(t, calls[0].SystemPrompt, "pending tasks: none")
	assert.Contains(t, calls[0].SystemPrompt, "route_to_reporter")
}

func TestDecideDoesNotDuplicatePlannedTask(t *testing.T) {
	args := map[string]any{"reason": "query"}
	model := llm.NewScriptedLLM(
		llm.ToolCallReply("route_to_data_explorer", args),
		llm.ToolCallReply("route_to_data_explorer", args),
	)
	eng := newEngine(t, model)
	st := userState("build a report from orders")

	first := eng.Decide(context.Background(), st)
	st.PendingTasks = first.PendingTasks

	second := eng.Decide(context.Background(), st)
	assert.Equal(t, []string{"generate visualization report"}, second.PendingTasks)
	assert.Empty(t, second.Planned)
}

func TestDecideNoToolCallFinishes(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.TextReply("I think we're done")))

	d := eng.Decide(context.Background(), userState("hi"))

	assert.Equal(t, domain.AgentFinish, d.Outcome.Agent)
	assert.Equal(t, routing.RationaleNoDecision, d.Outcome.Reason)
	assert.Equal(t, "I think we're done", d.ModelText)
	assert.Nil(t, d.Invocation)
	assert.NoError(t, d.Fault)
}

func TestDecideUnknownIntentFinishes(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.ToolCallReply("route_to_sql_wizard", map[string]any{"reason": "x"})))

	d := eng.Decide(context.Background(), userState("hi"))

	assert.Equal(t, domain.AgentFinish, d.Outcome.Agent)
	assert.True(t, strings.HasPrefix(d.Outcome.Reason, "unknown routing intent"))
	assert.True(t, errors.Is(d.Fault, routing.ErrUnknownIntent))
	require.NotNil(t, d.Invocation)
}

func TestDecideModelErrorFinishes(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.ErrorReply(errors.New("connection reset"))))

	d := eng.Decide(context.Background(), userState("hi"))

	assert.Equal(t, domain.AgentFinish, d.Outcome.Agent)
	assert.Equal(t, routing.RationaleModelError, d.Outcome.Reason)
	assert.Error(t, d.Fault)
}

func TestDecideSendsNormalizedHistory(t *testing.T) {
	model := llm.NewScriptedLLM(llm.ToolCallReply("finish_task", map[string]any{"reason": "done"}))
	eng := newEngine(t, model)

	st := domain.NewConversationState("s1", "u1", []*domain.Message{
		{Role: domain.RoleUser, Content: domain.Content{Items: []domain.ContentItem{
			{Type: domain.ContentFile, File: &domain.FileRef{URL: "http://h/f.pdf", Filename: "f.pdf", MimeType: "application/pdf", SizeBytes: 10}},
		}}},
		{Role: domain.RoleAssistant, Author: domain.AgentOrchestrator, Content: domain.TextContent("route"),
			ToolCalls: []domain.ToolCall{{ID: "c1", Name: "route_to_file_analyzer"}}},
		{Role: domain.RoleTool, ToolCallID: "c1", Content: domain.TextContent("ROUTE:file_analyzer|x")},
		{Role: domain.RoleAssistant, Author: domain.AgentFileAnalyzer, Content: domain.TextContent("it is a contract")},
	})

	eng.Decide(context.Background(), st)

	sent := model.Calls()[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, "[file: f.pdf, type: application/pdf, size: 10 bytes, url: http://h/f.pdf]", sent[0].Text())
	assert.Empty(t, sent[1].ToolCalls)
	assert.Equal(t, "[file_analyzer] it is a contract", sent[2].Text())
	assert.Contains(t, model.Calls()[0].SystemPrompt, "last completed agent: file_analyzer")

	// the shared messages are untouched
	assert.Len(t, st.Messages[1].ToolCalls, 1)
	assert.Equal(t, domain.ContentFile, st.Messages[0].Content.Items[0].Type)
}

func TestNewEngineRequiresModel(t *testing.T) {
	_, err := routing.NewEngine(nil, nil, nil, 0.3)
	assert.Error(t, err)
}

func TestDecideAcceptsTextRoute(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.TextReply("ROUTE:data_explorer|needs numbers|monthly totals")))

	d := eng.Decide(context.Background(), userState("monthly sales as a report"))

	assert.Equal(t, domain.AgentDataExplorer, d.Outcome.Agent)
	assert.Equal(t, "monthly totals", d.Outcome.Extra("expected_output"))
	assert.Nil(t, d.Invocation)
	assert.NoError(t, d.Fault)
	assert.Equal(t, []string{"generate visualization report"}, d.PendingTasks)
}

func TestDecideUnparsableTextRouteFinishes(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.TextReply("ROUTE:sql_wizard|run it")))

	d := eng.Decide(context.Background(), userState("hi"))

	assert.Equal(t, domain.AgentFinish, d.Outcome.Agent)
	assert.True(t, strings.HasPrefix(d.Outcome.Reason, routing.RationaleUnparsable))
	assert.ErrorIs(t, d.Fault, routing.ErrMalformedRoute)
}

func TestDecideWrongPrefixFinishes(t *testing.T) {
	eng := newEngine(t, llm.NewScriptedLLM(llm.TextReply("NEXT:reporter|make a chart")))

	d := eng.Decide(context.Background(), userState("hi"))

	assert.Equal(t, domain.AgentFinish, d.Outcome.Agent)
	assert.Equal(t, routing.RationaleNoDecision, d.Outcome.Reason)
	assert.Empty(t, d.PendingTasks)
}

func TestEngineKeepsGivenPolicy(t *testing.T) {
	policy, err := routing.ParsePolicy([]byte("tasks:\n  audit: reporter\n"))
	require.NoError(t, err)

	eng, err := routing.NewEngine(llm.NewScriptedLLM(), nil, policy, routing.DefaultTemperature)
	require.NoError(t, err)
	assert.Same(t, policy, eng.Policy())

	eng, err = routing.NewEngine(llm.NewScriptedLLM(), nil, nil, routing.DefaultTemperature)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentReporter, eng.Policy().AgentForTask("generate visualization report"))
}

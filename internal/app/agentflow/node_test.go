package agentflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/adapters/llm"
	"github.com/PabloGalante/insighter/internal/app/agentflow"
	"github.com/PabloGalante/insighter/internal/app/tools"
	"github.com/PabloGalante/insighter/internal/domain"
)

type echoTool struct{}

func (echoTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{Name: "echo", Params: []domain.ToolParam{{Name: "text", Required: true}}}
}

func (echoTool) Call(_ context.Context, _ tools.ToolContext, args map[string]any) (string, error) {
	return "echo: " + args["text"].(string), nil
}

func reporterNode(t *testing.T, model domain.ChatModel) *agentflow.Node {
	t.Helper()
	agents, err := agentflow.BuildAgents(model, 0.7, 3, agentflow.AgentSetup{
		ID:    domain.AgentReporter,
		Tools: tools.NewToolset(echoTool{}),
	})
	require.NoError(t, err)
	return agents[0].(*agentflow.Node)
}

func stateWithInstruction() *domain.ConversationState {
	st := domain.NewConversationState("s1", "u1", []*domain.Message{
		{Role: domain.RoleUser, Content: domain.TextContent("build a report on sales")},
		{Role: domain.RoleAssistant, Author: domain.AgentOrchestrator, Content: domain.TextContent("summarize the sales figures")},
	})
	st.CurrentTask = "generate visualization report"
	return st
}

func TestNodeInjectsInstructionAndTagsReply(t *testing.T) {
	model := llm.NewScriptedLLM(
		llm.ToolCallReply("echo", map[string]any{"text": "draft"}),
		llm.TextReply("Report ready: http://files/r.md"),
	)
	node := reporterNode(t, model)
	st := stateWithInstruction()
	before := len(st.Messages)

	res := node.Run(context.Background(), st)

	require.NoError(t, res.Err)
	assert.False(t, res.Fallback)
	require.Len(t, st.Messages, before+1, "only the final reply is appended")

	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, domain.AgentReporter, last.Author)
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Equal(t, "Report ready: http://files/r.md", last.Text())

	calls := model.Calls()
	require.Len(t, calls, 2)
	first := calls[0]
	instr := first.Messages[len(first.Messages)-1]
	assert.Equal(t, domain.RoleUser, instr.Role)
	assert.Contains(t, instr.Text(), "Orchestrator instruction: summarize the sales figures")
	assert.Contains(t, instr.Text(), "Current task: generate visualization report")
	assert.InDelta(t, 0.7, first.Temperature, 0.0001)
	assert.Len(t, first.Tools, 1)

	// second call sees the tool round trip
	second := calls[1].Messages
	assert.Equal(t, domain.RoleTool, second[len(second)-1].Role)
	assert.Equal(t, "echo: draft", second[len(second)-1].Text())
}

func TestNodeWithoutOrchestratorMessageSkipsInstruction(t *testing.T) {
	model := llm.NewScriptedLLM(llm.TextReply("ok"))
	node := reporterNode(t, model)
	st := domain.NewConversationState("s1", "u1", []*domain.Message{
		{Role: domain.RoleUser, Content: domain.TextContent("hello")},
	})

	node.Run(context.Background(), st)

	sent := model.Calls()[0].Messages
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Text())
}

func TestNodeFallbackOnExecutorError(t *testing.T) {
	node := reporterNode(t, llm.NewScriptedLLM(llm.ErrorReply(errors.New("dial tcp: timeout"))))
	st := stateWithInstruction()

	res := node.Run(context.Background(), st)

	assert.Error(t, res.Err)
	assert.True(t, res.Fallback)
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, domain.AgentReporter, last.Author)
	assert.NotContains(t, last.Text(), "dial tcp")
	assert.True(t, strings.HasPrefix(last.Text(), "The reporter could not complete this task"))
}

func TestNodeFallbackOnStepBudget(t *testing.T) {
	call := llm.ToolCallReply("echo", map[string]any{"text": "x"})
	node := reporterNode(t, llm.NewScriptedLLM(call, call, call))
	st := stateWithInstruction()

	res := node.Run(context.Background(), st)

	assert.ErrorIs(t, res.Err, agentflow.ErrMaxSteps)
	assert.True(t, res.Fallback)
}

func TestNodeFallbackOnEmptyReply(t *testing.T) {
	node := reporterNode(t, llm.NewScriptedLLM(llm.TextReply("   ")))
	st := stateWithInstruction()

	res := node.Run(context.Background(), st)

	assert.NoError(t, res.Err)
	assert.True(t, res.Fallback)
	assert.Equal(t, domain.AgentReporter, st.Messages[len(st.Messages)-1].Author)
}

// rawExecutor returns only raw text, without messages.
type rawExecutor struct{ out string }

func (r rawExecutor) Execute(context.Context, agentflow.ExecRequest) (agentflow.ExecResult, error) {
	return agentflow.ExecResult{Output: r.out}, nil
}

func TestNodeWrapsRawOutput(t *testing.T) {
	p, ok := agentflow.ProfileFor(domain.AgentKnowledge)
	require.True(t, ok)
	node := agentflow.NewNode(p, rawExecutor{out: "42 documents mention refunds"})
	st := stateWithInstruction()

	res := node.Run(context.Background(), st)

	require.NotNil(t, res.Message)
	assert.False(t, res.Fallback)
	assert.Equal(t, domain.AgentKnowledge, res.Message.Author)
	assert.Equal(t, "42 documents mention refunds", res.Message.Text())
}

func TestBuildAgentsUnknownProfile(t *testing.T) {
	_, err := agentflow.BuildAgents(llm.NewScriptedLLM(), 0.7, 3, agentflow.AgentSetup{ID: domain.AgentFinish})
	assert.Error(t, err)
}

func TestToolLoopUnknownToolKeepsGoing(t *testing.T) {
	model := llm.NewScriptedLLM(
		llm.ToolCallReply("drop_database", map[string]any{}),
		llm.TextReply("I cannot do that"),
	)
	loop := agentflow.NewToolLoop(model, tools.NewToolset(echoTool{}), "sys", 0.7, 4)

	res, err := loop.Execute(context.Background(), agentflow.ExecRequest{
		Agent:    domain.AgentDataExplorer,
		Messages: []*domain.Message{{Role: domain.RoleUser, Content: domain.TextContent("drop it")}},
	})
	require.NoError(t, err)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, "unknown tool: drop_database", res.Messages[1].Text())
	assert.Equal(t, "call_drop_database", res.Messages[1].ToolCallID)
	assert.Equal(t, "I cannot do that", res.Output)
	for _, m := range res.Messages {
		assert.Equal(t, domain.AgentDataExplorer, m.Author)
	}
}

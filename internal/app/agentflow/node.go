package agentflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/app/tools"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

// Agent is a dispatch target of the Orchestrator.
type Agent interface {
	ID() domain.AgentID
	Run(ctx context.Context, st *domain.ConversationState) NodeResult
}

// NodeResult describes what a node appended to the state.
type NodeResult struct {
	Agent    domain.AgentID
	Message  *domain.Message
	Fallback bool
	Err      error
	Elapsed  time.Duration
}

// Node wraps an executor with the shared agent template: inject the
// Orchestrator's instruction, execute, tag and append the final reply.
type Node struct {
	profile Profile
	exec    Executor
	now     func() time.Time
}

func NewNode(profile Profile, exec Executor) *Node {
	return &Node{
		profile: profile,
		exec:    exec,
		now:     time.Now,
	}
}

func (n *Node) ID() domain.AgentID {
	return n.profile.ID
}

// Run appends exactly one message authored by this agent, even when the executor fails.
func (n *Node) Run(ctx context.Context, st *domain.ConversationState) NodeResult {
	log := observability.LoggerFromContext(ctx).With(
		"agent", n.profile.ID,
		"session_id", st.SessionID,
	)
	start := n.now()
	log.Info("agent run start", "task", st.CurrentTask)

	local := routing.ModelHistory(st.Messages)
	if instr := n.instruction(st); instr != nil {
		local = append(local, instr)
	}

	res, err := n.exec.Execute(ctx, ExecRequest{
		Agent:    n.profile.ID,
		Messages: local,
		ToolCtx: tools.ToolContext{
			UserID:    string(st.UserID),
			SessionID: string(st.SessionID),
			RequestID: observability.RequestID(ctx),
		},
	})

	out := NodeResult{Agent: n.profile.ID, Err: err}
	switch final := finalReply(res.Messages); {
	case err == nil && final != nil:
		out.Message = n.tag(final)
	case err == nil && strings.TrimSpace(res.Output) != "":
		out.Message = n.textMessage(st.SessionID, res.Output)
	default:
		if err != nil {
			log.Error("agent failed", "error", err)
		} else {
			log.Warn("agent produced no reply")
		}
		out.Message = n.textMessage(st.SessionID, n.profile.fallbackText())
		out.Fallback = true
	}

	st.Append(out.Message)
	out.Elapsed = n.now().Sub(start)

	status := "done"
	if out.Fallback {
		status = "fallback"
	}
	observability.RecordAgentRun(string(n.profile.ID), status, out.Elapsed)
	log.Info("agent run end", "status", status, "elapsed_ms", out.Elapsed.Milliseconds())
	return out
}

// instruction embeds the latest Orchestrator rationale in the agent's task framing.
func (n *Node) instruction(st *domain.ConversationState) *domain.Message {
	orch := st.LastFrom(domain.AgentOrchestrator)
	if orch == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(n.profile.Framing)
	fmt.Fprintf(&b, "\n\nOrchestrator instruction: %s", orch.Text())
	if st.CurrentTask != "" && st.CurrentTask != orch.Text() {
		fmt.Fprintf(&b, "\nCurrent task: %s", st.CurrentTask)
	}

	return &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: st.SessionID,
		Role:      domain.RoleUser,
		Content:   domain.TextContent(b.String()),
		CreatedAt: n.now(),
	}
}

func (n *Node) tag(m *domain.Message) *domain.Message {
	if m.Author == n.profile.ID {
		return m
	}
	cp := *m
	cp.Author = n.profile.ID
	return &cp
}

func (n *Node) textMessage(sessionID domain.SessionID, text string) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Author:    n.profile.ID,
		Content:   domain.TextContent(text),
		CreatedAt: n.now(),
	}
}

// finalReply is the last text-only assistant message.
func finalReply(msgs []*domain.Message) *domain.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != domain.RoleAssistant || len(m.ToolCalls) > 0 {
			continue
		}
		if strings.TrimSpace(m.Text()) == "" {
			return nil
		}
		return m
	}
	return nil
}

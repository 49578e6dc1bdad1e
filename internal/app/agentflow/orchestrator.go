package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

const DefaultMaxTurns = 10

// ErrTerminal is returned by Turn once the state machine has finished.
var ErrTerminal = errors.New("orchestrator: conversation already finished")

// Decider picks the next route when no pending task is queued.
type Decider interface {
	Decide(ctx context.Context, st *domain.ConversationState) routing.Decision
}

// Orchestrator owns the per-turn routing state machine.
type Orchestrator struct {
	decider  Decider
	policy   *routing.Policy
	agents   map[domain.AgentID]Agent
	maxTurns int
	now      func() time.Time
}

// NewOrchestrator wires the decider and the specialized agents.
// maxTurns <= 0 selects DefaultMaxTurns.
func NewOrchestrator(decider Decider, policy *routing.Policy, agents []Agent, maxTurns int) (*Orchestrator, error) {
	if decider == nil {
		return nil, errors.New("orchestrator: decider is required")
	}
	if policy == nil {
		policy = routing.DefaultPolicy()
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	byID := make(map[domain.AgentID]Agent, len(agents))
	for _, a := range agents {
		if !a.ID().IsSpecialized() {
			return nil, fmt.Errorf("orchestrator: %q is not a specialized agent", a.ID())
		}
		if _, dup := byID[a.ID()]; dup {
			return nil, fmt.Errorf("orchestrator: agent %q registered twice", a.ID())
		}
		byID[a.ID()] = a
	}

	return &Orchestrator{
		decider:  decider,
		policy:   policy,
		agents:   byID,
		maxTurns: maxTurns,
		now:      time.Now,
	}, nil
}

// AgentIDs lists the registered agents in catalog order.
func (o *Orchestrator) AgentIDs() []domain.AgentID {
	var ids []domain.AgentID
	for _, id := range domain.SpecializedAgents {
		if _, ok := o.agents[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// RunReport summarizes one Run.
type RunReport struct {
	Steps       []domain.RunStep
	NewMessages []*domain.Message
	Summary     string
	Leftover    []string
}

// Replies returns the messages written by specialized agents during the run.
func (r *RunReport) Replies() []*domain.Message {
	var out []*domain.Message
	for _, m := range r.NewMessages {
		if m.Role == domain.RoleAssistant && m.Author.IsSpecialized() {
			out = append(out, m)
		}
	}
	return out
}

// Run executes turns until the state reaches Terminal or the turn limit forces it there.
func (o *Orchestrator) Run(ctx context.Context, st *domain.ConversationState) (*RunReport, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", st.SessionID)
	log.Info("orchestrator started", "agents_count", len(o.agents), "pending_tasks", len(st.PendingTasks))

	startLen := len(st.Messages)
	report := &RunReport{}

	for !st.Terminal() {
		if err := ctx.Err(); err != nil {
			report.NewMessages = st.Messages[startLen:]
			return report, err
		}

		var step domain.RunStep
		if st.Turns >= o.maxTurns {
			step = o.forceFinish(st, fmt.Sprintf("turn limit of %d reached", o.maxTurns))
			log.Warn("turn limit reached", "max_turns", o.maxTurns, "pending_tasks", st.PendingTasks)
		} else {
			var err error
			step, err = o.Turn(ctx, st)
			if err != nil {
				return report, err
			}
		}
		report.Steps = append(report.Steps, step)
	}

	report.NewMessages = st.Messages[startLen:]
	report.Summary = st.Summary
	report.Leftover = append([]string(nil), st.PendingTasks...)
	log.Info("orchestrator end", "turns", st.Turns, "summary", st.Summary)
	return report, nil
}

// Turn performs one routing decision and at most one dispatch.
// Pending tasks are served before the model is consulted.
func (o *Orchestrator) Turn(ctx context.Context, st *domain.ConversationState) (domain.RunStep, error) {
	if st.Terminal() {
		return domain.RunStep{}, ErrTerminal
	}

	log := observability.LoggerFromContext(ctx).With("session_id", st.SessionID, "turn", st.Turns)
	start := o.now()
	st.Turns++

	step := domain.RunStep{Turn: st.Turns, CreatedAt: start}

	var (
		rationale  string
		invocation *domain.ToolCall
		toolResult string
		summary    string
	)

	if task, ok := st.Dequeue(); ok {
		st.Next = o.policy.AgentForTask(task)
		st.CurrentTask = task
		step.Source = domain.SourceQueue
		rationale = "serving pending task: " + task
		if st.Next == domain.AgentFinish {
			step.Source = domain.SourceFailSafe
			rationale = "no agent can serve pending task: " + task
		}
		log.Info("pending task dequeued", "task", task, "next", st.Next)
	} else {
		d := o.decider.Decide(ctx, st)
		st.PendingTasks = d.PendingTasks
		st.Next = d.Outcome.Agent
		st.CurrentTask = d.Outcome.Reason
		step.Source = domain.SourceModel
		if d.Fault != nil || (d.Invocation == nil && d.Outcome.Agent == domain.AgentFinish) {
			step.Source = domain.SourceFailSafe
		}
		rationale = d.Outcome.Reason
		summary = d.Outcome.Extra("summary")
		invocation = d.Invocation
		toolResult = d.Outcome.String()
	}

	if !st.Next.IsKnown() {
		rationale = fmt.Sprintf("unknown route %q", st.Next)
		st.Next = domain.AgentFinish
		step.Source = domain.SourceFailSafe
	}
	agent, registered := o.agents[st.Next]
	if st.Next != domain.AgentFinish && !registered {
		rationale = fmt.Sprintf("no agent registered for %s", st.Next)
		st.Next = domain.AgentFinish
		step.Source = domain.SourceFailSafe
	}
	if rationale == "" {
		rationale = "routing to " + string(st.Next)
	}

	o.appendDecision(st, rationale, invocation, toolResult)
	observability.RecordRoutingDecision(string(st.Next), string(step.Source))
	step.Agent = st.Next
	step.Task = st.CurrentTask

	if st.Next == domain.AgentFinish {
		st.Phase = domain.PhaseTerminal
		st.TaskCompleted = true
		st.Summary = rationale
		if summary != "" {
			st.Summary = summary
		}
		step.Status = domain.StepFinished
		step.Elapsed = o.now().Sub(start)
		log.Info("orchestrator finished", "rationale", rationale)
		return step, nil
	}

	st.Phase = domain.PhaseDispatching
	res := agent.Run(ctx, st)
	st.Phase = domain.PhaseAwaitingDecision

	step.Status = domain.StepDone
	if res.Fallback {
		step.Status = domain.StepFallback
	}
	step.Elapsed = o.now().Sub(start)
	return step, nil
}

func (o *Orchestrator) forceFinish(st *domain.ConversationState, rationale string) domain.RunStep {
	now := o.now()
	st.Turns++
	st.Next = domain.AgentFinish
	st.Phase = domain.PhaseTerminal
	st.TaskCompleted = true
	st.Summary = rationale
	o.appendDecision(st, rationale, nil, "")
	observability.RecordRoutingDecision(string(domain.AgentFinish), string(domain.SourceFailSafe))
	return domain.RunStep{
		Turn:      st.Turns,
		Agent:     domain.AgentFinish,
		Task:      st.CurrentTask,
		Source:    domain.SourceFailSafe,
		Status:    domain.StepFinished,
		CreatedAt: now,
	}
}

// appendDecision records the rationale and, when the model made a tool call, its result.
func (o *Orchestrator) appendDecision(st *domain.ConversationState, rationale string, call *domain.ToolCall, result string) {
	now := o.now()
	msg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: st.SessionID,
		Role:      domain.RoleAssistant,
		Author:    domain.AgentOrchestrator,
		Content:   domain.TextContent(rationale),
		CreatedAt: now,
	}
	if call == nil {
		st.Append(msg)
		return
	}

	msg.ToolCalls = []domain.ToolCall{*call}
	st.Append(msg, &domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		SessionID:  st.SessionID,
		Role:       domain.RoleTool,
		Author:     domain.AgentOrchestrator,
		Content:    domain.TextContent(result),
		ToolCallID: call.ID,
		CreatedAt:  now,
	})
}

package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

const (
	DefaultTemperature float32 = 0.3

	RationaleNoDecision = "no valid routing decision detected"
	RationaleModelError = "routing model unavailable"
	RationaleUnparsable = "unparsable routing decision"
)

// Decision is the result of one routing round. It is never persisted.
type Decision struct {
	Outcome RoutingOutcome

	// Invocation is the tool call the model made, if any.
	Invocation *domain.ToolCall
	ModelText  string

	// PendingTasks is the queue after planning; Planned holds the newly added tasks.
	PendingTasks []string
	Planned      []string

	// Fault is set when the decision is a fail-safe FINISH caused by an error.
	Fault error
}

// Engine asks a chat model to pick one routing intent.
type Engine struct {
	model       domain.ChatModel
	catalog     *Catalog
	policy      *Policy
	temperature float32
}

func NewEngine(model domain.ChatModel, catalog *Catalog, policy *Policy, temperature float32) (*Engine, error) {
	if model == nil {
		return nil, errors.New("routing engine: chat model is required")
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{
		model:       model,
		catalog:     catalog,
		policy:      policy,
		temperature: temperature,
	}, nil
}

func (e *Engine) Policy() *Policy {
	return e.policy
}

// Decide never fails: every error collapses into a FINISH outcome with a diagnostic rationale.
// The state is read, not modified.
func (e *Engine) Decide(ctx context.Context, st *domain.ConversationState) Decision {
	log := observability.LoggerFromContext(ctx).With(
		"component", "routing",
		"session_id", st.SessionID,
	)

	d := Decision{PendingTasks: append([]string(nil), st.PendingTasks...)}

	req := domain.ChatRequest{
		SystemPrompt: SystemInstruction(e.catalog, e.policy) + "\n" + StatusBlock(st),
		Messages:     ModelHistory(st.Messages),
		Tools:        e.catalog.Specs(),
		Temperature:  e.temperature,
	}

	resp, err := e.model.ChatWithTools(ctx, req)
	if err != nil {
		log.Error("routing model call failed", "error", err)
		d.Outcome = Finish(RationaleModelError, "")
		d.Fault = err
		return d
	}
	d.ModelText = resp.Text

	call, ok := resp.Invocation()
	switch {
	case ok:
		if len(resp.ToolCalls) > 1 {
			log.Warn("routing model returned several tool calls, keeping the first", "count", len(resp.ToolCalls))
		}
		d.Invocation = &call

		intent, err := e.catalog.Lookup(call.Name)
		if err != nil {
			log.Error("routing model named an unknown intent", "intent", call.Name)
			d.Outcome = Finish(fmt.Sprintf("unknown routing intent: %s", call.Name), "")
			d.Fault = err
			return d
		}
		d.Outcome = intent.Encode(call.Arguments)
		log.Info("routing decision", "intent", intent.Name, "route", d.Outcome.String())

	case strings.HasPrefix(strings.TrimSpace(resp.Text), routePrefix):
		// models without tool support may answer with the ROUTE: text form
		outcome, err := ParseRoute(resp.Text)
		if err != nil {
			log.Error("routing reply could not be parsed", "error", err)
			d.Outcome = Finish(fmt.Sprintf("%s: %v", RationaleUnparsable, err), "")
			d.Fault = err
			return d
		}
		d.Outcome = outcome
		log.Info("routing decision from text", "route", d.Outcome.String())

	default:
		log.Warn("routing model returned no tool call, finishing")
		d.Outcome = Finish(RationaleNoDecision, "")
		return d
	}

	for _, task := range e.policy.Plan(d.Outcome.Agent, st.UserText()) {
		if contains(d.PendingTasks, task) {
			continue
		}
		d.PendingTasks = append(d.PendingTasks, task)
		d.Planned = append(d.Planned, task)
		log.Info("follow-up task planned", "task", task)
	}
	return d
}

// ModelHistory normalizes attachments, drops tool results and flattens tool calls.
// Agent replies are prefixed with their author so the model can tell them apart.
func ModelHistory(msgs []*domain.Message) []*domain.Message {
	normalized := Normalize(msgs)
	out := make([]*domain.Message, 0, len(normalized))
	for _, m := range normalized {
		if m == nil || m.Role == domain.RoleTool {
			continue
		}
		if m.Role == domain.RoleAssistant {
			cp := *m
			cp.ToolCalls = nil
			text := m.Text()
			if m.Author != "" {
				text = fmt.Sprintf("[%s] %s", m.Author, text)
			}
			cp.Content = domain.TextContent(text)
			out = append(out, &cp)
			continue
		}
		out = append(out, m)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

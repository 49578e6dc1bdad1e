package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/app/tools"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

const DefaultMaxSteps = 8

// ErrMaxSteps is returned when an agent keeps calling tools past its step budget.
var ErrMaxSteps = errors.New("agent exceeded its step budget")

// Executor runs one agent task and returns the messages it produced.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
}

type ExecRequest struct {
	Agent    domain.AgentID
	Messages []*domain.Message
	ToolCtx  tools.ToolContext
}

// ExecResult holds the agent's messages, oldest first. Output is the raw final text.
type ExecResult struct {
	Messages []*domain.Message
	Output   string
}

// ToolLoop is a model-plus-tools executor: it calls the model, runs the
// requested tools and feeds the results back until the model answers in text.
type ToolLoop struct {
	model        domain.ChatModel
	tools        *tools.Toolset
	systemPrompt string
	temperature  float32
	maxSteps     int
	now          func() time.Time
}

func NewToolLoop(model domain.ChatModel, toolset *tools.Toolset, systemPrompt string, temperature float32, maxSteps int) *ToolLoop {
	if toolset == nil {
		toolset = tools.NewToolset()
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &ToolLoop{
		model:        model,
		tools:        toolset,
		systemPrompt: systemPrompt,
		temperature:  temperature,
		maxSteps:     maxSteps,
		now:          time.Now,
	}
}

func (l *ToolLoop) Execute(ctx context.Context, req ExecRequest) (ExecResult, error) {
	log := observability.LoggerFromContext(ctx).With("agent", req.Agent, "session_id", req.ToolCtx.SessionID)

	history := append([]*domain.Message(nil), req.Messages...)
	var produced []*domain.Message

	for step := 0; step < l.maxSteps; step++ {
		resp, err := l.model.ChatWithTools(ctx, domain.ChatRequest{
			SystemPrompt: l.systemPrompt,
			Messages:     history,
			Tools:        l.tools.Specs(),
			Temperature:  l.temperature,
		})
		if err != nil {
			return ExecResult{Messages: produced}, fmt.Errorf("agent %s model call: %w", req.Agent, err)
		}

		msg := &domain.Message{
			ID:        domain.MessageID(uuid.NewString()),
			SessionID: domain.SessionID(req.ToolCtx.SessionID),
			Role:      domain.RoleAssistant,
			Author:    req.Agent,
			Content:   domain.TextContent(resp.Text),
			ToolCalls: resp.ToolCalls,
			CreatedAt: l.now(),
		}
		history = append(history, msg)
		produced = append(produced, msg)

		if len(resp.ToolCalls) == 0 {
			return ExecResult{Messages: produced, Output: resp.Text}, nil
		}

		for _, call := range resp.ToolCalls {
			log.Info("agent tool call", "step", step, "tool", call.Name)
			out := l.tools.Invoke(ctx, req.ToolCtx, call.Name, call.Arguments)
			res := &domain.Message{
				ID:         domain.MessageID(uuid.NewString()),
				SessionID:  domain.SessionID(req.ToolCtx.SessionID),
				Role:       domain.RoleTool,
				Author:     req.Agent,
				Content:    domain.TextContent(out),
				ToolCallID: call.ID,
				CreatedAt:  l.now(),
			}
			history = append(history, res)
			produced = append(produced, res)
		}
	}

	log.Warn("agent step budget exhausted", "max_steps", l.maxSteps)
	return ExecResult{Messages: produced}, ErrMaxSteps
}

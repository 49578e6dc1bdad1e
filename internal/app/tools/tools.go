package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	UserID    string
	SessionID string
	RequestID string
}

// Tool represents a tool agents can invoke.
// Arguments arrive as decoded JSON; the result is text for the model.
type Tool interface {
	Spec() domain.ToolSpec
	Call(ctx context.Context, tctx ToolContext, args map[string]any) (string, error)
}

// Failure is a tool error rendered as "<op> failed: <err>".
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failed(op string, err error) error {
	return &Failure{Op: op, Err: err}
}

// Toolset is the fixed set of tools bound to one agent.
type Toolset struct {
	tools  []Tool
	byName map[string]Tool
}

func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		ts.tools = append(ts.tools, t)
		ts.byName[t.Spec().Name] = t
	}
	return ts
}

func (ts *Toolset) Len() int {
	return len(ts.tools)
}

func (ts *Toolset) Specs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, 0, len(ts.tools))
	for _, t := range ts.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.tools))
	for _, t := range ts.tools {
		names = append(names, t.Spec().Name)
	}
	return names
}

// Invoke runs a tool and always returns text. Errors and panics become
// prefixed messages so the agent model can react to them.
func (ts *Toolset) Invoke(ctx context.Context, tctx ToolContext, name string, args map[string]any) (out string) {
	log := observability.LoggerFromContext(ctx).With("tool", name, "session_id", tctx.SessionID)

	t, ok := ts.byName[name]
	if !ok {
		log.Warn("unknown tool requested")
		observability.RecordToolCall(name, false)
		return "unknown tool: " + name
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("tool panicked", "panic", r)
			observability.RecordToolCall(name, false)
			out = fmt.Sprintf("%s failed: internal error", name)
		}
	}()

	if missing := missingArgs(t.Spec(), args); len(missing) > 0 {
		observability.RecordToolCall(name, false)
		return fmt.Sprintf("%s failed: missing required arguments %v", name, missing)
	}

	res, err := t.Call(ctx, tctx, args)
	if err != nil {
		log.Warn("tool call failed", "error", err)
		observability.RecordToolCall(name, false)
		var f *Failure
		if errors.As(err, &f) {
			return f.Error()
		}
		return fmt.Sprintf("%s failed: %v", name, err)
	}

	observability.RecordToolCall(name, true)
	log.Debug("tool call done", "result_len", len(res))
	return res
}

func missingArgs(spec domain.ToolSpec, args map[string]any) []string {
	var missing []string
	for _, name := range spec.RequiredNames() {
		v, ok := args[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// --- internal helpers --- //

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getInt accepts JSON numbers and numeric strings.
func getInt(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + fmt.Sprintf("\n... (truncated, %d characters total)", len(r))
}

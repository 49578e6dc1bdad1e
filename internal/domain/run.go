package domain

import "time"

// StepSource tells where a dispatch decision came from.
type StepSource string

const (
	SourceModel    StepSource = "model"
	SourceQueue    StepSource = "queue"
	SourceFailSafe StepSource = "fail_safe"
)

// StepStatus is the outcome of one orchestrator turn.
type StepStatus string

const (
	StepDone     StepStatus = "done"
	StepFallback StepStatus = "fallback"
	StepFinished StepStatus = "finished"
)

// RunStep records one orchestrator turn.
type RunStep struct {
	Turn      int           `json:"turn"`
	Agent     AgentID       `json:"agent"`
	Task      string        `json:"task"`
	Source    StepSource    `json:"source"`
	Status    StepStatus    `json:"status"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunRecord summarizes a full request lifecycle (user message to FINISH).
type RunRecord struct {
	ID        RunID     `json:"id"`
	SessionID SessionID `json:"session_id"`
	UserID    UserID    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	// The user request that started the run
	Request string `json:"request"`

	Steps []RunStep `json:"steps"`

	// Final rationale of the Orchestrator
	Summary string `json:"summary"`

	// Tasks still queued when the run stopped (turn limit)
	Leftover []string `json:"leftover,omitempty"`
}

// Agents lists the dispatched agents in order.
func (r *RunRecord) Agents() []AgentID {
	var out []AgentID
	for _, s := range r.Steps {
		if s.Agent.IsSpecialized() {
			out = append(out, s.Agent)
		}
	}
	return out
}

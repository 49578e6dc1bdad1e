package domain

import "strings"

// Phase is the orchestrator's position in its per-request state machine.
type Phase string

const (
	PhaseAwaitingDecision Phase = "awaiting_decision"
	PhaseDispatching      Phase = "dispatching"
	PhaseTerminal         Phase = "terminal"
)

// ConversationState is threaded through every orchestrator turn.
// It is owned by a single request; callers must not share it across goroutines.
type ConversationState struct {
	SessionID SessionID
	UserID    UserID

	// Messages is append-only.
	Messages []*Message

	Next          AgentID
	PendingTasks  []string
	CurrentTask   string
	TaskCompleted bool

	Phase   Phase
	Turns   int
	Summary string
}

// NewConversationState starts a state awaiting its first decision.
func NewConversationState(sessionID SessionID, userID UserID, history []*Message) *ConversationState {
	msgs := make([]*Message, len(history))
	copy(msgs, history)
	return &ConversationState{
		SessionID: sessionID,
		UserID:    userID,
		Messages:  msgs,
		Phase:     PhaseAwaitingDecision,
	}
}

func (s *ConversationState) Append(msgs ...*Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Enqueue adds a task unless an identical descriptor is already queued.
func (s *ConversationState) Enqueue(task string) bool {
	for _, t := range s.PendingTasks {
		if t == task {
			return false
		}
	}
	s.PendingTasks = append(s.PendingTasks, task)
	return true
}

// Dequeue pops the head of the pending queue.
func (s *ConversationState) Dequeue() (string, bool) {
	if len(s.PendingTasks) == 0 {
		return "", false
	}
	head := s.PendingTasks[0]
	s.PendingTasks = s.PendingTasks[1:]
	if len(s.PendingTasks) == 0 {
		s.PendingTasks = nil
	}
	return head, true
}

// LastFrom returns the most recent assistant message written by author.
func (s *ConversationState) LastFrom(author AgentID) *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleAssistant && m.Author == author {
			return m
		}
	}
	return nil
}

// LastAgent returns the specialized agent that spoke most recently, if any.
func (s *ConversationState) LastAgent() AgentID {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleAssistant && m.Author.IsSpecialized() {
			return m.Author
		}
	}
	return ""
}

// UserText concatenates the text of every user-authored message.
func (s *ConversationState) UserText() string {
	var b strings.Builder
	for _, m := range s.Messages {
		if m.Role != RoleUser {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Text())
	}
	return b.String()
}

// Terminal reports whether the state machine has finished.
func (s *ConversationState) Terminal() bool {
	return s.Phase == PhaseTerminal
}

// Clone returns a copy whose slices can be appended to independently.
// Messages themselves are shared since they are immutable.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	c.Messages = append([]*Message(nil), s.Messages...)
	c.PendingTasks = append([]string(nil), s.PendingTasks...)
	return &c
}

// Checkpoint is the persisted subset of a ConversationState.
type Checkpoint struct {
	SessionID     SessionID `json:"session_id"`
	Next          AgentID   `json:"next"`
	PendingTasks  []string  `json:"pending_tasks,omitempty"`
	CurrentTask   string    `json:"current_task,omitempty"`
	TaskCompleted bool      `json:"task_completed"`
	Summary       string    `json:"summary,omitempty"`
	UpdatedAt     Timestamp `json:"updated_at"`
}

// Checkpoint captures the queue and decision fields of s.
func (s *ConversationState) Checkpoint(now Timestamp) *Checkpoint {
	return &Checkpoint{
		SessionID:     s.SessionID,
		Next:          s.Next,
		PendingTasks:  append([]string(nil), s.PendingTasks...),
		CurrentTask:   s.CurrentTask,
		TaskCompleted: s.TaskCompleted,
		Summary:       s.Summary,
		UpdatedAt:     now,
	}
}

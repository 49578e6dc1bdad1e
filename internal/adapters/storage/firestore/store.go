package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/insighter/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

func (s *Store) checkpointDoc(sessionID domain.SessionID) *firestore.DocumentRef {
	return s.client.Collection("checkpoints").Doc(string(sessionID))
}

func (s *Store) runsCol() *firestore.CollectionRef {
	return s.client.Collection("runs")
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	UserID    string    `firestore:"user_id"`
	Title     string    `firestore:"title"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type fileDoc struct {
	URL       string `firestore:"url"`
	MimeType  string `firestore:"mime_type"`
	Filename  string `firestore:"filename"`
	SizeBytes int64  `firestore:"size_bytes"`
}

type itemDoc struct {
	Type string   `firestore:"type"`
	Text string   `firestore:"text"`
	File *fileDoc `firestore:"file"`
}

type toolCallDoc struct {
	ID        string         `firestore:"id"`
	Name      string         `firestore:"name"`
	Arguments map[string]any `firestore:"arguments"`
}

type messageDoc struct {
	SessionID  string        `firestore:"session_id"`
	Role       string        `firestore:"role"`
	Author     string        `firestore:"author"`
	Text       string        `firestore:"text"`
	Items      []itemDoc     `firestore:"items"`
	ToolCalls  []toolCallDoc `firestore:"tool_calls"`
	ToolCallID string        `firestore:"tool_call_id"`
	CreatedAt  time.Time     `firestore:"created_at"`
}

type checkpointDoc struct {
	Next          string    `firestore:"next"`
	PendingTasks  []string  `firestore:"pending_tasks"`
	CurrentTask   string    `firestore:"current_task"`
	TaskCompleted bool      `firestore:"task_completed"`
	Summary       string    `firestore:"summary"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

type runStepDoc struct {
	Turn      int       `firestore:"turn"`
	Agent     string    `firestore:"agent"`
	Task      string    `firestore:"task"`
	Source    string    `firestore:"source"`
	Status    string    `firestore:"status"`
	ElapsedMS int64     `firestore:"elapsed_ms"`
	CreatedAt time.Time `firestore:"created_at"`
}

type runDoc struct {
	SessionID string       `firestore:"session_id"`
	UserID    string       `firestore:"user_id"`
	Request   string       `firestore:"request"`
	Steps     []runStepDoc `firestore:"steps"`
	Summary   string       `firestore:"summary"`
	Leftover  []string     `firestore:"leftover"`
	CreatedAt time.Time    `firestore:"created_at"`
}

func toSessionDoc(session *domain.Session) sessionDoc {
	return sessionDoc{
		UserID:    string(session.UserID),
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func (d sessionDoc) toDomain(id domain.SessionID) *domain.Session {
	return &domain.Session{
		ID:        id,
		UserID:    domain.UserID(d.UserID),
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toMessageDoc(msg *domain.Message) messageDoc {
	doc := messageDoc{
		SessionID:  string(msg.SessionID),
		Role:       string(msg.Role),
		Author:     string(msg.Author),
		Text:       msg.Content.Text,
		ToolCallID: msg.ToolCallID,
		CreatedAt:  msg.CreatedAt,
	}
	for _, it := range msg.Content.Items {
		item := itemDoc{Type: string(it.Type), Text: it.Text}
		if it.File != nil {
			item.File = &fileDoc{URL: it.File.URL, MimeType: it.File.MimeType, Filename: it.File.Filename, SizeBytes: it.File.SizeBytes}
		}
		doc.Items = append(doc.Items, item)
	}
	for _, tc := range msg.ToolCalls {
		doc.ToolCalls = append(doc.ToolCalls, toolCallDoc{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return doc
}

func (d messageDoc) toDomain(id domain.MessageID) *domain.Message {
	msg := &domain.Message{
		ID:         id,
		SessionID:  domain.SessionID(d.SessionID),
		Role:       domain.Role(d.Role),
		Author:     domain.AgentID(d.Author),
		Content:    domain.Content{Text: d.Text},
		ToolCallID: d.ToolCallID,
		CreatedAt:  d.CreatedAt,
	}
	if len(d.Items) > 0 {
		msg.Content.Items = make([]domain.ContentItem, 0, len(d.Items))
		for _, it := range d.Items {
			item := domain.ContentItem{Type: domain.ContentType(it.Type), Text: it.Text}
			if it.File != nil {
				item.File = &domain.FileRef{URL: it.File.URL, MimeType: it.File.MimeType, Filename: it.File.Filename, SizeBytes: it.File.SizeBytes}
			}
			msg.Content.Items = append(msg.Content.Items, item)
		}
	}
	for _, tc := range d.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return msg
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Create(ctx, toSessionDoc(session))
	if status.Code(err) == codes.AlreadyExists {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Set(ctx, toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return doc.toDomain(id), nil
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListSessionsByUser: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.SessionID(snap.Ref.ID)))
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	_, err := s.messagesCol(msg.SessionID).Doc(string(msg.ID)).Set(ctx, toMessageDoc(msg))
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesBySession returns the last limit messages, oldest first.
func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.MessageID(snap.Ref.ID)))
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ─────────────────────────────────────────
// StateStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveCheckpoint(ctx context.Context, cp *domain.Checkpoint) error {
	doc := checkpointDoc{
		Next:          string(cp.Next),
		PendingTasks:  cp.PendingTasks,
		CurrentTask:   cp.CurrentTask,
		TaskCompleted: cp.TaskCompleted,
		Summary:       cp.Summary,
		UpdatedAt:     cp.UpdatedAt,
	}
	if _, err := s.checkpointDoc(cp.SessionID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveCheckpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadCheckpoint(ctx context.Context, sessionID domain.SessionID) (*domain.Checkpoint, error) {
	snap, err := s.checkpointDoc(sessionID).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore LoadCheckpoint: %w", err)
	}

	var doc checkpointDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode checkpointDoc: %w", err)
	}
	return &domain.Checkpoint{
		SessionID:     sessionID,
		Next:          domain.AgentID(doc.Next),
		PendingTasks:  doc.PendingTasks,
		CurrentTask:   doc.CurrentTask,
		TaskCompleted: doc.TaskCompleted,
		Summary:       doc.Summary,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

// ─────────────────────────────────────────
// RunStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendRun(ctx context.Context, run *domain.RunRecord) error {
	doc := runDoc{
		SessionID: string(run.SessionID),
		UserID:    string(run.UserID),
		Request:   run.Request,
		Summary:   run.Summary,
		Leftover:  run.Leftover,
		CreatedAt: run.CreatedAt,
	}
	for _, st := range run.Steps {
		doc.Steps = append(doc.Steps, runStepDoc{
			Turn:      st.Turn,
			Agent:     string(st.Agent),
			Task:      st.Task,
			Source:    string(st.Source),
			Status:    string(st.Status),
			ElapsedMS: st.Elapsed.Milliseconds(),
			CreatedAt: st.CreatedAt,
		})
	}

	ref := s.runsCol().NewDoc()
	if run.ID != "" {
		ref = s.runsCol().Doc(string(run.ID))
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendRun: %w", err)
	}
	run.ID = domain.RunID(ref.ID)
	return nil
}

func (s *Store) ListRunsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.RunRecord, error) {
	q := s.runsCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.RunRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListRunsByUser: %w", err)
		}

		var doc runDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode runDoc: %w", err)
		}
		rec := &domain.RunRecord{
			ID:        domain.RunID(snap.Ref.ID),
			SessionID: domain.SessionID(doc.SessionID),
			UserID:    domain.UserID(doc.UserID),
			Request:   doc.Request,
			Summary:   doc.Summary,
			Leftover:  doc.Leftover,
			CreatedAt: doc.CreatedAt,
		}
		for _, st := range doc.Steps {
			rec.Steps = append(rec.Steps, domain.RunStep{
				Turn:      st.Turn,
				Agent:     domain.AgentID(st.Agent),
				Task:      st.Task,
				Source:    domain.StepSource(st.Source),
				Status:    domain.StepStatus(st.Status),
				Elapsed:   time.Duration(st.ElapsedMS) * time.Millisecond,
				CreatedAt: st.CreatedAt,
			})
		}
		out = append(out, rec)
	}
	return out, nil
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/app/agentflow"
	"github.com/PabloGalante/insighter/internal/app/runlog"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

const (
	DefaultHistoryLimit = 40

	welcomeText = "Hi, I'm Insighter. Ask a question about your data, upload a file to analyze, or request a report or web page."
)

// Runner drives one orchestrated run over a conversation state.
type Runner interface {
	Run(ctx context.Context, st *domain.ConversationState) (*agentflow.RunReport, error)
}

type Service struct {
	sessionStore domain.SessionStore
	messageStore domain.MessageStore
	stateStore   domain.StateStore
	runs         *runlog.Service
	runner       Runner
	historyLimit int
	now          func() time.Time
}

// NewService wires the stores and the orchestrator. stateStore and runs may be nil.
func NewService(
	sessionStore domain.SessionStore,
	messageStore domain.MessageStore,
	stateStore domain.StateStore,
	runs *runlog.Service,
	runner Runner,
	historyLimit int,
) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if runs == nil {
		runs = runlog.NewService(nil)
	}
	return &Service{
		sessionStore: sessionStore,
		messageStore: messageStore,
		stateStore:   stateStore,
		runs:         runs,
		runner:       runner,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

type StartSessionInput struct {
	UserID domain.UserID
	Title  string
}

type StartSessionOutput struct {
	Session *domain.Session
	Welcome *domain.Message
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	now := s.now()
	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID)
	log.Info("starting new session")

	session := &domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		UserID:    in.UserID,
		CreatedAt: now,
		UpdatedAt: now,
		Title:     in.Title,
	}

	if err := s.sessionStore.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	welcome := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Author:    domain.AgentOrchestrator,
		Content:   domain.TextContent(welcomeText),
		CreatedAt: now,
	}

	if err := s.messageStore.AppendMessage(ctx, welcome); err != nil {
		log.Error("failed to append welcome message", "error", err)
		return nil, err
	}

	log.Info("session started", "session_id", session.ID)

	return &StartSessionOutput{
		Session: session,
		Welcome: welcome,
	}, nil
}

type SendMessageInput struct {
	SessionID   domain.SessionID
	UserID      domain.UserID
	Text        string
	Attachments []domain.FileRef
}

type SendMessageOutput struct {
	UserMessage *domain.Message
	// Replies are the specialized agents' messages of this run, oldest first.
	Replies []*domain.Message
	// FinalReply is the last agent reply, or the finish summary when no agent ran.
	FinalReply string
	Summary    string
	Steps      []domain.RunStep
	Leftover   []string
}

func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs text or an attachment", domain.ErrInvalidInput)
	}

	session, err := s.sessionStore.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && in.UserID != session.UserID {
		return nil, domain.ErrForbidden
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"user_id", session.UserID,
	)
	log.Info("sending message", "text", in.Text, "attachments", len(in.Attachments))

	start := s.now()

	userMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   userContent(in.Text, in.Attachments),
		CreatedAt: start,
	}

	if err := s.messageStore.AppendMessage(ctx, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	history, err := s.messageStore.GetMessagesBySession(ctx, session.ID, s.historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}

	st := domain.NewConversationState(session.ID, session.UserID, history)
	s.restore(ctx, st)

	report, runErr := s.runner.Run(ctx, st)
	if report == nil {
		report = &agentflow.RunReport{}
	}

	// whatever the run produced is kept, even when it was interrupted
	persistCtx := context.WithoutCancel(ctx)
	var appendErr error
	for _, m := range report.NewMessages {
		if err := s.messageStore.AppendMessage(persistCtx, m); err != nil {
			log.Error("failed to append run message", "error", err, "author", m.Author)
			appendErr = err
			break
		}
	}
	s.checkpoint(persistCtx, st)

	if appendErr != nil {
		return nil, appendErr
	}
	if runErr != nil {
		log.Error("orchestrator failed", "error", runErr)
		return nil, runErr
	}

	rec := &domain.RunRecord{
		SessionID: session.ID,
		UserID:    session.UserID,
		CreatedAt: start,
		Request:   userMsg.Text(),
		Steps:     report.Steps,
		Summary:   report.Summary,
		Leftover:  report.Leftover,
	}
	if err := s.runs.Record(ctx, rec); err != nil {
		log.Warn("failed to record run", "error", err)
	}

	session.UpdatedAt = s.now()
	if session.Title == "" {
		session.Title = titleFrom(userMsg.Text())
	}
	if err := s.sessionStore.UpdateSession(ctx, session); err != nil {
		log.Error("failed to update session", "error", err)
		return nil, err
	}

	replies := report.Replies()
	out := &SendMessageOutput{
		UserMessage: userMsg,
		Replies:     replies,
		FinalReply:  report.Summary,
		Summary:     report.Summary,
		Steps:       report.Steps,
		Leftover:    report.Leftover,
	}
	if len(replies) > 0 {
		out.FinalReply = replies[len(replies)-1].Text()
	}

	log.Info("send message completed", "agents", rec.Agents(), "elapsed", s.now().Sub(start))
	return out, nil
}

func (s *Service) GetSessionTimeline(
	ctx context.Context,
	sessionID domain.SessionID,
	limit int,
) (*domain.Session, []*domain.Message, error) {

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sessionID,
		"limit", limit,
	)

	session, err := s.sessionStore.GetSession(ctx, sessionID)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, nil, err
	}

	msgs, err := s.messageStore.GetMessagesBySession(ctx, sessionID, limit)
	if err != nil {
		log.Error("failed to get messages", "error", err)
		return nil, nil, err
	}

	log.Info("fetched session timeline", "message_count", len(msgs))

	return session, msgs, nil
}

// restore carries over the queue of a run that was interrupted before finishing.
func (s *Service) restore(ctx context.Context, st *domain.ConversationState) {
	if s.stateStore == nil {
		return
	}
	cp, err := s.stateStore.LoadCheckpoint(ctx, st.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			observability.LoggerFromContext(ctx).Warn("failed to load checkpoint", "error", err, "session_id", st.SessionID)
		}
		return
	}
	if cp.TaskCompleted || len(cp.PendingTasks) == 0 {
		return
	}
	for _, task := range cp.PendingTasks {
		st.Enqueue(task)
	}
	observability.LoggerFromContext(ctx).Info("restored pending tasks", "session_id", st.SessionID, "pending_tasks", st.PendingTasks)
}

func (s *Service) checkpoint(ctx context.Context, st *domain.ConversationState) {
	if s.stateStore == nil {
		return
	}
	if err := s.stateStore.SaveCheckpoint(ctx, st.Checkpoint(s.now())); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to save checkpoint", "error", err, "session_id", st.SessionID)
	}
}

// userContent keeps plain text plain and turns attachments into file or image items.
func userContent(text string, attachments []domain.FileRef) domain.Content {
	if len(attachments) == 0 {
		return domain.TextContent(text)
	}
	items := make([]domain.ContentItem, 0, len(attachments)+1)
	if strings.TrimSpace(text) != "" {
		items = append(items, domain.ContentItem{Type: domain.ContentText, Text: text})
	}
	for i := range attachments {
		f := attachments[i]
		typ := domain.ContentFile
		if strings.HasPrefix(f.MimeType, "image/") {
			typ = domain.ContentImage
		}
		items = append(items, domain.ContentItem{Type: typ, File: &f})
	}
	return domain.Content{Items: items}
}

func titleFrom(text string) string {
	text = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	r := []rune(text)
	if len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return text
}

package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/PabloGalante/insighter/internal/adapters/filestore"
	"github.com/PabloGalante/insighter/internal/app/conversation"
	"github.com/PabloGalante/insighter/internal/app/runlog"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

const multipartMemory = 8 << 20

type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
}

type Server struct {
	svc       *conversation.Service
	runs      *runlog.Service
	files     domain.FileStorage
	maxUpload int64
}

func NewServer(svc *conversation.Service, runs *runlog.Service, files domain.FileStorage, opts Options) http.Handler {
	s := &Server{
		svc:       svc,
		runs:      runs,
		files:     files,
		maxUpload: opts.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = filestore.DefaultMaxBytes
	}

	r := mux.NewRouter()
	r.Use(withRequestID, withLogging, withMetrics)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/runs", s.handleListRuns).Methods(http.MethodGet)

	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/files/{name}", s.handleGetFile).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		methodNotAllowed(w)
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(r)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

type createSessionResponse struct {
	Session sessionResponse  `json:"session"`
	Welcome *messageResponse `json:"welcome_message,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Role      string               `json:"role"`
	Author    string               `json:"author,omitempty"`
	Text      string               `json:"text"`
	Items     []domain.ContentItem `json:"items,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type sendMessageRequest struct {
	UserID      string           `json:"user_id"`
	Text        string           `json:"text"`
	Attachments []domain.FileRef `json:"attachments,omitempty"`
}

type sendMessageResponse struct {
	UserMessage messageResponse   `json:"user_message"`
	Replies     []messageResponse `json:"replies"`
	FinalReply  string            `json:"final_reply"`
	Summary     string            `json:"summary"`
	Steps       []domain.RunStep  `json:"steps"`
	Leftover    []string          `json:"leftover,omitempty"`
}

type getSessionResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
}

type uploadResponse struct {
	FileType string `json:"file_type"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{
		UserID: domain.UserID(req.UserID),
		Title:  req.Title,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := createSessionResponse{Session: toSessionResponse(out.Session)}
	if out.Welcome != nil {
		m := toMessageResponse(out.Welcome)
		resp.Welcome = &m
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(mux.Vars(r)["id"])
	session, msgs, err := s.svc.GetSessionTimeline(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		Session:  toSessionResponse(session),
		Messages: toMessagesResponse(msgs),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
		badRequest(w, "text or attachments are required")
		return
	}
	for _, a := range req.Attachments {
		if a.URL == "" {
			badRequest(w, "every attachment needs a url")
			return
		}
	}

	out, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID:   domain.SessionID(mux.Vars(r)["id"]),
		UserID:      domain.UserID(req.UserID),
		Text:        req.Text,
		Attachments: req.Attachments,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserMessage: toMessageResponse(out.UserMessage),
		Replies:     toMessagesResponse(out.Replies),
		FinalReply:  out.FinalReply,
		Summary:     out.Summary,
		Steps:       out.Steps,
		Leftover:    out.Leftover,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(mux.Vars(r)["id"])
	runs, err := s.runs.ListByUser(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}
		badRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file field is required")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		badRequest(w, "file name is required")
		return
	}

	ref, err := s.files.Upload(r.Context(), file, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fileType := string(domain.ContentFile)
	if strings.HasPrefix(ref.MimeType, "image/") {
		fileType = string(domain.ContentImage)
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		FileType: fileType,
		Filename: ref.Filename,
		URL:      ref.URL,
		MimeType: ref.MimeType,
		Size:     ref.SizeBytes,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rc, ref, err := s.files.Open(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ref.MimeType)
	if ref.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.SizeBytes, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ref.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		observability.LoggerFromContext(r.Context()).Warn("file stream interrupted", "error", err, "name", ref.Filename)
	}
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        string(s.ID),
		UserID:    string(s.UserID),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Role:      string(m.Role),
		Author:    string(m.Author),
		Text:      m.Text(),
		Items:     m.Content.Items,
		CreatedAt: m.CreatedAt,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}

// writeError maps domain errors to status codes. Unknown errors are logged, not echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, filestore.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/realtime"
)

// WorkspaceService defines workspace operations needed by the API.
type WorkspaceService interface {
	Get(ctx context.Context, id string, actor access.Actor) (*workspace.View, error)
	UpdateSettings(ctx context.Context, id string, actor access.Actor, partial map[string]any) (*workspace.Workspace, error)
	SaveSnapshot(ctx context.Context, id string, actor access.Actor, payload map[string]any) (*workspace.Snapshot, error)
	LatestSnapshot(ctx context.Context, id string, actor access.Actor) (*workspace.Snapshot, error)
}

// LiveStateService defines session state operations needed by the API.
type LiveStateService interface {
	ReadState(ctx context.Context, workspaceID, sessionID string) (*livestate.SessionState, error)
	UpsertState(ctx context.Context, workspaceID, sessionID string, actor access.Actor, partial map[string]any) (*livestate.SessionState, error)
	IssueCommand(ctx context.Context, workspaceID, sessionID string, actor access.Actor, command string) (*livestate.SessionState, error)
}

// AuditService defines audit reads needed by the API.
type AuditService interface {
	Tail(ctx context.Context, workspaceID string, actor access.Actor, limit int) ([]audit.Entry, error)
	Summarize(ctx context.Context, workspaceID string, actor access.Actor, from, to time.Time) (*audit.Summary, error)
}

// AudienceService defines audience message operations needed by the API.
type AudienceService interface {
	Submit(ctx context.Context, workspaceID string, req audience.SubmitRequest) (*audience.Message, error)
	List(ctx context.Context, workspaceID string, actor access.Actor, opts audience.ListOptions) ([]audience.Message, error)
	Moderate(ctx context.Context, workspaceID, id string, actor access.Actor, status audience.Status) (*audience.Message, error)
	Delete(ctx context.Context, workspaceID, id string, actor access.Actor) error
}

// StreamHub provides live state subscriptions.
type StreamHub interface {
	Subscribe(workspaceID, sessionID string) (*realtime.Subscription, error)
	Unsubscribe(sub *realtime.Subscription)
}

// Services contains all domain services needed by the API.
type Services struct {
	Workspaces WorkspaceService
	Live       LiveStateService
	Audit      AuditService
	Audience   AudienceService
	Hub        StreamHub
}

// Options tunes the router.
type Options struct {
	Logger *slog.Logger
	// MCP, when set, is mounted at /mcp.
	MCP             http.Handler
	StreamKeepAlive time.Duration
}

// Server wires HTTP handlers.
type Server struct {
	svc       Services
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewServer creates the API router with middleware.
func NewServer(svc Services, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keepAlive := opts.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	srv := &Server{svc: svc, logger: logger, keepAlive: keepAlive}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(IdentityMiddleware)

	r.Get("/api/health", srv.handleHealth)

	r.Route("/api/workspaces/{ws}", func(r chi.Router) {
		r.Get("/", srv.handleGetWorkspace)
		r.Patch("/settings", srv.handleUpdateSettings)
		r.Post("/snapshots", srv.handleSaveSnapshot)
		r.Get("/snapshots/latest", srv.handleLatestSnapshot)

		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/state", srv.handleReadState)
			r.Post("/state", srv.handleUpsertState)
			r.Post("/commands", srv.handleIssueCommand)
			r.Get("/stream", srv.handleStream)
		})

		r.Get("/reports/summary", srv.handleSummary)
		r.Get("/reports/audit", srv.handleAuditTail)

		r.Post("/messages", srv.handleSubmitMessage)
		r.Get("/messages", srv.handleListMessages)
		r.Patch("/messages/{id}", srv.handleModerateMessage)
		r.Delete("/messages/{id}", srv.handleDeleteMessage)
	})

	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteOK(w, http.StatusOK, Fields{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Workspaces.Get(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err, "GET_WORKSPACE")
		return
	}
	WriteOK(w, http.StatusOK, Fields{
		"workspace":        view.Workspace,
		"operators":        view.Operators,
		"stageTimerLayout": view.StageTimerLayout,
		"latestSnapshot":   view.LatestSnapshot,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Settings map[string]any `json:"settings"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "UPDATE_SETTINGS")
		return
	}
	ws, err := s.svc.Workspaces.UpdateSettings(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()), body.Settings)
	if err != nil {
		s.fail(w, r, err, "UPDATE_SETTINGS")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"workspace": ws})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payload map[string]any `json:"payload"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "SAVE_SNAPSHOT")
		return
	}
	snap, err := s.svc.Workspaces.SaveSnapshot(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()), body.Payload)
	if err != nil {
		s.fail(w, r, err, "SAVE_SNAPSHOT")
		return
	}
	WriteOK(w, http.StatusCreated, Fields{"snapshot": snap})
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Workspaces.LatestSnapshot(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err, "GET_SNAPSHOT")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"snapshot": snap})
}

func (s *Server) handleReadState(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Live.ReadState(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "sid"))
	if err != nil {
		s.fail(w, r, err, "READ_STATE")
		return
	}
	WriteOK(w, http.StatusOK, stateFields(state))
}

func (s *Server) handleUpsertState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State map[string]any `json:"state"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "UPSERT_STATE")
		return
	}
	state, err := s.svc.Live.UpsertState(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "sid"), ActorFromContext(r.Context()), body.State)
	if err != nil {
		s.fail(w, r, err, "UPSERT_STATE")
		return
	}
	WriteOK(w, http.StatusOK, stateFields(state))
}

func (s *Server) handleIssueCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "ISSUE_COMMAND")
		return
	}
	state, err := s.svc.Live.IssueCommand(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "sid"), ActorFromContext(r.Context()), body.Command)
	if err != nil {
		s.fail(w, r, err, "ISSUE_COMMAND")
		return
	}
	snap := live.FromState(state.State)
	WriteOK(w, http.StatusOK, Fields{
		"command":         snap.RemoteCommand,
		"remoteCommandAt": snap.RemoteCommandAt,
		"version":         state.Version,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, ok := parseTimeParam(query.Get("from"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "from must be RFC3339 or epoch milliseconds")
		return
	}
	to, ok := parseTimeParam(query.Get("to"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "to must be RFC3339 or epoch milliseconds")
		return
	}
	summary, err := s.svc.Audit.Summarize(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()), from, to)
	if err != nil {
		s.fail(w, r, err, "SUMMARY")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"summary": summary})
}

func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.svc.Audit.Tail(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()), limit)
	if err != nil {
		s.fail(w, r, err, "AUDIT")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"entries": entries})
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var body audience.SubmitRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "SUBMIT_MESSAGE")
		return
	}
	msg, err := s.svc.Audience.Submit(r.Context(), chi.URLParam(r, "ws"), body)
	if err != nil {
		s.fail(w, r, err, "SUBMIT_MESSAGE")
		return
	}
	WriteOK(w, http.StatusCreated, Fields{"message": msg})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := audience.ListOptions{}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := audience.Status(strings.ToLower(raw))
		opts.Status = &status
	}
	opts.Limit, _ = strconv.Atoi(query.Get("limit"))

	msgs, err := s.svc.Audience.List(r.Context(), chi.URLParam(r, "ws"), ActorFromContext(r.Context()), opts)
	if err != nil {
		s.fail(w, r, err, "LIST_MESSAGES")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"messages": msgs})
}

func (s *Server) handleModerateMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err, "MODERATE_MESSAGE")
		return
	}
	status := audience.Status(strings.ToLower(strings.TrimSpace(body.Status)))
	msg, err := s.svc.Audience.Moderate(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"), ActorFromContext(r.Context()), status)
	if err != nil {
		s.fail(w, r, err, "MODERATE_MESSAGE")
		return
	}
	WriteOK(w, http.StatusOK, Fields{"message": msg})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Audience.Delete(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"), ActorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err, "DELETE_MESSAGE")
		return
	}
	WriteOK(w, http.StatusOK, nil)
}

func stateFields(state *livestate.SessionState) Fields {
	return Fields{
		"workspaceId": state.WorkspaceID,
		"sessionId":   state.SessionID,
		"version":     state.Version,
		"state":       state.State,
		"updatedAt":   state.UpdatedAt,
	}
}

// parseTimeParam accepts RFC3339 or epoch milliseconds. Empty is the zero
// time.
func parseTimeParam(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	ms := live.TimestampMillis(raw)
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

package livestate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rpggio/livesync/internal/domain/livestate"

// Service handles session state reads, merge-upserts and remote commands.
type Service struct {
	repo      Repository
	auth      Authorizer
	audit     AuditRecorder
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new live state service. The publisher may be nil.
func NewService(repo Repository, auth Authorizer, recorder AuditRecorder, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		auth:      auth,
		audit:     recorder,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReadState returns the latest state of a session. Reads are anonymous; an
// unknown session yields an empty state at version 0.
func (s *Service) ReadState(ctx context.Context, workspaceID, sessionID string) (*SessionState, error) {
	ctx, span := s.tracer.Start(ctx, "livestate.ReadState", trace.WithAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	if !validID(workspaceID) || !validID(sessionID) {
		return nil, ErrInvalidInput
	}
	state, err := s.repo.Get(ctx, workspaceID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &SessionState{
				WorkspaceID: workspaceID,
				SessionID:   sessionID,
				State:       map[string]any{},
			}, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reading session state: %w", err)
	}
	return state, nil
}

// UpsertState shallow-merges partial into the session state. The actor
// must be the workspace owner or an allow-listed operator.
func (s *Service) UpsertState(ctx context.Context, workspaceID, sessionID string, actor access.Actor, partial map[string]any) (*SessionState, error) {
	ctx, span := s.tracer.Start(ctx, "livestate.UpsertState", trace.WithAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.String("session.id", sessionID),
		attribute.Int("state.keys", len(partial)),
	))
	defer span.End()

	if len(partial) == 0 {
		return nil, ErrInvalidInput
	}
	state, err := s.write(ctx, workspaceID, sessionID, actor, partial)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.record(ctx, audit.NewEntry(workspaceID, sessionID, actor, audit.ActionStateUpsert, map[string]any{
		"keys":    sortedKeys(partial),
		"version": state.Version,
	}))
	span.SetAttributes(attribute.Int64("state.version", state.Version))
	return state, nil
}

// IssueCommand embeds a remote command into the session state, stamped
// with the server clock in epoch milliseconds.
func (s *Service) IssueCommand(ctx context.Context, workspaceID, sessionID string, actor access.Actor, raw string) (*SessionState, error) {
	ctx, span := s.tracer.Start(ctx, "livestate.IssueCommand", trace.WithAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	cmd, err := ParseCommand(raw)
	if err != nil {
		return nil, err
	}
	issuedAt := s.now().UnixMilli()
	state, err := s.write(ctx, workspaceID, sessionID, actor, map[string]any{
		live.KeyRemoteCommand:   string(cmd),
		live.KeyRemoteCommandAt: issuedAt,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.record(ctx, audit.NewEntry(workspaceID, sessionID, actor, audit.ActionRemoteCommand, map[string]any{
		"command":  cmd,
		"issuedAt": issuedAt,
	}))
	span.SetAttributes(attribute.String("command", string(cmd)))
	return state, nil
}

func (s *Service) write(ctx context.Context, workspaceID, sessionID string, actor access.Actor, partial map[string]any) (*SessionState, error) {
	if !validID(sessionID) {
		return nil, ErrInvalidInput
	}
	if _, err := s.auth.Authorize(ctx, workspaceID, actor, true); err != nil {
		return nil, err
	}

	state, err := s.repo.Merge(ctx, workspaceID, sessionID, partial, s.now())
	if err != nil {
		return nil, fmt.Errorf("merging session state: %w", err)
	}
	s.logger.Debug("session state merged",
		"workspace_id", workspaceID,
		"session_id", sessionID,
		"version", state.Version,
	)
	if s.publisher != nil {
		s.publisher.Publish(*state)
	}
	return state, nil
}

func (s *Service) record(ctx context.Context, entry *audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "workspace_id", entry.WorkspaceID, "action", entry.Action, "error", err)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

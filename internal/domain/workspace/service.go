package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/repository"
)

// Service handles workspace operations and is the permission authority for
// everything scoped to a workspace.
type Service struct {
	repo      Repository
	snapshots SnapshotRepository
	audit     AuditRecorder
	logger    *slog.Logger
	keep      int
	now       func() time.Time
}

// NewService creates a new workspace service.
func NewService(repo Repository, snapshots SnapshotRepository, recorder AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		audit:     recorder,
		logger:    logger,
		keep:      DefaultSnapshotsRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetSnapshotRetention overrides how many snapshots are kept per workspace.
func (s *Service) SetSnapshotRetention(keep int) {
	if keep > 0 {
		s.keep = keep
	}
}

// Get returns the workspace view for an operator.
func (s *Service) Get(ctx context.Context, id string, actor access.Actor) (*View, error) {
	ws, err := s.Authorize(ctx, id, actor, false)
	if err != nil {
		return nil, err
	}

	view := &View{
		Workspace:        *ws,
		Operators:        ws.Operators(),
		StageTimerLayout: ws.StageTimerLayout(),
	}
	latest, err := s.snapshots.Latest(ctx, id)
	switch {
	case err == nil:
		view.LatestSnapshot = latest
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return view, nil
}

// UpdateSettings shallow-merges partial into the workspace settings. Owner
// only; the owner's first write creates the workspace.
func (s *Service) UpdateSettings(ctx context.Context, id string, actor access.Actor, partial map[string]any) (*Workspace, error) {
	if len(partial) == 0 {
		return nil, ErrInvalidInput
	}
	if err := s.RequireOwner(ctx, id, actor); err != nil {
		return nil, err
	}
	if _, err := s.ensure(ctx, id, actor); err != nil {
		return nil, err
	}
	if raw, ok := partial[SettingStageTimerLayout]; ok && raw != nil {
		partial = live.Merge(partial, map[string]any{
			SettingStageTimerLayout: live.StageTimerLayoutFrom(raw).Map(),
		})
	}

	ws, err := s.repo.MergeSettings(ctx, id, partial, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("updating settings: %w", err)
	}

	s.record(ctx, audit.NewEntry(id, "", actor, audit.ActionSettingsUpdate, map[string]any{
		"keys": sortedKeys(partial),
	}))
	return ws, nil
}

// SaveSnapshot stores a new numbered snapshot of the workspace. Owner only.
func (s *Service) SaveSnapshot(ctx context.Context, id string, actor access.Actor, payload map[string]any) (*Snapshot, error) {
	if payload == nil {
		return nil, ErrInvalidInput
	}
	if err := s.RequireOwner(ctx, id, actor); err != nil {
		return nil, err
	}
	if _, err := s.ensure(ctx, id, actor); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		WorkspaceID: id,
		Payload:     payload,
		CreatedBy:   strings.TrimSpace(actor.UID),
		CreatedAt:   s.now(),
	}
	if err := s.snapshots.Append(ctx, snap, s.keep); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}

	s.record(ctx, audit.NewEntry(id, "", actor, audit.ActionSnapshotSave, map[string]any{
		"version": snap.Version,
	}))
	return snap, nil
}

// LatestSnapshot returns the newest snapshot for an operator.
func (s *Service) LatestSnapshot(ctx context.Context, id string, actor access.Actor) (*Snapshot, error) {
	if _, err := s.Authorize(ctx, id, actor, false); err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Latest(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return snap, nil
}

// Authorize loads the workspace and checks that actor is its owner or an
// allow-listed operator. When bootstrap is set and the workspace is
// missing, an actor whose UID equals the workspace ID creates it.
func (s *Service) Authorize(ctx context.Context, id string, actor access.Actor, bootstrap bool) (*Workspace, error) {
	if actor.Anonymous() {
		return nil, access.ErrAuthRequired
	}
	if !validID(id) {
		return nil, ErrInvalidInput
	}

	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("loading workspace: %w", err)
		}
		if strings.TrimSpace(actor.UID) != id {
			return nil, access.ErrForbidden
		}
		if !bootstrap {
			return nil, ErrWorkspaceNotFound
		}
		return s.ensure(ctx, id, actor)
	}

	if err := ws.Policy().RequireOperator(actor); err != nil {
		return nil, err
	}
	return ws, nil
}

// RequireOwner checks that actor owns the workspace. A missing workspace
// is owned by the UID equal to its ID.
func (s *Service) RequireOwner(ctx context.Context, id string, actor access.Actor) error {
	if actor.Anonymous() {
		return access.ErrAuthRequired
	}
	if !validID(id) {
		return ErrInvalidInput
	}

	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("loading workspace: %w", err)
		}
		ws = &Workspace{ID: id, OwnerUID: id}
	}
	return ws.Policy().RequireOwner(actor)
}

func (s *Service) ensure(ctx context.Context, id string, actor access.Actor) (*Workspace, error) {
	ws, err := s.repo.Get(ctx, id)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}

	now := s.now()
	ws = &Workspace{
		ID:        id,
		OwnerUID:  strings.TrimSpace(actor.UID),
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, ws); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.repo.Get(ctx, id)
		}
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	s.logger.Info("workspace created", "workspace_id", id)
	return ws, nil
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

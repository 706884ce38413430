package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
)

const (
	defaultTailLimit = 50
	maxTailLimit     = 500
	defaultRange     = 30 * 24 * time.Hour
)

// Service handles audit trail operations.
type Service struct {
	repo   Repository
	guard  Guard
	logger *slog.Logger
}

// NewService creates a new audit service.
func NewService(repo Repository, guard Guard, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, logger: logger}
}

// SetGuard wires the owner check after construction; the workspace service
// that implements it also depends on this service.
func (s *Service) SetGuard(guard Guard) {
	s.guard = guard
}

// Record appends an audit entry, stamping the current time if missing.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || strings.TrimSpace(entry.WorkspaceID) == "" || entry.Action == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging audit entry: %w", err)
	}
	return nil
}

// Tail returns the newest audit entries of a workspace. Owner only.
func (s *Service) Tail(ctx context.Context, workspaceID string, actor access.Actor, limit int) ([]Entry, error) {
	if err := s.requireOwner(ctx, workspaceID, actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTailLimit
	}
	if limit > maxTailLimit {
		limit = maxTailLimit
	}
	entries, err := s.repo.List(ctx, workspaceID, ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Summarize counts audit entries by action within [from, to]. A zero to
// means now; a zero from means thirty days before to. Owner only.
func (s *Service) Summarize(ctx context.Context, workspaceID string, actor access.Actor, from, to time.Time) (*Summary, error) {
	if err := s.requireOwner(ctx, workspaceID, actor); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultRange)
	}
	if from.After(to) {
		return nil, ErrInvalidInput
	}

	counts, err := s.repo.CountByAction(ctx, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	summary := &Summary{
		WorkspaceID: workspaceID,
		From:        from,
		To:          to,
		Actions:     counts,
	}
	if summary.Actions == nil {
		summary.Actions = []ActionCount{}
	}
	for _, c := range counts {
		summary.Total += c.Count
	}
	return summary, nil
}

func (s *Service) requireOwner(ctx context.Context, workspaceID string, actor access.Actor) error {
	if s.guard == nil {
		return access.ErrForbidden
	}
	return s.guard.RequireOwner(ctx, workspaceID, actor)
}

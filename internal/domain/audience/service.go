package audience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/repository"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service handles audience submissions and their moderation.
type Service struct {
	repo   Repository
	auth   Authorizer
	audit  AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new audience service.
func NewService(repo Repository, auth Authorizer, recorder AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		auth:   auth,
		audit:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SubmitRequest describes an anonymous audience submission.
type SubmitRequest struct {
	Category      string  `json:"category"`
	Text          string  `json:"text"`
	SubmitterName *string `json:"submitterName,omitempty"`
}

// Submit stores a new pending message. No identity is required.
func (s *Service) Submit(ctx context.Context, workspaceID string, req SubmitRequest) (*Message, error) {
	req, err := ValidateSubmission(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &Message{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		Category:      req.Category,
		Text:          req.Text,
		SubmitterName: req.SubmitterName,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("creating message: %w", err)
	}
	return msg, nil
}

// List returns messages newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, workspaceID string, actor access.Actor, opts ListOptions) ([]Message, error) {
	if _, err := s.auth.Authorize(ctx, workspaceID, actor, false); err != nil {
		return nil, err
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}

	msgs, err := s.repo.List(ctx, workspaceID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Moderate moves a message forward to status.
func (s *Service) Moderate(ctx context.Context, workspaceID, id string, actor access.Actor, status Status) (*Message, error) {
	if _, err := s.auth.Authorize(ctx, workspaceID, actor, false); err != nil {
		return nil, err
	}

	msg, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(msg.Status, status); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, workspaceID, id, status, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("updating message: %w", err)
	}

	s.record(ctx, audit.NewEntry(workspaceID, "", actor, audit.ActionMessageModerated, map[string]any{
		"messageId": id,
		"from":      msg.Status,
		"to":        status,
	}))
	msg.Status = status
	msg.UpdatedAt = now
	return msg, nil
}

// Delete removes a message.
func (s *Service) Delete(ctx context.Context, workspaceID, id string, actor access.Actor) error {
	if _, err := s.auth.Authorize(ctx, workspaceID, actor, false); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, workspaceID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("deleting message: %w", err)
	}

	s.record(ctx, audit.NewEntry(workspaceID, "", actor, audit.ActionMessageDeleted, map[string]any{
		"messageId": id,
	}))
	return nil
}

func (s *Service) get(ctx context.Context, workspaceID, id string) (*Message, error) {
	msg, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("loading message: %w", err)
	}
	return msg, nil
}

func (s *Service) record(ctx context.Context, entry *audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "workspace_id", entry.WorkspaceID, "action", entry.Action, "error", err)
	}
}

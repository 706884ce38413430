package audience

import (
	"context"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/workspace"
)

// Repository provides persistence for audience messages.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	Get(ctx context.Context, workspaceID, id string) (*Message, error)
	List(ctx context.Context, workspaceID string, opts ListOptions) ([]Message, error)
	UpdateStatus(ctx context.Context, workspaceID, id string, status Status, now time.Time) error
	Delete(ctx context.Context, workspaceID, id string) error
}

// Authorizer resolves workspace permissions.
type Authorizer interface {
	Authorize(ctx context.Context, workspaceID string, actor access.Actor, bootstrap bool) (*workspace.Workspace, error)
}

// AuditRecorder writes audit entries for moderation actions.
type AuditRecorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

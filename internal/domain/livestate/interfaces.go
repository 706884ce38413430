package livestate

import (
	"context"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/workspace"
)

// Repository provides persistence for session state documents.
type Repository interface {
	Get(ctx context.Context, workspaceID, sessionID string) (*SessionState, error)
	// Merge applies partial on top of the stored state, increments the
	// version and stamps now, all in one transaction.
	Merge(ctx context.Context, workspaceID, sessionID string, partial map[string]any, now time.Time) (*SessionState, error)
}

// Authorizer resolves workspace permissions.
type Authorizer interface {
	Authorize(ctx context.Context, workspaceID string, actor access.Actor, bootstrap bool) (*workspace.Workspace, error)
}

// AuditRecorder writes audit entries for state mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Publisher fans committed states out to real-time subscribers.
type Publisher interface {
	Publish(state SessionState)
}

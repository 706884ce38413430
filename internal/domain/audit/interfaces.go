package audit

import (
	"context"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
)

// Repository provides persistence operations for audit entries.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, workspaceID string, opts ListOptions) ([]Entry, error)
	CountByAction(ctx context.Context, workspaceID string, from, to time.Time) ([]ActionCount, error)
}

// Guard authorizes owner-only audit reads.
type Guard interface {
	RequireOwner(ctx context.Context, workspaceID string, actor access.Actor) error
}

package workspace

import (
	"context"
	"time"

	"github.com/rpggio/livesync/internal/domain/audit"
)

// Repository provides persistence for workspaces.
type Repository interface {
	Create(ctx context.Context, ws *Workspace) error
	Get(ctx context.Context, id string) (*Workspace, error)
	MergeSettings(ctx context.Context, id string, partial map[string]any, now time.Time) (*Workspace, error)
}

// SnapshotRepository provides persistence for workspace snapshots.
type SnapshotRepository interface {
	Append(ctx context.Context, snap *Snapshot, keep int) error
	Latest(ctx context.Context, workspaceID string) (*Snapshot, error)
}

// AuditRecorder writes audit entries for workspace mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

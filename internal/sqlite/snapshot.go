package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/repository"
)

// SnapshotRepository implements workspace.SnapshotRepository for SQLite
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Append stores snap as version max+1 of its workspace and prunes all but
// the newest keep snapshots. snap.ID and snap.Version are filled in.
func (r *SnapshotRepository) Append(ctx context.Context, snap *workspace.Snapshot, keep int) error {
	payload, err := encodeObject(snap.Payload)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE workspace_id = ?`,
		snap.WorkspaceID,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get next snapshot version: %w", err)
	}

	query := `
		INSERT INTO snapshots (workspace_id, version, payload, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		snap.WorkspaceID,
		version,
		payload,
		snap.CreatedBy,
		snap.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	if keep > 0 {
		prune := `
			DELETE FROM snapshots
			WHERE workspace_id = ? AND version <= ?
		`
		if _, err := tx.ExecContext(ctx, prune, snap.WorkspaceID, version-int64(keep)); err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	snap.ID = id
	snap.Version = version
	return nil
}

// Latest returns the highest-version snapshot of a workspace
func (r *SnapshotRepository) Latest(ctx context.Context, workspaceID string) (*workspace.Snapshot, error) {
	query := `
		SELECT id, workspace_id, version, payload, created_by, created_at
		FROM snapshots
		WHERE workspace_id = ?
		ORDER BY version DESC
		LIMIT 1
	`

	var snap workspace.Snapshot
	var payload string
	err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(
		&snap.ID,
		&snap.WorkspaceID,
		&snap.Version,
		&payload,
		&snap.CreatedBy,
		&snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	snap.Payload, err = decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Count returns how many snapshots a workspace currently keeps
func (r *SnapshotRepository) Count(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE workspace_id = ?`, workspaceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

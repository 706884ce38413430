package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/repository"
)

// WorkspaceRepository implements workspace.Repository for SQLite
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create inserts a new workspace
func (r *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace) error {
	settings, err := encodeObject(ws.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workspaces (id, owner_uid, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		ws.ID,
		ws.OwnerUID,
		settings,
		ws.CreatedAt,
		ws.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	return nil
}

// Get retrieves a workspace by ID
func (r *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	return getWorkspace(ctx, r.db, id)
}

// MergeSettings shallow-merges partial into the stored settings in one
// transaction
func (r *WorkspaceRepository) MergeSettings(ctx context.Context, id string, partial map[string]any, now time.Time) (*workspace.Workspace, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ws, err := getWorkspace(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	ws.Settings = live.Merge(ws.Settings, partial)
	ws.UpdatedAt = now
	settings, err := encodeObject(ws.Settings)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE workspaces
		SET settings = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, query, settings, now, id); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Re-decode so callers see the stored JSON shape.
	ws.Settings, err = decodeObject(settings)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getWorkspace(ctx context.Context, q queryer, id string) (*workspace.Workspace, error) {
	query := `
		SELECT id, owner_uid, settings, created_at, updated_at
		FROM workspaces
		WHERE id = ?
	`

	var ws workspace.Workspace
	var settings string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&ws.ID,
		&ws.OwnerUID,
		&settings,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	ws.Settings, err = decodeObject(settings)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

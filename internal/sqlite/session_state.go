package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/repository"
)

// SessionStateRepository implements livestate.Repository for SQLite
type SessionStateRepository struct {
	db *DB
}

// NewSessionStateRepository creates a new SessionStateRepository
func NewSessionStateRepository(db *DB) *SessionStateRepository {
	return &SessionStateRepository{db: db}
}

// Get retrieves the state document of a session
func (r *SessionStateRepository) Get(ctx context.Context, workspaceID, sessionID string) (*livestate.SessionState, error) {
	return getSessionState(ctx, r.db, workspaceID, sessionID)
}

// Merge applies partial to the stored state, bumps the version and stamps
// now. The read and the write share one transaction so concurrent writers
// never lose an increment.
func (r *SessionStateRepository) Merge(ctx context.Context, workspaceID, sessionID string, partial map[string]any, now time.Time) (*livestate.SessionState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getSessionState(ctx, tx, workspaceID, sessionID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		current = &livestate.SessionState{
			WorkspaceID: workspaceID,
			SessionID:   sessionID,
			State:       map[string]any{},
		}
	case err != nil:
		return nil, err
	}

	encoded, err := encodeObject(live.Merge(current.State, partial))
	if err != nil {
		return nil, err
	}
	version := current.Version + 1

	query := `
		INSERT INTO session_states (workspace_id, session_id, version, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, session_id) DO UPDATE SET
			version = excluded.version,
			state = excluded.state,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, workspaceID, sessionID, version, encoded, now); err != nil {
		if isForeignKeyViolation(err) {
			return nil, repository.ErrForeignKeyViolation
		}
		return nil, fmt.Errorf("failed to write session state: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	state, err := decodeObject(encoded)
	if err != nil {
		return nil, err
	}
	return &livestate.SessionState{
		WorkspaceID: workspaceID,
		SessionID:   sessionID,
		Version:     version,
		State:       state,
		UpdatedAt:   now,
	}, nil
}

func getSessionState(ctx context.Context, q queryer, workspaceID, sessionID string) (*livestate.SessionState, error) {
	query := `
		SELECT workspace_id, session_id, version, state, updated_at
		FROM session_states
		WHERE workspace_id = ? AND session_id = ?
	`

	var s livestate.SessionState
	var raw string
	err := q.QueryRowContext(ctx, query, workspaceID, sessionID).Scan(
		&s.WorkspaceID,
		&s.SessionID,
		&s.Version,
		&raw,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}

	s.State, err = decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

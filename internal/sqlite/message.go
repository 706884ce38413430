package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/repository"
)

// MessageRepository implements audience.Repository for SQLite
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new audience message
func (r *MessageRepository) Create(ctx context.Context, msg *audience.Message) error {
	query := `
		INSERT INTO audience_messages (
			id, workspace_id, category, text, submitter_name,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.WorkspaceID,
		msg.Category,
		msg.Text,
		msg.SubmitterName,
		msg.Status,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraint(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// Get retrieves a message by ID
func (r *MessageRepository) Get(ctx context.Context, workspaceID, id string) (*audience.Message, error) {
	query := `
		SELECT id, workspace_id, category, text, submitter_name, status, created_at, updated_at
		FROM audience_messages
		WHERE workspace_id = ? AND id = ?
	`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, workspaceID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// List returns messages of a workspace, newest first
func (r *MessageRepository) List(ctx context.Context, workspaceID string, opts audience.ListOptions) ([]audience.Message, error) {
	query := `
		SELECT id, workspace_id, category, text, submitter_name, status, created_at, updated_at
		FROM audience_messages
		WHERE workspace_id = ?
	`
	args := []any{workspaceID}

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, *opts.Status)
	}
	query += " ORDER BY created_at DESC, id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []audience.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return msgs, nil
}

// UpdateStatus sets the moderation status of a message
func (r *MessageRepository) UpdateStatus(ctx context.Context, workspaceID, id string, status audience.Status, now time.Time) error {
	query := `
		UPDATE audience_messages
		SET status = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, now, workspaceID, id)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a message
func (r *MessageRepository) Delete(ctx context.Context, workspaceID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM audience_messages WHERE workspace_id = ? AND id = ?`,
		workspaceID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*audience.Message, error) {
	var msg audience.Message
	var name sql.NullString
	if err := row.Scan(
		&msg.ID,
		&msg.WorkspaceID,
		&msg.Category,
		&msg.Text,
		&name,
		&msg.Status,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if name.Valid {
		msg.SubmitterName = &name.String
	}
	return &msg, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/domain/audit"
)

// AuditRepository implements audit.Repository for SQLite
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log inserts a new audit entry
func (r *AuditRepository) Log(ctx context.Context, entry *audit.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	details := entry.Details
	if details == "" {
		details = "{}"
	}

	query := `
		INSERT INTO audit_log (
			workspace_id, session_id, actor_uid, actor_email,
			action, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.WorkspaceID,
		entry.SessionID,
		entry.ActorUID,
		entry.ActorEmail,
		entry.Action,
		details,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", mapConstraint(err))
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	entry.Details = details
	entry.CreatedAt = createdAt

	return nil
}

// List returns audit entries matching the given filters, newest first
func (r *AuditRepository) List(ctx context.Context, workspaceID string, opts audit.ListOptions) ([]audit.Entry, error) {
	query := `
		SELECT
			id, workspace_id, session_id, actor_uid, actor_email,
			action, details, created_at
		FROM audit_log
		WHERE workspace_id = ?
	`

	args := []any{workspaceID}
	conditions := []string{}

	if opts.SessionID != nil {
		conditions = append(conditions, "session_id = ?")
		args = append(args, *opts.SessionID)
	}
	if opts.Action != nil {
		conditions = append(conditions, "action = ?")
		args = append(args, *opts.Action)
	}
	if opts.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var sessionID sql.NullString
		var actorEmail sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.WorkspaceID,
			&sessionID,
			&entry.ActorUID,
			&actorEmail,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if sessionID.Valid {
			entry.SessionID = &sessionID.String
		}
		if actorEmail.Valid {
			entry.ActorEmail = &actorEmail.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

// CountByAction aggregates entries of a workspace within [from, to]
func (r *AuditRepository) CountByAction(ctx context.Context, workspaceID string, from, to time.Time) ([]audit.ActionCount, error) {
	query := `
		SELECT action, COUNT(*)
		FROM audit_log
		WHERE workspace_id = ? AND created_at >= ? AND created_at <= ?
		GROUP BY action
		ORDER BY COUNT(*) DESC, action ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}
	defer rows.Close()

	var counts []audit.ActionCount
	for rows.Next() {
		var c audit.ActionCount
		if err := rows.Scan(&c.Action, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit counts: %w", err)
	}

	return counts, nil
}

package audit

import "time"

// Action names the kind of mutation an audit entry records
type Action string

const (
	ActionStateUpsert      Action = "state_upsert"
	ActionRemoteCommand    Action = "remote_command"
	ActionSettingsUpdate   Action = "settings_update"
	ActionSnapshotSave     Action = "snapshot_save"
	ActionMessageModerated Action = "message_moderated"
	ActionMessageDeleted   Action = "message_deleted"
)

// Entry represents one mutation in the audit trail
type Entry struct {
	ID          int64     `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	SessionID   *string   `json:"sessionId,omitempty"`
	ActorUID    string    `json:"actorUid"`
	ActorEmail  *string   `json:"actorEmail,omitempty"`
	Action      Action    `json:"action"`
	Details     string    `json:"details,omitempty"` // JSON string
	CreatedAt   time.Time `json:"createdAt"`
}

// ActionCount is one row of a summary report
type ActionCount struct {
	Action Action `json:"action"`
	Count  int    `json:"count"`
}

// Summary aggregates audit entries by action over a time range
type Summary struct {
	WorkspaceID string        `json:"workspaceId"`
	From        time.Time     `json:"from"`
	To          time.Time     `json:"to"`
	Total       int           `json:"total"`
	Actions     []ActionCount `json:"actions"`
}

package audit

import (
	"encoding/json"
	"strings"

	"github.com/rpggio/livesync/internal/domain/access"
)

// NewEntry builds an entry for a mutation performed by actor. Details are
// JSON encoded; an empty sessionID leaves the entry workspace-scoped.
func NewEntry(workspaceID, sessionID string, actor access.Actor, action Action, details any) *Entry {
	entry := &Entry{
		WorkspaceID: workspaceID,
		ActorUID:    strings.TrimSpace(actor.UID),
		Action:      action,
		Details:     "{}",
	}
	if sessionID != "" {
		entry.SessionID = &sessionID
	}
	if email := strings.ToLower(strings.TrimSpace(actor.Email)); email != "" {
		entry.ActorEmail = &email
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = string(raw)
		}
	}
	return entry
}

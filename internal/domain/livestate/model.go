package livestate

import (
	"strings"
	"time"
)

// SessionState is the durable state document of one (workspace, session)
// pair.
type SessionState struct {
	WorkspaceID string         `json:"workspaceId"`
	SessionID   string         `json:"sessionId"`
	Version     int64          `json:"version"`
	State       map[string]any `json:"state"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Key identifies a session state document.
type Key struct {
	WorkspaceID string
	SessionID   string
}

// Key returns the document key.
func (s SessionState) Key() Key {
	return Key{WorkspaceID: s.WorkspaceID, SessionID: s.SessionID}
}

// Command is a remote control signal embedded in session state.
type Command string

const (
	CommandNext     Command = "NEXT"
	CommandPrev     Command = "PREV"
	CommandBlackout Command = "BLACKOUT"
)

// ParseCommand normalizes a raw command name.
func ParseCommand(raw string) (Command, error) {
	switch cmd := Command(strings.ToUpper(strings.TrimSpace(raw))); cmd {
	case CommandNext, CommandPrev, CommandBlackout:
		return cmd, nil
	default:
		return "", ErrInvalidCommand
	}
}

func validID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= 128 && !strings.ContainsAny(id, "/\\")
}

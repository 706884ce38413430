package workspace

import (
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/live"
)

// Settings keys with meaning to the server.
const (
	SettingAllowedOperators   = "allowedOperatorEmails"
	SettingStageProfile       = "stageProfile"
	SettingDefaultBible       = "defaultBibleVersion"
	SettingStageTimerLayout   = "stageTimerLayout"
	DefaultSnapshotsRetention = 100
)

// Workspace is an owner-scoped container for settings, snapshots and
// sessions.
type Workspace struct {
	ID        string         `json:"id"`
	OwnerUID  string         `json:"ownerUid"`
	Settings  map[string]any `json:"settings"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Operators returns the parsed allow-list.
func (w *Workspace) Operators() []access.Operator {
	raw, _ := w.Settings[SettingAllowedOperators].(string)
	return access.ParseOperators(raw)
}

// Policy returns the permission view of the workspace.
func (w *Workspace) Policy() access.Policy {
	return access.Policy{OwnerUID: w.OwnerUID, Operators: w.Operators()}
}

// StageTimerLayout returns the saved stage timer geometry or the default.
func (w *Workspace) StageTimerLayout() live.StageTimerLayout {
	return live.StageTimerLayoutFrom(w.Settings[SettingStageTimerLayout])
}

// Snapshot is an immutable, numbered full-state save used for recovery.
type Snapshot struct {
	ID          int64          `json:"id"`
	WorkspaceID string         `json:"workspaceId"`
	Version     int64          `json:"version"`
	Payload     map[string]any `json:"payload"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// View is what an operator sees when opening a workspace.
type View struct {
	Workspace        Workspace             `json:"workspace"`
	Operators        []access.Operator     `json:"operators"`
	StageTimerLayout live.StageTimerLayout `json:"stageTimerLayout"`
	LatestSnapshot   *Snapshot             `json:"latestSnapshot,omitempty"`
}

func validID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= 128 && !strings.ContainsAny(id, "/\\")
}

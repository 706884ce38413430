package surface

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpggio/livesync/internal/live"
)

// DefaultHeartbeatInterval is how often a controller announces itself.
const DefaultHeartbeatInterval = 4 * time.Second

// Heartbeat periodically writes the controller's identity into the session
// state. The write touches only metadata keys, so outputs keep rendering
// what they render.
type Heartbeat struct {
	server      StateWriter
	workspaceID string
	sessionID   string
	email       string
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewHeartbeat creates a heartbeat for the controller signed in as email.
func NewHeartbeat(server StateWriter, workspaceID, sessionID, email string, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		server:      server,
		workspaceID: workspaceID,
		sessionID:   sessionID,
		email:       email,
		interval:    DefaultHeartbeatInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// Beat writes one heartbeat.
func (h *Heartbeat) Beat(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	_, err := h.server.UpsertState(reqCtx, h.workspaceID, h.sessionID, map[string]any{
		live.KeyControllerEmail:  h.email,
		live.KeyControllerBeatAt: h.now().UnixMilli(),
	})
	return err
}

// Run beats until ctx is done. Failures are logged and retried on the next
// tick.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if err := h.Beat(ctx); err != nil && ctx.Err() == nil {
			h.logger.Warn("controller heartbeat failed", "workspace_id", h.workspaceID, "session_id", h.sessionID, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

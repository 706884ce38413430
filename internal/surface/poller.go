package surface

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpggio/livesync/internal/live"
)

// DefaultPollInterval is the server poll cadence.
const DefaultPollInterval = 1200 * time.Millisecond

// ServerPoller reads the session state from the server at a fixed cadence.
type ServerPoller struct {
	latest
	client      StateReader
	workspaceID string
	sessionID   string
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewServerPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewServerPoller(client StateReader, workspaceID, sessionID string, interval time.Duration, logger *slog.Logger) *ServerPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerPoller{
		client:      client,
		workspaceID: workspaceID,
		sessionID:   sessionID,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

func (p *ServerPoller) Kind() live.SourceKind { return live.SourceServer }

func (p *ServerPoller) Latest() (Reading, bool) { return p.get() }

// Run polls until ctx is done.
func (p *ServerPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Refresh(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh performs one fetch. On failure the previous reading stays.
func (p *ServerPoller) Refresh(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := p.client.ReadState(reqCtx, p.workspaceID, p.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.fail(err)
		p.logger.Warn("server poll failed", "workspace_id", p.workspaceID, "session_id", p.sessionID, "error", err)
		return
	}
	p.set(readingFromResponse(live.SourceServer, resp, p.now()))
}

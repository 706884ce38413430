package surface

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/live"
)

const (
	defaultReconnectDelay = 2 * time.Second
	maxEventBytes         = 4 << 20
)

var errStreamClosed = errors.New("stream closed by server")

// StreamOpener opens a session's server-sent event stream. Implemented by
// *Client.
type StreamOpener interface {
	OpenStream(ctx context.Context, workspaceID, sessionID string) (io.ReadCloser, error)
}

var _ StreamOpener = (*Client)(nil)

// PushSource follows the server's real-time stream and reconnects after
// failures.
type PushSource struct {
	latest
	opener         StreamOpener
	workspaceID    string
	sessionID      string
	reconnectDelay time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewPushSource creates a push source.
func NewPushSource(opener StreamOpener, workspaceID, sessionID string, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSource{
		opener:         opener,
		workspaceID:    workspaceID,
		sessionID:      sessionID,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger,
		now:            time.Now,
	}
}

func (p *PushSource) Kind() live.SourceKind { return live.SourcePush }

func (p *PushSource) Latest() (Reading, bool) { return p.get() }

// Run consumes the stream until ctx is done.
func (p *PushSource) Run(ctx context.Context) error {
	for {
		err := p.follow(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			p.fail(err)
			p.logger.Warn("push stream dropped", "workspace_id", p.workspaceID, "session_id", p.sessionID, "error", err)
		}
		if !sleepCtx(ctx, p.reconnectDelay) {
			return nil
		}
	}
}

func (p *PushSource) follow(ctx context.Context) error {
	body, err := p.opener.OpenStream(ctx, p.workspaceID, p.sessionID)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	var lastVersion int64
	err = readEvents(body, func(ev event) error {
		if ev.Name != "state" {
			return nil
		}
		var resp StateResponse
		if err := json.Unmarshal([]byte(ev.Data), &resp); err != nil {
			p.logger.Debug("skipping malformed push event", "error", err)
			return nil
		}
		if resp.Version != 0 && resp.Version <= lastVersion {
			return nil
		}
		lastVersion = resp.Version
		p.set(readingFromResponse(live.SourcePush, &resp, p.now()))
		return nil
	})
	if err != nil {
		return err
	}
	return errStreamClosed
}

type event struct {
	ID   string
	Name string
	Data string
}

// readEvents parses a text/event-stream body, calling fn for each event.
// Comment lines are ignored. Events without a name are "message" events.
func readEvents(r io.Reader, fn func(event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var (
		current event
		data    []string
	)
	dispatch := func() error {
		if len(data) == 0 {
			current = event{}
			return nil
		}
		current.Data = strings.Join(data, "\n")
		if current.Name == "" {
			current.Name = "message"
		}
		ev := current
		current = event{}
		data = data[:0]
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			current.Name = value
		case "data":
			data = append(data, value)
		case "id":
			current.ID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

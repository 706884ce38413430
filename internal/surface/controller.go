package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/live"
)

// ErrUnknownCommand is returned by Apply for anything but NEXT, PREV and
// BLACKOUT.
var ErrUnknownCommand = errors.New("unknown remote command")

// Controller owns the operator's live view. Every change is written to the
// local cache first and then pushed to the server; a failed push is logged
// and never rolls back the local view.
type Controller struct {
	// writeMu orders persistence: each change reaches the cache and the
	// server before the next one starts.
	writeMu     sync.Mutex
	mu          sync.Mutex
	snap        live.Snapshot
	extra       map[string]any
	cache       *LocalCache
	server      StateWriter
	workspaceID string
	sessionID   string
	logger      *slog.Logger
	now         func() time.Time
}

// ControllerOptions configures a Controller. Server may be nil for an
// offline controller.
type ControllerOptions struct {
	Cache       *LocalCache
	Server      StateWriter
	WorkspaceID string
	SessionID   string
	Logger      *slog.Logger
}

// NewController creates a controller, restoring its view from the cache.
func NewController(opts ControllerOptions) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cache:       opts.Cache,
		server:      opts.Server,
		workspaceID: opts.WorkspaceID,
		sessionID:   opts.SessionID,
		logger:      logger,
		now:         time.Now,
		extra:       map[string]any{},
	}
	if c.cache != nil {
		doc, err := c.cache.Load()
		if err != nil {
			return nil, err
		}
		c.snap = live.FromState(doc)
		for _, key := range []string{KeySelectedItemID, KeyViewMode} {
			if v, ok := doc[key]; ok {
				c.extra[key] = v
			}
		}
	} else {
		c.snap = live.FromState(nil)
	}
	return c, nil
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() live.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Set replaces the whole view, e.g. after the operator edits the schedule.
func (c *Controller) Set(ctx context.Context, snap live.Snapshot) error {
	return c.update(ctx, func(live.Snapshot) live.Snapshot { return snap })
}

// Select records the item highlighted in the operator's schedule list. It
// does not change what is live.
func (c *Controller) Select(ctx context.Context, itemID string) error {
	c.mu.Lock()
	c.extra[KeySelectedItemID] = itemID
	c.mu.Unlock()
	return c.update(ctx, func(s live.Snapshot) live.Snapshot { return s })
}

// GoLive makes the given item and slide active.
func (c *Controller) GoLive(ctx context.Context, itemID string, slideIndex int) error {
	return c.update(ctx, func(s live.Snapshot) live.Snapshot {
		s.ActiveItemID = itemID
		s.ActiveSlideIndex = max(slideIndex, 0)
		return s
	})
}

// Next advances one slide.
func (c *Controller) Next(ctx context.Context) error { return c.update(ctx, StepNext) }

// Prev goes back one slide.
func (c *Controller) Prev(ctx context.Context) error { return c.update(ctx, StepPrev) }

// ToggleBlackout flips blackout.
func (c *Controller) ToggleBlackout(ctx context.Context) error {
	return c.update(ctx, ToggleBlackout)
}

// Apply executes a remote command.
func (c *Controller) Apply(ctx context.Context, command string) error {
	cmd, err := livestate.ParseCommand(command)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	switch cmd {
	case livestate.CommandNext:
		return c.Next(ctx)
	case livestate.CommandPrev:
		return c.Prev(ctx)
	default:
		return c.ToggleBlackout(ctx)
	}
}

func (c *Controller) update(ctx context.Context, fn func(live.Snapshot) live.Snapshot) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next := fn(c.snap)
	next.UpdatedAt = c.now().UnixMilli()
	c.snap = next
	state := next.State()
	doc := maps.Clone(state)
	maps.Copy(doc, c.extra)
	c.mu.Unlock()

	var cacheErr error
	if c.cache != nil {
		if err := c.cache.Save(doc); err != nil {
			c.logger.Warn("local cache write failed", "path", c.cache.Path(), "error", err)
			cacheErr = err
		}
	}
	if c.server != nil {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		if _, err := c.server.UpsertState(reqCtx, c.workspaceID, c.sessionID, state); err != nil {
			c.logger.Warn("state sync failed", "workspace_id", c.workspaceID, "session_id", c.sessionID, "error", err)
		}
	}
	return cacheErr
}

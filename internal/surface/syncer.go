package surface

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/livesync/internal/live"
	"golang.org/x/sync/errgroup"
)

// DefaultTickInterval is the reconciliation cadence.
const DefaultTickInterval = 250 * time.Millisecond

// Frame is the outcome of one reconciliation tick.
type Frame struct {
	Display live.Display
	Target  live.RenderTarget
	At      time.Time
}

// CommandHandler executes a remote command on the controller.
type CommandHandler func(ctx context.Context, command string) error

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	// Sources in priority order for equal timestamps: push, server, local.
	Sources []Source
	// Background loops run alongside the sources, e.g. a Heartbeat.
	Background   []Runner
	TickInterval time.Duration
	// OnFrame is called after every tick that has something to show.
	OnFrame func(Frame)
	// Commands and OnCommand make this surface a controller. Only remote
	// sources feed the consumer.
	Commands  *CommandConsumer
	OnCommand CommandHandler
	Logger    *slog.Logger
}

// Syncer runs every source concurrently and reconciles their readings on
// a single tick loop.
type Syncer struct {
	sources    []Source
	background []Runner
	interval   time.Duration
	onFrame    func(Frame)
	commands   *CommandConsumer
	onCommand  CommandHandler
	reconciler *live.Reconciler
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	frame Frame
	has   bool
}

// NewSyncer creates a syncer.
func NewSyncer(opts SyncerOptions) *Syncer {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		sources:    opts.Sources,
		background: opts.Background,
		interval:   interval,
		onFrame:    opts.OnFrame,
		commands:   opts.Commands,
		onCommand:  opts.OnCommand,
		reconciler: live.NewReconciler(),
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts all sources and the tick loop and blocks until ctx is done or
// a loop fails.
func (s *Syncer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		g.Go(func() error { return src.Run(ctx) })
	}
	for _, r := range s.background {
		g.Go(func() error { return r.Run(ctx) })
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick reconciles the current readings once.
func (s *Syncer) Tick(ctx context.Context) (Frame, bool) {
	candidates := make([]live.Candidate, 0, len(s.sources))
	for _, src := range s.sources {
		reading, ok := src.Latest()
		if !ok {
			continue
		}
		candidates = append(candidates, reading.Candidate())
		if src.Kind() != live.SourceLocal {
			s.consumeCommand(ctx, reading)
		}
	}

	display, ok := s.reconciler.Reconcile(candidates...)
	if !ok {
		return Frame{}, false
	}
	frame := Frame{
		Display: display,
		Target:  live.ResolveRoute(display.Candidate.Snapshot),
		At:      s.now(),
	}

	s.mu.Lock()
	s.frame = frame
	s.has = true
	s.mu.Unlock()

	if s.onFrame != nil {
		s.onFrame(frame)
	}
	return frame, true
}

// Current returns the last frame produced by Tick.
func (s *Syncer) Current() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.has
}

func (s *Syncer) consumeCommand(ctx context.Context, reading Reading) {
	if s.commands == nil || s.onCommand == nil {
		return
	}
	cmd, ok := s.commands.Observe(reading.Snapshot)
	if !ok {
		return
	}
	s.logger.Info("remote command", "command", cmd, "source", reading.Source, "at", reading.Snapshot.RemoteCommandAt)
	if err := s.onCommand(ctx, cmd); err != nil {
		s.logger.Warn("remote command failed", "command", cmd, "error", err)
	}
}

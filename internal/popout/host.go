package popout

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultRetryInterval    = 100 * time.Millisecond
	defaultMaxRetries       = 30
	defaultLivenessInterval = 500 * time.Millisecond
	defaultWindowName       = "livesync-output"
	defaultTitle            = "livesync output"
)

// Options configures a Host.
type Options struct {
	Opener Opener
	Clock  Clock
	Mount  MountFunc
	Styles StyleSource
	// Origin is the opener document's origin, used to decide which
	// stylesheet links are copied.
	Origin   string
	Name     string
	Features string
	Title    string

	RetryInterval    time.Duration
	MaxRetries       int
	LivenessInterval time.Duration

	OnMounted func()
	// OnBlocked fires instead of OnClose when the window never became
	// usable.
	OnBlocked func(err error)
	OnClose   func()
	Logger    *slog.Logger
}

// Host drives one popout window through
// UNOPENED -> AWAITING_HOST_READY -> MOUNTED -> CLOSED.
type Host struct {
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	win          Window
	doc          Document
	selfOpened   bool
	attempts     int
	stopRetry    func()
	stopLiveness func()
	unmount      func()
}

// NewHost creates an unopened host.
func NewHost(opts Options) *Host {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = defaultLivenessInterval
	}
	if opts.Name == "" {
		opts.Name = defaultWindowName
	}
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Open opens a new window and starts hosting in it. It must run inside the
// user gesture that asked for the popout, so it never waits.
func (h *Host) Open() error {
	var win Window
	if h.opts.Opener != nil {
		win = h.opts.Opener.Open(h.opts.Name, h.opts.Features)
	}
	return h.start(win, true)
}

// Attach hosts in a window opened elsewhere. Unmount never closes it.
func (h *Host) Attach(win Window) error {
	return h.start(win, false)
}

// Unmount tears the output down. Windows the host opened itself are
// closed; attached windows are left open.
func (h *Host) Unmount() {
	h.mu.Lock()
	if h.state != StateAwaitingHostReady && h.state != StateMounted {
		h.mu.Unlock()
		return
	}
	win, self := h.win, h.selfOpened
	cleanup := h.teardownLocked()
	h.mu.Unlock()

	cleanup()
	if self && !win.Closed() {
		win.Close()
	}
	h.notify(h.opts.OnClose)
}

func (h *Host) start(win Window, self bool) error {
	h.mu.Lock()
	if h.state != StateUnopened {
		h.mu.Unlock()
		return ErrAlreadyOpened
	}
	if win == nil || win.Closed() {
		h.state = StateClosed
		h.mu.Unlock()
		h.blocked(ErrWindowBlocked)
		return ErrWindowBlocked
	}

	h.win = win
	h.selfOpened = self
	h.doc = win.Document()
	if h.doc == nil {
		h.state = StateClosed
		h.mu.Unlock()
		h.closeIfOwned(win, self)
		h.blocked(ErrWindowBlocked)
		return ErrWindowBlocked
	}
	shell, err := Shell(h.opts.Title)
	if err == nil {
		err = h.doc.Write(shell)
	}
	if err != nil {
		h.state = StateClosed
		h.mu.Unlock()
		h.closeIfOwned(win, self)
		h.blocked(fmt.Errorf("%w: %v", ErrWindowBlocked, err))
		return ErrWindowBlocked
	}
	h.state = StateAwaitingHostReady
	h.mu.Unlock()

	if h.tryMount() {
		h.watch()
		return nil
	}

	h.mu.Lock()
	if h.state == StateAwaitingHostReady {
		h.stopRetry = h.opts.Clock.Every(h.opts.RetryInterval, h.retry)
	}
	h.mu.Unlock()
	win.OnLoad(func() { h.tryMount() })
	h.watch()
	return nil
}

// tryMount mounts if the host is still waiting and the mount element
// exists. The first success wins.
func (h *Host) tryMount() bool {
	h.mu.Lock()
	if h.state == StateMounted {
		h.mu.Unlock()
		return true
	}
	if h.state != StateAwaitingHostReady || h.win.Closed() {
		h.mu.Unlock()
		return false
	}
	el := h.doc.Element(MountID)
	if el == nil {
		h.mu.Unlock()
		return false
	}
	skipped, err := bridgeStyles(h.opts.Styles, h.doc, h.opts.Origin)
	if err != nil {
		h.logger.Warn("popout style bridge failed", "error", err)
	} else if skipped > 0 {
		h.logger.Debug("popout skipped unreadable stylesheets", "count", skipped)
	}
	if h.opts.Mount != nil {
		unmount, err := h.opts.Mount(el)
		if err != nil {
			h.mu.Unlock()
			h.logger.Warn("popout mount failed", "error", err)
			return false
		}
		h.unmount = unmount
	}
	h.state = StateMounted
	stop := h.stopRetry
	h.stopRetry = nil
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.notify(h.opts.OnMounted)
	return true
}

func (h *Host) retry() {
	if h.tryMount() {
		return
	}
	h.mu.Lock()
	if h.state != StateAwaitingHostReady {
		h.mu.Unlock()
		return
	}
	h.attempts++
	if h.attempts < h.opts.MaxRetries {
		h.mu.Unlock()
		return
	}
	win, self := h.win, h.selfOpened
	cleanup := h.teardownLocked()
	h.mu.Unlock()

	cleanup()
	h.closeIfOwned(win, self)
	h.blocked(ErrHostNotReady)
}

func (h *Host) watch() {
	stop := h.opts.Clock.Every(h.opts.LivenessInterval, h.checkLiveness)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		stop()
		return
	}
	h.stopLiveness = stop
}

func (h *Host) checkLiveness() {
	h.mu.Lock()
	if (h.state != StateAwaitingHostReady && h.state != StateMounted) || !h.win.Closed() {
		h.mu.Unlock()
		return
	}
	cleanup := h.teardownLocked()
	h.mu.Unlock()

	cleanup()
	h.notify(h.opts.OnClose)
}

// teardownLocked moves to CLOSED and returns the work to run after the lock
// is released.
func (h *Host) teardownLocked() func() {
	h.state = StateClosed
	stops := []func(){h.stopRetry, h.stopLiveness, h.unmount}
	h.stopRetry, h.stopLiveness, h.unmount = nil, nil, nil
	return func() {
		for _, fn := range stops {
			if fn != nil {
				fn()
			}
		}
	}
}

func (h *Host) closeIfOwned(win Window, self bool) {
	if self && win != nil && !win.Closed() {
		win.Close()
	}
}

func (h *Host) blocked(err error) {
	h.logger.Warn("popout blocked", "error", err)
	if h.opts.OnBlocked != nil {
		h.opts.OnBlocked(err)
	}
}

func (h *Host) notify(fn func()) {
	if fn != nil {
		fn()
	}
}

package surface

import (
	"context"
	"sync"
	"time"

	"github.com/rpggio/livesync/internal/live"
)

// Reading is one source's latest view of the session.
type Reading struct {
	Source    live.SourceKind
	Snapshot  live.Snapshot
	UpdatedAt int64
	Version   int64
	State     map[string]any
	// ReceivedAt is when the source obtained the reading.
	ReceivedAt time.Time
}

// Candidate interprets the reading for reconciliation.
func (r Reading) Candidate() live.Candidate {
	return live.Interpret(r.Source, r.Snapshot, r.UpdatedAt)
}

// Runner is a background loop owned by a Syncer.
type Runner interface {
	Run(ctx context.Context) error
}

// Source produces readings in the background. Latest must be safe to call
// while Run is active.
type Source interface {
	Runner
	Kind() live.SourceKind
	Latest() (Reading, bool)
}

// readingFromResponse ranks a server reading by the state's own updatedAt,
// falling back to the row timestamp. Metadata-only writes such as the
// controller heartbeat bump the row but not the document field.
func readingFromResponse(kind live.SourceKind, resp *StateResponse, now time.Time) Reading {
	snap := live.FromState(resp.State)
	updatedAt := snap.UpdatedAt
	if updatedAt == 0 && !resp.UpdatedAt.IsZero() {
		updatedAt = resp.UpdatedAt.UnixMilli()
	}
	return Reading{
		Source:     kind,
		Snapshot:   snap,
		UpdatedAt:  updatedAt,
		Version:    resp.Version,
		State:      resp.State,
		ReceivedAt: now,
	}
}

// latest holds a source's last good reading. A failed fetch never clears it.
type latest struct {
	mu      sync.RWMutex
	reading Reading
	ok      bool
	err     error
	fails   int
}

func (l *latest) set(r Reading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reading = r
	l.ok = true
	l.err = nil
	l.fails = 0
}

func (l *latest) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	l.fails++
}

func (l *latest) get() (Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.ok
}

// Health reports how many fetches in a row failed and the last error.
func (l *latest) Health() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fails, l.err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

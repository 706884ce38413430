// Package realtime fans committed session states out to live subscribers.
// Each subscriber holds only the newest state; a slow reader skips
// intermediate versions instead of blocking writers.
package realtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rpggio/livesync/internal/domain/livestate"
)

// ErrHubClosed is returned when subscribing to a closed hub.
var ErrHubClosed = errors.New("realtime hub closed")

// Stats counts deliveries for one subscriber.
type Stats struct {
	Sent     uint64
	Replaced uint64
	Stale    uint64
}

// Subscription receives the latest state of one session.
type Subscription struct {
	ID  string
	key livestate.Key
	ch  chan livestate.SessionState

	mu     sync.Mutex
	closed bool
	// newest version offered; older publishes are dropped.
	last  int64
	stats Stats
}

// C yields states in version order, possibly skipping versions. It is
// closed when the subscription ends.
func (s *Subscription) C() <-chan livestate.SessionState {
	return s.ch
}

// Stats returns delivery counters.
func (s *Subscription) Stats() Stats {
	return Stats{
		Sent:     atomic.LoadUint64(&s.stats.Sent),
		Replaced: atomic.LoadUint64(&s.stats.Replaced),
		Stale:    atomic.LoadUint64(&s.stats.Stale),
	}
}

func (s *Subscription) offer(state livestate.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// Writers publish after commit without a shared lock, so versions can
	// arrive out of order.
	if state.Version <= s.last {
		atomic.AddUint64(&s.stats.Stale, 1)
		return
	}
	s.last = state.Version
	select {
	case s.ch <- state:
	default:
		// Replace the unread state with the newer one.
		select {
		case <-s.ch:
			atomic.AddUint64(&s.stats.Replaced, 1)
		default:
		}
		s.ch <- state
	}
	atomic.AddUint64(&s.stats.Sent, 1)
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub implements livestate.Publisher.
type Hub struct {
	mu             sync.RWMutex
	subs           map[livestate.Key]map[string]*Subscription
	totalPublished uint64
	closed         bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[livestate.Key]map[string]*Subscription)}
}

// Subscribe registers interest in one session.
func (h *Hub) Subscribe(workspaceID, sessionID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	key := livestate.Key{WorkspaceID: workspaceID, SessionID: sessionID}
	sub := &Subscription{
		ID:  uuid.NewString(),
		key: key,
		ch:  make(chan livestate.SessionState, 1),
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[string]*Subscription)
	}
	h.subs[key][sub.ID] = sub
	return sub, nil
}

// Unsubscribe ends a subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.key]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.subs, sub.key)
		}
	}
	sub.close()
}

// Publish delivers state to every subscriber of its session.
func (h *Hub) Publish(state livestate.SessionState) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	atomic.AddUint64(&h.totalPublished, 1)

	for _, sub := range h.subs[state.Key()] {
		sub.offer(state)
	}
}

// Subscribers returns the number of live subscriptions for a session.
func (h *Hub) Subscribers(workspaceID, sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[livestate.Key{WorkspaceID: workspaceID, SessionID: sessionID}])
}

// TotalPublished returns how many states were published.
func (h *Hub) TotalPublished() uint64 {
	return atomic.LoadUint64(&h.totalPublished)
}

// Close ends all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for _, sub := range set {
			sub.close()
		}
	}
	h.subs = nil
}

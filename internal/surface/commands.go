package surface

import (
	"sync"

	"github.com/rpggio/livesync/internal/live"
)

// CommandConsumer hands each remote command to the controller at most once.
// The first snapshot it sees only primes the watermark, so commands issued
// before the controller attached are dropped.
type CommandConsumer struct {
	mu        sync.Mutex
	watermark int64
	primed    bool
}

// NewCommandConsumer creates an unprimed consumer.
func NewCommandConsumer() *CommandConsumer {
	return &CommandConsumer{}
}

// Observe returns the command to execute for snap, if any.
func (c *CommandConsumer) Observe(snap live.Snapshot) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		c.primed = true
		c.watermark = snap.RemoteCommandAt
		return "", false
	}
	if snap.RemoteCommandAt <= c.watermark {
		return "", false
	}
	c.watermark = snap.RemoteCommandAt
	if snap.RemoteCommand == "" {
		return "", false
	}
	return snap.RemoteCommand, true
}

// Watermark returns the newest command timestamp seen.
func (c *CommandConsumer) Watermark() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rpggio/livesync/internal/live"
)

// ErrStorageFull is returned when the local cache cannot be written because
// the disk is full.
var ErrStorageFull = errors.New("local storage full")

// Local document keys that only the controller's own view uses.
const (
	KeySelectedItemID = "selectedItemId"
	KeyViewMode       = "viewMode"
)

const defaultCacheCheckInterval = 500 * time.Millisecond

// LocalCache is the controller's persisted view: one JSON document written
// atomically. Only the controller writes it; other surfaces read it.
type LocalCache struct {
	path        string
	mu          sync.Mutex
	storageFull atomic.Bool
	writeFile   func(path string, data []byte) error
}

// NewLocalCache creates a cache stored at path.
func NewLocalCache(path string) *LocalCache {
	return &LocalCache{path: path, writeFile: atomicWrite}
}

// Path returns the file location.
func (c *LocalCache) Path() string { return c.path }

// Load reads the document. A missing file is an empty document.
func (c *LocalCache) Load() (map[string]any, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return doc, nil
}

// Save replaces the document. A full disk returns ErrStorageFull and latches
// StorageFull until ResetStorageWarning.
func (c *LocalCache) Save(doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeFile(c.path, data); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			c.storageFull.Store(true)
			return fmt.Errorf("%w: %v", ErrStorageFull, err)
		}
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// StorageFull reports whether a write has ever failed for lack of space.
func (c *LocalCache) StorageFull() bool { return c.storageFull.Load() }

// ResetStorageWarning clears the StorageFull latch.
func (c *LocalCache) ResetStorageWarning() { c.storageFull.Store(false) }

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".livesync-cache-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// LocalSource watches the cache file for changes.
type LocalSource struct {
	latest
	cache    *LocalCache
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	modTime time.Time
	size    int64
}

// NewLocalSource creates a source over cache.
func NewLocalSource(cache *LocalCache, logger *slog.Logger) *LocalSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalSource{
		cache:    cache,
		interval: defaultCacheCheckInterval,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *LocalSource) Kind() live.SourceKind { return live.SourceLocal }

func (s *LocalSource) Latest() (Reading, bool) { return s.get() }

// Run checks the file for changes until ctx is done.
func (s *LocalSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Check()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check reloads the document if the file changed since the last check.
func (s *LocalSource) Check() {
	info, err := os.Stat(s.cache.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.fail(err)
		}
		return
	}
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return
	}

	doc, err := s.cache.Load()
	if err != nil {
		s.fail(err)
		s.logger.Warn("local cache unreadable", "path", s.cache.Path(), "error", err)
		return
	}
	s.modTime = info.ModTime()
	s.size = info.Size()

	snap := live.FromState(doc)
	s.set(Reading{
		Source:     live.SourceLocal,
		Snapshot:   snap,
		UpdatedAt:  snap.UpdatedAt,
		State:      maps.Clone(doc),
		ReceivedAt: s.now(),
	})
}

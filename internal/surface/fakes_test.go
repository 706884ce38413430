package surface

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/rpggio/livesync/internal/live"
)

type staticSource struct {
	mu      sync.Mutex
	kind    live.SourceKind
	reading Reading
	ok      bool
}

func newStaticSource(kind live.SourceKind) *staticSource {
	return &staticSource{kind: kind}
}

func (s *staticSource) put(state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := live.FromState(state)
	s.reading = Reading{Source: s.kind, Snapshot: snap, UpdatedAt: snap.UpdatedAt, State: state}
	s.ok = true
}

func (s *staticSource) Kind() live.SourceKind { return s.kind }

func (s *staticSource) Latest() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading, s.ok
}

func (s *staticSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

type recordingWriter struct {
	mu    sync.Mutex
	calls []map[string]any
	err   error
}

func (w *recordingWriter) UpsertState(_ context.Context, workspaceID, sessionID string, partial map[string]any) (*StateResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, maps.Clone(partial))
	if w.err != nil {
		return nil, w.err
	}
	return &StateResponse{WorkspaceID: workspaceID, SessionID: sessionID, Version: int64(len(w.calls)), State: partial}, nil
}

func (w *recordingWriter) Calls() []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

var errOffline = errors.New("offline")

func schedule() []any {
	return []any{
		map[string]any{"id": "a", "title": "Opening", "slides": []any{
			map[string]any{"id": "a1"}, map[string]any{"id": "a2"},
		}},
		map[string]any{"id": "empty", "title": "Placeholder"},
		map[string]any{"id": "b", "title": "Welcome", "type": "ANNOUNCEMENT", "slides": []any{
			map[string]any{"id": "b1"},
		}},
	}
}

func renderable(item string, slide int, updatedAt int64) map[string]any {
	return map[string]any{
		live.KeySchedule:         schedule(),
		live.KeyActiveItemID:     item,
		live.KeyActiveSlideIndex: slide,
		live.KeyUpdatedAt:        updatedAt,
	}
}

package surface

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/livesync/internal/live"
	"github.com/stretchr/testify/require"
)

func TestSyncer_NewestUsableWins(t *testing.T) {
	push := newStaticSource(live.SourcePush)
	server := newStaticSource(live.SourceServer)
	local := newStaticSource(live.SourceLocal)
	s := NewSyncer(SyncerOptions{Sources: []Source{push, server, local}})

	_, ok := s.Tick(context.Background())
	require.False(t, ok, "nothing to show before any reading")

	server.put(renderable("a", 0, 100))
	local.put(renderable("a", 1, 200))
	frame, ok := s.Tick(context.Background())
	require.True(t, ok)
	require.Equal(t, live.SourceLocal, frame.Display.Candidate.Source)
	require.Equal(t, "a2", frame.Target.Slide.ID)

	push.put(renderable("b", 0, 200))
	frame, _ = s.Tick(context.Background())
	require.Equal(t, live.SourcePush, frame.Display.Candidate.Source, "ties keep push first")
}

func TestSyncer_NeverRegressesToUnrenderable(t *testing.T) {
	server := newStaticSource(live.SourceServer)
	var frames []Frame
	s := NewSyncer(SyncerOptions{
		Sources: []Source{server},
		OnFrame: func(f Frame) { frames = append(frames, f) },
	})

	server.put(renderable("a", 0, 100))
	s.Tick(context.Background())

	// A heartbeat-only document: newer, but nothing to render.
	server.put(map[string]any{live.KeyControllerEmail: "op@example.com", live.KeyUpdatedAt: 300})
	frame, ok := s.Tick(context.Background())
	require.True(t, ok)
	require.True(t, frame.Display.Held)
	require.Equal(t, "a1", frame.Target.Slide.ID)

	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, frame, current)
	require.Len(t, frames, 2)
}

func TestSyncer_LobbyRouting(t *testing.T) {
	server := newStaticSource(live.SourceServer)
	state := renderable("a", 0, 100)
	state[live.KeyRoutingMode] = "LOBBY"
	server.put(state)

	frame, ok := NewSyncer(SyncerOptions{Sources: []Source{server}}).Tick(context.Background())
	require.True(t, ok)
	require.Equal(t, "b", frame.Target.Item.ID)
	require.Equal(t, "b1", frame.Target.Slide.ID)
}

func TestSyncer_CommandsRunOnceAcrossSources(t *testing.T) {
	push := newStaticSource(live.SourcePush)
	server := newStaticSource(live.SourceServer)
	local := newStaticSource(live.SourceLocal)

	var mu sync.Mutex
	var executed []string
	s := NewSyncer(SyncerOptions{
		Sources:  []Source{push, server, local},
		Commands: NewCommandConsumer(),
		OnCommand: func(_ context.Context, cmd string) error {
			mu.Lock()
			defer mu.Unlock()
			executed = append(executed, cmd)
			return nil
		},
	})

	stale := renderable("a", 0, 100)
	stale[live.KeyRemoteCommand] = "NEXT"
	stale[live.KeyRemoteCommandAt] = 50
	server.put(stale)
	s.Tick(context.Background())
	require.Empty(t, executed, "first observation primes")

	fresh := renderable("a", 0, 100)
	fresh[live.KeyRemoteCommand] = "PREV"
	fresh[live.KeyRemoteCommandAt] = 60
	push.put(fresh)
	server.put(fresh)
	local.put(fresh)
	s.Tick(context.Background())
	s.Tick(context.Background())

	require.Equal(t, []string{"PREV"}, executed)
}

func TestSyncer_RunStopsOnCancel(t *testing.T) {
	server := newStaticSource(live.SourceServer)
	server.put(renderable("a", 0, 100))

	ticked := make(chan Frame, 1)
	s := NewSyncer(SyncerOptions{
		Sources:      []Source{server},
		TickInterval: 5 * time.Millisecond,
		OnFrame: func(f Frame) {
			select {
			case ticked <- f:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case f := <-ticked:
		require.Equal(t, "a", f.Target.Item.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame produced")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop")
	}
}

package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/surface"
	"github.com/stretchr/testify/require"
)

type fixedFrames struct {
	frame surface.Frame
	ok    bool
}

func (f fixedFrames) Current() (surface.Frame, bool) { return f.frame, f.ok }

type sentCommands struct {
	sent []string
	err  error
}

func (s *sentCommands) IssueCommand(_ context.Context, _, _, command string) (*surface.CommandResponse, error) {
	s.sent = append(s.sent, command)
	return &surface.CommandResponse{Command: command}, s.err
}

func frameFor(snap live.Snapshot) surface.Frame {
	candidate := live.Interpret(live.SourceServer, snap, 0)
	return surface.Frame{
		Display: live.Display{Candidate: candidate},
		Target:  live.ResolveRoute(snap),
	}
}

func liveSnapshot() live.Snapshot {
	return live.Snapshot{
		Schedule: []live.Item{
			{ID: "song", Title: "Opening", Slides: []live.Slide{{ID: "v1", Label: "Verse 1"}, {ID: "v2", Label: "Verse 2"}}},
		},
		ActiveItemID: "song",
		RoutingMode:  live.RoutingProjector,
		Timer:        live.Timer{Mode: "COUNTDOWN", DurationSec: 90, Label: "Talk"},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModel_RendersCurrentNextAndTimer(t *testing.T) {
	m := New(Options{
		Frames:      fixedFrames{frame: frameFor(liveSnapshot()), ok: true},
		WorkspaceID: "ws1",
		SessionID:   "main",
	})
	require.Contains(t, m.View(), "waiting for live state")

	m, cmd := update(t, m, tickMsg(time.Now()))
	require.NotNil(t, cmd)

	view := m.View()
	require.Contains(t, view, "Opening · Verse 1")
	require.Contains(t, view, "Opening · Verse 2")
	require.Contains(t, view, "Talk 01:30 (paused)")
	require.Contains(t, view, "PROJECTOR")
}

func TestModel_Blackout(t *testing.T) {
	snap := liveSnapshot()
	snap.Blackout = true
	m := New(Options{Frames: fixedFrames{frame: frameFor(snap), ok: true}})
	m, _ = update(t, m, tickMsg(time.Now()))
	require.Contains(t, m.View(), "BLACKOUT")
}

func TestModel_KeysSendCommands(t *testing.T) {
	sender := &sentCommands{}
	m := New(Options{Commands: sender, WorkspaceID: "ws1", SessionID: "main"})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, []string{"NEXT"}, sender.sent)

	m, _ = update(t, m, msg)
	require.Contains(t, m.View(), "NEXT sent")

	sender.err = errors.New("FORBIDDEN")
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	m, _ = update(t, m, cmd())
	require.Contains(t, m.View(), "BLACKOUT failed")
}

func TestModel_StorageWarning(t *testing.T) {
	m := New(Options{StorageFull: func() bool { return true }})
	require.Contains(t, m.View(), "LOCAL STORAGE FULL")
}

func TestFormatTimer(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	timer := live.Timer{Mode: "COUNTDOWN", DurationSec: 300, StartedAt: start.UnixMilli(), Running: true}
	require.Equal(t, "03:20", formatTimer(timer, start.Add(100*time.Second)))
	require.Equal(t, "00:00", formatTimer(timer, start.Add(time.Hour)))
}

func TestModel_WaitingShowsCommandStatus(t *testing.T) {
	sender := &sentCommands{err: errors.New("FORBIDDEN")}
	m := New(Options{Commands: sender, WorkspaceID: "ws1", SessionID: "main"})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	m, _ = update(t, m, cmd())

	view := m.View()
	require.Contains(t, view, "waiting for live state")
	require.Contains(t, view, "BLACKOUT failed: FORBIDDEN")
	require.Contains(t, view, "n next")
}

func TestModel_TimerFollowsClampedLayout(t *testing.T) {
	layout := live.StageTimerLayout{X: 5000, Y: 10, Width: 160, Height: 60, FontScale: 1}
	m := New(Options{
		Frames:      fixedFrames{frame: frameFor(liveSnapshot()), ok: true},
		TimerLayout: &layout,
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 20})
	m, _ = update(t, m, tickMsg(time.Now()))

	// 40 columns is 320px; a 160px widget at x=5000 clamps to x=160, column 20.
	var timerLine string
	for _, line := range strings.Split(m.View(), "\n") {
		if strings.Contains(line, "Talk 01:30") {
			timerLine = line
		}
	}
	require.NotEmpty(t, timerLine)
	require.Equal(t, 20, len(timerLine)-len(strings.TrimLeft(timerLine, " ")))
}

// Package monitor is the stage confidence monitor: a terminal surface that
// shows what the outputs are painting, what comes next, and the stage
// timer, and lets the stage crew nudge the controller.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/surface"
)

const defaultRefresh = 250 * time.Millisecond

// Approximate terminal cell size used to map the stage timer layout, which
// is stored in viewport pixels, onto columns.
const (
	cellWidthPx  = 8
	cellHeightPx = 16
)

// FrameSource is the reconciled view the monitor paints. Implemented by
// *surface.Syncer.
type FrameSource interface {
	Current() (surface.Frame, bool)
}

// CommandSender issues remote commands. Implemented by *surface.Client.
type CommandSender interface {
	IssueCommand(ctx context.Context, workspaceID, sessionID, command string) (*surface.CommandResponse, error)
}

// Options configures the monitor.
type Options struct {
	Context     context.Context
	Frames      FrameSource
	Commands    CommandSender
	WorkspaceID string
	SessionID   string
	Refresh     time.Duration
	// StorageFull reports the local cache warning, if this monitor has one.
	StorageFull func() bool
	// TimerLayout is the workspace's stage timer geometry. Nil renders the
	// timer unplaced.
	TimerLayout *live.StageTimerLayout
	Now         func() time.Time
}

// Model is the Bubble Tea model of the monitor.
type Model struct {
	opts    Options
	styles  styles
	frame   surface.Frame
	hasData bool
	status  string
	width   int
	height  int
}

// New creates a monitor model.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return Model{opts: opts, styles: defaultStyles()}
}

type tickMsg time.Time

type commandResultMsg struct {
	command string
	err     error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.opts.Refresh)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.refresh()
		return m, tickCmd(m.opts.Refresh)
	case commandResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.command, msg.err)
		} else {
			m.status = msg.command + " sent"
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n", "right", " ":
		return m, m.send("NEXT")
	case "p", "left":
		return m, m.send("PREV")
	case "b":
		return m, m.send("BLACKOUT")
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.opts.Frames == nil {
		return
	}
	if frame, ok := m.opts.Frames.Current(); ok {
		m.frame = frame
		m.hasData = true
	}
}

func (m Model) send(command string) tea.Cmd {
	if m.opts.Commands == nil {
		return nil
	}
	ctx, ws, sid, sender := m.opts.Context, m.opts.WorkspaceID, m.opts.SessionID, m.opts.Commands
	return func() tea.Msg {
		_, err := sender.IssueCommand(ctx, ws, sid, command)
		return commandResultMsg{command: command, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if !m.hasData {
		b.WriteString(m.styles.muted.Render("waiting for live state..."))
		b.WriteString("\n\n")
		b.WriteString(m.footer())
		return b.String()
	}

	target := m.frame.Target
	switch {
	case target.Blackout:
		b.WriteString(m.styles.blackout.Render(" BLACKOUT "))
	case target.Empty():
		b.WriteString(m.styles.muted.Render("nothing live"))
	default:
		b.WriteString(m.styles.label.Render("NOW "))
		b.WriteString(m.styles.current.Render(slideText(target.Item, target.Slide)))
	}
	b.WriteString("\n")

	if next := nextSlide(m.frame.Display.Candidate.Snapshot); next != "" {
		b.WriteString(m.styles.label.Render("NEXT "))
		b.WriteString(m.styles.muted.Render(next))
		b.WriteString("\n")
	}

	if timer := m.frame.Display.Candidate.Snapshot.Timer; timer.DurationSec > 0 || timer.Running {
		b.WriteString("\n")
		b.WriteString(m.timerBlock(formatTimer(timer, m.opts.Now())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) header() string {
	parts := []string{
		m.styles.title.Render("livesync stage"),
		m.styles.muted.Render(m.opts.WorkspaceID + "/" + m.opts.SessionID),
	}
	if m.hasData {
		target := m.frame.Target
		parts = append(parts, m.styles.badge.Render(string(target.RoutingMode)))
		if target.Substituted {
			parts = append(parts, m.styles.badge.Render("LOBBY LOOP"))
		}
		source := string(m.frame.Display.Candidate.Source)
		if m.frame.Display.Held {
			source += " (held)"
		}
		parts = append(parts, m.styles.muted.Render("via "+source))
	}
	if m.opts.StorageFull != nil && m.opts.StorageFull() {
		parts = append(parts, m.styles.warning.Render("LOCAL STORAGE FULL"))
	}
	return strings.Join(parts, "  ")
}

// timerBlock places the timer horizontally per the clamped layout. The
// terminal flows top to bottom, so the layout's Y is not applied.
func (m Model) timerBlock(text string) string {
	style := m.styles.timer
	if m.opts.TimerLayout == nil || m.width <= 0 || m.height <= 0 {
		return style.Render(text)
	}
	layout := m.opts.TimerLayout.Clamp(float64(m.width*cellWidthPx), float64(m.height*cellHeightPx))
	if layout.Variant == "pill" {
		style = style.Border(lipgloss.RoundedBorder()).Padding(0, 1)
	}
	return style.
		MarginLeft(int(layout.X / cellWidthPx)).
		Width(int(layout.Width / cellWidthPx)).
		Render(text)
}

func (m Model) footer() string {
	help := "n next · p prev · b blackout · q quit"
	if m.opts.Commands == nil {
		help = "q quit"
	}
	line := m.styles.muted.Render(help)
	if m.status != "" {
		line += "  " + m.styles.label.Render(m.status)
	}
	return line
}

func slideText(item *live.Item, slide *live.Slide) string {
	if item == nil || slide == nil {
		return ""
	}
	text := slide.Label
	if text == "" {
		text = slide.Content
	}
	if text == "" {
		text = slide.ID
	}
	if item.Title != "" {
		return item.Title + " · " + text
	}
	return text
}

// nextSlide names what NEXT would show.
func nextSlide(snap live.Snapshot) string {
	if !snap.Renderable() {
		return ""
	}
	next := surface.StepNext(snap)
	if next.ActiveItemID == snap.ActiveItemID && next.ActiveSlideIndex == snap.ActiveSlideIndex {
		return "end of schedule"
	}
	res := next.Resolve()
	return slideText(res.Item, res.Slide)
}

func formatTimer(timer live.Timer, now time.Time) string {
	remaining := timer.Remaining(now).Round(time.Second)
	minutes := int(remaining / time.Minute)
	seconds := int((remaining % time.Minute) / time.Second)
	text := fmt.Sprintf("%02d:%02d", minutes, seconds)
	if timer.Label != "" {
		text = timer.Label + " " + text
	}
	if !timer.Running {
		text += " (paused)"
	}
	return text
}

type styles struct {
	title    lipgloss.Style
	badge    lipgloss.Style
	label    lipgloss.Style
	current  lipgloss.Style
	muted    lipgloss.Style
	timer    lipgloss.Style
	blackout lipgloss.Style
	warning  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bd93f9")),
		badge:    lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("#44475a")).Foreground(lipgloss.Color("#f8f8f2")),
		label:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8be9fd")),
		current:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f8f8f2")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
		timer:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50fa7b")),
		blackout: lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("#ff5555")).Foreground(lipgloss.Color("#000000")),
		warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffb86c")),
	}
}

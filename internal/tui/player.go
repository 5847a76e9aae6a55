// Package tui plays a topic's diagram in the terminal. The player owns one
// mounted view; key presses become view commands and the view's event
// stream drives redraws, so auto-advance works the same way it does in the
// browser.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

// Options configures a Player.
type Options struct {
	Mode      schema.DiagramMode
	Cadence   cron.Schedule
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Autoplay  bool
	GlamStyle string // glamour standard style; empty picks one from the terminal
}

// Player is a mounted view plus its event subscription.
type Player struct {
	catalog *catalog.Catalog
	topic   *schema.TopicDefinition
	view    *engine.View
	events  <-chan streaming.StreamEvent
	cancel  func()
	opts    Options
}

// NewPlayer mounts a view of the topic and subscribes to its events.
func NewPlayer(ctx context.Context, cat *catalog.Catalog, topicID string, opts Options) (*Player, error) {
	if opts.Cadence == nil {
		opts.Cadence = scheduler.Every(scheduler.DefaultCadence)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	topic, err := cat.Topic(topicID)
	if err != nil {
		return nil, err
	}
	cfg, err := cat.Config(topicID, opts.Cadence)
	if err != nil {
		return nil, err
	}

	hub := streaming.NewMemoryHub()
	eng, err := engine.New(cfg,
		engine.WithHub(hub),
		engine.WithClock(opts.Clock),
		engine.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	view, err := eng.Mount(ctx)
	if err != nil {
		return nil, err
	}
	events, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{ViewID: view.ID()})
	if err != nil {
		view.Close()
		return nil, err
	}

	p := &Player{catalog: cat, topic: topic, view: view, events: events, cancel: cancel, opts: opts}
	if opts.Mode != "" {
		if _, err := view.SetMode(ctx, opts.Mode); err != nil {
			p.Close()
			return nil, err
		}
	}
	if opts.Autoplay {
		if _, err := view.TogglePlay(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// View returns the mounted view.
func (p *Player) View() *engine.View { return p.view }

// Close tears the view down and drops the subscription.
func (p *Player) Close() {
	p.view.Close()
	p.cancel()
}

// Run plays the topic full-screen until the user quits or ctx ends.
func (p *Player) Run(ctx context.Context) error {
	prog := tea.NewProgram(NewModel(p), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}

// snapshotMsg carries a new view state, from a command result or an event.
type snapshotMsg struct {
	snap  schema.Snapshot
	event string
}

// closedMsg reports that the view is gone.
type closedMsg struct{}

// errMsg reports a rejected command.
type errMsg struct{ err error }

// waitForEvent blocks on the next view event.
func waitForEvent(ch <-chan streaming.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok || ev.EventType == schema.EventViewClosed {
			return closedMsg{}
		}
		return snapshotMsg{snap: ev.Snapshot, event: ev.EventType}
	}
}

// command runs a view command off the update loop.
func command(fn func(context.Context) (schema.Snapshot, error)) tea.Cmd {
	return func() tea.Msg {
		snap, err := fn(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return snapshotMsg{snap: snap}
	}
}

// Model is the bubbletea model of the player.
type Model struct {
	player  *Player
	snap    schema.Snapshot
	frame   string
	caption string
	err     error
	styles  styles

	summary     viewport.Model
	showSummary bool
	glam        *glamour.TermRenderer

	width  int
	height int
	quit   bool
}

// NewModel builds the model for a player, starting from the view's current
// state.
func NewModel(p *Player) Model {
	m := Model{
		player:  p,
		styles:  newStyles(p.topic.Color),
		summary: viewport.New(72, 12),
		width:   80,
		height:  24,
	}

	glamOpts := []glamour.TermRendererOption{glamour.WithWordWrap(70)}
	if p.opts.GlamStyle != "" {
		glamOpts = append(glamOpts, glamour.WithStandardStyle(p.opts.GlamStyle))
	} else {
		glamOpts = append(glamOpts, glamour.WithAutoStyle())
	}
	if r, err := glamour.NewTermRenderer(glamOpts...); err == nil {
		m.glam = r
	}
	m.setSummary()
	m.apply(p.view.Snapshot())
	return m
}

// Init starts listening for view events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.player.events)
}

// Update handles keys, view events and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.summary.Width = max(msg.Width-4, 20)
		m.summary.Height = max(msg.Height/3, 5)
		m.setSummary()
		return m, nil

	case snapshotMsg:
		m.err = nil
		m.apply(msg.snap)
		if msg.event != "" {
			return m, waitForEvent(m.player.events)
		}
		return m, nil

	case closedMsg:
		m.quit = true
		return m, tea.Quit

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.player.view
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		m.quit = true
		m.player.Close()
		return m, tea.Quit
	case " ", "p":
		return m, command(v.TogglePlay)
	case "n", "right", "l":
		if m.snap.IsPlaying {
			return m, nil
		}
		return m, command(v.NextStep)
	case "r":
		return m, command(v.Reset)
	case "tab":
		return m, m.setMode(m.modeIndex() + 1)
	case "shift+tab":
		return m, m.setMode(m.modeIndex() - 1)
	case "s":
		m.showSummary = !m.showSummary
		return m, nil
	case "up", "down", "pgup", "pgdown", "k", "j":
		if m.showSummary {
			var cmd tea.Cmd
			m.summary, cmd = m.summary.Update(msg)
			return m, cmd
		}
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		idx := int(key[0] - '1')
		if idx < len(m.player.topic.Modes) {
			return m, m.setMode(idx)
		}
	}
	return m, nil
}

func (m Model) modeIndex() int {
	for i, md := range m.player.topic.Modes {
		if md.ID == m.snap.Mode {
			return i
		}
	}
	return 0
}

func (m Model) setMode(idx int) tea.Cmd {
	modes := m.player.topic.Modes
	idx = (idx%len(modes) + len(modes)) % len(modes)
	mode := modes[idx].ID
	return command(func(ctx context.Context) (schema.Snapshot, error) {
		return m.player.view.SetMode(ctx, mode)
	})
}

// apply redraws the frame for snap. Stale snapshots are ignored.
func (m *Model) apply(snap schema.Snapshot) {
	if snap.Seq < m.snap.Seq {
		return
	}
	m.snap = snap
	scene, err := m.player.catalog.Scene(context.Background(), m.player.topic.ID, snap.Mode, snap.Step)
	if err != nil {
		m.err = err
		return
	}
	m.frame = diagram.RenderASCII(scene)
	m.caption = scene.Caption
}

func (m *Model) setSummary() {
	text := m.player.topic.Summary
	if m.glam != nil {
		if out, err := m.glam.Render(text); err == nil {
			text = out
		}
	}
	m.summary.SetContent(text)
}

// View draws the header, mode tabs, frame, controls and optional summary.
func (m Model) View() string {
	if m.quit {
		return ""
	}
	s := m.styles
	var b strings.Builder

	b.WriteString(s.title.Render(m.player.topic.Title))
	b.WriteString("\n")

	tabs := make([]string, 0, len(m.player.topic.Modes))
	for i, md := range m.player.topic.Modes {
		label := fmt.Sprintf("%d %s", i+1, md.Label)
		if md.ID == m.snap.Mode {
			tabs = append(tabs, s.activeTab.Render(label))
		} else {
			tabs = append(tabs, s.tab.Render(label))
		}
	}
	b.WriteString(strings.Join(tabs, " "))
	b.WriteString("\n\n")

	b.WriteString(s.frame.Render(m.frame))
	b.WriteString("\n")
	b.WriteString(s.caption.Render(m.caption))
	b.WriteString("\n\n")

	state := "paused"
	if m.snap.IsPlaying {
		state = "playing"
	}
	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		s.label.Render(m.snap.Label()),
		progressBar(m.snap.Progress(), 24),
		s.help.Render(state)))

	if m.err != nil {
		b.WriteString(s.err.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.showSummary {
		b.WriteString("\n")
		b.WriteString(s.summary.Render(m.summary.View()))
		b.WriteString("\n")
	}
	b.WriteString(s.help.Render("space play/pause · n next · r reset · tab/1-9 mode · s summary · q quit"))
	return b.String()
}

func progressBar(frac float64, width int) string {
	filled := int(frac*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

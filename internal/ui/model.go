// ABOUTME: Bubbletea model for the slide player TUI
// ABOUTME: Defines transport state, render progress display, and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Deck
	deckName   string
	slideCount int

	// Playback
	status     string
	currentMs  int64
	durationMs int64
	slideID    string
	loading    bool

	// Render job
	renderState   string
	renderPercent float64
	renderStep    string

	// Stats
	sessions  int64
	scheduled int64
	skipped   int64

	// Control bridge
	transport *Transport

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTimeline()
	s += m.renderRenderJob()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

// renderHeader renders deck and playback status
func (m Model) renderHeader() string {
	name := m.deckName
	if name == "" {
		name = "(untitled deck)"
	}

	status := m.status
	if m.loading {
		status = "loading audio..."
	}

	return fmt.Sprintf(`┌─ Slidecast Player ───────────────────────────────────┐
│ Deck:   %-45s│
│ Status: %-45s│
├──────────────────────────────────────────────────────┤
`, truncate(name, 45), status)
}

// renderTimeline renders position, duration, and the active slide
func (m Model) renderTimeline() string {
	bar := "░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░"
	if m.durationMs > 0 {
		bar = renderBar(int(m.currentMs*100/m.durationMs), 100, 30)
	}

	slide := m.slideID
	if slide == "" {
		slide = "(none)"
	}

	return fmt.Sprintf("│ [%s] %s / %s │\n│ Slide:  %-45s│\n",
		bar, formatMs(m.currentMs), formatMs(m.durationMs), truncate(slide, 45))
}

// renderRenderJob renders render job progress when one is active
func (m Model) renderRenderJob() string {
	if m.renderState == "" {
		return "│ Render: (no job)                                     │\n"
	}

	line := fmt.Sprintf("%s %3.0f%%", m.renderState, m.renderPercent)
	if m.renderStep != "" {
		line += " / " + m.renderStep
	}

	return fmt.Sprintf("│ Render: %-45s│\n", truncate(line, 45))
}

// renderStats renders scheduler statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Sessions: %d  Voices: %d  Silent: %d%-9s│
`, m.sessions, m.scheduled, m.skipped, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Play/Pause  s:Stop  ←/→:Seek 5s  0:Start  q:Quit│
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.transport.send(CmdQuit)
		return m, tea.Quit
	case " ":
		m.transport.send(CmdTogglePlay)
	case "s":
		m.transport.send(CmdStop)
	case "left":
		m.transport.send(CmdSeekBack)
	case "right":
		m.transport.send(CmdSeekForward)
	case "0":
		m.transport.send(CmdRestart)
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.DeckName != "" {
		m.deckName = msg.DeckName
	}
	if msg.SlideCount != 0 {
		m.slideCount = msg.SlideCount
	}
	if msg.Status != "" {
		m.status = msg.Status
	}
	if msg.Loading != nil {
		m.loading = *msg.Loading
	}
	if msg.HasPosition {
		m.currentMs = msg.CurrentMs
		m.durationMs = msg.DurationMs
		m.slideID = msg.SlideID
	}
	if msg.RenderState != "" {
		m.renderState = msg.RenderState
		m.renderPercent = msg.RenderPercent
		m.renderStep = msg.RenderStep
	}
	if msg.Sessions != 0 {
		m.sessions = msg.Sessions
		m.scheduled = msg.Scheduled
		m.skipped = msg.Skipped
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	DeckName   string
	SlideCount int

	Status  string
	Loading *bool

	HasPosition bool
	CurrentMs   int64
	DurationMs  int64
	SlideID     string

	RenderState   string
	RenderPercent float64
	RenderStep    string

	Sessions  int64
	Scheduled int64
	Skipped   int64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func formatMs(ms int64) string {
	totalSec := ms / 1000
	return fmt.Sprintf("%02d:%02d.%01d", totalSec/60, totalSec%60, (ms%1000)/100)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

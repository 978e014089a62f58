// ABOUTME: TUI initialization and transport control bridge
// ABOUTME: Wraps bubbletea program and carries key commands to the engine host
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Command is a transport action requested from the keyboard.
type Command int

const (
	CmdTogglePlay Command = iota
	CmdStop
	CmdSeekBack
	CmdSeekForward
	CmdRestart
	CmdQuit
)

// Transport carries key-driven commands from the TUI to the engine host.
type Transport struct {
	Commands chan Command
}

// NewTransport creates a transport command bridge.
func NewTransport() *Transport {
	return &Transport{
		Commands: make(chan Command, 10),
	}
}

// send queues a command without blocking the UI loop.
func (t *Transport) send(cmd Command) {
	select {
	case t.Commands <- cmd:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(transport *Transport) Model {
	return Model{
		status:    "idle",
		transport: transport,
	}
}

// Run starts the TUI
func Run(transport *Transport) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(transport), tea.WithAltScreen())
	return p, nil
}

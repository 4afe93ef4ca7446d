// Package commands is a keybinding registry for the terminal UI. Commands
// are registered once and drive key dispatch, the footer and the help screen.
package commands

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Command is a keybinding bound to an action on model M
type Command[M any] struct {
	// Keys that trigger the command, in tea.KeyMsg.String() form
	Keys []string

	// Name is the short label shown in the footer, "" hides it there
	Name string

	// HelpText is the description on the help screen
	HelpText string

	Scope CommandScope

	// ViewStates restricts a ScopeView command to these views
	ViewStates []int

	// IsAvailable optionally disables the command for the current model
	IsAvailable func(M) bool

	Execute func(M) (M, tea.Cmd)

	// Priority orders commands in the footer and help, lower first
	Priority int
}

// CommandScope says where a command applies
type CommandScope int

const (
	ScopeGlobal CommandScope = iota // Available everywhere
	ScopeView                       // Limited to specific views
)

// FooterText returns "[keys] Name", or "" for commands without a name
func (c *Command[M]) FooterText() string {
	if c.Name == "" || len(c.Keys) == 0 {
		return ""
	}
	return "[" + c.keyDisplay("/") + "] " + c.Name
}

func (c *Command[M]) keyDisplay(sep string) string {
	formatted := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		formatted[i] = formatKey(k)
	}
	return strings.Join(formatted, sep)
}

// formatKey converts a key string to display format
// Examples: "ctrl+s" -> "Ctrl+S", "esc" -> "Esc", "up" -> "↑"
func formatKey(key string) string {
	switch key {
	case "up":
		return "↑"
	case "down":
		return "↓"
	case "enter":
		return "Enter"
	case "esc":
		return "Esc"
	case "backspace":
		return "Backspace"
	case "pgup":
		return "PgUp"
	case "pgdown":
		return "PgDn"
	}
	if rest, ok := strings.CutPrefix(key, "ctrl+"); ok {
		return "Ctrl+" + strings.ToUpper(rest)
	}
	return key
}

// CommandBuilder provides a fluent interface for building commands
type CommandBuilder[M any] struct {
	cmd Command[M]
}

// NewCommand creates a view-scoped command builder
func NewCommand[M any]() *CommandBuilder[M] {
	return &CommandBuilder[M]{
		cmd: Command[M]{
			Scope:    ScopeView,
			Priority: 100,
		},
	}
}

// Keys sets the key bindings for this command
func (b *CommandBuilder[M]) Keys(keys ...string) *CommandBuilder[M] {
	b.cmd.Keys = keys
	return b
}

// Name sets the footer label
func (b *CommandBuilder[M]) Name(name string) *CommandBuilder[M] {
	b.cmd.Name = name
	return b
}

// Help sets the help text description
func (b *CommandBuilder[M]) Help(text string) *CommandBuilder[M] {
	b.cmd.HelpText = text
	return b
}

// Global marks this as a global command (available everywhere)
func (b *CommandBuilder[M]) Global() *CommandBuilder[M] {
	b.cmd.Scope = ScopeGlobal
	return b
}

// InViews restricts this command to specific views
func (b *CommandBuilder[M]) InViews(views ...int) *CommandBuilder[M] {
	b.cmd.ViewStates = views
	return b
}

// When sets the availability condition
func (b *CommandBuilder[M]) When(fn func(M) bool) *CommandBuilder[M] {
	b.cmd.IsAvailable = fn
	return b
}

// Do sets the action
func (b *CommandBuilder[M]) Do(fn func(M) (M, tea.Cmd)) *CommandBuilder[M] {
	b.cmd.Execute = fn
	return b
}

// Priority sets the display priority (lower = shown first)
func (b *CommandBuilder[M]) Priority(p int) *CommandBuilder[M] {
	b.cmd.Priority = p
	return b
}

// Build returns the constructed Command
func (b *CommandBuilder[M]) Build() Command[M] {
	return b.cmd
}

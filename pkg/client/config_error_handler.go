// ABOUTME: Full-screen prompt shown when the config file cannot be loaded.
// ABOUTME: Offers a reset to defaults, with an optional dated backup, or quitting.
package client

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	configErrorColor = lipgloss.Color("196")
	configTitleColor = lipgloss.Color("39")
	configMutedColor = lipgloss.Color("243")
)

// ConfigErrorHandler is a tea.Model describing a ConfigError
type ConfigErrorHandler struct {
	configPath string
	err        *ConfigError
	lines      []string // file content, read only for parse errors

	askBackup bool
	result    string
	width     int
	height    int
}

// NewConfigErrorHandler creates the prompt for err
func NewConfigErrorHandler(configPath string, err *ConfigError) *ConfigErrorHandler {
	h := &ConfigErrorHandler{
		configPath: configPath,
		err:        err,
		width:      80,
		height:     24,
	}
	if err.LineNumber > 0 {
		if data, readErr := os.ReadFile(configPath); readErr == nil {
			h.lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		}
	}
	return h
}

// Init initializes the handler
func (h *ConfigErrorHandler) Init() tea.Cmd {
	return nil
}

// Update processes messages
func (h *ConfigErrorHandler) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		return h, nil

	case tea.KeyMsg:
		return h.handleKey(msg)

	case resetCompleteMsg:
		h.result = "✓ Configuration reset to defaults. Please restart the client to continue."
		return h, tea.Quit

	case resetErrorMsg:
		h.result = fmt.Sprintf("✗ Failed to reset config: %v", msg.err)
		return h, tea.Quit
	}

	return h, nil
}

func (h *ConfigErrorHandler) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if h.askBackup {
		switch msg.String() {
		case "y", "Y":
			return h, h.reset(true)
		case "n", "N":
			return h, h.reset(false)
		case "esc", "c", "C":
			h.askBackup = false
		}
		return h, nil
	}

	switch msg.String() {
	case "r", "R":
		h.askBackup = true
	case "q", "Q", "esc", "ctrl+c":
		return h, tea.Quit
	}
	return h, nil
}

// reset rewrites the config file with defaults
func (h *ConfigErrorHandler) reset(backup bool) tea.Cmd {
	return func() tea.Msg {
		if err := ResetConfigToDefault(h.configPath, backup); err != nil {
			return resetErrorMsg{err: err}
		}
		return resetCompleteMsg{}
	}
}

// Messages for reset operations
type resetCompleteMsg struct{}
type resetErrorMsg struct{ err error }

// Result is the outcome line printed after the program exits, "" when the user quit
func (h *ConfigErrorHandler) Result() string {
	return h.result
}

// View renders the handler
func (h *ConfigErrorHandler) View() string {
	var content string
	if h.askBackup {
		content = lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(configTitleColor).MarginBottom(1).
				Render("Backup Configuration?"),
			"Do you want to backup the current config before resetting?",
			lipgloss.NewStyle().Foreground(configMutedColor).MarginTop(1).
				Render(fmt.Sprintf("Backup: %s.backup-%s", h.configPath, time.Now().Format("2006-01-02"))),
			lipgloss.NewStyle().Foreground(configMutedColor).MarginTop(1).
				Render("[Y] Yes, backup first  [N] No, just reset  [C] Cancel"),
		)
	} else {
		parts := []string{
			lipgloss.NewStyle().Bold(true).Foreground(configErrorColor).MarginBottom(1).
				Render("Configuration File Error"),
			lipgloss.NewStyle().Foreground(configMutedColor).Render("File: " + h.configPath),
			lipgloss.NewStyle().Foreground(configErrorColor).Width(64).MarginTop(1).
				Render(wrapLines(h.err.Message, 64)),
		}
		if ctx := h.lineContext(); ctx != "" {
			parts = append(parts, lipgloss.NewStyle().MarginTop(1).Render(ctx))
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(configMutedColor).MarginTop(1).
			Render("[R] Reset to default  [Q] Quit"))
		content = lipgloss.JoinVertical(lipgloss.Center, parts...)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(configTitleColor).
		Padding(1, 3).
		Width(70).
		Render(content)

	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}

// lineContext renders the failing line with two lines around it
func (h *ConfigErrorHandler) lineContext() string {
	line := h.err.LineNumber
	if line <= 0 || line > len(h.lines) {
		return ""
	}

	numStyle := lipgloss.NewStyle().Foreground(configMutedColor)
	badStyle := lipgloss.NewStyle().Foreground(configErrorColor).Bold(true)

	var out []string
	for i := max(0, line-3); i < min(len(h.lines), line+2); i++ {
		text := truncateRunes(h.lines[i], 60)
		prefix := numStyle.Render(fmt.Sprintf("%3d│ ", i+1))
		if i+1 == line {
			out = append(out, prefix+badStyle.Render(text)+" ← Error")
		} else {
			out = append(out, prefix+text)
		}
	}
	return strings.Join(out, "\n")
}

// wrapLines word-wraps each line of text to width
func wrapLines(text string, width int) string {
	var wrapped []string
	for _, paragraph := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+len(word)+1 <= width:
				line += " " + word
			default:
				wrapped = append(wrapped, line)
				line = "    " + word
			}
		}
		wrapped = append(wrapped, line)
	}
	return strings.Join(wrapped, "\n")
}

// HandleConfigError shows a TUI for handling config errors.
// Returns true if the error was a ConfigError and has been shown.
func HandleConfigError(configPath string, err error) bool {
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		return false
	}

	handler := NewConfigErrorHandler(configPath, configErr)
	if _, err := tea.NewProgram(handler, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error displaying config error: %v\n", err)
		return true
	}
	if result := handler.Result(); result != "" {
		fmt.Println(result)
	}
	return true
}

package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Color scheme
	PrimaryColor   = lipgloss.Color("39")  // Blue
	SecondaryColor = lipgloss.Color("213") // Pink
	SuccessColor   = lipgloss.Color("42")  // Green
	ErrorColor     = lipgloss.Color("196") // Red
	WarningColor   = lipgloss.Color("214") // Orange
	MutedColor     = lipgloss.Color("243") // Gray
	BorderColor    = lipgloss.Color("238") // Dark gray

	// TextColor follows the terminal background unless dark mode is forced
	TextColor = lipgloss.AdaptiveColor{Light: "235", Dark: "252"}

	// Base styles
	BaseStyle = lipgloss.NewStyle()

	HeaderStyle = BaseStyle.
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	StatusStyle = BaseStyle.
			Foreground(MutedColor).
			Padding(0, 1)

	FooterStyle = BaseStyle.
			Foreground(MutedColor).
			Padding(0, 1)

	ShortcutKeyStyle = BaseStyle.
				Foreground(PrimaryColor).
				Bold(true)

	ShortcutDescStyle = BaseStyle.
				Foreground(TextColor)

	// Thread list
	SelectedItemStyle = BaseStyle.
				Foreground(PrimaryColor).
				Bold(true)

	UnselectedItemStyle = BaseStyle.
				Foreground(TextColor)

	PlaceholderStyle = BaseStyle.
				Foreground(MutedColor).
				Italic(true)

	// Thread view
	ThreadTitleStyle = BaseStyle.
				Bold(true).
				Foreground(PrimaryColor).
				Padding(0, 1)

	MessageAuthorStyle = BaseStyle.
				Foreground(SecondaryColor)

	MessageTimeStyle = BaseStyle.
				Foreground(MutedColor).
				Italic(true)

	MessageContentStyle = BaseStyle.
				Foreground(TextColor)

	MessageDepthStyle = BaseStyle.
				Foreground(MutedColor)

	// RecentMessageStyle marks the newest replies of a thread
	RecentMessageStyle = BaseStyle.
				Foreground(WarningColor).
				Bold(true)

	ModalStyle = BaseStyle.
			Border(lipgloss.DoubleBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2).
			Width(58)

	InputFocusedStyle = BaseStyle.
				Border(lipgloss.RoundedBorder()).
				BorderForeground(PrimaryColor).
				Padding(0, 1)

	ErrorStyle = BaseStyle.
			Foreground(ErrorColor).
			Bold(true)

	SuccessStyle = BaseStyle.
			Foreground(SuccessColor).
			Bold(true)

	HelpTitleStyle = BaseStyle.
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	HelpKeyStyle = BaseStyle.
			Foreground(PrimaryColor).
			Bold(true).
			Width(12)

	HelpDescStyle = BaseStyle.
			Foreground(TextColor)

	MutedTextStyle = BaseStyle.
			Foreground(MutedColor)

	SpinnerStyle = BaseStyle.
			Foreground(PrimaryColor)
)

// ApplyTheme forces the dark palette when dark is set; otherwise the
// terminal background decides
func ApplyTheme(dark bool) {
	if dark {
		lipgloss.SetHasDarkBackground(true)
	}
}

// RenderShortcut renders a keyboard shortcut
func RenderShortcut(key, desc string) string {
	return ShortcutKeyStyle.Render("["+key+"]") + " " + ShortcutDescStyle.Render(desc)
}

// RenderError renders an error message
func RenderError(msg string) string {
	return ErrorStyle.Render("✗ " + msg)
}

// RenderSuccess renders a success message
func RenderSuccess(msg string) string {
	return SuccessStyle.Render("✓ " + msg)
}

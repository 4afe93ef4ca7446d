package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/threads"
)

const (
	// recentCount is how many of the newest replies are marked
	recentCount = 3

	// maxIndent caps the nesting drawn for deep reply chains
	maxIndent = 8

	composeHeight = 6 // textarea plus border
	reactHeight   = 3
)

// View renders the current view
func (m Model) View() string {
	// Don't render until we have dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	switch m.currentView {
	case ViewThreadList:
		return m.renderThreadList()
	case ViewThreadView, ViewCompose, ViewReact:
		return m.renderThreadView()
	}
	return "Unknown view"
}

// renderHeader renders the title bar with the forum status
func (m Model) renderHeader() string {
	title := "Afternoon"
	if m.version != "" {
		title += " " + m.version
	}
	left := HeaderStyle.Render(title)

	var status []string
	switch m.threadState.Status {
	case threads.StatusLoading:
		status = append(status, m.spinner.View()+" loading")
	case threads.StatusError:
		status = append(status, "offline")
	case threads.StatusSuccess:
		status = append(status, fmt.Sprintf("%d threads", len(m.visible)))
		if hidden := len(m.threadState.Threads) - len(m.visible); hidden > 0 {
			status = append(status, fmt.Sprintf("%d hidden", hidden))
		}
	}
	if pending := m.session.Threads.Pending(); pending > 0 {
		status = append(status, fmt.Sprintf("enriching %d", pending))
	}
	right := StatusStyle.Render(strings.Join(status, " · "))

	spacer := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return left + spacer + right
}

// renderFooter renders the shortcuts with the status or error message
func (m Model) renderFooter() string {
	content := m.commands.GenerateFooter(int(m.currentView), m)

	if m.statusMessage != "" {
		content += "  " + RenderSuccess(m.statusMessage)
	}
	if m.errorMessage != "" {
		content += "  " + RenderError(m.errorMessage)
	}

	// FooterStyle has Padding(0, 1)
	return FooterStyle.Render(truncateString(content, m.width-2))
}

// renderThreadList renders the forum's threads, one per row
func (m Model) renderThreadList() string {
	var body string

	switch {
	case len(m.visible) == 0 && m.threadState.Status == threads.StatusLoading:
		body = "  " + m.spinner.View() + " Loading threads…"
	case len(m.visible) == 0 && m.threadState.Status == threads.StatusError:
		body = "  " + RenderError(m.threadState.Err) + "\n\n  " + MutedTextStyle.Render("Press r to retry")
	case len(m.visible) == 0:
		body = "  " + MutedTextStyle.Render("No threads")
	default:
		body = m.buildThreadListContent()
	}

	used := lipgloss.Height(body)
	padding := strings.Repeat("\n", max(0, m.height-2-used))

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body+padding, m.renderFooter())
}

// buildThreadListContent renders the rows on screen
func (m Model) buildThreadListContent() string {
	now := m.now()
	rows := m.visibleRows()
	lines := make([]string, 0, len(rows))

	for i, th := range rows {
		selected := m.threadOffset+i == m.threadCursor

		prefix := "  "
		style := UnselectedItemStyle
		if selected {
			prefix = "▶ "
			style = SelectedItemStyle
		}

		item := truncateString(client.FormatThreadItem(th, now), m.width-2)
		line := prefix + style.Render(item)

		if room := m.width - 4 - lipgloss.Width(item); room > 10 {
			if preview := client.ThreadPreview(th, room); preview != "" {
				line += "  " + MutedTextStyle.Render(preview)
			} else if !th.Enriched() {
				line += "  " + PlaceholderStyle.Render("loading…")
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderThreadView renders the open thread with the reply editor or prompt
func (m Model) renderThreadView() string {
	title := SafeThreadName(m.currentThread, "Thread")
	if m.snapshot.Loading {
		title += " " + m.spinner.View()
	}

	parts := []string{
		m.renderHeader(),
		ThreadTitleStyle.Render(truncateString(title, m.width-2)),
	}

	if len(m.snapshot.View) == 0 && !m.snapshot.Loading {
		empty := "  " + MutedTextStyle.Render("No messages")
		parts = append(parts, empty+strings.Repeat("\n", max(0, m.viewportHeight()-1)))
	} else {
		parts = append(parts, m.threadViewport.View())
	}

	switch m.currentView {
	case ViewCompose:
		label := "Reply to thread"
		if m.composeReplyTo != "" {
			label = "Reply to " + m.composeReplyTo
		}
		parts = append(parts, InputFocusedStyle.Render(MutedTextStyle.Render(label)+"\n"+m.compose.View()))
	case ViewReact:
		parts = append(parts, InputFocusedStyle.Render(m.reactInput.View()))
	}

	parts = append(parts, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// viewportHeight is the space left for messages
func (m Model) viewportHeight() int {
	h := m.height - 3
	switch m.currentView {
	case ViewCompose:
		h -= composeHeight + 1
	case ViewReact:
		h -= reactHeight
	}
	return max(1, h)
}

// resizeViewport fits the thread viewport to the window and input state
func (m Model) resizeViewport() Model {
	if m.width == 0 || m.height == 0 {
		return m
	}
	if m.threadViewport.Width == 0 || m.threadViewport.Height == 0 {
		m.threadViewport = viewport.New(m.width, m.viewportHeight())
	} else {
		m.threadViewport.Width = m.width
		m.threadViewport.Height = m.viewportHeight()
	}
	m = m.refreshThreadContent()
	return m.scrollToCursor()
}

// refreshThreadContent rebuilds the viewport content from the snapshot
func (m Model) refreshThreadContent() Model {
	content, entryLines := m.buildThreadContent()
	m.entryLines = entryLines
	m.threadViewport.SetContent(content)
	return m
}

// buildThreadContent renders the indented thread view. It returns the
// content and the first line of each entry.
func (m Model) buildThreadContent() (string, []int) {
	snap := m.snapshot
	now := m.now()
	ranks := messages.RecentRanks(snap.Messages, recentCount)

	opID := ""
	if snap.OriginatingPost != nil {
		opID = snap.OriginatingPost.ID
	}

	var lines []string
	entryLines := make([]int, len(snap.View))

	for i, entry := range snap.View {
		entryLines[i] = len(lines)
		msg := entry.Message
		indent := strings.Repeat("  ", min(entry.Indent, maxIndent))

		marker := "  "
		authorStyle := MessageAuthorStyle
		if i == m.replyCursor {
			marker = "▶ "
			authorStyle = SelectedItemStyle
		}

		header := marker + indent + authorStyle.Render(msg.Author.DisplayName()) + " " +
			MessageTimeStyle.Render(client.FormatMessageTime(msg.Timestamp, m.timestampFormat, now))
		if msg.ID == opID {
			header += " " + MutedTextStyle.Render("[OP]")
		}
		if rank, ok := ranks[msg.ID]; ok {
			header += " " + recentMarker(rank)
		}
		lines = append(lines, header)

		bar := "  " + indent + MessageDepthStyle.Render("│ ")
		width := max(10, m.width-lipgloss.Width(bar))
		for _, paragraph := range strings.Split(msg.Content, "\n") {
			for _, line := range wrapText(paragraph, width) {
				lines = append(lines, bar+MessageContentStyle.Render(line))
			}
		}
		if len(msg.Attachments) > 0 {
			lines = append(lines, bar+MutedTextStyle.Render(client.FormatAttachments(msg.Attachments)))
		}
		if len(msg.Reactions) > 0 {
			lines = append(lines, bar+MutedTextStyle.Render(client.FormatReactions(msg.Reactions)))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n"), entryLines
}

// recentMarker labels one of the newest replies, brightest for the newest
func recentMarker(rank int) string {
	if rank == 0 {
		return RecentMessageStyle.Render("● newest")
	}
	return MutedTextStyle.Render("●")
}

// renderHelp renders the shortcuts of the current view
func (m Model) renderHelp() string {
	var rows []string
	for _, row := range m.commands.GenerateHelp(int(m.currentView), m) {
		rows = append(rows, HelpKeyStyle.Render(row[0])+" "+HelpDescStyle.Render(row[1]))
	}

	content := HelpTitleStyle.Render("Keyboard Shortcuts") + "\n" +
		strings.Join(rows, "\n") + "\n\n" +
		MutedTextStyle.Render("[Esc] Close")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, ModalStyle.Render(content))
}

// wrapText wraps text at word boundaries to lines of at most width cells.
// Words longer than width are placed on their own line.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	currentLine := ""
	for _, word := range words {
		if lipgloss.Width(word) > width {
			if currentLine != "" {
				lines = append(lines, currentLine)
				currentLine = ""
			}
			lines = append(lines, word)
			continue
		}

		testLine := word
		if currentLine != "" {
			testLine = currentLine + " " + word
		}
		if lipgloss.Width(testLine) > width {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine = testLine
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}

// truncateString cuts s to maxLen cells, accounting for ANSI escape codes
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}

	var result strings.Builder
	width := 0
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		}
		if inEscape {
			result.WriteRune(r)
			if r == 'm' {
				inEscape = false
			}
			continue
		}

		w := lipgloss.Width(string(r))
		if width+w > maxLen-1 {
			break
		}
		result.WriteRune(r)
		width += w
	}
	return result.String() + "…"
}

package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/threads"
)

// idleBeforeNotify is how long without key presses before new replies notify
const idleBeforeNotify = 5 * time.Minute

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.compose.SetWidth(max(10, msg.Width-4))
		m.reactInput.Width = max(10, msg.Width-6)
		m = m.resizeViewport()
		m = m.clampThreadCursor()
		m.queueVisibleRows()
		return m, nil

	case ThreadsStateMsg:
		return m.handleThreadsState(threads.State(msg))

	case MessagesSnapshotMsg:
		return m.handleSnapshot(messages.Snapshot(msg))

	case ActionDoneMsg:
		if msg.Reply && m.posting > 0 {
			m.posting--
		}
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error()
			m.statusMessage = ""
		} else if msg.Status != "" {
			m.statusMessage = msg.Status
			m.errorMessage = ""
		}
		return m, nil

	case PollMsg:
		next := pollCmd(m.pollInterval)
		if m.HasCurrentThread() && !m.snapshot.Loading {
			return m, tea.Batch(m.loadNewer(""), next)
		}
		return m, next

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

// handleKeyPress dispatches keys through the command registry; unbound keys
// go to the active text input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastInteraction = m.now()

	if m.showHelp {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "?", "q":
			m.showHelp = false
		}
		return m, nil
	}

	if cmd := m.commands.Lookup(msg.String(), int(m.currentView), m); cmd != nil {
		return cmd.Execute(m)
	}

	return m.updateInputs(msg)
}

// updateInputs forwards msg to the focused text input
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewCompose:
		m.compose, cmd = m.compose.Update(msg)
	case ViewReact:
		m.reactInput, cmd = m.reactInput.Update(msg)
	}
	return m, cmd
}

// handleThreadsState applies a new thread list state
func (m Model) handleThreadsState(state threads.State) (tea.Model, tea.Cmd) {
	m.threadState = state
	m.visible = threads.Visible(state.Threads, m.session.Settings().HiddenThreads())
	m = m.clampThreadCursor()

	if state.Status == threads.StatusError {
		m.errorMessage = state.Err
		m.statusMessage = ""
	}

	cmds := []tea.Cmd{listenForThreads(m.threadsCh)}

	if state.Status == threads.StatusSuccess {
		m.queueVisibleRows()

		if id := m.restoreChannel; id != "" {
			m.restoreChannel = ""
			if th, ok := state.Find(id); ok && m.currentView == ViewThreadList {
				m = m.selectThread(id)
				var cmd tea.Cmd
				m, cmd = m.showThread(th)
				cmds = append(cmds, cmd)
			}
		}
	}

	return m, tea.Batch(cmds...)
}

// handleSnapshot applies a new message store snapshot
func (m Model) handleSnapshot(snap messages.Snapshot) (tea.Model, tea.Cmd) {
	fresh := m.trackNewMessages(snap)
	m.snapshot = snap

	if snap.Err != "" {
		m.errorMessage = snap.Err
		m.statusMessage = ""
	}

	if m.replyCursor >= len(snap.View) {
		m.replyCursor = max(0, len(snap.View)-1)
	}
	m = m.refreshThreadContent()

	if len(fresh) > 0 && m.notifications && m.now().Sub(m.lastInteraction) >= idleBeforeNotify {
		m.sendDesktopNotification(fresh)
	}

	return m, listenForMessages(m.messagesCh)
}

// trackNewMessages returns messages of the open channel not seen before.
// The first complete snapshot of a channel only seeds the seen set.
func (m *Model) trackNewMessages(snap messages.Snapshot) []api.Message {
	if snap.ChannelID != m.seenChannel {
		m.seenChannel = snap.ChannelID
		m.seeded = false
		m.seen = make(map[string]bool)
	}
	if !m.seeded {
		if snap.ChannelID == "" || snap.Loading {
			return nil
		}
		for _, msg := range snap.Messages {
			m.seen[msg.ID] = true
		}
		m.seeded = true
		return nil
	}

	var fresh []api.Message
	for _, msg := range snap.Messages {
		if m.seen[msg.ID] {
			continue
		}
		m.seen[msg.ID] = true
		if m.posting == 0 {
			fresh = append(fresh, msg)
		}
	}
	return fresh
}

// sendDesktopNotification announces the newest of msgs
func (m Model) sendDesktopNotification(msgs []api.Message) {
	title := "Afternoon"
	if name := SafeThreadName(m.currentThread, ""); name != "" {
		title = fmt.Sprintf("Afternoon - %s", name)
	}

	last := msgs[len(msgs)-1]
	content := strings.Join(strings.Fields(last.Content), " ")
	if len([]rune(content)) > 100 {
		content = string([]rune(content)[:97]) + "..."
	}
	body := fmt.Sprintf("%s: %s", last.Author.DisplayName(), content)
	if len(msgs) > 1 {
		body = fmt.Sprintf("%d new replies. %s", len(msgs), body)
	}

	// Best effort
	if err := m.notify(title, body); err != nil {
		m.logger.Debug().Err(err).Msg("failed to send desktop notification")
	}
}

// listHeight is the number of thread rows on screen
func (m Model) listHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(1, m.height-2)
}

// moveThreadCursor moves the thread selection by delta rows
func (m Model) moveThreadCursor(delta int) Model {
	m.threadCursor += delta
	m = m.clampThreadCursor()
	m.queueVisibleRows()
	return m
}

// clampThreadCursor keeps the cursor on a row and the row on screen
func (m Model) clampThreadCursor() Model {
	if m.threadCursor >= len(m.visible) {
		m.threadCursor = len(m.visible) - 1
	}
	if m.threadCursor < 0 {
		m.threadCursor = 0
	}

	height := m.listHeight()
	if m.threadCursor < m.threadOffset {
		m.threadOffset = m.threadCursor
	}
	if m.threadCursor >= m.threadOffset+height {
		m.threadOffset = m.threadCursor - height + 1
	}
	if m.threadOffset > max(0, len(m.visible)-height) {
		m.threadOffset = max(0, len(m.visible)-height)
	}
	return m
}

// visibleRows returns the threads currently on screen
func (m Model) visibleRows() []api.Thread {
	start := min(m.threadOffset, len(m.visible))
	end := min(len(m.visible), start+m.listHeight())
	return m.visible[start:end]
}

// queueVisibleRows asks for enrichment of the rows on screen
func (m Model) queueVisibleRows() {
	if m.threadState.Status != threads.StatusSuccess {
		return
	}
	m.session.QueueVisible(m.visibleRows())
}

// selectThread moves the cursor to the thread with id
func (m Model) selectThread(id string) Model {
	for i, th := range m.visible {
		if th.ID == id {
			m.threadCursor = i
			return m.clampThreadCursor()
		}
	}
	return m
}

// openSelectedThread shows the thread under the cursor
func (m Model) openSelectedThread() (Model, tea.Cmd) {
	if m.threadCursor >= len(m.visible) {
		return m, nil
	}
	return m.showThread(m.visible[m.threadCursor])
}

// showThread switches to the thread view and starts loading th
func (m Model) showThread(th api.Thread) (Model, tea.Cmd) {
	m.currentThread = &th
	m.currentView = ViewThreadView
	m.replyCursor = 0
	m.statusMessage = ""
	m.errorMessage = ""
	m.threadViewport.GotoTop()
	return m, m.openThread(th)
}

// hideSelectedThread removes the thread under the cursor from the list
func (m Model) hideSelectedThread() (Model, tea.Cmd) {
	if m.threadCursor >= len(m.visible) {
		return m, nil
	}
	th := m.visible[m.threadCursor]
	if err := m.session.HideThread(th.ID); err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	m = m.recomputeVisible()
	m.statusMessage = fmt.Sprintf("Hid %q", th.Name)
	m.errorMessage = ""
	return m, nil
}

// unhideAll shows every hidden thread again
func (m Model) unhideAll() (Model, tea.Cmd) {
	if err := m.session.ClearHidden(); err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	m = m.recomputeVisible()
	m.statusMessage = "All threads shown"
	m.errorMessage = ""
	return m, nil
}

// recomputeVisible reapplies the hidden set to the current thread list
func (m Model) recomputeVisible() Model {
	m.visible = threads.Visible(m.threadState.Threads, m.session.Settings().HiddenThreads())
	m = m.clampThreadCursor()
	m.queueVisibleRows()
	return m
}

// closeThread returns to the thread list
func (m Model) closeThread() (Model, tea.Cmd) {
	m.session.CloseThread()
	m.currentThread = nil
	m.currentView = ViewThreadList
	m.replyCursor = 0
	m.statusMessage = ""
	m.errorMessage = ""
	m.queueVisibleRows()
	return m, nil
}

// selectedMessage returns the message under the reply cursor
func (m Model) selectedMessage() *api.Message {
	if m.replyCursor < 0 || m.replyCursor >= len(m.snapshot.View) {
		return nil
	}
	msg := m.snapshot.View[m.replyCursor].Message
	return &msg
}

// moveReplyCursor selects the previous or next message of the thread view
func (m Model) moveReplyCursor(delta int) Model {
	if len(m.snapshot.View) == 0 {
		return m
	}
	m.replyCursor = min(max(0, m.replyCursor+delta), len(m.snapshot.View)-1)
	m.session.Messages.Select(m.snapshot.View[m.replyCursor].Message.ID)
	m = m.refreshThreadContent()
	return m.scrollToCursor()
}

// scrollToCursor keeps the selected entry inside the viewport
func (m Model) scrollToCursor() Model {
	if m.replyCursor >= len(m.entryLines) {
		return m
	}
	line := m.entryLines[m.replyCursor]
	if line < m.threadViewport.YOffset {
		m.threadViewport.SetYOffset(line)
	} else if line >= m.threadViewport.YOffset+m.threadViewport.Height {
		m.threadViewport.SetYOffset(line - m.threadViewport.Height + 1)
	}
	return m
}

// startCompose opens the reply editor; replyTo "" replies to the thread
func (m Model) startCompose(replyTo string) (Model, tea.Cmd) {
	if !m.HasCurrentThread() {
		return m, nil
	}
	m.composeReplyTo = replyTo
	m.compose.Reset()
	m.currentView = ViewCompose
	m.errorMessage = ""
	m = m.resizeViewport()
	cmd := m.compose.Focus()
	return m, cmd
}

// sendCompose posts the editor content
func (m Model) sendCompose() (Model, tea.Cmd) {
	content := m.compose.Value()
	if strings.TrimSpace(content) == "" {
		m.errorMessage = client.ErrEmptyContent.Error()
		return m, nil
	}

	channelID, replyTo := SafeThreadID(m.currentThread), m.composeReplyTo
	m.compose.Blur()
	m.compose.Reset()
	m.currentView = ViewThreadView
	m.posting++
	m.statusMessage = "Posting…"
	m.errorMessage = ""
	m = m.resizeViewport()
	return m, m.postReply(channelID, replyTo, content)
}

// startReact opens the reaction prompt for the selected message
func (m Model) startReact() (Model, tea.Cmd) {
	m.reactInput.Reset()
	m.currentView = ViewReact
	m.errorMessage = ""
	m = m.resizeViewport()
	cmd := m.reactInput.Focus()
	return m, cmd
}

// submitReact reacts to the selected message with the typed tag
func (m Model) submitReact() (Model, tea.Cmd) {
	target := m.selectedMessage()
	tag := strings.TrimSpace(m.reactInput.Value())
	m.reactInput.Blur()
	m.currentView = ViewThreadView
	m = m.resizeViewport()

	if target == nil || !m.HasCurrentThread() {
		return m, nil
	}
	if tag == "" {
		m.errorMessage = client.ErrEmptyReaction.Error()
		return m, nil
	}
	return m, m.react(m.currentThread.ID, target.ID, tag)
}

// cancelInput closes the editor or prompt without sending
func (m Model) cancelInput() (Model, tea.Cmd) {
	m.compose.Blur()
	m.reactInput.Blur()
	m.currentView = ViewThreadView
	return m.resizeViewport(), nil
}

// isDiscarded reports a fetch dropped because its thread was closed
func isDiscarded(err error) bool {
	return errors.Is(err, messages.ErrDiscarded)
}

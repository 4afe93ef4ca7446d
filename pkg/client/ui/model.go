package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/client/ui/commands"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/threads"
)

// ViewState represents the current view
type ViewState int

const (
	ViewThreadList ViewState = iota
	ViewThreadView
	ViewCompose
	ViewReact
)

func (v ViewState) String() string {
	switch v {
	case ViewThreadList:
		return "ThreadList"
	case ViewThreadView:
		return "ThreadView"
	case ViewCompose:
		return "Compose"
	case ViewReact:
		return "React"
	default:
		return "Unknown"
	}
}

// Options configures the UI from the [ui] config section
type Options struct {
	Version         string
	TimestampFormat string        // "relative" or "absolute"
	Notifications   bool          // desktop notification for new replies
	PollInterval    time.Duration // open thread refresh, 0 disables
	IconPath        string        // notification icon, "" for the notifier default
	Logger          zerolog.Logger
}

// Model represents the application state
type Model struct {
	ctx      context.Context
	session  *client.Session
	logger   zerolog.Logger
	commands *commands.Registry[Model]

	// Subscriptions to the engine and the message store
	threadsCh   <-chan threads.State
	messagesCh  <-chan messages.Snapshot
	unsubscribe []func()

	currentView ViewState
	showHelp    bool

	// Thread list
	threadState    threads.State
	visible        []api.Thread
	threadCursor   int
	threadOffset   int
	restoreChannel string // thread open at last exit, reopened once the list loads

	// Open thread
	currentThread  *api.Thread
	snapshot       messages.Snapshot
	replyCursor    int
	entryLines     []int // first viewport line of each thread view entry
	threadViewport viewport.Model

	// Input state
	compose        textarea.Model
	composeReplyTo string
	reactInput     textinput.Model

	// New reply tracking for notifications
	seenChannel string
	seeded      bool
	seen        map[string]bool
	posting     int // replies in flight; their messages never notify

	width   int
	height  int
	spinner spinner.Model

	errorMessage    string
	statusMessage   string
	lastInteraction time.Time

	version         string
	timestampFormat string
	notifications   bool
	pollInterval    time.Duration
	notify          func(title, body string) error
	now             func() time.Time
}

// ThreadsStateMsg carries a new thread list state
type ThreadsStateMsg threads.State

// MessagesSnapshotMsg carries a new message store snapshot
type MessagesSnapshotMsg messages.Snapshot

// ActionDoneMsg reports the result of a background action
type ActionDoneMsg struct {
	Status string
	Err    error

	// Reply marks the end of a reply post, successful or not
	Reply bool
}

// PollMsg triggers a refresh of the open thread
type PollMsg time.Time

// NewModel creates the UI for session. The session's worker must be started
// by the caller.
func NewModel(ctx context.Context, session *client.Session, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Write a reply… (Ctrl+S to send, Esc to cancel)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetHeight(4)

	ti := textinput.New()
	ti.Placeholder = "reaction, e.g. 👍 or a configured tag"
	ti.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := Model{
		ctx:             ctx,
		session:         session,
		logger:          opts.Logger,
		currentView:     ViewThreadList,
		threadState:     threads.State{Status: threads.StatusLoading},
		restoreChannel:  session.Settings().ChannelID(),
		compose:         ta,
		reactInput:      ti,
		spinner:         sp,
		seen:            make(map[string]bool),
		version:         opts.Version,
		timestampFormat: opts.TimestampFormat,
		notifications:   opts.Notifications,
		pollInterval:    opts.PollInterval,
		notify:          desktopNotifier(opts.IconPath),
		now:             time.Now,
	}

	var cancel func()
	m.threadsCh, cancel = session.Threads.Subscribe()
	m.unsubscribe = append(m.unsubscribe, cancel)
	m.messagesCh, cancel = session.Messages.Subscribe()
	m.unsubscribe = append(m.unsubscribe, cancel)

	m.commands = commands.NewRegistry[Model]()
	m.registerCommands()

	return m
}

// Close drops the snapshot subscriptions
func (m Model) Close() {
	for _, cancel := range m.unsubscribe {
		cancel()
	}
}

// Init starts listening for snapshots and loads the forum
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		listenForThreads(m.threadsCh),
		listenForMessages(m.messagesCh),
		m.spinner.Tick,
		m.openForum(),
	}
	if m.pollInterval > 0 {
		cmds = append(cmds, pollCmd(m.pollInterval))
	}
	return tea.Batch(cmds...)
}

// listenForThreads waits for the next thread list state
func listenForThreads(ch <-chan threads.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return ThreadsStateMsg(state)
	}
}

// listenForMessages waits for the next message store snapshot
func listenForMessages(ch <-chan messages.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return MessagesSnapshotMsg(snap)
	}
}

// pollCmd schedules the next PollMsg
func pollCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return PollMsg(t)
	})
}

// desktopNotifier sends OS notifications with icon
func desktopNotifier(icon string) func(title, body string) error {
	return func(title, body string) error {
		return beeep.Notify(title, body, icon)
	}
}

// openForum loads the thread list in the background. Results arrive as
// ThreadsStateMsg; only the error is reported here.
func (m Model) openForum() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.OpenForum(ctx); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return nil
	}
}

// refreshForum reloads the thread list in the background
func (m Model) refreshForum() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.RefreshForum(ctx); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "Threads refreshed"}
	}
}

// openThread loads th and its originating post in the background
func (m Model) openThread(th api.Thread) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.OpenThread(ctx, th); err != nil && !isDiscarded(err) {
			return ActionDoneMsg{Err: err}
		}
		return nil
	}
}

// loadNewer fetches replies newer than the ones shown
func (m Model) loadNewer(status string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.LoadNewer(ctx); err != nil && !isDiscarded(err) {
			return ActionDoneMsg{Err: err}
		}
		if status == "" {
			return nil
		}
		return ActionDoneMsg{Status: status}
	}
}

// postReply sends content as a reply
func (m Model) postReply(channelID, replyTo, content string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		created, err := session.PostReply(ctx, channelID, replyTo, content)
		if err != nil {
			return ActionDoneMsg{Err: err, Reply: true}
		}
		return ActionDoneMsg{Status: fmt.Sprintf("Reply %s posted", created.ID), Reply: true}
	}
}

// react adds a reaction to messageID
func (m Model) react(channelID, messageID, tag string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.React(ctx, channelID, messageID, tag); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "Reaction added"}
	}
}

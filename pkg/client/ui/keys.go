package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeolun/afternoon/pkg/client/ui/commands"
)

func notTyping(m Model) bool {
	return m.currentView != ViewCompose && m.currentView != ViewReact
}

// registerCommands sets up all keyboard commands
func (m *Model) registerCommands() {
	r := m.commands
	list, thread := int(ViewThreadList), int(ViewThreadView)

	// === Global Commands ===

	r.Register(commands.NewCommand[Model]().
		Keys("ctrl+c").
		Help("Quit immediately").
		Global().
		Priority(1000).
		Do(func(m Model) (Model, tea.Cmd) { return m, tea.Quit }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("q").
		Name("Quit").
		Help("Quit the application").
		Global().
		When(notTyping).
		Priority(900).
		Do(func(m Model) (Model, tea.Cmd) { return m, tea.Quit }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("?").
		Name("Help").
		Help("Toggle this help").
		Global().
		When(notTyping).
		Priority(800).
		Do(func(m Model) (Model, tea.Cmd) {
			m.showHelp = !m.showHelp
			return m, nil
		}).
		Build())

	// === Thread list ===

	r.Register(commands.NewCommand[Model]().
		Keys("up", "k").
		Help("Move selection up").
		InViews(list).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveThreadCursor(-1), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("down", "j").
		Help("Move selection down").
		InViews(list).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveThreadCursor(1), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("pgup").
		Help("Page up").
		InViews(list).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveThreadCursor(-m.listHeight()), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("pgdown").
		Help("Page down").
		InViews(list).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveThreadCursor(m.listHeight()), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("enter").
		Name("Open").
		Help("Open the selected thread").
		InViews(list).
		When(func(m Model) bool { return len(m.visible) > 0 }).
		Priority(10).
		Do(Model.openSelectedThread).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("r").
		Name("Refresh").
		Help("Reload the thread list").
		InViews(list).
		Priority(20).
		Do(func(m Model) (Model, tea.Cmd) {
			m.statusMessage = ""
			m.errorMessage = ""
			return m, m.refreshForum()
		}).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("d").
		Name("Hide").
		Help("Hide the selected thread").
		InViews(list).
		When(func(m Model) bool { return len(m.visible) > 0 }).
		Priority(30).
		Do(Model.hideSelectedThread).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("u").
		Help("Show all hidden threads again").
		InViews(list).
		Priority(40).
		Do(Model.unhideAll).
		Build())

	// === Thread view ===

	r.Register(commands.NewCommand[Model]().
		Keys("up", "k").
		Help("Select previous message").
		InViews(thread).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveReplyCursor(-1), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("down", "j").
		Help("Select next message").
		InViews(thread).
		Do(func(m Model) (Model, tea.Cmd) { return m.moveReplyCursor(1), nil }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("pgup").
		Help("Scroll up").
		InViews(thread).
		Do(func(m Model) (Model, tea.Cmd) {
			m.threadViewport.HalfPageUp()
			return m, nil
		}).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("pgdown").
		Help("Scroll down").
		InViews(thread).
		Do(func(m Model) (Model, tea.Cmd) {
			m.threadViewport.HalfPageDown()
			return m, nil
		}).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("c", "enter").
		Name("Reply").
		Help("Reply to the selected message").
		InViews(thread).
		When(func(m Model) bool { return m.selectedMessage() != nil }).
		Priority(10).
		Do(func(m Model) (Model, tea.Cmd) { return m.startCompose(m.selectedMessage().ID) }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("n").
		Name("New").
		Help("Reply to the thread").
		InViews(thread).
		Priority(20).
		Do(func(m Model) (Model, tea.Cmd) { return m.startCompose("") }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("x").
		Name("React").
		Help("React to the selected message").
		InViews(thread).
		When(func(m Model) bool { return m.selectedMessage() != nil }).
		Priority(30).
		Do(Model.startReact).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("l").
		Name("Load newer").
		Help("Fetch replies newer than the ones shown").
		InViews(thread).
		Priority(40).
		Do(func(m Model) (Model, tea.Cmd) { return m, m.loadNewer("Up to date") }).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("esc", "backspace").
		Name("Back").
		Help("Back to the thread list").
		InViews(thread).
		Priority(50).
		Do(Model.closeThread).
		Build())

	// === Compose ===

	r.Register(commands.NewCommand[Model]().
		Keys("ctrl+s").
		Name("Send").
		Help("Send the reply").
		InViews(int(ViewCompose)).
		Priority(10).
		Do(Model.sendCompose).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("esc").
		Name("Cancel").
		Help("Discard the reply").
		InViews(int(ViewCompose)).
		Priority(20).
		Do(Model.cancelInput).
		Build())

	// === Reaction prompt ===

	r.Register(commands.NewCommand[Model]().
		Keys("enter").
		Name("React").
		Help("Add the reaction").
		InViews(int(ViewReact)).
		Priority(10).
		Do(Model.submitReact).
		Build())

	r.Register(commands.NewCommand[Model]().
		Keys("esc").
		Name("Cancel").
		Help("Close the prompt").
		InViews(int(ViewReact)).
		Priority(20).
		Do(Model.cancelInput).
		Build())
}

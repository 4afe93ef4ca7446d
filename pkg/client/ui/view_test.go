package ui

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/threads"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestView_NoDimensions(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 0, 0)

	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestView_ThreadListStates(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 20)

	if view := m.View(); !strings.Contains(view, "Loading threads") {
		t.Errorf("loading list should say so, got:\n%s", view)
	}

	m, _ = update(t, m, ThreadsStateMsg(threads.State{Status: threads.StatusError, Err: "401 Unauthorized"}))
	view := m.View()
	if !strings.Contains(view, "401 Unauthorized") || !strings.Contains(view, "Press r to retry") {
		t.Errorf("error list should show the error and retry hint, got:\n%s", view)
	}

	m, _ = update(t, m, successState())
	if view := m.View(); !strings.Contains(view, "No threads") {
		t.Errorf("empty list should say so, got:\n%s", view)
	}
}

func TestView_ThreadRows(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 120, 20)

	enriched := testThread("20", "Enriched")
	first := testMessage("20", "the first post", 0)
	enriched.FirstPost = &first
	enriched.Author = "user20"
	enriched.MessageCount = 3

	m, _ = update(t, m, successState(enriched, testThread("10", "Pending")))
	view := m.View()

	if !strings.Contains(view, "▶ ") {
		t.Error("selected row should be marked")
	}
	if !strings.Contains(view, "Enriched · user20") {
		t.Errorf("enriched row should show the author, got:\n%s", view)
	}
	if !strings.Contains(view, "the first post") {
		t.Errorf("enriched row should show the preview, got:\n%s", view)
	}
	if !strings.Contains(view, "Pending · …") {
		t.Errorf("pending row should show a placeholder author, got:\n%s", view)
	}
	if !strings.Contains(view, "loading…") {
		t.Errorf("pending row should show a loading preview, got:\n%s", view)
	}
	if !strings.Contains(view, "2 threads") || !strings.Contains(view, "enriching 1") {
		t.Errorf("header should show counts, got:\n%s", view)
	}
	if !strings.Contains(view, "[Enter] Open") {
		t.Errorf("footer should list shortcuts, got:\n%s", view)
	}
	if got := lipgloss.Height(view); got != 20 {
		t.Errorf("view height = %d, want 20", got)
	}
}

func TestView_HiddenCount(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 20)
	m, _ = update(t, m, successState(testThread("20", "b"), testThread("10", "a")))
	m, _ = update(t, m, runes("d"))

	if view := m.View(); !strings.Contains(view, "1 hidden") {
		t.Errorf("header should count hidden threads, got:\n%s", view)
	}
}

func TestView_ThreadView(t *testing.T) {
	h := newHarness(t)
	m := openTestThread(t, h.model(t, 100, 30))
	view := m.View()

	if !strings.Contains(view, "Help wanted") {
		t.Error("thread view should show the thread name")
	}
	if !strings.Contains(view, "[OP]") {
		t.Error("originating post should be marked")
	}
	if !strings.Contains(view, "● newest") {
		t.Error("newest reply should be marked")
	}
	for _, content := range []string{"how do I", "like this", "thanks"} {
		if !strings.Contains(view, content) {
			t.Errorf("thread view should contain %q", content)
		}
	}
	if !strings.Contains(view, "[c/Enter] Reply") {
		t.Errorf("footer should list reply, got:\n%s", view)
	}
}

func TestBuildThreadContent_Indentation(t *testing.T) {
	h := newHarness(t)
	m := openTestThread(t, h.model(t, 100, 30))

	content, entryLines := m.buildThreadContent()
	if len(entryLines) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entryLines))
	}

	lines := strings.Split(content, "\n")
	indentOf := func(entry int) int {
		line := strings.TrimPrefix(stripANSI(lines[entryLines[entry]]), "▶ ")
		line = strings.TrimPrefix(line, "  ")
		return len(line) - len(strings.TrimLeft(line, " "))
	}

	if indentOf(0) != 0 {
		t.Errorf("root indent = %d, want 0", indentOf(0))
	}
	if indentOf(1) <= indentOf(0) || indentOf(2) <= indentOf(1) {
		t.Errorf("replies should be indented deeper: %d %d %d", indentOf(0), indentOf(1), indentOf(2))
	}
}

func TestBuildThreadContent_AttachmentsAndReactions(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 30)

	msg := testMessage("100", "look", 0)
	msg.Attachments = []api.Attachment{{Filename: "shot.png", Size: 2048}}
	msg.Reactions = []api.Reaction{{Count: 2, Emoji: api.Emoji{Name: "👍"}}}
	m, _ = update(t, m, MessagesSnapshotMsg(snapshotOf("100", msg)))

	content, _ := m.buildThreadContent()
	if !strings.Contains(content, "shot.png") {
		t.Errorf("content should list attachments, got:\n%s", content)
	}
	if !strings.Contains(content, "👍") {
		t.Errorf("content should list reactions, got:\n%s", content)
	}
}

func TestView_ComposeAndReact(t *testing.T) {
	h := newHarness(t)
	m := openTestThread(t, h.model(t, 100, 30))

	m, _ = update(t, m, runes("c"))
	if view := m.View(); !strings.Contains(view, "Reply to 100") {
		t.Errorf("editor should name the target, got:\n%s", view)
	}

	if m.viewportHeight() >= 27 {
		t.Errorf("editor should take room from the viewport, height = %d", m.viewportHeight())
	}
}

func TestView_Help(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 30)
	m, _ = update(t, m, successState(testThread("20", "b"), testThread("10", "a")))
	m, _ = update(t, m, runes("?"))

	view := m.View()
	if !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("help should have a title")
	}
	for _, text := range []string{"Open the selected thread", "Hide the selected thread", "Reload the thread list"} {
		if !strings.Contains(view, text) {
			t.Errorf("help should list %q, got:\n%s", text, view)
		}
	}
	if !strings.Contains(view, "[Esc] Close") {
		t.Error("help should say how to close it")
	}
}

func TestView_HelpOmitsUnavailableCommands(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 30)
	m, _ = update(t, m, successState())
	m, _ = update(t, m, runes("?"))

	view := m.View()
	if strings.Contains(view, "Hide the selected thread") || strings.Contains(view, "Open the selected thread") {
		t.Errorf("empty list should not offer row commands, got:\n%s", view)
	}
	if !strings.Contains(view, "Reload the thread list") {
		t.Error("refresh should always be listed")
	}
}

func TestView_FooterMessages(t *testing.T) {
	h := newHarness(t)
	m := h.model(t, 100, 20)

	m, _ = update(t, m, ActionDoneMsg{Status: "Threads refreshed"})
	if view := m.View(); !strings.Contains(view, "Threads refreshed") {
		t.Error("footer should show the status")
	}

	m, _ = update(t, m, ActionDoneMsg{Err: errors.New("rate limited")})
	if view := m.View(); !strings.Contains(view, "rate limited") || strings.Contains(view, "Threads refreshed") {
		t.Error("error should replace the status")
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "hello world", 20, []string{"hello world"}},
		{"wraps", "hello world again", 11, []string{"hello world", "again"}},
		{"long word", "a verylongword b", 5, []string{"a", "verylongword", "b"}},
		{"empty", "   ", 10, []string{""}},
		{"no width", "hello world", 0, []string{"hello world"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("hello world", 6); got != "hello…" {
		t.Errorf("got %q, want %q", got, "hello…")
	}
	if got := truncateString("anything", 0); got != "" {
		t.Errorf("got %q, want empty", got)
	}

	styled := ErrorStyle.Render("hello world")
	if got := lipgloss.Width(truncateString(styled, 6)); got > 6 {
		t.Errorf("styled truncation width = %d", got)
	}
}

func TestSafeHelpers(t *testing.T) {
	if SafeThreadID(nil) != "" {
		t.Error("nil thread should have an empty id")
	}
	if SafeThreadName(nil, "fallback") != "fallback" {
		t.Error("nil thread should use the fallback name")
	}
	th := testThread("5", "")
	if SafeThreadName(&th, "fallback") != "fallback" {
		t.Error("unnamed thread should use the fallback name")
	}
}

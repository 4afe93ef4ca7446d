package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/threads"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeAPI serves canned threads and messages
type fakeAPI struct {
	mu        sync.Mutex
	threads   []api.Thread
	messages  map[string][]api.Message
	created   []api.NewMessage
	reactions []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[string][]api.Message)}
}

func (f *fakeAPI) GetMessages(ctx context.Context, channelID string, limit int, opts ...api.CallOption) ([]api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Message(nil), f.messages[channelID]...), nil
}

func (f *fakeAPI) GetMessagesAfter(ctx context.Context, channelID string, limit int, after string, opts ...api.CallOption) ([]api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Message
	for _, m := range f.messages[channelID] {
		if api.CompareIDs(m.ID, after) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[channelID] {
		if m.ID == messageID {
			clone := m
			return &clone, nil
		}
	}
	return nil, errors.New("unknown message")
}

func (f *fakeAPI) GetActiveThreads(ctx context.Context, guildID string, opts ...api.CallOption) (*api.ThreadsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.ThreadsResponse{Threads: append([]api.Thread(nil), f.threads...)}, nil
}

func (f *fakeAPI) CreateMessage(ctx context.Context, channelID string, msg api.NewMessage, opts ...api.CallOption) (*api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, msg)
	created := api.Message{ID: fmt.Sprintf("%d", 9000+len(f.created)), ChannelID: channelID, Content: msg.Content}
	return &created, nil
}

func (f *fakeAPI) AddReaction(ctx context.Context, channelID, messageID, emoji string, opts ...api.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, channelID+"/"+messageID+"/"+emoji)
	return nil
}

type notification struct {
	title, body string
}

// testHarness is a model wired to a fake service
type testHarness struct {
	api     *fakeAPI
	state   *client.MockState
	session *client.Session
	notes   *[]notification
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	fake := newFakeAPI()
	state := client.NewMockState()
	session := client.NewSession(fake, client.NewSettings(state), client.SessionConfig{
		GuildID:      "g",
		ForumID:      "f",
		Engine:       threads.Config{},
		ReactionTags: map[string]string{"solved": "77"},
	}, zerolog.Nop(), nil)
	t.Cleanup(session.Close)
	return &testHarness{api: fake, state: state, session: session, notes: &[]notification{}}
}

// model builds a sized model with a fixed clock and recorded notifications
func (h *testHarness) model(t *testing.T, width, height int) Model {
	t.Helper()
	m := NewModel(context.Background(), h.session, Options{
		Version:         "1.0.0",
		TimestampFormat: "relative",
		Notifications:   true,
		Logger:          zerolog.Nop(),
	})
	t.Cleanup(m.Close)

	m.now = func() time.Time { return testNow }
	notes := h.notes
	m.notify = func(title, body string) error {
		*notes = append(*notes, notification{title, body})
		return nil
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return next.(Model)
}

func testThread(id, name string) api.Thread {
	created := testNow.Add(-2 * time.Hour).Format(time.RFC3339Nano)
	return api.Thread{
		ID:             id,
		ParentID:       "f",
		Name:           name,
		LastMessageID:  id,
		ThreadMetadata: api.ThreadMetadata{CreateTimestamp: &created},
	}
}

func testMessage(id, content string, minute int, replyTo ...string) api.Message {
	m := api.Message{
		ID:        id,
		Author:    api.Author{ID: "u" + id, Username: "user" + id},
		Content:   content,
		Timestamp: fmt.Sprintf("2024-01-01T11:%02d:00.000000+00:00", minute),
	}
	if len(replyTo) > 0 {
		m.MessageReference = &api.MessageReference{MessageID: replyTo[0]}
	}
	return m
}

func snapshotOf(channelID string, msgs ...api.Message) messages.Snapshot {
	sorted := messages.SortByTimestamp(msgs)
	snap := messages.Snapshot{
		ChannelID: channelID,
		Messages:  sorted,
		View:      messages.BuildThreadView(sorted),
	}
	if len(sorted) > 0 {
		op := sorted[0]
		snap.OriginatingPost = &op
	}
	return snap
}

func successState(ths ...api.Thread) ThreadsStateMsg {
	return ThreadsStateMsg(threads.State{Status: threads.StatusSuccess, Threads: ths})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

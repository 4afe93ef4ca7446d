// ABOUTME: Session ties the thread list engine and the message store to the API and settings.
// ABOUTME: It carries the user actions: open/close a thread, reply, react and hide threads.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/metrics"
	"github.com/aeolun/afternoon/pkg/threads"
)

var (
	// ErrEmptyContent is returned when posting blank text; nothing is sent
	ErrEmptyContent = errors.New("reply content is empty")

	// ErrEmptyReaction is returned for a blank reaction tag
	ErrEmptyReaction = errors.New("reaction is empty")

	// ErrNoForum is returned when no guild or forum id is known
	ErrNoForum = errors.New("no guild or forum configured")
)

// SessionConfig holds the session knobs taken from the config file
type SessionConfig struct {
	GuildID      string // used when settings hold none
	ForumID      string // used when settings hold none
	PageLimit    int
	Engine       threads.Config
	ReactionTags map[string]string // tag name -> custom emoji id
}

// Session is one user's view of a forum: the thread list and the open thread
type Session struct {
	api      APIClient
	settings *Settings
	cfg      SessionConfig
	logger   zerolog.Logger

	Threads  *threads.Engine
	Messages *messages.Store
}

// NewSession wires an enrichment engine and a message store to client
func NewSession(client APIClient, settings *Settings, cfg SessionConfig, logger zerolog.Logger, m *metrics.Metrics) *Session {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	return &Session{
		api:      client,
		settings: settings,
		cfg:      cfg,
		logger:   logger,
		Threads: threads.NewEngine(client, cfg.Engine,
			threads.WithLogger(logger.With().Str("component", "threads").Logger()),
			threads.WithMetrics(m),
		),
		Messages: messages.NewStore(client,
			messages.WithLogger(logger.With().Str("component", "messages").Logger()),
			messages.WithMetrics(m),
		),
	}
}

// Start runs the enrichment worker until ctx is done or Close is called
func (s *Session) Start(ctx context.Context) {
	go s.Threads.Run(ctx)
}

// Close stops the worker and cancels message fetches
func (s *Session) Close() {
	s.Threads.Close()
	s.Messages.Close()
}

// Settings returns the typed settings view
func (s *Session) Settings() *Settings {
	return s.settings
}

// PageLimit is the number of messages requested per page
func (s *Session) PageLimit() int {
	return s.cfg.PageLimit
}

// ForumIDs returns the guild and forum to show, settings first
func (s *Session) ForumIDs() (guildID, forumID string) {
	guildID = s.settings.GuildID()
	if guildID == "" {
		guildID = s.cfg.GuildID
	}
	forumID = s.settings.ForumID()
	if forumID == "" {
		forumID = s.cfg.ForumID
	}
	return guildID, forumID
}

// OpenForum loads the thread list of the configured forum
func (s *Session) OpenForum(ctx context.Context) error {
	guildID, forumID := s.ForumIDs()
	if guildID == "" || forumID == "" {
		return ErrNoForum
	}
	return s.Threads.LoadThreads(ctx, guildID, forumID)
}

// RefreshForum reloads the thread list
func (s *Session) RefreshForum(ctx context.Context) error {
	err := s.Threads.Refresh(ctx)
	if errors.Is(err, threads.ErrNotLoaded) {
		return s.OpenForum(ctx)
	}
	return err
}

// QueueVisible asks for enrichment of the given threads, e.g. the rows on screen
func (s *Session) QueueVisible(ths []api.Thread) {
	for _, th := range ths {
		if !th.Enriched() {
			s.Threads.QueueThreadLoad(th.ID)
		}
	}
}

// OpenThread shows thread th: remembers it, starts from an empty message set,
// and loads the first page together with the originating post
func (s *Session) OpenThread(ctx context.Context, th api.Thread) error {
	if err := s.settings.SetChannelID(th.ID); err != nil {
		s.logger.Warn().Err(err).Str("channel_id", th.ID).Msg("failed to remember open thread")
	}

	s.Messages.Clear()

	op := th.FirstPost
	if op == nil {
		fetched, err := s.Messages.FetchOriginatingPost(ctx, th.ID)
		if err != nil {
			// The thread can still be read without its first post
			s.logger.Warn().Err(err).Str("channel_id", th.ID).Msg("failed to load originating post")
		} else {
			op = fetched
		}
	}

	return s.Messages.FetchInitial(ctx, th.ID, s.cfg.PageLimit, op)
}

// LoadNewer fetches replies newer than what is already shown
func (s *Session) LoadNewer(ctx context.Context) error {
	channelID := s.Messages.Snapshot().ChannelID
	if channelID == "" {
		return nil
	}
	return s.Messages.FetchMore(ctx, channelID, s.cfg.PageLimit)
}

// CloseThread forgets the open thread
func (s *Session) CloseThread() {
	s.Messages.Clear()
	if err := s.settings.ClearChannelID(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset open thread")
	}
}

// userOpts authenticates as the user when a user token is stored
func (s *Session) userOpts() []api.CallOption {
	if token := s.settings.UserToken(); token != "" {
		return []api.CallOption{api.WithUserToken(token)}
	}
	return nil
}

// PostReply posts content to channelID, replying to replyTo when set.
// Blank content returns ErrEmptyContent without contacting the service.
// When the channel is open its new messages are fetched afterwards.
func (s *Session) PostReply(ctx context.Context, channelID, replyTo, content string) (*api.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg := api.NewMessage{
		Content: content,
		AllowedMentions: &api.AllowedMentions{
			Parse:       []string{},
			RepliedUser: false,
		},
	}
	if replyTo != "" {
		msg.MessageReference = &api.MessageReference{
			MessageID: replyTo,
			ChannelID: channelID,
		}
	}

	created, err := s.api.CreateMessage(ctx, channelID, msg, s.userOpts()...)
	if err != nil {
		return nil, fmt.Errorf("failed to post reply: %w", err)
	}

	s.logger.Info().Str("channel_id", channelID).Str("message_id", created.ID).Msg("posted reply")

	if s.Messages.Snapshot().ChannelID == channelID {
		if err := s.Messages.FetchMore(ctx, channelID, s.cfg.PageLimit); err != nil {
			s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to refresh after reply")
		}
	}
	return created, nil
}

// ResolveReaction maps a configured tag name to "name:id", otherwise the
// tag is taken as a unicode emoji
func (s *Session) ResolveReaction(tag string) string {
	tag = strings.TrimSpace(tag)
	if id := s.cfg.ReactionTags[tag]; id != "" {
		return tag + ":" + id
	}
	return tag
}

// React adds a reaction to a message
func (s *Session) React(ctx context.Context, channelID, messageID, tag string) error {
	emoji := s.ResolveReaction(tag)
	if emoji == "" {
		return ErrEmptyReaction
	}
	if err := s.api.AddReaction(ctx, channelID, messageID, emoji, s.userOpts()...); err != nil {
		return fmt.Errorf("failed to react: %w", err)
	}
	return nil
}

// HideThread removes a thread from VisibleThreads
func (s *Session) HideThread(id string) error {
	return s.settings.HideThread(id)
}

// ClearHidden shows all hidden threads again
func (s *Session) ClearHidden() error {
	return s.settings.ClearHiddenThreads()
}

// VisibleThreads returns the current thread list minus hidden threads
func (s *Session) VisibleThreads() []api.Thread {
	return threads.Visible(s.Threads.State().Threads, s.settings.HiddenThreads())
}

// ABOUTME: Wire types for the forum message service REST API.
// ABOUTME: Threads, messages and the enrichment fields filled in client-side.
package api

import (
	"time"
)

// Author is the user who posted a message
type Author struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	GlobalName    *string `json:"global_name,omitempty"`
	Discriminator string  `json:"discriminator,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
}

// DisplayName returns the global display name, falling back to the username
func (a Author) DisplayName() string {
	if a.GlobalName != nil && *a.GlobalName != "" {
		return *a.GlobalName
	}
	return a.Username
}

// MessageReference points at the message being replied to
type MessageReference struct {
	Type      int    `json:"type,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Emoji identifies a reaction emoji. ID is nil for unicode emoji.
type Emoji struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// CountDetails splits a reaction count into burst and normal reactions
type CountDetails struct {
	Burst  int `json:"burst"`
	Normal int `json:"normal"`
}

// Reaction is an aggregated reaction on a message
type Reaction struct {
	Emoji        Emoji        `json:"emoji"`
	Count        int          `json:"count"`
	CountDetails CountDetails `json:"count_details"`
	Me           bool         `json:"me"`
}

// Attachment is a file uploaded with a message
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url,omitempty"`
	Width       *int   `json:"width,omitempty"`
	Height      *int   `json:"height,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// EmbedThumbnail is the preview image of an embed
type EmbedThumbnail struct {
	URL      string `json:"url"`
	ProxyURL string `json:"proxy_url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// EmbedProvider names the site an embed came from
type EmbedProvider struct {
	Name string `json:"name"`
}

// Embed is rich link content attached to a message
type Embed struct {
	Type        string          `json:"type"`
	URL         string          `json:"url,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       *int            `json:"color,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Provider    *EmbedProvider  `json:"provider,omitempty"`
}

// Message is a single post in a channel
type Message struct {
	ID               string            `json:"id"`
	Type             int               `json:"type"`
	ChannelID        string            `json:"channel_id"`
	Author           Author            `json:"author"`
	Content          string            `json:"content"`
	Timestamp        string            `json:"timestamp"`
	EditedTimestamp  *string           `json:"edited_timestamp,omitempty"`
	Pinned           bool              `json:"pinned"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	Reactions        []Reaction        `json:"reactions,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
	Embeds           []Embed           `json:"embeds,omitempty"`
}

// ReplyTo returns the id of the message this one replies to, or "" for a root message
func (m Message) ReplyTo() string {
	if m.MessageReference == nil {
		return ""
	}
	return m.MessageReference.MessageID
}

// IsRoot reports whether the message has no reply reference
func (m Message) IsRoot() bool {
	return m.ReplyTo() == ""
}

// ThreadMetadata carries archive/lock state of a thread
type ThreadMetadata struct {
	Archived            bool    `json:"archived"`
	ArchiveTimestamp    string  `json:"archive_timestamp,omitempty"`
	AutoArchiveDuration int     `json:"auto_archive_duration,omitempty"`
	Locked              bool    `json:"locked"`
	CreateTimestamp     *string `json:"create_timestamp,omitempty"`
}

// Thread is a forum thread as returned by the active threads listing.
// The listing redacts the author; Author, Username and FirstPost are filled in
// by enrichment and are never part of the wire format.
type Thread struct {
	ID               string         `json:"id"`
	Type             int            `json:"type"`
	GuildID          string         `json:"guild_id"`
	ParentID         string         `json:"parent_id"`
	Name             string         `json:"name"`
	OwnerID          string         `json:"owner_id"`
	LastMessageID    string         `json:"last_message_id"`
	MessageCount     int            `json:"message_count"`
	MemberCount      int            `json:"member_count"`
	TotalMessageSent int            `json:"total_message_sent"`
	AppliedTags      []string       `json:"applied_tags,omitempty"`
	ThreadMetadata   ThreadMetadata `json:"thread_metadata"`

	Author    string   `json:"-"`
	Username  string   `json:"-"`
	FirstPost *Message `json:"-"`
}

// Enriched reports whether the originating post has been attached
func (t Thread) Enriched() bool {
	return t.FirstPost != nil
}

// CreatedAt returns the thread creation time. Older threads lack the metadata
// timestamp, in which case the time embedded in the thread id is used.
func (t Thread) CreatedAt() time.Time {
	if ts := t.ThreadMetadata.CreateTimestamp; ts != nil && *ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, *ts); err == nil {
			return parsed
		}
	}
	return IDTime(t.ID)
}

// ThreadsResponse is the body of the active threads listing
type ThreadsResponse struct {
	Threads []Thread `json:"threads"`
	HasMore bool     `json:"has_more"`
}

// AllowedMentions restricts who gets pinged by a new message
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	RepliedUser bool     `json:"replied_user"`
}

// NewMessage is the body for creating a message
type NewMessage struct {
	Content          string            `json:"content"`
	AllowedMentions  *AllowedMentions  `json:"allowed_mentions,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
}

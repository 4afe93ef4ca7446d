package client

import (
	"strings"
)

// Setting keys in the Config table
const (
	keyGuildID       = "guild_id"
	keyForumID       = "forum_id"
	keyChannelID     = "channel_id"
	keyUserToken     = "user_token"
	keyNickname      = "nickname"
	keyForceDarkMode = "force_dark_mode"
	setHiddenIDs     = "hidden_ids"

	// noChannel is stored when no thread is open
	noChannel = "0"
)

// SettingKeys lists the keys accepted by `settings get|set`
var SettingKeys = []string{
	keyGuildID,
	keyForumID,
	keyChannelID,
	keyUserToken,
	keyNickname,
	keyForceDarkMode,
	setHiddenIDs,
}

// Settings is a typed view over a StateInterface.
// Read errors are treated as unset values.
type Settings struct {
	store StateInterface
}

// NewSettings wraps store
func NewSettings(store StateInterface) *Settings {
	return &Settings{store: store}
}

// Store returns the underlying key/value store
func (s *Settings) Store() StateInterface {
	return s.store
}

func (s *Settings) get(key string) string {
	v, _ := s.store.GetString(key)
	return strings.TrimSpace(v)
}

// GuildID returns the last used guild (community) id
func (s *Settings) GuildID() string { return s.get(keyGuildID) }

// SetGuildID stores the guild id
func (s *Settings) SetGuildID(id string) error { return s.store.SetString(keyGuildID, id) }

// ForumID returns the last used forum channel id
func (s *Settings) ForumID() string { return s.get(keyForumID) }

// SetForumID stores the forum channel id
func (s *Settings) SetForumID(id string) error { return s.store.SetString(keyForumID, id) }

// ChannelID returns the open thread channel, "" when none
func (s *Settings) ChannelID() string {
	id := s.get(keyChannelID)
	if id == noChannel {
		return ""
	}
	return id
}

// SetChannelID stores the open thread channel
func (s *Settings) SetChannelID(id string) error { return s.store.SetString(keyChannelID, id) }

// ClearChannelID records that no thread is open
func (s *Settings) ClearChannelID() error { return s.store.SetString(keyChannelID, noChannel) }

// UserToken returns the token used to post as the user, "" for none
func (s *Settings) UserToken() string { return s.get(keyUserToken) }

// SetUserToken stores the user token
func (s *Settings) SetUserToken(token string) error {
	return s.store.SetString(keyUserToken, strings.TrimSpace(token))
}

// Nickname returns the display nickname
func (s *Settings) Nickname() string { return s.get(keyNickname) }

// SetNickname stores the display nickname
func (s *Settings) SetNickname(name string) error { return s.store.SetString(keyNickname, name) }

// ForceDarkMode reports whether the dark theme is forced
func (s *Settings) ForceDarkMode() bool {
	v, _ := s.store.GetBool(keyForceDarkMode)
	return v
}

// SetForceDarkMode stores the dark theme preference
func (s *Settings) SetForceDarkMode(on bool) error { return s.store.SetBool(keyForceDarkMode, on) }

// HiddenThreads returns the ids of threads hidden from the list
func (s *Settings) HiddenThreads() map[string]bool {
	ids, _ := s.store.GetStringSet(setHiddenIDs)
	hidden := make(map[string]bool, len(ids))
	for _, id := range ids {
		hidden[id] = true
	}
	return hidden
}

// HideThread adds id to the hidden set
func (s *Settings) HideThread(id string) error {
	ids, err := s.store.GetStringSet(setHiddenIDs)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return s.store.SetStringSet(setHiddenIDs, append(ids, id))
}

// ClearHiddenThreads unhides every thread
func (s *Settings) ClearHiddenThreads() error {
	return s.store.SetStringSet(setHiddenIDs, nil)
}

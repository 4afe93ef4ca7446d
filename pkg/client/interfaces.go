package client

import (
	"context"

	"github.com/aeolun/afternoon/pkg/api"
)

// StateInterface is the key/value store behind Settings.
// The real State and MockState both implement it.
type StateInterface interface {
	GetString(key string) (string, error)
	SetString(key, value string) error

	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error

	GetStringSet(name string) ([]string, error)
	SetStringSet(name string, values []string) error

	// State directory
	GetStateDir() string

	Close() error
}

// APIClient is the remote service as the session uses it.
// *api.Client implements it.
type APIClient interface {
	GetMessages(ctx context.Context, channelID string, limit int, opts ...api.CallOption) ([]api.Message, error)
	GetMessagesAfter(ctx context.Context, channelID string, limit int, after string, opts ...api.CallOption) ([]api.Message, error)
	GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error)
	GetActiveThreads(ctx context.Context, guildID string, opts ...api.CallOption) (*api.ThreadsResponse, error)
	CreateMessage(ctx context.Context, channelID string, msg api.NewMessage, opts ...api.CallOption) (*api.Message, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string, opts ...api.CallOption) error
}

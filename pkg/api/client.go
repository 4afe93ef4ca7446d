package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aeolun/afternoon/pkg/metrics"
)

const (
	// DefaultBaseURL is the public REST endpoint of the service
	DefaultBaseURL = "https://discord.com/api/v10"

	userAgent       = "afternoon (https://github.com/aeolun/afternoon, 1.0)"
	maxResponseSize = 8 << 20
)

// Config controls transport behaviour of the API client
type Config struct {
	BaseURL  string
	BotToken string

	ConnectTimeout time.Duration // dial timeout
	// SocketTimeout bounds every read on the connection, so it applies to
	// the wait for headers and to each stall while the body streams in.
	SocketTimeout  time.Duration
	RequestTimeout time.Duration // whole request including body

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the client defaults (15s connect, 15s socket, 30s request)
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		ConnectTimeout: 15 * time.Second,
		SocketTimeout:  15 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client talks to the REST API of the forum message service
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// idleConn fails any read that sees no data within timeout.
// An idle pooled connection hitting it is simply dropped by the transport.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// Option configures optional client dependencies
type Option func(*Client)

// WithLogger sets the logger used for request failures
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records request counts and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the transport, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an API client from cfg
func NewClient(cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = defaults.SocketTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	socketTimeout := cfg.SocketTimeout
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleConn{Conn: conn, timeout: socketTimeout}, nil
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.SocketTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		botToken: cfg.BotToken,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: zerolog.Nop(),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// callOptions holds per-call overrides
type callOptions struct {
	authorization string
	userToken     string
}

// CallOption overrides per-call behaviour
type CallOption func(*callOptions)

// WithAuthorization sends header verbatim as the Authorization header.
// It takes precedence over every other credential.
func WithAuthorization(header string) CallOption {
	return func(o *callOptions) {
		o.authorization = header
	}
}

// WithUserToken authenticates the call as a user. The token is sent raw.
func WithUserToken(token string) CallOption {
	return func(o *callOptions) {
		o.userToken = token
	}
}

// authorization resolves the header value: explicit > user token > bot token
func (c *Client) authorization(opts []CallOption) string {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.authorization != "":
		return o.authorization
	case o.userToken != "":
		return o.userToken
	case c.botToken != "":
		return "Bot " + c.botToken
	default:
		return ""
	}
}

// GetMessages fetches the most recent page of messages in a channel
func (c *Client) GetMessages(ctx context.Context, channelID string, limit int, opts ...CallOption) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var msgs []Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, "get_messages", http.MethodGet, path, q, nil, &msgs, opts); err != nil {
		return nil, err
	}
	return msgs, nil
}

// GetMessagesAfter fetches up to limit messages newer than the after id
func (c *Client) GetMessagesAfter(ctx context.Context, channelID string, limit int, after string, opts ...CallOption) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("after", after)

	var msgs []Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, "get_messages_after", http.MethodGet, path, q, nil, &msgs, opts); err != nil {
		return nil, err
	}
	return msgs, nil
}

// GetMessage fetches a single message. The originating post of a forum
// thread shares its id with the thread channel.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string, opts ...CallOption) (*Message, error) {
	var msg Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, "get_message", http.MethodGet, path, nil, nil, &msg, opts); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetActiveThreads lists all active threads of a guild across every channel
func (c *Client) GetActiveThreads(ctx context.Context, guildID string, opts ...CallOption) (*ThreadsResponse, error) {
	var resp ThreadsResponse
	path := "/guilds/" + url.PathEscape(guildID) + "/threads/active"
	if err := c.do(ctx, "get_active_threads", http.MethodGet, path, nil, nil, &resp, opts); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMessage posts a new message to a channel
func (c *Client) CreateMessage(ctx context.Context, channelID string, msg NewMessage, opts ...CallOption) (*Message, error) {
	var created Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, "create_message", http.MethodPost, path, nil, msg, &created, opts); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddReaction reacts to a message as the current user.
// emoji is a unicode emoji or "name:id" for a custom emoji.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string, opts ...CallOption) error {
	path := "/channels/" + url.PathEscape(channelID) +
		"/messages/" + url.PathEscape(messageID) +
		"/reactions/" + url.PathEscape(emoji) + "/@me"
	return c.do(ctx, "add_reaction", http.MethodPut, path, nil, nil, nil, opts)
}

// do performs one request and decodes the JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}, opts []CallOption) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", endpoint, err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.authorization(opts); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(endpoint, 0, time.Since(start))
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordAPIRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to read response body")
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(method, path, resp.StatusCode, data)
		c.logger.Error().
			Str("endpoint", endpoint).
			Int("http_status", resp.StatusCode).
			Str("error", apiErr.Error()).
			Msg("service returned error status")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to decode response")
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

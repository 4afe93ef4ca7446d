package client

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/logging"
	"github.com/aeolun/afternoon/pkg/threads"
)

// Environment overrides applied after the file is read
const (
	EnvBotToken = "AFTERNOON_BOT_TOKEN"
	EnvAPIURL   = "AFTERNOON_API_URL"
)

// TOMLConfig represents the structure of the client config file
type TOMLConfig struct {
	API     APISection     `toml:"api"`
	Forum   ForumSection   `toml:"forum"`
	Local   LocalSection   `toml:"local"`
	Log     LogSection     `toml:"log"`
	Metrics MetricsSection `toml:"metrics"`
	UI      UISection      `toml:"ui"`
}

type APISection struct {
	BaseURL               string  `toml:"base_url"`
	BotToken              string  `toml:"bot_token"`
	ConnectTimeoutSeconds int     `toml:"connect_timeout_seconds"`
	SocketTimeoutSeconds  int     `toml:"socket_timeout_seconds"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `toml:"requests_per_second"` // 0 disables pacing
	Burst                 int     `toml:"burst"`
}

type ForumSection struct {
	GuildID       string `toml:"guild_id"`
	ForumID       string `toml:"forum_id"`
	PageLimit     int    `toml:"page_limit"`
	EnrichDelayMS int    `toml:"enrich_delay_ms"`
}

type LocalSection struct {
	StateDB string `toml:"state_db"`
}

type LogSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // 'console' or 'json'
	File   string `toml:"file"`   // used by the TUI, stderr otherwise
}

type MetricsSection struct {
	ListenAddr string `toml:"listen_addr"` // empty disables /metrics
}

type UISection struct {
	Notifications   bool              `toml:"notifications"`
	TimestampFormat string            `toml:"timestamp_format"` // 'relative' or 'absolute'
	PollSeconds     int               `toml:"poll_seconds"`     // open thread refresh, 0 disables
	ReactionTags    map[string]string `toml:"reaction_tags"`    // tag name -> emoji id
}

// ConfigError represents a structured configuration error
type ConfigError struct {
	Path       string
	Message    string
	LineNumber int // 0 if not a parse error
}

func (e *ConfigError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s (line %d)", e.Message, e.LineNumber)
	}
	return e.Message
}

// getXDGConfigHome returns the XDG config directory
func getXDGConfigHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// getXDGDataHome returns the XDG data directory
func getXDGDataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/afternoon/config.toml
func DefaultConfigPath() string {
	return filepath.Join(getXDGConfigHome(), "afternoon", "config.toml")
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	dataHome := getXDGDataHome()

	return TOMLConfig{
		API: APISection{
			BaseURL:               api.DefaultBaseURL,
			ConnectTimeoutSeconds: 15,
			SocketTimeoutSeconds:  15,
			RequestTimeoutSeconds: 30,
			RequestsPerSecond:     0,
			Burst:                 1,
		},
		Forum: ForumSection{
			PageLimit:     100,
			EnrichDelayMS: 500,
		},
		Local: LocalSection{
			StateDB: filepath.Join(dataHome, "afternoon", "state.db"),
		},
		Log: LogSection{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(dataHome, "afternoon", "client.log"),
		},
		UI: UISection{
			Notifications:   true,
			TimestampFormat: "relative",
			PollSeconds:     30,
			ReactionTags:    map[string]string{},
		},
	}
}

// expandHome expands a leading ~/ in path
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// LoadClientConfig loads configuration from a TOML file, creates default if not found
func LoadClientConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	var config TOMLConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config = DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// Still runnable with defaults, e.g. on a read-only home
			logger := logging.Component("config")
			logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		}
	} else {
		// Start from defaults so missing keys keep their default value
		config = DefaultTOMLConfig()
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return TOMLConfig{}, &ConfigError{
				Path:       path,
				Message:    cleanErrorMessage(err.Error()),
				LineNumber: extractLineNumber(err),
			}
		}
	}

	applyEnv(&config)

	if err := validateConfig(&config); err != nil {
		return TOMLConfig{}, &ConfigError{
			Path:    path,
			Message: err.Error(),
		}
	}

	return config, nil
}

// applyEnv overrides file values from the environment
func applyEnv(config *TOMLConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBotToken)); v != "" {
		config.API.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		config.API.BaseURL = v
	}
}

var lineNumberRe = regexp.MustCompile(`line (\d+)`)

// extractLineNumber finds the line of a TOML parse error
func extractLineNumber(err error) int {
	if perr, ok := err.(toml.ParseError); ok && perr.Position.Line > 0 {
		return perr.Position.Line
	}
	// Fall back to the message, "line 12: ..." or "at line 12"
	matches := lineNumberRe.FindStringSubmatch(err.Error())
	if len(matches) > 1 {
		if num, err := strconv.Atoi(matches[1]); err == nil {
			return num
		}
	}
	return 0
}

// cleanErrorMessage removes redundant parts from error messages
func cleanErrorMessage(errMsg string) string {
	return strings.TrimPrefix(errMsg, "toml: ")
}

// validateConfig collects every invalid value into one error
func validateConfig(config *TOMLConfig) error {
	var errors []string

	if strings.TrimSpace(config.API.BaseURL) == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if !strings.HasPrefix(config.API.BaseURL, "http://") && !strings.HasPrefix(config.API.BaseURL, "https://") {
		errors = append(errors, fmt.Sprintf("Invalid API base URL: %q (must start with http:// or https://)", config.API.BaseURL))
	}

	if config.API.ConnectTimeoutSeconds < 0 || config.API.SocketTimeoutSeconds < 0 || config.API.RequestTimeoutSeconds < 0 {
		errors = append(errors, "Timeouts cannot be negative")
	}
	if config.API.RequestsPerSecond < 0 {
		errors = append(errors, "Requests per second cannot be negative")
	}

	if config.Forum.PageLimit < 1 || config.Forum.PageLimit > 100 {
		errors = append(errors, fmt.Sprintf("Invalid page limit: %d (must be 1-100)", config.Forum.PageLimit))
	}
	if config.Forum.EnrichDelayMS < 0 {
		errors = append(errors, "Enrichment delay cannot be negative")
	}

	if config.Log.Format != "" && config.Log.Format != "console" && config.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("Invalid log format: %q (must be 'console' or 'json')", config.Log.Format))
	}

	if config.UI.TimestampFormat != "" && config.UI.TimestampFormat != "relative" && config.UI.TimestampFormat != "absolute" {
		errors = append(errors, fmt.Sprintf("Invalid timestamp format: %q (must be 'relative' or 'absolute')", config.UI.TimestampFormat))
	}

	if config.UI.PollSeconds < 0 {
		errors = append(errors, "Poll interval cannot be negative")
	}

	if strings.TrimSpace(config.Local.StateDB) == "" {
		errors = append(errors, "State database path cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("Configuration validation failed:\n  • %s", strings.Join(errors, "\n  • "))
	}
	return nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold a bot token
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Afternoon Client Configuration
# This file was auto-generated with default values
# Edit as needed - changes take effect on next client start
# AFTERNOON_BOT_TOKEN and AFTERNOON_API_URL override the [api] values

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetStateDBPath returns the state database path with ~ expanded
func (c *TOMLConfig) GetStateDBPath() (string, error) {
	return expandHome(c.Local.StateDB)
}

// GetLogFilePath returns the log file path with ~ expanded
func (c *TOMLConfig) GetLogFilePath() (string, error) {
	return expandHome(c.Log.File)
}

// APIConfig converts the [api] section into client settings
func (c *TOMLConfig) APIConfig() api.Config {
	return api.Config{
		BaseURL:           c.API.BaseURL,
		BotToken:          c.API.BotToken,
		ConnectTimeout:    time.Duration(c.API.ConnectTimeoutSeconds) * time.Second,
		SocketTimeout:     time.Duration(c.API.SocketTimeoutSeconds) * time.Second,
		RequestTimeout:    time.Duration(c.API.RequestTimeoutSeconds) * time.Second,
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
	}
}

// EngineConfig converts the [forum] section into enrichment pacing
func (c *TOMLConfig) EngineConfig() threads.Config {
	return threads.Config{Delay: time.Duration(c.Forum.EnrichDelayMS) * time.Millisecond}
}

// LogConfig converts the [log] section
func (c *TOMLConfig) LogConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// PollInterval is how often the open thread is checked for new replies
func (c *TOMLConfig) PollInterval() time.Duration {
	return time.Duration(c.UI.PollSeconds) * time.Second
}

// ResetConfigToDefault resets the config file to default values
// If backup is true, creates a backup with timestamp
func ResetConfigToDefault(path string, backup bool) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	if backup {
		backupPath := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("2006-01-02"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	if err := writeDefaultConfig(path, DefaultTOMLConfig()); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}

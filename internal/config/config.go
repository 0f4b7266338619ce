package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config is the validated settings object consumed by the scheduler core.
// It is loaded once at startup and treated as immutable for the duration
// of an invocation (the daemon swaps in a whole new Config on reload).
type Config struct {
	// WorkStart/WorkEnd are "HH:MM" wall-clock times. WorkEnd must be
	// strictly after WorkStart; the window calculator only consumes
	// WorkStart (triggers are spaced a fixed interval apart), but the
	// ordering invariant is still enforced at load time.
	WorkStart string `json:"work_start"`
	WorkEnd   string `json:"work_end"`

	// ActiveDays are weekday indices with Monday=0 .. Sunday=6,
	// no duplicates.
	ActiveDays []int `json:"active_days"`

	// PingCommand is the external command argv; the ping message is
	// appended as the final argument at invocation time.
	PingCommand []string `json:"ping_command,omitempty"`

	// PingMessage is the payload handed to the external command.
	PingMessage string `json:"ping_message"`

	// PingTimeout bounds a single command invocation, in seconds (1-300).
	PingTimeout int `json:"ping_timeout"`

	LogLevel string `json:"log_level,omitempty"`
	LogFile  string `json:"log_file,omitempty"`

	// StateDir holds the dispatch ledger and its lock file. Explicit so
	// tests and alternate deployments can point it elsewhere.
	StateDir string `json:"state_dir,omitempty"`

	Notify *NotifyConfig `json:"notify,omitempty"`
}

// NotifyConfig controls the optional Telegram outcome notifier.
type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // bot token (do not log)
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerMin int    `json:"rate_per_min,omitempty"` // default 6
}

// DefaultPath is the config file consulted when --config is not given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "pingwatch", "config.yaml")
}

// Default returns the built-in configuration. The home directory anchors
// the default log and state paths, so failing to resolve it is an error
// rather than a silently relative path.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return &Config{
		WorkStart:   "09:00",
		WorkEnd:     "17:00",
		ActiveDays:  []int{0, 1, 2, 3, 4},
		PingCommand: []string{"claude-code", "chat", "--message"},
		PingMessage: "ping",
		PingTimeout: 30,
		LogLevel:    "INFO",
		LogFile:     filepath.Join(home, ".local", "share", "pingwatch", "pingwatch.log"),
		StateDir:    filepath.Join(home, ".local", "state", "pingwatch"),
	}, nil
}

// Load reads, strictly decodes and validates the config at path.
// Any error is fatal to the caller; a config is never partially applied.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the default config file if it exists, otherwise
// returns built-in defaults.
func LoadOrDefault() (*Config, error) {
	path := DefaultPath()
	if _, err := os.Stat(path); err != nil {
		cfg, err := Default()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

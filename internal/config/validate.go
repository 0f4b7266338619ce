package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const maxPingMessageLen = 100

// pingMessageRe limits the message to characters that are safe to hand to
// an external command: alphanumerics, spaces, and basic punctuation.
var pingMessageRe = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?;:\-_()]+$`)

// Validate checks every field and returns the first violation found.
func (c *Config) Validate() error {
	if _, _, err := ParseClock(c.WorkStart); err != nil {
		return fmt.Errorf("work_start: %w", err)
	}
	if _, _, err := ParseClock(c.WorkEnd); err != nil {
		return fmt.Errorf("work_end: %w", err)
	}
	if minutesOf(c.WorkStart) >= minutesOf(c.WorkEnd) {
		return fmt.Errorf("work_start %q must be before work_end %q", c.WorkStart, c.WorkEnd)
	}

	if len(c.ActiveDays) > 7 {
		return fmt.Errorf("active_days: at most 7 entries, got %d", len(c.ActiveDays))
	}
	seen := map[int]bool{}
	for _, d := range c.ActiveDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("active_days: day %d out of range 0-6", d)
		}
		if seen[d] {
			return fmt.Errorf("active_days: duplicate day %d", d)
		}
		seen[d] = true
	}

	if len(c.PingCommand) == 0 {
		return fmt.Errorf("ping_command: must not be empty")
	}
	for i, arg := range c.PingCommand {
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("ping_command: argument %d is blank", i)
		}
	}

	if c.PingMessage == "" || len(c.PingMessage) > maxPingMessageLen {
		return fmt.Errorf("ping_message: must be 1-%d characters", maxPingMessageLen)
	}
	if !pingMessageRe.MatchString(c.PingMessage) {
		return fmt.Errorf("ping_message: only alphanumerics, spaces and basic punctuation (.,!?;:-_()) allowed")
	}

	if c.PingTimeout < 1 || c.PingTimeout > 300 {
		return fmt.Errorf("ping_timeout: must be between 1 and 300 seconds, got %d", c.PingTimeout)
	}

	if c.LogFile != "" {
		if err := ValidateSafePath(c.LogFile); err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
	}
	if c.StateDir != "" {
		if err := ValidateSafePath(c.StateDir); err != nil {
			return fmt.Errorf("state_dir: %w", err)
		}
	}

	if n := c.Notify; n != nil && n.Enabled {
		if strings.TrimSpace(n.Token) == "" {
			return fmt.Errorf("notify.token: required when notify is enabled")
		}
		if n.ChatID == 0 {
			return fmt.Errorf("notify.chat_id: required when notify is enabled")
		}
		if n.RatePerMin < 0 {
			return fmt.Errorf("notify.rate_per_min: must be >= 0")
		}
	}

	return nil
}

// ParseClock parses a strict zero-padded "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err1 := strconv.Atoi(s[:2])
	m, err2 := strconv.Atoi(s[3:])
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	if h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid time %q: hour out of range 0-23", s)
	}
	if m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: minute out of range 0-59", s)
	}
	return h, m, nil
}

func minutesOf(s string) int {
	h, m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return h*60 + m
}

// ValidateSafePath is a security pre-flight: the path (after ~ expansion)
// must not be a symlink and must resolve inside the user's home directory.
// It runs before any file is opened for writing.
func ValidateSafePath(path string) error {
	p := ExpandHome(path)

	if fi, err := os.Lstat(p); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("symlinks are not allowed: %s", path)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	home, err = filepath.Abs(home)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(home, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path must be within home directory: %s", path)
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

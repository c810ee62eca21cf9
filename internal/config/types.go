package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Sender  SenderConfig  `json:"sender"`

	// Scheduler controls the reminder engine timing knobs.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Maintenance controls background housekeeping (message log pruning).
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./waremind.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SenderConfig selects and configures the outgoing message channel.
type SenderConfig struct {
	// Channel is "whatsapp" (default) or "telegram".
	Channel  string         `json:"channel,omitempty"`
	Whatsapp WhatsappConfig `json:"whatsapp,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`

	// RatePerSec caps outgoing sends across live and recovered deliveries.
	// 0 keeps the default (1/s with a small burst).
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type WhatsappConfig struct {
	GatewayURL string `json:"gateway_url"`
	// Timeout is a Go duration string (e.g. "30s", "1m").
	Timeout       string `json:"timeout,omitempty"`
	MessagePrefix string `json:"message_prefix,omitempty"`
	MessageSuffix string `json:"message_suffix,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
}

// SchedulerConfig controls due-check cadence and delivery behavior.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// CheckMissedOnStartup is a pointer so we can distinguish "omitted"
// (default true) from an explicit false.
//
// Defaults (when fields are omitted/zero):
//   - tick: "5s"
//   - check_interval: "30s"
//   - missed_window: "24h"
//   - max_send_retries: 3
//   - retry_delay: "10s"
//   - missed_send_throttle: "5s"
//   - dedup_window: "5m"
//   - due_minute_slack: 1
//   - error_backoff: "10s"
//   - stop_timeout: "10s"
type SchedulerConfig struct {
	Tick          string `json:"tick,omitempty"`
	CheckInterval string `json:"check_interval,omitempty"`

	CheckMissedOnStartup *bool  `json:"check_missed_on_startup,omitempty"`
	MissedWindow         string `json:"missed_window,omitempty"`

	MaxSendRetries int    `json:"max_send_retries,omitempty"`
	RetryDelay     string `json:"retry_delay,omitempty"`

	MissedSendThrottle string `json:"missed_send_throttle,omitempty"`
	DedupWindow        string `json:"dedup_window,omitempty"`
	DueMinuteSlack     int    `json:"due_minute_slack,omitempty"`

	ErrorBackoff string `json:"error_backoff,omitempty"`
	StopTimeout  string `json:"stop_timeout,omitempty"`

	// Timezone for due-time evaluation (IANA name). Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}

// MaintenanceConfig controls background housekeeping.
type MaintenanceConfig struct {
	// LogRetentionDays prunes message log rows older than this many days.
	// 0 disables pruning.
	LogRetentionDays int `json:"log_retention_days,omitempty"`
	// PruneSchedule is a cron expression. Default: "30 3 * * *".
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// Validate checks the parts that cannot be defaulted away.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}

	switch c.SenderChannel() {
	case "whatsapp":
		if strings.TrimSpace(c.Sender.Whatsapp.GatewayURL) == "" {
			return errors.New("sender.whatsapp.gateway_url is required")
		}
	case "telegram":
		if strings.TrimSpace(c.Sender.Telegram.Token) == "" {
			return errors.New("sender.telegram.token is required")
		}
	default:
		return fmt.Errorf("sender.channel: unknown channel %q", c.Sender.Channel)
	}

	if c.Scheduler.MaxSendRetries < 0 {
		return errors.New("scheduler.max_send_retries must be >= 0")
	}
	if c.Scheduler.DueMinuteSlack < 0 {
		return errors.New("scheduler.due_minute_slack must be >= 0")
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	// Surface bad duration strings at load time, not first use.
	durations := []struct{ path, raw string }{
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"sender.whatsapp.timeout", c.Sender.Whatsapp.Timeout},
		{"scheduler.tick", c.Scheduler.Tick},
		{"scheduler.check_interval", c.Scheduler.CheckInterval},
		{"scheduler.missed_window", c.Scheduler.MissedWindow},
		{"scheduler.retry_delay", c.Scheduler.RetryDelay},
		{"scheduler.missed_send_throttle", c.Scheduler.MissedSendThrottle},
		{"scheduler.dedup_window", c.Scheduler.DedupWindow},
		{"scheduler.error_backoff", c.Scheduler.ErrorBackoff},
		{"scheduler.stop_timeout", c.Scheduler.StopTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	return nil
}

// SenderChannel returns the normalized channel name.
func (c *Config) SenderChannel() string {
	ch := strings.ToLower(strings.TrimSpace(c.Sender.Channel))
	if ch == "" {
		return "whatsapp"
	}
	return ch
}

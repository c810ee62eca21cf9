package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite" (or empty): SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Contact is a message recipient. Owned here; rules reference it.
type Contact struct {
	ID        int64
	Name      string
	Phone     string
	Notes     string
	CreatedAt time.Time
}

// Send outcomes recorded in the message log.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// LogEntry records one delivery attempt outcome. Append-only from the
// engine's perspective; it is never read back to make scheduling decisions.
type LogEntry struct {
	ID      int64
	RuleID  int64
	Address string
	Message string
	Status  string // StatusSent or StatusFailed
	Error   string
	At      time.Time
}

// Stats is the startup/status counter set.
type Stats struct {
	Contacts     int64
	Rules        int64
	ActiveRules  int64
	Messages     int64
	SentMessages int64
}

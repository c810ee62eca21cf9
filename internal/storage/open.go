package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"waremind/internal/reminder"
	logx "waremind/pkg/logx"
)

// Store is the persistence API. The first three methods are the scheduling
// engine's entire view of the world; everything else is management and
// maintenance surface.
type Store interface {
	// ListActiveRules returns every active rule joined with its contact,
	// ordered by schedule time. Re-read each tick: edits become visible
	// on the next poll without any cache invalidation.
	ListActiveRules(ctx context.Context) ([]reminder.Rule, error)
	// RecordFired advances the rule's last-fired timestamp. The write is
	// monotonic: an older timestamp never overwrites a newer one.
	RecordFired(ctx context.Context, ruleID int64, at time.Time) error
	AppendLog(ctx context.Context, e LogEntry) error

	AddContact(ctx context.Context, c Contact) (int64, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	DeleteContact(ctx context.Context, id int64) error

	AddRule(ctx context.Context, r reminder.Rule) (int64, error)
	ListRules(ctx context.Context) ([]reminder.Rule, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error
	DeleteRule(ctx context.Context, id int64) error

	RecentLog(ctx context.Context, limit int) ([]LogEntry, error)
	PruneLog(ctx context.Context, olderThan time.Time) (int64, error)
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

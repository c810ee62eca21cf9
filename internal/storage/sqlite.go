package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"waremind/internal/reminder"
	logx "waremind/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeFormat is RFC 3339 with a fixed nine-digit fraction. encodeTime
// normalizes to UTC before formatting, so the TEXT columns sort and compare
// lexicographically in chronological order; RecordFired's monotonic SQL guard
// and RecentLog's ORDER BY both lean on that. Variable-width fractions or
// mixed offsets would break it.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- scheduling engine surface ----

const ruleColumns = `r.id, r.contact_id, c.name, c.phone, r.message, r.schedule_time,
	 r.frequency, r.schedule_day, r.schedule_month, r.is_active, r.last_fired, r.created_at`

func (s *sqliteStore) ListActiveRules(ctx context.Context) ([]reminder.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+`
		 FROM reminders r JOIN contacts c ON r.contact_id = c.id
		 WHERE r.is_active = 1
		 ORDER BY r.schedule_time, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRules(rows)
}

func (s *sqliteStore) ListRules(ctx context.Context) ([]reminder.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+`
		 FROM reminders r JOIN contacts c ON r.contact_id = c.id
		 ORDER BY r.schedule_time, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRules(rows)
}

func (s *sqliteStore) scanRules(rows *sql.Rows) ([]reminder.Rule, error) {
	var out []reminder.Rule
	for rows.Next() {
		var (
			r          reminder.Rule
			freq       string
			day, month sql.NullInt64
			active     int
			lastFired  sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.ContactID, &r.ContactName, &r.Address, &r.Message,
			&r.TimeOfDay, &freq, &day, &month, &active, &lastFired, &createdAt); err != nil {
			return nil, err
		}
		r.Frequency = reminder.Frequency(freq)
		r.Day = int(day.Int64)
		r.Month = int(month.Int64)
		r.Active = active != 0
		r.LastFired = s.parseLastFired(r.ID, lastFired)
		if t, err := parseTime(createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseLastFired maps an unreadable stored timestamp to "never fired".
// Proceeding as if due would double-send on every tick; never firing again
// would wedge the rule silently. Nil re-arms the rule exactly once.
func (s *sqliteStore) parseLastFired(ruleID int64, v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		s.log.Warn("unreadable last_fired, treating rule as never fired",
			logx.Int64("rule_id", ruleID), logx.String("value", v.String))
		return nil
	}
	return &t
}

func (s *sqliteStore) RecordFired(ctx context.Context, ruleID int64, at time.Time) error {
	// Guard keeps the write monotonic even if a stale caller retries.
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET last_fired = ?
		 WHERE id = ? AND (last_fired IS NULL OR last_fired < ?)`,
		encodeTime(at), ruleID, encodeTime(at))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.log.Debug("record fired skipped (older than stored)", logx.Int64("rule_id", ruleID))
	}
	return nil
}

func (s *sqliteStore) AppendLog(ctx context.Context, e LogEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_log(rule_id, address, message, status, err, at)
		 VALUES(?,?,?,?,?,?)`,
		e.RuleID, e.Address, e.Message, e.Status, nullStr(e.Error), encodeTime(e.At))
	return err
}

// ---- management surface ----

func (s *sqliteStore) AddContact(ctx context.Context, c Contact) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(name, phone, notes, created_at) VALUES(?,?,?,?)`,
		c.Name, c.Phone, nullStr(c.Notes), encodeTime(c.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, COALESCE(notes, ''), created_at FROM contacts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Notes, &createdAt); err != nil {
			return nil, err
		}
		if t, err := parseTime(createdAt); err == nil {
			c.CreatedAt = t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteContact(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AddRule(ctx context.Context, r reminder.Rule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(contact_id, message, schedule_time, frequency,
		   schedule_day, schedule_month, is_active, created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.ContactID, r.Message, r.TimeOfDay, string(r.Frequency),
		nullInt(r.Day), nullInt(r.Month), boolInt(r.Active), encodeTime(r.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET is_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) RecentLog(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(rule_id, 0), COALESCE(address, ''), COALESCE(message, ''),
		        status, COALESCE(err, ''), at
		 FROM message_log ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var atRaw string
		if err := rows.Scan(&e.ID, &e.RuleID, &e.Address, &e.Message, &e.Status, &e.Error, &atRaw); err != nil {
			return nil, err
		}
		if t, err := parseTime(atRaw); err == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneLog(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM message_log WHERE at < ?`, encodeTime(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM contacts),
		  (SELECT COUNT(*) FROM reminders),
		  (SELECT COUNT(*) FROM reminders WHERE is_active = 1),
		  (SELECT COUNT(*) FROM message_log),
		  (SELECT COUNT(*) FROM message_log WHERE status = 'sent')`)
	if err := row.Scan(&st.Contacts, &st.Rules, &st.ActiveRules, &st.Messages, &st.SentMessages); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

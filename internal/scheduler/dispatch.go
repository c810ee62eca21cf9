package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"waremind/internal/reminder"
	"waremind/internal/storage"
	"waremind/internal/transport"
	logx "waremind/pkg/logx"
)

// ErrDeliveryFailed marks a send that exhausted its retry budget.
var ErrDeliveryFailed = errors.New("delivery failed")

// Occasion distinguishes a live due occurrence from a backfilled one.
// It only affects the message payload, never control flow.
type Occasion string

const (
	OccasionLive   Occasion = "live"
	OccasionMissed Occasion = "missed"
)

const missedPrefix = "⚠️ MISSED REMINDER\n\n"

// DispatchConfig controls retry and pacing behavior for one delivery.
//
// Defaults (when fields are omitted/zero): MaxRetries 3, RetryDelay 10s,
// RatePerSec 1 with a burst of 3.
type DispatchConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	RatePerSec float64
}

func (c DispatchConfig) normalized() DispatchConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	return c
}

// Dispatcher pushes one occurrence through the sender with bounded retries
// and records the outcome. It is the only writer of last-fired timestamps.
type Dispatcher struct {
	store   storage.Store
	sender  transport.Sender
	cfg     DispatchConfig
	limiter *rate.Limiter
	log     logx.Logger

	now func() time.Time // test hook
}

func NewDispatcher(store storage.Store, sender transport.Sender, cfg DispatchConfig, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.normalized()
	return &Dispatcher{
		store:   store,
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 3),
		log:     log,
		now:     time.Now,
	}
}

// Deliver sends the rule's message, retrying up to the configured bound with
// a fixed delay between attempts. On success it advances the rule's
// last-fired timestamp and appends a sent log entry; on exhaustion it
// appends a failed entry and leaves last-fired untouched so the occurrence
// stays eligible for recovery.
func (d *Dispatcher) Deliver(ctx context.Context, r reminder.Rule, occ Occasion) error {
	text := r.Message
	if occ == OccasionMissed {
		text = missedPrefix + text
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		err := d.sender.Send(ctx, r.Address, text)
		if err == nil {
			d.recordSent(ctx, r, text)
			d.log.Info("reminder sent",
				logx.Int64("rule_id", r.ID),
				logx.String("contact", r.ContactName),
				logx.String("occasion", string(occ)),
				logx.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		d.log.Warn("send attempt failed",
			logx.Int64("rule_id", r.ID),
			logx.Int("attempt", attempt),
			logx.Int("max_retries", d.cfg.MaxRetries),
			logx.Err(err))

		if attempt < d.cfg.MaxRetries {
			timer := time.NewTimer(d.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if err := d.store.AppendLog(ctx, storage.LogEntry{
		RuleID:  r.ID,
		Address: r.Address,
		Message: text,
		Status:  storage.StatusFailed,
		Error:   lastErr.Error(),
		At:      d.now(),
	}); err != nil {
		d.log.Warn("message log append failed", logx.Int64("rule_id", r.ID), logx.Err(err))
	}
	return fmt.Errorf("%w: rule %d after %d attempts: %w",
		ErrDeliveryFailed, r.ID, d.cfg.MaxRetries, lastErr)
}

func (d *Dispatcher) recordSent(ctx context.Context, r reminder.Rule, text string) {
	at := d.now()
	if err := d.store.RecordFired(ctx, r.ID, at); err != nil {
		// Without the timestamp the occurrence may fire again next tick;
		// the dedup window limits the blast radius.
		d.log.Error("record fired failed", logx.Int64("rule_id", r.ID), logx.Err(err))
	}
	if err := d.store.AppendLog(ctx, storage.LogEntry{
		RuleID:  r.ID,
		Address: r.Address,
		Message: text,
		Status:  storage.StatusSent,
		At:      at,
	}); err != nil {
		d.log.Warn("message log append failed", logx.Int64("rule_id", r.ID), logx.Err(err))
	}
}

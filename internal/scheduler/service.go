package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"waremind/internal/reminder"
	"waremind/internal/storage"
	logx "waremind/pkg/logx"
)

// Config controls the polling loop.
//
// Defaults (when fields are omitted/zero): Tick 5s, CheckInterval 30s,
// MissedWindow 24h, MissedSendThrottle 5s, ErrorBackoff 10s, StopTimeout 10s.
type Config struct {
	Tick          time.Duration
	CheckInterval time.Duration

	CheckMissedOnStartup bool
	MissedWindow         time.Duration
	MissedSendThrottle   time.Duration

	DuePolicy reminder.DuePolicy

	ErrorBackoff time.Duration
	StopTimeout  time.Duration

	// Location for due-time evaluation. Nil means local time.
	Location *time.Location
}

func (c Config) normalized() Config {
	if c.Tick <= 0 {
		c.Tick = 5 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.MissedWindow <= 0 {
		c.MissedWindow = 24 * time.Hour
	}
	if c.MissedSendThrottle <= 0 {
		c.MissedSendThrottle = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Snapshot is the engine status for logging and inspection.
type Snapshot struct {
	Running   bool
	LastCheck time.Time
	Sent      uint64
	Failed    uint64
	Recovered uint64
}

// Service owns the polling loop: one goroutine that runs startup recovery
// once, then evaluates due rules every check interval. All rule evaluation
// and dispatch is sequential inside that goroutine; the sender is a scarce
// external resource and fan-out would not help.
type Service struct {
	store      storage.Store
	dispatcher *Dispatcher
	log        logx.Logger

	mu     sync.Mutex
	cfg    Config
	cancel context.CancelFunc
	doneCh chan struct{}

	lastCheck atomic.Int64 // unix nanos, 0 = never
	sent      atomic.Uint64
	failed    atomic.Uint64
	recovered atomic.Uint64

	now func() time.Time // test hook
}

func New(cfg Config, store storage.Store, dispatcher *Dispatcher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		cfg:        cfg.normalized(),
		now:        time.Now,
	}
}

// Apply swaps the timing knobs. The loop picks them up on its next tick.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.normalized()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start launches the loop and returns immediately. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.doneCh != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	done := s.doneCh
	s.mu.Unlock()

	go s.run(runCtx, done)
	s.log.Info("scheduler started",
		logx.Duration("tick", s.config().Tick),
		logx.Duration("check_interval", s.config().CheckInterval))
}

// Stop signals the loop and waits for it to exit, bounded by the configured
// stop timeout. Safe to call while the loop is sleeping or mid-tick;
// idempotent.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cancel := s.cancel
	done := s.doneCh
	timeout := s.cfg.StopTimeout
	s.cancel = nil
	s.doneCh = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-timer.C:
		s.log.Warn("scheduler stop timed out; abandoning loop",
			logx.Duration("timeout", timeout))
	case <-ctx.Done():
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.doneCh != nil
	s.mu.Unlock()

	var last time.Time
	if ns := s.lastCheck.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Snapshot{
		Running:   running,
		LastCheck: last,
		Sent:      s.sent.Load(),
		Failed:    s.failed.Load(),
		Recovered: s.recovered.Load(),
	}
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	cfg := s.config()
	if cfg.CheckMissedOnStartup {
		s.recoverMissed(ctx)
	}

	// The short tick bounds responsiveness to Stop; due-checks only run
	// once the full check interval has elapsed.
	lastCheck := s.now()
	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	curTick := cfg.Tick

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cfg = s.config()
		if cfg.Tick != curTick {
			curTick = cfg.Tick
			ticker.Reset(curTick)
		}

		now := s.now().In(cfg.Location)
		if now.Sub(lastCheck) < cfg.CheckInterval {
			continue
		}
		lastCheck = now
		s.lastCheck.Store(now.UnixNano())

		if err := s.checkDue(ctx, cfg, now); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("due check failed; backing off", logx.Err(err),
				logx.Duration("backoff", cfg.ErrorBackoff))
			timer := time.NewTimer(cfg.ErrorBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// checkDue evaluates every active rule against now and dispatches the due
// ones. Per-rule failures are isolated; only a store read error aborts the
// tick (returned so the loop backs off and retries next interval).
func (s *Service) checkDue(ctx context.Context, cfg Config, now time.Time) error {
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return err
	}

	for i := range rules {
		r := rules[i]
		due, err := cfg.DuePolicy.IsDue(&r, now)
		if err != nil {
			s.log.Warn("skipping malformed rule",
				logx.Int64("rule_id", r.ID), logx.Err(err))
			continue
		}
		if !due {
			continue
		}
		if err := s.dispatcher.Deliver(ctx, r, OccasionLive); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.failed.Add(1)
			s.log.Error("delivery failed", logx.Int64("rule_id", r.ID), logx.Err(err))
			continue
		}
		s.sent.Add(1)
	}
	return nil
}

// recoverMissed backfills occurrences that fell inside the lookback window
// while the process was down. Runs once at startup, before the first
// due-check, throttled between sends.
func (s *Service) recoverMissed(ctx context.Context) {
	cfg := s.config()
	now := s.now().In(cfg.Location)
	windowStart := now.Add(-cfg.MissedWindow)

	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		s.log.Error("missed recovery skipped: rule listing failed", logx.Err(err))
		return
	}
	s.log.Info("checking for missed reminders",
		logx.Int("rules", len(rules)),
		logx.Duration("window", cfg.MissedWindow))

	delivered := 0
	for i := range rules {
		r := rules[i]
		missed, err := reminder.FindMissed(&r, windowStart, now)
		if err != nil {
			s.log.Warn("skipping malformed rule",
				logx.Int64("rule_id", r.ID), logx.Err(err))
			continue
		}
		for _, occ := range missed {
			if ctx.Err() != nil {
				return
			}
			if delivered > 0 {
				timer := time.NewTimer(cfg.MissedSendThrottle)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			s.log.Info("recovering missed occurrence",
				logx.Int64("rule_id", r.ID),
				logx.Time("occurrence", occ))
			if err := s.dispatcher.Deliver(ctx, r, OccasionMissed); err != nil {
				s.failed.Add(1)
				s.log.Error("missed delivery failed",
					logx.Int64("rule_id", r.ID), logx.Err(err))
			} else {
				s.recovered.Add(1)
			}
			delivered++
		}
	}
	if delivered > 0 {
		s.log.Info("missed recovery finished", logx.Int("delivered", delivered))
	}
}

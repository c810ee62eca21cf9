package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"waremind/internal/config"
	"waremind/internal/scheduler"
	"waremind/internal/storage"
	"waremind/internal/transport"
	"waremind/internal/transport/telegram"
	"waremind/internal/transport/whatsapp"
	logx "waremind/pkg/logx"
)

// App wires config, logging, storage, the sender channel, and the scheduler
// together, and owns their lifecycle.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store  storage.Store
	sender transport.Sender
	sched  *scheduler.Service
	maint  *cron.Cron

	watchCancel context.CancelFunc
	watchDone   chan struct{}
	cfgCh       chan *config.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sender, err := buildSender(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	dispatcher := scheduler.NewDispatcher(store, sender, dcfg,
		log.With(logx.String("comp", "dispatch")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, store, dispatcher,
		log.With(logx.String("comp", "scheduler")))

	a := &App{
		cfgm:   cfgm,
		logs:   logSvc,
		log:    log,
		store:  store,
		sender: sender,
		sched:  sched,
	}
	a.setupMaintenance(cfg)
	return a, nil
}

func buildSender(cfg *config.Config, log logx.Logger) (transport.Sender, error) {
	switch ch := cfg.SenderChannel(); ch {
	case "whatsapp":
		timeout, err := config.ParseDurationOrDefault("sender.whatsapp.timeout",
			cfg.Sender.Whatsapp.Timeout, 60*time.Second)
		if err != nil {
			return nil, err
		}
		return whatsapp.New(whatsapp.Config{
			GatewayURL:    cfg.Sender.Whatsapp.GatewayURL,
			Timeout:       timeout,
			MessagePrefix: cfg.Sender.Whatsapp.MessagePrefix,
			MessageSuffix: cfg.Sender.Whatsapp.MessageSuffix,
		}, log.With(logx.String("comp", "whatsapp")))
	case "telegram":
		return telegram.New(telegram.Config{
			Token: cfg.Sender.Telegram.Token,
		}, log.With(logx.String("comp", "telegram")))
	default:
		return nil, fmt.Errorf("unknown sender channel: %s", ch)
	}
}

func (a *App) setupMaintenance(cfg *config.Config) {
	days := cfg.Maintenance.LogRetentionDays
	if days <= 0 {
		return
	}
	spec := cfg.Maintenance.PruneSchedule
	if spec == "" {
		spec = "30 3 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := a.store.PruneLog(ctx, cutoff)
		if err != nil {
			a.log.Warn("message log prune failed", logx.Err(err))
			return
		}
		a.log.Info("message log pruned",
			logx.Int64("removed", n),
			logx.Time("cutoff", cutoff))
	})
	if err != nil {
		a.log.Warn("invalid prune schedule; maintenance disabled",
			logx.String("schedule", spec), logx.Err(err))
		return
	}
	a.maint = c
}

func (a *App) Start(ctx context.Context) error {
	if stats, err := a.store.Stats(ctx); err == nil {
		a.log.Info("starting",
			logx.Int64("contacts", stats.Contacts),
			logx.Int64("rules", stats.Rules),
			logx.Int64("active_rules", stats.ActiveRules),
			logx.Int64("messages", stats.Messages))
	}

	a.sched.Start(ctx)
	if a.maint != nil {
		a.maint.Start()
	}

	// Config hot reload: the watcher republishes the file and the apply
	// loop pushes logging + timing changes into the running services.
	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.watchDone = make(chan struct{})
	a.cfgCh = a.cfgm.Subscribe(1)
	go func() {
		defer close(a.watchDone)
		go func() { _ = a.cfgm.Watch(watchCtx) }()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-a.cfgCh:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()
	return nil
}

// applyConfig pushes reloadable settings into running services. Storage and
// sender wiring are fixed for the process lifetime; changing those requires
// a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		a.log.Warn("config update ignored", logx.Err(err))
		return
	}
	a.sched.Apply(schedCfg)
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)

	if a.maint != nil {
		stopCtx := a.maint.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if a.watchCancel != nil {
		a.watchCancel()
		select {
		case <-a.watchDone:
		case <-ctx.Done():
		}
		a.cfgm.Unsubscribe(a.cfgCh)
	}

	if err := a.sender.Close(ctx); err != nil {
		a.log.Warn("sender close failed", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

// Status reports the engine snapshot for external inspection.
func (a *App) Status() scheduler.Snapshot { return a.sched.Snapshot() }

package app

import (
	"strings"
	"time"

	"waremind/internal/config"
	"waremind/internal/reminder"
	"waremind/internal/scheduler"
	"waremind/internal/storage"
	logx "waremind/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (scheduler.DispatchConfig, error) {
	retryDelay, err := config.ParseDurationOrDefault("scheduler.retry_delay", cfg.Scheduler.RetryDelay, 10*time.Second)
	if err != nil {
		return scheduler.DispatchConfig{}, err
	}
	return scheduler.DispatchConfig{
		MaxRetries: cfg.Scheduler.MaxSendRetries,
		RetryDelay: retryDelay,
		RatePerSec: cfg.Sender.RatePerSec,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler

	var out scheduler.Config
	var err error
	if out.Tick, err = config.ParseDurationOrDefault("scheduler.tick", sc.Tick, 5*time.Second); err != nil {
		return out, err
	}
	if out.CheckInterval, err = config.ParseDurationOrDefault("scheduler.check_interval", sc.CheckInterval, 30*time.Second); err != nil {
		return out, err
	}
	if out.MissedWindow, err = config.ParseDurationOrDefault("scheduler.missed_window", sc.MissedWindow, 24*time.Hour); err != nil {
		return out, err
	}
	if out.MissedSendThrottle, err = config.ParseDurationOrDefault("scheduler.missed_send_throttle", sc.MissedSendThrottle, 5*time.Second); err != nil {
		return out, err
	}
	if out.ErrorBackoff, err = config.ParseDurationOrDefault("scheduler.error_backoff", sc.ErrorBackoff, 10*time.Second); err != nil {
		return out, err
	}
	if out.StopTimeout, err = config.ParseDurationOrDefault("scheduler.stop_timeout", sc.StopTimeout, 10*time.Second); err != nil {
		return out, err
	}

	dedup, err := config.ParseDurationOrDefault("scheduler.dedup_window", sc.DedupWindow, 5*time.Minute)
	if err != nil {
		return out, err
	}
	out.DuePolicy = reminder.DuePolicy{
		MinuteSlack: sc.DueMinuteSlack,
		DedupWindow: dedup,
	}

	// Omitted means enabled.
	out.CheckMissedOnStartup = sc.CheckMissedOnStartup == nil || *sc.CheckMissedOnStartup

	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return out, err
		}
		out.Location = loc
	}
	return out, nil
}

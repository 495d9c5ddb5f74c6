package app

import (
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/ops"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

const (
	defaultConversationTTL = 30 * time.Minute
	defaultSweepInterval   = time.Minute
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		OpsChat: logx.OpsChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.OpsChatID != 0,
			ChatID:     cfg.Telegram.OpsChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// mapTaskEngineConfig fills engine defaults for omitted values. The engine is
// always on: reminder fires run on it.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{
		Enabled:     true,
		Workers:     2,
		QueueSize:   256,
		HistorySize: 200,
		RetryMax:    3,
	}
	timeoutRaw := ""
	if te := cfg.TaskEngine; te != nil {
		if te.Workers > 0 {
			out.Workers = te.Workers
		}
		if te.QueueSize > 0 {
			out.QueueSize = te.QueueSize
		}
		if te.HistorySize > 0 {
			out.HistorySize = te.HistorySize
		}
		if te.RetryMax > 0 {
			out.RetryMax = te.RetryMax
		}
		timeoutRaw = te.DefaultTimeout
	}
	d, err := config.ParseDurationOrDefault("task_engine.default_timeout", timeoutRaw, 30*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	out.DefaultTimeout = d
	return out, nil
}

// mapNotifierConfig keeps the Notify queue on so the start-up notice can go out.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{Enabled: true}
	n := cfg.Notifier
	if n == nil {
		return out, nil
	}
	out.Workers = n.Workers
	out.QueueSize = n.QueueSize
	out.RatePerSec = n.RatePerSec
	out.DedupMaxEntries = n.DedupMaxEntries
	out.PersistDedup = n.PersistDedup

	var err error
	if out.SendTimeout, err = config.ParseDurationOrDefault("notifier.send_timeout", n.SendTimeout, 10*time.Second); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	oc := cfg.Ops
	out := ops.Config{
		Enabled: oc.Enabled,
		Addr:    oc.AddrOrDefault(),
		Token:   strings.TrimSpace(oc.Token),
		Pprof:   oc.Pprof,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("ops.read_timeout", oc.ReadTimeout, 10*time.Second); err != nil {
		return ops.Config{}, err
	}
	// pprof profiles stream for up to 30s by default
	if out.WriteTimeout, err = config.ParseDurationOrDefault("ops.write_timeout", oc.WriteTimeout, 40*time.Second); err != nil {
		return ops.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("ops.idle_timeout", oc.IdleTimeout, time.Minute); err != nil {
		return ops.Config{}, err
	}
	return out, nil
}

// conversationTTL treats an explicit "0s" as "never expire".
func conversationTTL(cfg *config.Config) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.Reminders.ConversationTTL)
	if raw == "" {
		return defaultConversationTTL, nil
	}
	return config.ParseDurationField("reminders.conversation_ttl", raw)
}

func sweepInterval(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("reminders.sweep_interval", cfg.Reminders.SweepInterval, defaultSweepInterval)
}

func pollTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
}

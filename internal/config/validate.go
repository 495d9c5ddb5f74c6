package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks everything that can be checked without side effects.
// Unknown fields are already rejected by Parse.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token is empty (set it or %s)", EnvToken))
	}
	_, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	add(err)

	if _, err := cfg.Reminders.Location(); err != nil {
		add(err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Reminders.Locale)) {
	case "", "en", "ru":
	default:
		add(fmt.Errorf("reminders.locale: unsupported %q (want en or ru)", cfg.Reminders.Locale))
	}
	_, err = ParseDurationField("reminders.conversation_ttl", cfg.Reminders.ConversationTTL)
	add(err)
	_, err = ParseDurationField("reminders.sweep_interval", cfg.Reminders.SweepInterval)
	add(err)

	if te := cfg.TaskEngine; te != nil {
		_, err = ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
		add(err)
		if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 || te.RetryMax < 0 {
			add(errors.New("task_engine: sizes must be >= 0"))
		}
	}

	if n := cfg.Notifier; n != nil {
		_, err = ParseDurationField("notifier.send_timeout", n.SendTimeout)
		add(err)
		_, err = ParseDurationField("notifier.dedup_window", n.DedupWindow)
		add(err)
		if n.RatePerSec < 0 || n.QueueSize < 0 || n.Workers < 0 || n.DedupMaxEntries < 0 {
			add(errors.New("notifier: sizes must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(s.Path) == "" {
				add(fmt.Errorf("storage.path is required for driver %q", s.Driver))
			}
		default:
			add(fmt.Errorf("storage.driver: unsupported %q", s.Driver))
		}
		_, err = ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	if cfg.Ops.Enabled {
		addr := cfg.Ops.AddrOrDefault()
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			add(fmt.Errorf("ops.addr: %w", err))
		} else if !isLoopback(host) && strings.TrimSpace(cfg.Ops.Token) == "" {
			add(fmt.Errorf("ops.addr %q is not loopback; set ops.token", addr))
		}
		for path, raw := range map[string]string{
			"ops.read_timeout":  cfg.Ops.ReadTimeout,
			"ops.write_timeout": cfg.Ops.WriteTimeout,
			"ops.idle_timeout":  cfg.Ops.IdleTimeout,
		} {
			_, err := ParseDurationField(path, raw)
			add(err)
		}
	}

	return errors.Join(errs...)
}

// Location resolves reminders.timezone; empty means time.Local.
func (r RemindersConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(r.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("reminders.timezone: %w", err)
	}
	return loc, nil
}

func (o OpsConfig) AddrOrDefault() string {
	if a := strings.TrimSpace(o.Addr); a != "" {
		return a
	}
	return "127.0.0.1:6060"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

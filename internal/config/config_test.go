package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "telegram": {"token": "file-token", "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true},
  "reminders": {"timezone": "UTC", "locale": "ru", "conversation_ttl": "15m"},
  "notifier": {"rate_per_sec": 5, "queue_size": 16, "workers": 1, "dedup_window": "10m", "dedup_max_entries": 100},
  "storage": {"driver": "sqlite", "path": "./remindbot.db"}
}`

const sampleYAML = `
telegram:
  token: yaml-token
  poll_timeout: 5s
logging:
  level: debug
reminders:
  locale: en
ops:
  enabled: true
  addr: 127.0.0.1:7070
`

func TestDecodeJSONAndYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.json", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Decode json: %v", err)
	}
	if cfg.Reminders.Locale != "ru" || cfg.Storage.Driver != "sqlite" || cfg.Notifier.RatePerSec != 5 {
		t.Fatalf("json cfg = %+v", cfg)
	}

	cfg, err = Decode("config.yml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode yaml: %v", err)
	}
	if cfg.Telegram.Token != "yaml-token" || !cfg.Ops.Enabled || cfg.Ops.Addr != "127.0.0.1:7070" {
		t.Fatalf("yaml cfg = %+v", cfg)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"telegram":{"token":"x"},"plugins":{}}`)); err == nil {
		t.Fatal("unknown field accepted")
	}
	if _, err := Decode("c.json", []byte(`{"telegram":{"token":"x"}}{}`)); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestApplyEnvOverridesToken(t *testing.T) {
	t.Parallel()
	cfg := &Config{Telegram: TelegramConfig{Token: "file"}}
	ApplyEnv(cfg, func(k string) string {
		if k == EnvToken {
			return " env-token "
		}
		return ""
	})
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	ApplyEnv(cfg, func(string) string { return "" })
	if cfg.Telegram.Token != "env-token" {
		t.Fatal("empty env must not clear the token")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "t"}}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"no token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"bad timezone", func(c *Config) { c.Reminders.Timezone = "Mars/Olympus" }, "reminders.timezone"},
		{"bad locale", func(c *Config) { c.Reminders.Locale = "de" }, "reminders.locale"},
		{"bad ttl", func(c *Config) { c.Reminders.ConversationTTL = "soon" }, "conversation_ttl"},
		{"storage path", func(c *Config) { c.Storage = &StorageConfig{Driver: "file"} }, "storage.path"},
		{"storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "mongo", Path: "x"} }, "storage.driver"},
		{"ops public no token", func(c *Config) { c.Ops = OpsConfig{Enabled: true, Addr: "0.0.0.0:6060"} }, "ops.token"},
		{"ops public with token", func(c *Config) { c.Ops = OpsConfig{Enabled: true, Addr: "0.0.0.0:6060", Token: "s"} }, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if d, _ := ParseDurationField("x", " 90s "); d != 90*time.Second {
		t.Fatalf("d = %v", d)
	}
}

func TestManagerReloadPublishesOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(`{"telegram":{"token":"a"}}`)

	m := NewManager(path)
	m.getenv = func(string) string { return "" }
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if changed, err := m.Reload(context.Background()); err != nil || changed {
		t.Fatalf("unchanged reload = %v %v", changed, err)
	}

	write(`{"telegram":{"token":"b"}}`)
	if changed, err := m.Reload(context.Background()); err != nil || !changed {
		t.Fatalf("changed reload = %v %v", changed, err)
	}
	select {
	case got := <-ch:
		if got.Telegram.Token != "b" {
			t.Fatalf("published token = %q", got.Telegram.Token)
		}
	default:
		t.Fatal("no config published")
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return Validate(cfg) })
	write(`{"telegram":{"token":""}}`)
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatal("invalid config accepted")
	}
	if m.Get().Telegram.Token != "b" {
		t.Fatal("rejected config was committed")
	}
}

func TestSummarizeChangeHidesTokens(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "secret-a"}, Ops: OpsConfig{Token: "x"}}
	b := &Config{Telegram: TelegramConfig{Token: "secret-b"}, Ops: OpsConfig{Token: "y"}, Reminders: RemindersConfig{Locale: "ru"}}
	changed, _ := SummarizeChange(a, b)
	got := strings.Join(changed, ",")
	if got != "telegram,reminders" {
		t.Fatalf("changed = %q", got)
	}
}

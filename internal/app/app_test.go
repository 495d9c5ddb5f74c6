package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindbot/internal/config"
	logx "remindbot/pkg/logx"
)

func TestMapTaskEngineConfigDefaults(t *testing.T) {
	t.Parallel()

	got, err := mapTaskEngineConfig(&config.Config{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.Enabled || got.Workers != 2 || got.QueueSize != 256 || got.HistorySize != 200 || got.RetryMax != 3 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.DefaultTimeout != 30*time.Second {
		t.Fatalf("default timeout=%v", got.DefaultTimeout)
	}

	got, err = mapTaskEngineConfig(&config.Config{TaskEngine: &config.TaskEngineConfig{Workers: 5, DefaultTimeout: "2s"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Workers != 5 || got.DefaultTimeout != 2*time.Second {
		t.Fatalf("overrides not applied: %+v", got)
	}

	if _, err := mapTaskEngineConfig(&config.Config{TaskEngine: &config.TaskEngineConfig{DefaultTimeout: "soon"}}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()

	got, err := mapNotifierConfig(&config.Config{})
	if err != nil || !got.Enabled {
		t.Fatalf("nil section: cfg=%+v err=%v", got, err)
	}

	got, err = mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{
		RatePerSec:  7,
		DedupWindow: "10m",
	}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.RatePerSec != 7 || got.DedupWindow != 10*time.Minute || got.SendTimeout != 10*time.Second {
		t.Fatalf("unexpected mapping: %+v", got)
	}

	if _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{DedupWindow: "-1s"}}); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		driver  string
	}{
		{name: "absent", in: nil},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file", in: &config.StorageConfig{Driver: "file", Path: "a.jsonl"}, enabled: true, driver: "file"},
		{name: "sqlite upper", in: &config.StorageConfig{Driver: "SQLite", Path: "a.db"}, enabled: true, driver: "sqlite"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if enabled != tt.enabled || sc.Driver != tt.driver {
				t.Fatalf("got enabled=%v driver=%q", enabled, sc.Driver)
			}
			if enabled && sc.BusyTimeout != time.Second {
				t.Fatalf("busy timeout=%v", sc.BusyTimeout)
			}
		})
	}
}

func TestMapOpsConfig(t *testing.T) {
	t.Parallel()

	got, err := mapOpsConfig(&config.Config{Ops: config.OpsConfig{Enabled: true, Token: " s3cret "}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Addr != "127.0.0.1:6060" || got.Token != "s3cret" {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if got.ReadTimeout <= 0 || got.WriteTimeout <= 0 || got.IdleTimeout <= 0 {
		t.Fatalf("timeouts not defaulted: %+v", got)
	}
}

func TestMapLogConfigOpsChatNeedsChat(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Logging.Telegram.Enabled = true
	if got := mapLogConfig(cfg); got.OpsChat.Enabled {
		t.Fatalf("ops chat sink enabled without a chat id")
	}
	cfg.Telegram.OpsChatID = -100
	got := mapLogConfig(cfg)
	if !got.OpsChat.Enabled || got.OpsChat.ChatID != -100 {
		t.Fatalf("unexpected ops chat: %+v", got.OpsChat)
	}
}

func TestConversationTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: defaultConversationTTL},
		{raw: "0s", want: 0},
		{raw: "5m", want: 5 * time.Minute},
	}
	for _, tt := range tests {
		cfg := &config.Config{}
		cfg.Reminders.ConversationTTL = tt.raw
		got, err := conversationTTL(cfg)
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %v want %v", tt.raw, got, tt.want)
		}
	}
}

func TestRunStepBoundsSlowStep(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	runStep(context.Background(), logx.Nop(), "slow", 50*time.Millisecond, func(c context.Context) error {
		<-c.Done()
		<-release
		return nil
	})
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("step not bounded: %v", took)
	}
}

func TestRunStepRecoversPanic(t *testing.T) {
	t.Parallel()

	runStep(context.Background(), logx.Nop(), "boom", time.Second, func(context.Context) error {
		panic("boom")
	})
	runStep(context.Background(), logx.Nop(), "err", time.Second, func(context.Context) error {
		return errors.New("failed")
	})
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Setenv(config.EnvToken, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"telegram":{"token":""},"reminders":{"timezone":"Nowhere/Void"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := NewApp(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "telegram.token") || !strings.Contains(msg, "reminders.timezone") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestNewAppMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := NewApp(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

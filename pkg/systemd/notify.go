// Package systemd reports service state to systemd through sd_notify.
// Every call is a no-op when the process is not run by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindbot/pkg/logx"
)

// Notifier wraps daemon.SdNotify. The zero value is usable.
type Notifier struct {
	Log logx.Logger
	// notify is daemon.SdNotify outside tests.
	notify       func(unsetEnv bool, state string) (bool, error)
	watchdogTime func() (time.Duration, error)
}

func (n *Notifier) send(state string) bool {
	fn := n.notify
	if fn == nil {
		fn = daemon.SdNotify
	}
	ok, err := fn(false, state)
	if err != nil && !n.Log.IsZero() {
		n.Log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
	return ok
}

// Ready reports start-up completion. It returns false outside systemd.
func (n *Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

func (n *Notifier) Status(text string) bool { return n.send("STATUS=" + text) }

// Watchdog pings systemd at half the configured WatchdogSec until ctx ends.
// It returns immediately when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context) error {
	wd := n.watchdogTime
	if wd == nil {
		wd = func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) }
	}
	every, err := wd()
	if err != nil || every <= 0 {
		return err
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

package app

import (
	"context"
	"slices"
	"strings"

	"remindbot/internal/config"
	logx "remindbot/pkg/logx"
)

// restartOnly lists sections that are read once at start-up.
var restartOnly = []string{"storage", "task_engine"}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if slices.Contains(restartOnly, s) {
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if oc, err := mapOpsConfig(newCfg); err != nil {
		a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
	} else {
		a.ops.Reconfigure(ctx, oc)
	}

	if ttl, err := conversationTTL(newCfg); err != nil {
		a.log.Warn("invalid conversation ttl; keeping previous", logx.Err(err))
	} else {
		a.picker.SetTTL(ttl)
	}
	a.bot.SetLocale(newCfg.Reminders.Locale)

	if oldCfg == nil || oldCfg.Reminders.SweepInterval != newCfg.Reminders.SweepInterval {
		if every, err := sweepInterval(newCfg); err != nil {
			a.log.Warn("invalid sweep interval; keeping previous", logx.Err(err))
		} else {
			a.sched.RemoveJob(sweepJob)
			if err := a.registerSweep(every); err != nil {
				a.log.Warn("sweep job re-register failed", logx.Err(err))
			}
		}
	}
	if oldCfg != nil && (oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout) {
		a.log.Warn("telegram connection settings changed; restart required")
	}
	if oldCfg != nil && oldCfg.Reminders.Timezone != newCfg.Reminders.Timezone {
		a.log.Warn("reminders.timezone changed; restart required")
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

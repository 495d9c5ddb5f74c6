package app

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/ops"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

const sweepJob = "dialog.sweep"

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter

	engine *engine.Service
	sched  *scheduler.Service
	notif  *notifier.Service
	ops    *ops.Service

	picker *dialog.Picker
	bot    *bot.Bot
	router *router.Router

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), nil)

	poll, err := pollTimeout(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	logSvc.SetSender(ad)

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(scheduler.Config{
		Timezone:    cfg.Reminders.Timezone,
		FireTimeout: engCfg.DefaultTimeout,
	}, reminder.NewMemoryStore(), notifSvc,
		scheduler.WithEngine(engineSvc),
		scheduler.WithBus(bus),
		scheduler.WithLogger(log.With(logx.String("comp", "scheduler"))),
	)

	ttl, err := conversationTTL(cfg)
	if err != nil {
		return nil, err
	}
	picker := dialog.New(dialog.WithLocation(loc), dialog.WithTTL(ttl))
	b := bot.New(picker, schedSvc,
		bot.WithLogger(log.With(logx.String("comp", "bot"))),
		bot.WithLocale(cfg.Reminders.Locale),
	)
	r := router.New(log.With(logx.String("comp", "router")), ad)
	b.Register(r)

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		engine:  engineSvc,
		sched:   schedSvc,
		notif:   notifSvc,
		picker:  picker,
		bot:     b,
		router:  r,
		updates: make(chan kit.Update, 256),
	}

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.ops = ops.New(opsCfg, ops.Sources{
		Reminders:   func() any { return schedSvc.Snapshot() },
		Notifier:    func() any { return notifSvc.Snapshot() },
		Supervisors: a.supervisorCounters,
	}, log.With(logx.String("comp", "ops")))
	return a, nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) supervisorCounters() map[string]rtsup.Counters {
	return map[string]rtsup.Counters{
		"app":              a.sup.Counters(),
		"telegram.adapter": a.adapter.Supervisor().Counters(),
		"router":           a.router.Supervisor().Counters(),
		"ops":              a.ops.Supervisor().Counters(),
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.notif.Start(a.sup.Context())
	a.engine.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())
	a.ops.Start(a.sup.Context())

	cfg := a.cfgm.Get()
	every, err := sweepInterval(cfg)
	if err != nil {
		return err
	}
	if err := a.registerSweep(every); err != nil {
		return err
	}

	if a.store != nil {
		a.sup.Go("storage.audit", func(c context.Context) error {
			return storage.RunAuditor(c, a.bus, a.store, a.log.With(logx.String("comp", "audit")))
		})
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("router.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.router.PublishMenu(mctx); err != nil {
			a.log.Warn("command menu publish failed", logx.Err(err))
		}
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if chatID := cfg.Telegram.OpsChatID; chatID != 0 {
		err := a.notif.Notify(a.sup.Context(), kit.Notification{
			Channel: "ops",
			Target:  kit.ChatTarget{ChatID: chatID, ThreadID: cfg.Logging.Telegram.ThreadID},
			Text:    fmt.Sprintf("remindbot started (tz %s)", a.sched.Location()),
		})
		if err != nil {
			a.log.Warn("start-up notice not queued", logx.Err(err))
		}
	}

	a.log.Info("app started")
	return nil
}

func (a *App) registerSweep(every time.Duration) error {
	return a.sched.AddInterval(sweepJob, every, 10*time.Second, func(context.Context) error {
		if n := a.picker.Sweep(time.Now()); n > 0 {
			a.log.Debug("idle conversations dropped", logx.Int("count", n))
		}
		return nil
	})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		runStep(ctx, a.log, name, max, fn)
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 2*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("notifier", time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

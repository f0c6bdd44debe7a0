// Package app wires configuration, storage, the notifier pipeline and the
// HTTP surface into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flagcast/internal/config"
	"flagcast/internal/janitor"
	"flagcast/internal/notifier"
	"flagcast/internal/platform"
	"flagcast/internal/runtime/supervisor"
	"flagcast/internal/settings"
	"flagcast/internal/storage"
	"flagcast/internal/transport/telegram"
	"flagcast/internal/web"
	logx "flagcast/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    storage.Store
	settings *settings.Service
	hooks    *platform.Hooks
	platform *platform.Service
	notif    *notifier.Service
	web      *web.Service
	jan      *janitor.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(mapStorage(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", storageDriver(cfg)))

	set := settings.New(store, log.With(logx.String("comp", "settings")))

	hooks := platform.NewHooks(log)
	plat := platform.NewService(store, hooks, log.With(logx.String("comp", "platform")))

	ncfg, err := mapNotifier(cfg)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	sender := telegram.New(telegram.Config{
		APIBase: cfg.Telegram.APIBase,
		Timeout: ncfg.SendTimeout,
	}, log)
	notif := notifier.New(ncfg, sender, set, store, store, log)

	// The notifier observes persisted platform events; it never sits on the
	// write path and cannot fail a challenge update or solve.
	hooks.OnChallengeUpdated(notif.AnnounceChallenge)
	hooks.OnSolveRecorded(notif.AnnounceSolve)

	webSvc := web.New(web.Config{
		Addr:          cfg.Server.Addr,
		Token:         cfg.Server.Token,
		AllowInsecure: cfg.Server.AllowInsecure,
	}, set, plat, store, log)

	jan := janitor.New(mapJanitor(cfg), store, log)

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		settings: set,
		hooks:    hooks,
		platform: plat,
		notif:    notif,
		web:      webSvc,
		jan:      jan,
	}, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.web.Start(a.sup.Context()); err != nil {
		return err
	}
	a.jan.Start(a.sup.Context())

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(last, newCfg)
				last = newCfg
			}
		}
	})
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	for _, s := range sections {
		if s == "server" || s == "database" {
			a.log.Warn("server/database config changed; restart required for changes to take effect")
			break
		}
	}

	a.logs.Apply(mapLogging(newCfg))

	if ncfg, err := mapNotifier(newCfg); err != nil {
		a.log.Warn("invalid telegram config; keeping previous", logx.Err(err))
	} else {
		a.notif.Reconfigure(ncfg)
	}
	a.jan.Apply(mapJanitor(newCfg))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component cannot
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
			)
		}
	}

	step("web", 3*time.Second, func(c context.Context) error { return a.web.Stop(c) })
	step("janitor", 2*time.Second, func(c context.Context) error { a.jan.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

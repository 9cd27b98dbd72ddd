// Package app is the composition root: it turns a config file into a
// watcher and runs it once or on a schedule.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/storage"
	"fleetwatch/internal/task/scheduler"
	"fleetwatch/internal/watch"
	logx "fleetwatch/pkg/logx"
)

const (
	watchJob        = "watch"
	shutdownTimeout = 30 * time.Second
)

type App struct {
	cfgm  *config.ConfigManager
	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	// sdnotify reports lifecycle state; tests replace it.
	sdnotify func(state string)

	mu      sync.Mutex
	cfg     *config.Config
	watcher *watch.Watcher

	// runMu serializes passes started outside the scheduler.
	runMu sync.Mutex
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validateSchedule(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validateSchedule(c) })

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	w, d, err := buildWatcher(cfg, st, log)
	if err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		store:    st,
		sdnotify: sdNotify,
		cfg:      cfg,
		watcher:  w,
	}
	a.logChannels(d)
	return a, nil
}

func validateSchedule(cfg *config.Config) error {
	if s := strings.TrimSpace(cfg.Schedule); s != "" {
		if _, err := scheduler.ParseSchedule(s); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}

func (a *App) logChannels(d *notify.Dispatcher) {
	for _, ch := range d.Channels() {
		a.log.Info("channel", logx.String("name", ch.Name()), logx.Bool("enabled", ch.Enabled()))
	}
}

// Config returns the config currently in effect.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// RunOnce executes a single watch pass with the current config.
func (a *App) RunOnce(ctx context.Context) watch.Report {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.mu.Lock()
	w := a.watcher
	a.mu.Unlock()
	return w.Run(ctx)
}

// Run executes one pass and returns, or, when a schedule is configured,
// keeps running passes until ctx is done.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	if strings.TrimSpace(cfg.Schedule) == "" {
		a.RunOnce(ctx)
		return nil
	}
	return a.serve(ctx, cfg)
}

func (a *App) serve(ctx context.Context, cfg *config.Config) error {
	sched := scheduler.New(a.log.With(logx.String("comp", "scheduler")))
	if err := sched.SetTimezone(cfg.Timezone); err != nil {
		return err
	}
	if err := sched.Add(watchJob, cfg.Schedule, func(c context.Context) { a.RunOnce(c) }); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	// First pass right away so a restart does not wait a whole period.
	a.RunOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	sched.Start(ctx)
	a.log.Info("scheduled mode", logx.String("schedule", cfg.Schedule), logx.String("next", sched.Next(watchJob).Format(time.RFC3339)))

	var wg sync.WaitGroup
	sub := a.cfgm.Subscribe(4)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(ctx, sub, sched)
	}()

	a.sdnotify(sdReady)
	<-ctx.Done()
	a.sdnotify(sdStopping)
	a.log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	wg.Wait()
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config, sched *scheduler.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(newCfg, sched)
		}
	}
}

// apply switches to newCfg for the next pass. A pass already running keeps
// the watcher it started with.
func (a *App) apply(newCfg *config.Config, sched *scheduler.Service) {
	old := a.Config()
	sections, attrs := config.SummarizeConfigChange(old, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	a.logs.Apply(mapLogConfig(newCfg))

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}

	w, d, err := buildWatcher(newCfg, a.store, a.logs.Logger())
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	a.mu.Lock()
	a.cfg, a.watcher = newCfg, w
	a.mu.Unlock()
	a.logChannels(d)

	if strings.TrimSpace(newCfg.Timezone) != strings.TrimSpace(old.Timezone) {
		if err := sched.SetTimezone(newCfg.Timezone); err != nil {
			a.log.Warn("timezone not applied", logx.Err(err))
		}
	}
	if strings.TrimSpace(newCfg.Schedule) != strings.TrimSpace(old.Schedule) {
		if strings.TrimSpace(newCfg.Schedule) == "" {
			sched.Remove(watchJob)
			a.log.Warn("schedule removed; no further passes until a schedule is set")
			return
		}
		if err := sched.Add(watchJob, newCfg.Schedule, func(c context.Context) { a.RunOnce(c) }); err != nil {
			a.log.Warn("schedule not applied", logx.Err(err))
			return
		}
		a.log.Info("schedule updated", logx.String("schedule", newCfg.Schedule))
	}
}

// Close releases the store and log sinks.
func (a *App) Close() error {
	err := a.store.Close()
	if cerr := a.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

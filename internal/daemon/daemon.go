// Package daemon runs the scheduler continuously without an external timer:
// a cron loop fires a pass every 15 minutes, the config file is watched and
// hot-reloaded, and readiness is reported to systemd when present.
package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"pingwatch/internal/config"
	"pingwatch/internal/dispatch"
	"pingwatch/pkg/logx"
)

// passSpec mirrors the systemd timer cadence.
const passSpec = "*/15 * * * *"

// RunnerFactory builds a dispatch runner for the given (possibly reloaded)
// config.
type RunnerFactory func(cfg *config.Config) (*dispatch.Runner, error)

type Daemon struct {
	cfgPath string
	logSvc  *logx.Service
	log     logx.Logger
	build   RunnerFactory

	mu  sync.RWMutex
	cfg *config.Config
}

func New(cfgPath string, initial *config.Config, logSvc *logx.Service, log logx.Logger, build RunnerFactory) *Daemon {
	return &Daemon{
		cfgPath: cfgPath,
		logSvc:  logSvc,
		log:     log,
		build:   build,
		cfg:     initial,
	}
}

func (d *Daemon) current() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run blocks until ctx is canceled. A pass executes immediately on start
// and then on the cron cadence.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(passSpec, func() { d.pass(ctx) }); err != nil {
		return err
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go d.watch(watchCtx)

	d.pass(ctx)
	c.Start()

	// No-op outside systemd.
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		d.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		d.log.Debug("reported readiness to systemd")
	}

	<-ctx.Done()
	d.log.Info("shutting down")
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)

	// Wait for an in-flight pass to finish.
	<-c.Stop().Done()
	return nil
}

func (d *Daemon) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg := d.current()
	runner, err := d.build(cfg)
	if err != nil {
		d.log.Error("building runner failed", logx.Err(err))
		return
	}
	dispatched, err := runner.Run(ctx)
	if err != nil {
		d.log.Error("pass finished with error", logx.Err(err))
		return
	}
	d.log.Debug("pass finished", logx.Bool("dispatched", dispatched))
}

// watch hot-reloads the config file. Events are debounced to avoid acting
// on partial editor writes; a config that fails validation is rejected and
// the previous one stays in effect.
func (d *Daemon) watch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		d.log.Warn("config watch unavailable", logx.Err(err))
		return
	}
	defer w.Close()

	dir := filepath.Dir(d.cfgPath)
	if err := w.Add(dir); err != nil {
		d.log.Warn("config watch unavailable", logx.Err(err), logx.String("dir", dir))
		return
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, d.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(d.cfgPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			d.log.Warn("config watch error", logx.Err(err))
		}
	}
}

func (d *Daemon) reload() {
	cfg, err := config.Load(d.cfgPath)
	if err != nil {
		d.log.Warn("config rejected, keeping previous", logx.Err(err), logx.String("path", d.cfgPath))
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	if d.logSvc != nil {
		d.logSvc.Apply(logx.Config{
			Level:   cfg.LogLevel,
			Console: true,
			File:    logx.FileConfig{Enabled: cfg.LogFile != "", Path: config.ExpandHome(cfg.LogFile)},
		})
	}
	d.log.Info("config reloaded", logx.String("path", d.cfgPath))
}

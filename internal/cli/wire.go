package cli

import (
	"time"

	"pingwatch/internal/config"
	"pingwatch/internal/daemon"
	"pingwatch/internal/dispatch"
	"pingwatch/internal/ledger"
	"pingwatch/internal/notify"
	"pingwatch/pkg/logx"
	"pingwatch/pkg/ping"
)

func configDefaultPath() string { return config.DefaultPath() }

func newDaemon(cfgPath string, cfg *config.Config, logSvc *logx.Service, log logx.Logger) *daemon.Daemon {
	return daemon.New(cfgPath, cfg, logSvc, log, func(c *config.Config) (*dispatch.Runner, error) {
		return newRunner(c, log)
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrDefault()
	}
	return config.Load(path)
}

func newLogging(cfg *config.Config) (*logx.Service, logx.Logger) {
	return logx.New(logx.Config{
		Level:   cfg.LogLevel,
		Console: true,
		File: logx.FileConfig{
			Enabled: cfg.LogFile != "",
			Path:    config.ExpandHome(cfg.LogFile),
		},
	})
}

func newRunner(cfg *config.Config, log logx.Logger) (*dispatch.Runner, error) {
	store := ledger.New(config.ExpandHome(cfg.StateDir), log)
	action := ping.NewCommand(cfg.PingCommand, time.Duration(cfg.PingTimeout)*time.Second, log)

	opts := []dispatch.Option{}
	notifier, err := notify.NewTelegram(cfg.Notify, log)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		opts = append(opts, dispatch.WithNotifier(notifier))
	}

	return dispatch.New(cfg, store, action, log, opts...), nil
}

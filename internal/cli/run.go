package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pingwatch/pkg/logx"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute a single signal-aware scheduler pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logSvc, log := newLogging(cfg)
			defer logSvc.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runner, err := newRunner(cfg, log)
			if err != nil {
				return err
			}

			log.Info("starting scheduler run")
			dispatched, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			log.Info("scheduler run complete", logx.Bool("dispatched", dispatched))
			return nil
		},
	}
}

func newDaemonCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run continuously with a built-in 15-minute timer and config hot-reload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logSvc, log := newLogging(cfg)
			defer logSvc.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			path := *cfgPath
			if path == "" {
				path = configDefaultPath()
			}

			d := newDaemon(path, cfg, logSvc, log)
			return d.Run(ctx)
		},
	}
}

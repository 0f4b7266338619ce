package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pingwatch/internal/config"
	"pingwatch/internal/ledger"
	"pingwatch/internal/schedule"
	"pingwatch/pkg/logx"
)

func newTestCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Dry-run: report due/sent status for today's windows, no side effects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logSvc, log := newLogging(cfg)
			defer logSvc.Close()

			log.Info("running in test mode (dry-run)")

			now := time.Now()
			if !schedule.ActiveToday(cfg.ActiveDays, now) {
				log.Info("not scheduled to run today", logx.Int("weekday", schedule.Weekday(now)))
				return nil
			}

			windows, err := schedule.ComputeTimes(cfg.WorkStart, schedule.WindowCount)
			if err != nil {
				return err
			}

			log.Info("schedule",
				logx.String("work_start", cfg.WorkStart),
				logx.Any("active_days", cfg.ActiveDays),
				logx.String("windows", strings.Join(windows, ", ")),
				logx.String("current_time", now.Format("15:04")))

			store := ledger.New(config.ExpandHome(cfg.StateDir), log)
			today := now.Format(ledger.DateFormat)
			for _, w := range windows {
				due, err := schedule.IsDue(w, now)
				if err != nil {
					return err
				}
				status := "scheduled"
				if due {
					status = "NOW"
				}
				if store.WasDispatched(today, w) {
					status = "already sent"
				}
				log.Info("window status", logx.String("window", w), logx.String("status", status))
			}
			return nil
		},
	}
}

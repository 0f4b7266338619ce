package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pingwatch/internal/schedule"
)

func newScheduleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Display the configured windows and the upcoming active days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			windows, err := schedule.ComputeTimes(cfg.WorkStart, schedule.WindowCount)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			days := make([]string, 0, len(cfg.ActiveDays))
			for _, d := range cfg.ActiveDays {
				days = append(days, strconv.Itoa(d))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Schedule based on config:")
			fmt.Fprintf(out, "  Work start time: %s\n", cfg.WorkStart)
			fmt.Fprintf(out, "  Active days: %s\n", strings.Join(days, ", "))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Ping windows:")
			for i, w := range windows {
				fmt.Fprintf(out, "  %d. %s\n", i+1, w)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Upcoming days:")
			today := time.Now()
			for i := 0; i < 8; i++ {
				date := today.AddDate(0, 0, i)
				status := "inactive"
				if schedule.ActiveToday(cfg.ActiveDays, date) {
					status = "ACTIVE"
				}
				fmt.Fprintf(out, "  %s (%s): %s\n", date.Format("2006-01-02"), date.Weekday(), status)
			}
			return nil
		},
	}
}

// Package cli wires the cobra command tree: run, test, schedule, install
// and daemon, with a global --config flag. Scheduling outcomes never set a
// non-zero exit code; argument and configuration errors do.
package cli

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "pingwatch",
		Short:         "pingwatch: idempotent daily-window ping dispatcher",
		Long:          "pingwatch decides whether now falls within one of the day's scheduled windows and, if so, invokes the configured external command exactly once per window, recording that durably so repeated or concurrent invocations never double-fire.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.config/pingwatch/config.yaml)")

	rootCmd.AddCommand(
		newRunCmd(&cfgPath),
		newTestCmd(&cfgPath),
		newScheduleCmd(&cfgPath),
		newInstallCmd(&cfgPath),
		newDaemonCmd(&cfgPath),
	)

	return rootCmd
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pingwatch/internal/config"
	"pingwatch/pkg/sdunit"
)

func newInstallCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Generate systemd service and timer unit files (no systemctl calls)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Validate the config before emitting units that reference it.
			if _, err := loadConfig(*cfgPath); err != nil {
				return err
			}

			confArg := *cfgPath
			if confArg == "" {
				confArg = config.DefaultPath()
			}
			exe, err := os.Executable()
			if err != nil {
				exe = "pingwatch"
			}

			service, err := sdunit.Service(fmt.Sprintf("%s run --config %s", exe, confArg))
			if err != nil {
				return err
			}
			timer, err := sdunit.Timer()
			if err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			servicePath := filepath.Join(cwd, sdunit.UnitName+".service")
			timerPath := filepath.Join(cwd, sdunit.UnitName+".timer")

			if err := os.WriteFile(servicePath, []byte(service), 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(timerPath, []byte(timer), 0o644); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Systemd files generated:")
			fmt.Fprintf(out, "  Service: %s\n", servicePath)
			fmt.Fprintf(out, "  Timer:   %s\n", timerPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "To install and enable:")
			fmt.Fprintf(out, "  sudo cp %s /etc/systemd/system/\n", servicePath)
			fmt.Fprintf(out, "  sudo cp %s /etc/systemd/system/\n", timerPath)
			fmt.Fprintln(out, "  sudo systemctl daemon-reload")
			fmt.Fprintf(out, "  sudo systemctl enable %s.timer\n", sdunit.UnitName)
			fmt.Fprintf(out, "  sudo systemctl start %s.timer\n", sdunit.UnitName)
			return nil
		},
	}
}

// Package sdunit renders the systemd service and timer units that drive
// pingwatch: a oneshot service executing a single scheduler pass, fired by
// a 15-minute timer.
package sdunit

import (
	"fmt"
	"io"

	"github.com/coreos/go-systemd/v22/unit"
)

const (
	// UnitName is the base name of both generated units.
	UnitName = "pingwatch"

	// TimerSpec fires the service every 15 minutes; the scheduler's own
	// window tolerance absorbs the coarse cadence.
	TimerSpec = "*:0/15"
)

// Service renders the .service unit text. execStart is the full command
// line to run for one scheduler pass.
func Service(execStart string) (string, error) {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Pingwatch scheduled ping dispatcher"),
		unit.NewUnitOption("Unit", "After", "network-online.target"),
		unit.NewUnitOption("Unit", "Wants", "network-online.target"),
		unit.NewUnitOption("Service", "Type", "oneshot"),
		unit.NewUnitOption("Service", "ExecStart", execStart),
		unit.NewUnitOption("Service", "StandardOutput", "journal"),
		unit.NewUnitOption("Service", "StandardError", "journal"),
		unit.NewUnitOption("Service", "SyslogIdentifier", UnitName),
		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
	return render(opts)
}

// Timer renders the .timer unit text.
func Timer() (string, error) {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Pingwatch dispatcher timer"),
		unit.NewUnitOption("Timer", "OnCalendar", TimerSpec),
		unit.NewUnitOption("Timer", "Unit", UnitName+".service"),
		unit.NewUnitOption("Timer", "Persistent", "true"),
		unit.NewUnitOption("Install", "WantedBy", "timers.target"),
	}
	return render(opts)
}

func render(opts []*unit.UnitOption) (string, error) {
	b, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return "", fmt.Errorf("serialize unit: %w", err)
	}
	return string(b), nil
}

// Package ping invokes the external ping command. It is a black box to the
// scheduler: every ordinary failure mode (non-zero exit, timeout, missing
// executable) is reported as false, never as an error.
package ping

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"pingwatch/pkg/logx"
)

// Command runs a fixed argv with the message appended as the final argument.
type Command struct {
	argv    []string
	timeout time.Duration
	log     logx.Logger
}

// NewCommand constructs a Command. timeout bounds a single invocation.
func NewCommand(argv []string, timeout time.Duration, log logx.Logger) *Command {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Command{argv: slices.Clone(argv), timeout: timeout, log: log}
}

// Send invokes the command once and reports success. The surrounding
// context is honored in addition to the configured timeout.
func (c *Command) Send(ctx context.Context, message string) bool {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	argv := append(slices.Clone(c.argv), message)
	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// The command runs in its own process group and the whole group is
	// killed on cancellation. Otherwise a spawned descendant inheriting
	// the stderr pipe keeps Run waiting past the deadline. WaitDelay
	// bounds the pipe drain for anything that survives the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	switch {
	case err == nil:
		c.log.Info("ping sent successfully")
		return true
	case cctx.Err() == context.DeadlineExceeded:
		c.log.Error("ping timed out", logx.Duration("timeout", c.timeout))
		return false
	case errors.Is(err, exec.ErrNotFound):
		c.log.Error("ping command not found", logx.String("command", argv[0]))
		return false
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.log.Error("ping failed",
				logx.Int("exit_code", exitErr.ExitCode()),
				logx.String("stderr", strings.TrimSpace(stderr.String())))
			return false
		}
		c.log.Error("ping failed", logx.Err(err))
		return false
	}
}

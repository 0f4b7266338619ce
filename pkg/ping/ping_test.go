package ping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pingwatch/pkg/logx"
)

func TestSendSuccess(t *testing.T) {
	t.Parallel()
	c := NewCommand([]string{"sh", "-c", "exit 0", "--"}, 5*time.Second, logx.Nop())
	assert.True(t, c.Send(context.Background(), "ping"))
}

func TestSendNonZeroExit(t *testing.T) {
	t.Parallel()
	c := NewCommand([]string{"sh", "-c", "echo fail >&2; exit 3", "--"}, 5*time.Second, logx.Nop())
	assert.False(t, c.Send(context.Background(), "ping"))
}

func TestSendMissingExecutable(t *testing.T) {
	t.Parallel()
	c := NewCommand([]string{"definitely-not-a-real-command-xyz"}, 5*time.Second, logx.Nop())
	assert.False(t, c.Send(context.Background(), "ping"))
}

func TestSendTimeout(t *testing.T) {
	t.Parallel()
	c := NewCommand([]string{"sh", "-c", "sleep 10", "--"}, 100*time.Millisecond, logx.Nop())

	start := time.Now()
	assert.False(t, c.Send(context.Background(), "ping"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSendTimeoutWithBackgroundChild(t *testing.T) {
	t.Parallel()
	// The backgrounded sleep inherits the stderr pipe; Send must not wait
	// for it to finish before giving up.
	c := NewCommand([]string{"sh", "-c", "sleep 6 & sleep 6", "--"}, 100*time.Millisecond, logx.Nop())

	start := time.Now()
	assert.False(t, c.Send(context.Background(), "ping"))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSendHonorsCallerContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCommand([]string{"sh", "-c", "sleep 10", "--"}, 30*time.Second, logx.Nop())
	assert.False(t, c.Send(ctx, "ping"))
}

func TestMessageAppendedAsFinalArgument(t *testing.T) {
	t.Parallel()
	// The script fails unless $1 equals the message.
	c := NewCommand([]string{"sh", "-c", `[ "$1" = "expected message" ]`, "--"}, 5*time.Second, logx.Nop())
	assert.True(t, c.Send(context.Background(), "expected message"))
	assert.False(t, c.Send(context.Background(), "something else"))
}

// Package dispatch orchestrates one scheduler pass: weekday gate, window
// iteration, due/already-sent/rate-limit checks, and the retry-with-backoff
// invocation of the external ping action.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"pingwatch/internal/config"
	"pingwatch/internal/ledger"
	"pingwatch/internal/schedule"
	"pingwatch/pkg/logx"
)

// Action is the external ping collaborator. Ordinary failures (non-zero
// exit, timeout, missing executable) are reported as false, never panics
// or errors.
type Action interface {
	Send(ctx context.Context, message string) bool
}

// Ledger is the durable dispatch record consumed by the runner.
type Ledger interface {
	WasDispatched(date, timeKey string) bool
	MarkDispatched(date, timeKey string) error
	RateLimited(now time.Time) bool
}

// Notifier receives dispatch outcomes. May be nil.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

const (
	maxAttempts        = 3
	defaultBackoffBase = 5 * time.Second
)

// Runner executes a single sequential pass; it has no internal goroutines.
// The only concurrency hazard is other invocations racing on the ledger,
// which the ledger itself serializes.
type Runner struct {
	cfg      *config.Config
	ledger   Ledger
	action   Action
	notifier Notifier
	log      logx.Logger

	now         func() time.Time
	backoffBase time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithBackoffBase overrides the first retry delay (tests use a tiny value).
func WithBackoffBase(d time.Duration) Option {
	return func(r *Runner) { r.backoffBase = d }
}

// WithNotifier attaches an outcome notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// New constructs a Runner.
func New(cfg *config.Config, lg Ledger, action Action, log logx.Logger, opts ...Option) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{
		cfg:         cfg,
		ledger:      lg,
		action:      action,
		log:         log,
		now:         time.Now,
		backoffBase: defaultBackoffBase,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeExhausted
	outcomeCanceled
)

// RunOnce is the single-shot mode: it returns true iff a dispatch occurred
// and terminates after the first successful dispatch, the first window
// whose retries are exhausted, or after examining all windows. A non-nil
// error satisfying errors.Is(err, ledger.ErrWrite) means the ping went out
// but recording it failed; the window must not be retried.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	windows, today, ok, err := r.plan()
	if err != nil || !ok {
		return false, err
	}

	for _, w := range windows {
		if !r.shouldDispatch(today, w) {
			continue
		}
		switch r.dispatch(ctx, w) {
		case outcomeSent:
			return true, r.record(ctx, today, w)
		case outcomeExhausted:
			// Single-shot gives up without touching later windows.
			r.notify(ctx, fmt.Sprintf("ping failed for %s window after %d attempts", w, maxAttempts))
			return false, nil
		case outcomeCanceled:
			return false, nil
		}
	}
	return false, nil
}

// Run is the continuous variant: the same pass, but cancellation (a signal
// context) is honored between windows and during backoff waits, and an
// exhausted window does not stop the remaining ones.
func (r *Runner) Run(ctx context.Context) (bool, error) {
	windows, today, ok, err := r.plan()
	if err != nil || !ok {
		return false, err
	}

	for _, w := range windows {
		if ctx.Err() != nil {
			// Partial completion is a valid terminal state, not an error.
			r.log.Info("cancellation requested, stopping early")
			return false, nil
		}
		if !r.shouldDispatch(today, w) {
			continue
		}
		switch r.dispatch(ctx, w) {
		case outcomeSent:
			return true, r.record(ctx, today, w)
		case outcomeExhausted:
			r.notify(ctx, fmt.Sprintf("ping failed for %s window after %d attempts", w, maxAttempts))
			continue
		case outcomeCanceled:
			r.log.Info("cancellation requested, stopping early")
			return false, nil
		}
	}
	return false, nil
}

// plan evaluates the weekday gate and computes today's windows.
// ok=false means today is not an active day.
func (r *Runner) plan() (windows []string, today string, ok bool, err error) {
	now := r.now()
	if !schedule.ActiveToday(r.cfg.ActiveDays, now) {
		r.log.Info("not scheduled to run today", logx.Int("weekday", schedule.Weekday(now)))
		return nil, "", false, nil
	}
	windows, err = schedule.ComputeTimes(r.cfg.WorkStart, schedule.WindowCount)
	if err != nil {
		return nil, "", false, err
	}
	return windows, now.Format(ledger.DateFormat), true, nil
}

// shouldDispatch applies the due, already-sent and rate-limit checks.
func (r *Runner) shouldDispatch(today, window string) bool {
	now := r.now()
	due, err := schedule.IsDue(window, now)
	if err != nil {
		r.log.Error("bad window key", logx.Err(err), logx.String("window", window))
		return false
	}
	if !due || r.ledger.WasDispatched(today, window) {
		return false
	}
	if r.ledger.RateLimited(now) {
		r.log.Info("rate limited: ping sent within the last hour", logx.String("window", window))
		return false
	}
	r.log.Info("window due", logx.String("window", window))
	return true
}

// dispatch invokes the action up to maxAttempts times with exponential
// backoff between attempts. Backoff waits select on ctx so a signal aborts
// the wait immediately.
func (r *Runner) dispatch(ctx context.Context, window string) outcome {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return outcomeCanceled
		}

		r.log.Info("sending ping",
			logx.String("window", window),
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", maxAttempts))

		if r.action.Send(ctx, r.cfg.PingMessage) {
			r.log.Info("ping sent", logx.String("window", window))
			return outcomeSent
		}

		if attempt < maxAttempts {
			delay := r.backoffBase << (attempt - 1)
			r.log.Info("retrying", logx.Duration("delay", delay))
			if !r.wait(ctx, delay) {
				return outcomeCanceled
			}
		}
	}

	// Explicit exhausted branch: retries ran out without a success.
	r.log.Error("ping failed after all attempts",
		logx.String("window", window),
		logx.Int("attempts", maxAttempts))
	return outcomeExhausted
}

// record marks the window dispatched and reports the outcome. The ping DID
// go out at this point, so the return value stays true even when marking
// fails; the error tells the caller the ledger state is unknown.
func (r *Runner) record(ctx context.Context, today, window string) error {
	if err := r.ledger.MarkDispatched(today, window); err != nil {
		r.log.Error("failed to record dispatch", logx.Err(err), logx.String("window", window))
		r.notify(ctx, fmt.Sprintf("ping sent for %s window but recording failed", window))
		return err
	}
	r.notify(ctx, fmt.Sprintf("ping sent for %s window", window))
	return nil
}

func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) notify(ctx context.Context, msg string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, msg)
}

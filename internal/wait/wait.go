// Package wait provides a bounded polling primitive for observing
// asynchronous state transitions.
//
// A waiter repeatedly evaluates a predicate at a fixed interval until it
// becomes true or a timeout elapses. Evaluation happens on the calling
// goroutine, never inside the callback-delivery context, so a
// single-threaded dispatcher delivering the awaited callback is never
// blocked by the wait itself.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/tmorrow/vigil/internal/eventlog"
)

// Default budgets. The long timeout matches UI-driven transitions in the
// kind of systems this harness observes; callers waiting on faster
// transitions should set their own.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultInterval = 50 * time.Millisecond

	// minInterval is the floor for poll intervals. Anything smaller
	// degenerates into a busy spin.
	minInterval = time.Millisecond
)

// Condition is a predicate over observable state.
type Condition struct {
	// Check reports whether the awaited transition has occurred.
	// Called repeatedly from the waiting goroutine; must be safe to
	// call concurrently with whatever mutates the observed state.
	Check func() bool

	// Describe renders the last-observed inputs for diagnostics.
	// Optional; included in TimedOutError when set.
	Describe func() string
}

// Options control one Await call. Zero values select the defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// TimedOutError reports that a condition never became true within its
// budget. It is a scenario failure, not a process-level fault.
type TimedOutError struct {
	// Elapsed is the wall time spent waiting.
	Elapsed time.Duration

	// Timeout is the budget that was exceeded.
	Timeout time.Duration

	// Last is the condition's self-description at the final
	// evaluation, empty if the condition has none.
	Last string
}

func (e *TimedOutError) Error() string {
	if e.Last != "" {
		return fmt.Sprintf("condition not met after %v (budget %v): %s", e.Elapsed.Round(time.Millisecond), e.Timeout, e.Last)
	}
	return fmt.Sprintf("condition not met after %v (budget %v)", e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Await blocks until cond.Check returns true, the timeout elapses, or
// ctx is cancelled.
//
// The condition is evaluated immediately, so an already-true predicate
// returns without sleeping. On timeout the condition is evaluated one
// final time before failing, closing the window where the transition
// lands between the last poll and the deadline.
//
// Returns nil on success, *TimedOutError on timeout, or ctx.Err() on
// cancellation.
func Await(ctx context.Context, cond Condition, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < minInterval {
		interval = minInterval
	}

	start := time.Now()

	if cond.Check() {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			// Final evaluation: a transition delivered between the
			// last poll and the deadline still counts.
			if cond.Check() {
				return nil
			}
			return &TimedOutError{
				Elapsed: time.Since(start),
				Timeout: timeout,
				Last:    describe(cond),
			}
		case <-ticker.C:
			if cond.Check() {
				return nil
			}
		}
	}
}

func describe(cond Condition) string {
	if cond.Describe == nil {
		return ""
	}
	return cond.Describe()
}

// ForGeneration builds a condition satisfied once the generation counter
// for (subject, kind) exceeds baseline.
//
// The baseline must be captured BEFORE issuing the command whose effect
// is being awaited; capturing it after reopens the race where the
// transition completes before the wait begins.
func ForGeneration(l *eventlog.Log, subject, kind string, baseline int64) Condition {
	return Condition{
		Check: func() bool {
			return l.Generation(subject, kind) > baseline
		},
		Describe: func() string {
			return fmt.Sprintf("generation(%s, %s) = %d, want > %d",
				subject, kind, l.Generation(subject, kind), baseline)
		},
	}
}

// ForValue builds a condition satisfied once the latest recorded value
// for (subject, kind) equals want.
func ForValue(l *eventlog.Log, subject, kind string, want any) Condition {
	return Condition{
		Check: func() bool {
			v, ok := l.Latest(subject, kind)
			return ok && v == want
		},
		Describe: func() string {
			v, ok := l.Latest(subject, kind)
			if !ok {
				return fmt.Sprintf("latest(%s, %s) unset, want %v", subject, kind, want)
			}
			return fmt.Sprintf("latest(%s, %s) = %v, want %v", subject, kind, v, want)
		},
	}
}

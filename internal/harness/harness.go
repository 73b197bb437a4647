package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tmorrow/vigil/internal/collab"
	"github.com/tmorrow/vigil/internal/eventlog"
	"github.com/tmorrow/vigil/internal/resource"
	"github.com/tmorrow/vigil/internal/wait"
)

// IDGenerator produces run IDs for sweep reports.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random run IDs.
type UUIDGenerator struct{}

// Generate implements IDGenerator.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Runner executes scenarios against one collaborator.
//
// Each scenario runs with a fresh event log and trace for isolation, the
// runner re-subscribing its forwarding handler before every execution.
// Scenarios execute sequentially; no two ever contend for a resource
// handle at the same time.
type Runner struct {
	collaborator collab.Collaborator
	logger       *slog.Logger
	idGen        IDGenerator
}

// NewRunner creates a runner. A nil logger defaults to slog.Default();
// a nil idGen defaults to random UUIDs.
func NewRunner(c collab.Collaborator, logger *slog.Logger, idGen IDGenerator) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if idGen == nil {
		idGen = UUIDGenerator{}
	}
	return &Runner{collaborator: c, logger: logger, idGen: idGen}
}

// RunScenario executes one scenario through the state machine
//
//	Init -> ResourceAcquired -> CommandIssued -> AwaitingEvent ->
//	Asserting -> (Pass|Fail|Error) -> ResourceReleased -> Done
//
// and returns its result. The resource is released on every exit path,
// including command rejection, wait timeout, assertion failure, and
// panics in step evaluation.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) Result {
	start := time.Now()

	clock := eventlog.NewClock()
	log := eventlog.NewWithClock(clock)
	rec := newTraceRecorder(clock)

	// The forwarding handler appends the trace entry before recording,
	// so a wait satisfied by the recorded generation always traces
	// after the event that satisfied it.
	r.collaborator.Subscribe(func(subject, kind string, value any) {
		rec.append(TraceEvent{Type: "event", Subject: subject, Kind: kind, Value: value})
		log.Record(subject, kind, value)
	})

	rec.transition(StateInit)

	res := Result{ScenarioName: sc.Name}

	scope, err := resource.Open(ctx, r.collaborator, sc.Resource.Spec(), r.logger)
	if err != nil {
		r.logger.Error("scenario aborted: acquire failed", "scenario", sc.Name, "error", err)
		res.Outcome = OutcomeError
		res.Message = err.Error()
		rec.transition(StateError)
		rec.transition(StateResourceReleased) // nothing was acquired
		rec.transition(StateDone)
		res.Elapsed = time.Since(start)
		res.Trace = rec.snapshot()
		return res
	}
	rec.transition(StateResourceAcquired)

	outcome, message := r.runSteps(ctx, sc, scope, log, rec)
	res.Outcome = outcome
	res.Message = message

	switch outcome {
	case OutcomePass:
		rec.transition(StatePass)
	case OutcomeFail:
		rec.transition(StateFail)
	default:
		rec.transition(StateError)
	}

	scope.Release(ctx)
	rec.transition(StateResourceReleased)
	rec.transition(StateDone)

	res.Elapsed = time.Since(start)
	res.Trace = rec.snapshot()

	r.logger.Info("scenario finished",
		"scenario", sc.Name,
		"outcome", res.Outcome,
		"elapsed", res.Elapsed,
	)
	return res
}

// runSteps evaluates the scenario body. Panics convert to an Error
// outcome; the caller still releases the resource.
func (r *Runner) runSteps(ctx context.Context, sc *Scenario, scope *resource.Scope, log *eventlog.Log, rec *traceRecorder) (outcome Outcome, message string) {
	defer func() {
		if p := recover(); p != nil {
			outcome = OutcomeError
			message = fmt.Sprintf("panic during scenario: %v", p)
		}
	}()

	for i := range sc.Steps {
		step := &sc.Steps[i]
		switch {
		case step.Command != "":
			// Baseline before issue: a transition completing faster
			// than the first poll must still be observed.
			var baseline int64
			if step.Await != nil {
				baseline = log.Generation(step.Await.Subject, step.Await.Kind)
			}

			rec.append(TraceEvent{Type: "transition", State: string(StateCommandIssued), Command: step.Command})
			if step.Await != nil {
				rec.transition(StateAwaitingEvent)
			}

			cmd := collab.CommandSpec{Name: step.Command, Args: step.Args}
			if err := r.collaborator.IssueCommand(ctx, scope.Handle(), cmd); err != nil {
				return OutcomeError, fmt.Sprintf("steps[%d]: %v", i, err)
			}

			if step.Await != nil {
				if out, msg, failed := r.await(ctx, sc, i, step.Await, baseline, log, rec); failed {
					return out, msg
				}
			}

		case step.Await != nil:
			rec.transition(StateAwaitingEvent)
			if out, msg, failed := r.await(ctx, sc, i, step.Await, 0, log, rec); failed {
				return out, msg
			}

		case step.Expect != nil:
			rec.transition(StateAsserting)
			if err := evaluateExpect(log, step.Expect); err != nil {
				rec.append(TraceEvent{Type: "assert", Subject: step.Expect.Subject, Kind: step.Expect.Kind, Detail: "mismatch"})
				return OutcomeFail, fmt.Sprintf("steps[%d]: %v", i, err)
			}
			rec.append(TraceEvent{Type: "assert", Subject: step.Expect.Subject, Kind: step.Expect.Kind, Detail: "ok"})
		}
	}

	return OutcomePass, ""
}

// await blocks on one await clause. The failed return is true when the
// scenario must stop, with outcome and message set.
func (r *Runner) await(ctx context.Context, sc *Scenario, stepIndex int, a *AwaitClause, baseline int64, log *eventlog.Log, rec *traceRecorder) (Outcome, string, bool) {
	var cond wait.Condition
	if a.Value != nil {
		cond = wait.Condition{
			Check: func() bool {
				v, ok := log.Latest(a.Subject, a.Kind)
				return ok && looselyEqual(a.Value, v)
			},
			Describe: func() string {
				v, ok := log.Latest(a.Subject, a.Kind)
				if !ok {
					return fmt.Sprintf("latest(%s, %s) unset, want %v", a.Subject, a.Kind, a.Value)
				}
				return fmt.Sprintf("latest(%s, %s) = %v, want %v", a.Subject, a.Kind, v, a.Value)
			},
		}
	} else {
		cond = wait.ForGeneration(log, a.Subject, a.Kind, baseline)
	}

	timeout := a.Timeout.Std()
	if timeout == 0 {
		timeout = sc.Timeout.Std()
	}
	opts := wait.Options{Timeout: timeout, Interval: a.Interval.Std()}

	err := wait.Await(ctx, cond, opts)
	if err == nil {
		rec.append(TraceEvent{Type: "await", Subject: a.Subject, Kind: a.Kind, Detail: "satisfied"})
		return "", "", false
	}

	var timedOut *wait.TimedOutError
	if errors.As(err, &timedOut) {
		rec.append(TraceEvent{Type: "await", Subject: a.Subject, Kind: a.Kind, Detail: "timed out"})
		return OutcomeFail, fmt.Sprintf("steps[%d]: %v", stepIndex, err), true
	}

	// Context cancellation: the scenario is abandoned, not failed.
	rec.append(TraceEvent{Type: "await", Subject: a.Subject, Kind: a.Kind, Detail: "cancelled"})
	return OutcomeError, fmt.Sprintf("steps[%d]: %v", stepIndex, err), true
}

// RunSweep executes scenarios in order, expanding sweep blocks, and
// aggregates outcomes. One scenario's failure does not abort the sweep:
// every iteration independently acquires and releases its resource.
func (r *Runner) RunSweep(ctx context.Context, scenarios []*Scenario) *Report {
	report := NewReport(r.idGen.Generate())

	for _, sc := range scenarios {
		for _, concrete := range sc.Expand() {
			report.Add(r.RunScenario(ctx, concrete))
		}
	}

	passed, failed, errored := report.Counts()
	r.logger.Info("sweep finished",
		"run_id", report.RunID,
		"passed", passed,
		"failed", failed,
		"errored", errored,
		"overall", report.Overall(),
	)
	return report
}

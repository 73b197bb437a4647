package harness

import (
	"sync"
	"time"

	"github.com/tmorrow/vigil/internal/eventlog"
)

// Outcome classifies a scenario execution.
type Outcome string

const (
	// OutcomePass means every step completed and every expectation held.
	OutcomePass Outcome = "pass"

	// OutcomeFail means a wait timed out or an expectation did not hold.
	OutcomeFail Outcome = "fail"

	// OutcomeError means the scenario could not run to its assertions:
	// acquire failure, synchronous command rejection, cancellation, or
	// a panic in the scenario body.
	OutcomeError Outcome = "error"
)

// State names one node of the per-scenario state machine.
type State string

const (
	StateInit             State = "init"
	StateResourceAcquired State = "resource_acquired"
	StateCommandIssued    State = "command_issued"
	StateAwaitingEvent    State = "awaiting_event"
	StateAsserting        State = "asserting"
	StatePass             State = "pass"
	StateFail             State = "fail"
	StateError            State = "error"
	StateResourceReleased State = "resource_released"
	StateDone             State = "done"
)

// TraceEvent is one entry in a scenario execution trace.
type TraceEvent struct {
	Type    string `json:"type"` // "transition", "command", "event", "await", "assert"
	State   string `json:"state,omitempty"`
	Command string `json:"command,omitempty"`
	Subject string `json:"subject,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Value   any    `json:"value,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Seq     int64  `json:"seq"`
}

// Result is the outcome of one scenario execution.
// Created once per execution and never mutated afterwards.
type Result struct {
	ScenarioName string        `json:"scenario_name"`
	Outcome      Outcome       `json:"outcome"`
	Message      string        `json:"message,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Trace        []TraceEvent  `json:"trace,omitempty"`
}

// Report aggregates scenario results for one sweep execution.
type Report struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
}

// NewReport creates an empty report with the given run ID.
func NewReport(runID string) *Report {
	return &Report{RunID: runID}
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Overall returns OutcomeFail if any scenario failed or errored,
// OutcomePass otherwise. An empty report passes vacuously.
func (r *Report) Overall() Outcome {
	for _, res := range r.Results {
		if res.Outcome != OutcomePass {
			return OutcomeFail
		}
	}
	return OutcomePass
}

// Counts returns the number of passed, failed, and errored scenarios.
func (r *Report) Counts() (passed, failed, errored int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomePass:
			passed++
		case OutcomeFail:
			failed++
		case OutcomeError:
			errored++
		}
	}
	return passed, failed, errored
}

// traceRecorder builds an execution trace. Appends may come from the
// orchestrating goroutine and from collaborator delivery goroutines
// concurrently; seq assignment and append happen under one lock so seq
// order equals slice order.
type traceRecorder struct {
	mu     sync.Mutex
	clock  *eventlog.Clock
	events []TraceEvent
}

func newTraceRecorder(clock *eventlog.Clock) *traceRecorder {
	return &traceRecorder{clock: clock}
}

func (tr *traceRecorder) append(ev TraceEvent) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	ev.Seq = tr.clock.Next()
	tr.events = append(tr.events, ev)
}

func (tr *traceRecorder) transition(s State) {
	tr.append(TraceEvent{Type: "transition", State: string(s)})
}

func (tr *traceRecorder) snapshot() []TraceEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]TraceEvent, len(tr.events))
	copy(out, tr.events)
	return out
}

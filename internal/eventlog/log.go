// Package eventlog provides the thread-safe event record at the heart of
// the harness.
//
// Asynchronous callbacks from the system under observation post into a
// Log via Record. The orchestrator's waiters only ever read: they compare
// generation counters against a baseline captured before a command was
// issued, which detects "at least one new transition occurred" without
// racing against transitions that complete before the wait begins.
//
// Generation counters are monotonically non-decreasing per (subject,
// kind) pair. No global ordering across pairs is guaranteed or required.
package eventlog

import (
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Event is a single recorded state transition.
// Events are append-only: never mutated after Record returns.
type Event struct {
	Subject string `json:"subject"`
	Kind    string `json:"kind"`
	Value   any    `json:"value,omitempty"`
	Seq     int64  `json:"seq"`
}

// key identifies one generation counter.
// Subject and kind are NFC-normalized so Unicode-equal spellings share
// a counter (a subject name arriving from two delivery paths must not
// split into two generations over composed vs decomposed accents).
type key struct {
	subject string
	kind    string
}

type entry struct {
	generation int64
	latest     any
}

// Log is a thread-safe record of named events and generation counters.
//
// Record may be called from any goroutine; the delivering context of the
// collaborator and the waiting orchestrator goroutine never coordinate
// beyond the Log's own mutex.
type Log struct {
	mu      sync.Mutex
	clock   *Clock
	entries map[key]*entry
	events  []Event
}

// New creates an empty log with its own clock.
func New() *Log {
	return NewWithClock(NewClock())
}

// NewWithClock creates an empty log stamping events from the given
// clock. Injecting a shared clock keeps seq values comparable across
// logs, and injecting a pre-positioned clock keeps traces deterministic
// for golden comparison.
func NewWithClock(clock *Clock) *Log {
	return &Log{
		clock:   clock,
		entries: make(map[key]*entry),
	}
}

func normKey(subject, kind string) key {
	return key{
		subject: norm.NFC.String(subject),
		kind:    norm.NFC.String(kind),
	}
}

// Record appends an event and increments the matching generation
// counter. Safe for concurrent use.
func (l *Log) Record(subject, kind string, value any) Event {
	seq := l.clock.Next()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := normKey(subject, kind)
	e := l.entries[k]
	if e == nil {
		e = &entry{}
		l.entries[k] = e
	}
	e.generation++
	e.latest = value

	ev := Event{Subject: k.subject, Kind: k.kind, Value: value, Seq: seq}
	l.events = append(l.events, ev)
	return ev
}

// Generation returns the number of events recorded for (subject, kind).
// Returns 0 for pairs that never recorded.
func (l *Log) Generation(subject, kind string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.entries[normKey(subject, kind)]; e != nil {
		return e.generation
	}
	return 0
}

// Latest returns the most recently recorded value for (subject, kind).
// The second return is false if the pair never recorded.
func (l *Log) Latest(subject, kind string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.entries[normKey(subject, kind)]; e != nil {
		return e.latest, true
	}
	return nil, false
}

// Events returns a copy of all recorded events in append order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

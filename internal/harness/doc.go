// Package harness orchestrates verification scenarios against an
// asynchronous collaborator.
//
// A scenario acquires a resource, issues commands, waits for the event
// log to reflect expected transitions, asserts on observed state, and
// releases the resource on every exit path. Scenario outcomes aggregate
// into a report whose overall outcome drives the process exit code.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: tune_and_verify
//	description: "Video becomes available after tuning"
//	resource:
//	  kind: tuner
//	  id: tuner0
//	steps:
//	  - command: tune
//	    args: { channel: 3 }
//	    await:
//	      subject: tuner0
//	      kind: video_available
//	      timeout: 1s
//	  - expect:
//	      subject: tuner0
//	      kind: video_available
//	      equals: true
//
// A sweep block expands one scenario per resource instance, each
// iteration independently resource-scoped and outcome-recorded:
//
//	sweep:
//	  values: [tuner0, tuner1, tuner2]
//
// Await and expect subjects may use "$resource", replaced with the
// concrete resource ID at expansion.
//
// # Step Semantics
//
// A command step captures the await clause's generation baseline BEFORE
// issuing the command, so a transition that completes faster than the
// first poll is still observed. A standalone await step waits against a
// zero baseline (any recorded transition satisfies it) or for a specific
// latest value. An expect step asserts on observed state: exact equality
// or tolerance-bounded numeric comparison (absolute or relative epsilon).
//
// # Outcomes
//
// Acquire failures, synchronous command rejections, and panics record
// Error; wait timeouts and assertion mismatches record Fail; everything
// else records Pass. Resource release runs unconditionally after every
// terminal outcome and its failures are logged, never escalated.
//
// # Deterministic Traces
//
// Every execution produces an ordered trace of state transitions,
// commands, delivered events, waits, and assertions. With an injected
// clock and a deterministic collaborator the trace is byte-stable and
// suitable for golden file comparison.
package harness

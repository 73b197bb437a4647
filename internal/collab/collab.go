// Package collab defines the boundary between the harness and the
// asynchronous subsystem under observation.
//
// The harness drives the subsystem through commands, and the subsystem
// reports state transitions by invoking a registered handler on its own
// delivery context. The harness never reaches past this boundary: a real
// device stack, a simulator, and the in-process fake in testutil all
// present the same interface.
package collab

import "context"

// ResourceSpec identifies a resource to acquire, e.g. one tuner or one
// capture device out of an enumerable set.
type ResourceSpec struct {
	Kind   string         `json:"kind"`
	ID     string         `json:"id"`
	Params map[string]any `json:"params,omitempty"`
}

// Handle represents exclusive access to an acquired resource.
// A handle is owned by the scenario execution that acquired it and is
// never shared across concurrent scenarios.
type Handle interface {
	// ID returns a stable identifier for diagnostics.
	ID() string
}

// CommandSpec describes one asynchronous operation to fire.
// The collaborator may reject a command synchronously (CommandError);
// otherwise its effects surface later through the event handler.
type CommandSpec struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// HandlerFunc receives state-transition notifications. It is invoked on
// the collaborator's own delivery context, so implementations must be
// safe for concurrent use and must not block.
type HandlerFunc func(subject, kind string, value any)

// Collaborator is the asynchronous subsystem under observation.
type Collaborator interface {
	// AcquireResource claims exclusive access to the resource matching
	// spec. Returns *AcquireError if no such resource exists or it is
	// unavailable.
	AcquireResource(ctx context.Context, spec ResourceSpec) (Handle, error)

	// ReleaseResource relinquishes a previously acquired handle.
	ReleaseResource(ctx context.Context, h Handle) error

	// IssueCommand fires an asynchronous operation against the
	// resource. A non-nil error means synchronous rejection
	// (*CommandError); acceptance says nothing about eventual effect.
	IssueCommand(ctx context.Context, h Handle, cmd CommandSpec) error

	// Subscribe registers the handler that receives all subsequent
	// state-transition notifications.
	Subscribe(h HandlerFunc)
}

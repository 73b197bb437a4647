// Package testutil provides deterministic helpers for harness tests:
// a fixed run-ID generator and an in-process fake collaborator that
// delivers events on its own goroutines, the way a real device stack
// delivers callbacks on its own dispatch thread.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmorrow/vigil/internal/collab"
)

// Emission is one event the fake delivers after a command is accepted.
type Emission struct {
	Subject string
	Kind    string
	Value   any

	// After delays delivery, simulating asynchronous completion.
	// Zero delivers promptly (still on a separate goroutine).
	After time.Duration
}

// CommandBehavior configures how the fake reacts to one command name.
type CommandBehavior struct {
	// Reject makes IssueCommand fail synchronously with a CommandError.
	Reject bool

	// RejectMessage is the CommandError message when Reject is set.
	RejectMessage string

	// Emissions are delivered asynchronously after acceptance.
	Emissions []Emission
}

type fakeHandle struct {
	id string
}

func (h *fakeHandle) ID() string { return h.id }

// FakeCollaborator is an in-process collab.Collaborator for tests.
//
// Events are delivered from per-command goroutines, never from the
// caller's goroutine, so waiter/deliverer interleavings exercise the
// same races a real callback dispatcher would.
type FakeCollaborator struct {
	mu sync.Mutex

	resources map[string]bool // id -> currently acquired
	behaviors map[string]CommandBehavior
	handler   collab.HandlerFunc

	acquireCount map[string]int
	releaseCount map[string]int

	releaseErr error // injected failure for every release

	wg sync.WaitGroup
}

// NewFakeCollaborator creates a fake with the given resource IDs
// available for acquisition.
func NewFakeCollaborator(resourceIDs ...string) *FakeCollaborator {
	f := &FakeCollaborator{
		resources:    make(map[string]bool),
		behaviors:    make(map[string]CommandBehavior),
		acquireCount: make(map[string]int),
		releaseCount: make(map[string]int),
	}
	for _, id := range resourceIDs {
		f.resources[id] = false
	}
	return f
}

// SetBehavior configures the reaction to a command name.
func (f *FakeCollaborator) SetBehavior(command string, b CommandBehavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviors[command] = b
}

// FailReleases makes every subsequent release return err.
func (f *FakeCollaborator) FailReleases(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseErr = err
}

// Subscribe implements collab.Collaborator.
func (f *FakeCollaborator) Subscribe(h collab.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// AcquireResource implements collab.Collaborator.
// Fails if the resource does not exist or is already held.
func (f *FakeCollaborator) AcquireResource(_ context.Context, spec collab.ResourceSpec) (collab.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	held, exists := f.resources[spec.ID]
	if !exists {
		return nil, collab.NewAcquireError(spec, "no such resource")
	}
	if held {
		return nil, collab.NewAcquireError(spec, "resource already acquired")
	}

	f.resources[spec.ID] = true
	f.acquireCount[spec.ID]++
	return &fakeHandle{id: spec.ID}, nil
}

// ReleaseResource implements collab.Collaborator.
func (f *FakeCollaborator) ReleaseResource(_ context.Context, h collab.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseCount[h.ID()]++
	f.resources[h.ID()] = false

	return f.releaseErr
}

// IssueCommand implements collab.Collaborator.
// Accepted commands deliver their configured emissions asynchronously.
func (f *FakeCollaborator) IssueCommand(_ context.Context, h collab.Handle, cmd collab.CommandSpec) error {
	f.mu.Lock()
	b, configured := f.behaviors[cmd.Name]
	handler := f.handler
	f.mu.Unlock()

	if !configured {
		return collab.NewCommandError(cmd.Name, "no behavior configured")
	}
	if b.Reject {
		msg := b.RejectMessage
		if msg == "" {
			msg = "rejected by test configuration"
		}
		return collab.NewCommandError(cmd.Name, msg)
	}

	for _, em := range b.Emissions {
		em := em
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			if em.After > 0 {
				time.Sleep(em.After)
			}
			if handler != nil {
				handler(em.Subject, em.Kind, em.Value)
			}
		}()
	}

	_ = h // the fake does not track per-handle command routing
	return nil
}

// Emit delivers one event directly, bypassing command plumbing.
func (f *FakeCollaborator) Emit(subject, kind string, value any) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(subject, kind, value)
	}
}

// AcquireCount returns how many times the resource was acquired.
func (f *FakeCollaborator) AcquireCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquireCount[id]
}

// ReleaseCount returns how many times the resource was released.
func (f *FakeCollaborator) ReleaseCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseCount[id]
}

// Drain blocks until all in-flight emissions have been delivered.
// Call at the end of a test to avoid leaking delivery goroutines past
// the test body.
func (f *FakeCollaborator) Drain() {
	f.wg.Wait()
}

// Held reports whether the resource is currently acquired.
func (f *FakeCollaborator) Held(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held, exists := f.resources[id]
	if !exists {
		return false, fmt.Errorf("no such resource %q", id)
	}
	return held, nil
}

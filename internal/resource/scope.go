// Package resource provides scoped acquisition of collaborator
// resources with guaranteed release on every exit path.
//
// The discipline mirrors try/finally device teardown: a scenario opens a
// scope, defers Release, and release runs exactly once no matter how the
// scenario body exits. Release failures are logged, never escalated, so
// teardown cannot mask the scenario's primary outcome.
package resource

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tmorrow/vigil/internal/collab"
)

// Scope holds exclusive access to one acquired resource.
//
// Exactly one Release takes effect per Open; further calls are no-ops.
// A scope is owned by one scenario execution and is not safe for
// concurrent use beyond the idempotent Release guard.
type Scope struct {
	collaborator collab.Collaborator
	handle       collab.Handle
	logger       *slog.Logger

	releaseOnce sync.Once
	released    bool
	mu          sync.Mutex
}

// Open acquires the resource matching spec and wraps it in a scope.
// Returns the collaborator's *collab.AcquireError unchanged on failure.
func Open(ctx context.Context, c collab.Collaborator, spec collab.ResourceSpec, logger *slog.Logger) (*Scope, error) {
	if logger == nil {
		logger = slog.Default()
	}

	handle, err := c.AcquireResource(ctx, spec)
	if err != nil {
		return nil, err
	}

	logger.Debug("resource acquired", "kind", spec.Kind, "id", handle.ID())

	return &Scope{
		collaborator: c,
		handle:       handle,
		logger:       logger,
	}, nil
}

// Handle returns the acquired handle.
func (s *Scope) Handle() collab.Handle {
	return s.handle
}

// Release relinquishes the resource. Idempotent: the second and later
// calls do nothing. A release failure is logged and swallowed.
func (s *Scope) Release(ctx context.Context) {
	s.releaseOnce.Do(func() {
		if err := s.collaborator.ReleaseResource(ctx, s.handle); err != nil {
			s.logger.Error("resource release failed",
				"id", s.handle.ID(),
				"error", &collab.ReleaseError{HandleID: s.handle.ID(), Err: err})
		} else {
			s.logger.Debug("resource released", "id", s.handle.ID())
		}

		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
	})
}

// Released reports whether Release has completed at least once.
func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

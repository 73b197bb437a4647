package collab

import (
	"context"
	"sync"
	"time"
)

// Simulator is a loopback Collaborator for exercising scenario files
// without a real subsystem attached. Every acquire succeeds, and every
// accepted command is acknowledged asynchronously after a fixed latency
// by a single event:
//
//	subject  the command's "subject" arg, or the handle ID
//	kind     the command's "kind" arg, or the command name
//	value    the command's "value" arg, or true
//
// Commands with a truthy "reject" arg are rejected synchronously, which
// lets scenario authors exercise error paths.
type Simulator struct {
	latency time.Duration

	mu      sync.Mutex
	handler HandlerFunc
	held    map[string]bool
	wg      sync.WaitGroup
}

// NewSimulator returns a Simulator that delivers each acknowledgement
// after the given latency. A zero latency delivers as soon as the
// goroutine is scheduled.
func NewSimulator(latency time.Duration) *Simulator {
	return &Simulator{
		latency: latency,
		held:    make(map[string]bool),
	}
}

type simHandle struct {
	id string
}

func (h simHandle) ID() string { return h.id }

func (s *Simulator) AcquireResource(ctx context.Context, spec ResourceSpec) (Handle, error) {
	id := spec.ID
	if id == "" {
		id = spec.Kind
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[id] {
		return nil, NewAcquireError(spec, "resource already held")
	}
	s.held[id] = true
	return simHandle{id: id}, nil
}

func (s *Simulator) ReleaseResource(ctx context.Context, h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, h.ID())
	return nil
}

func (s *Simulator) IssueCommand(ctx context.Context, h Handle, cmd CommandSpec) error {
	if reject, ok := cmd.Args["reject"].(bool); ok && reject {
		return NewCommandError(cmd.Name, "rejected by simulator")
	}

	subject := h.ID()
	if v, ok := cmd.Args["subject"].(string); ok && v != "" {
		subject = v
	}
	kind := cmd.Name
	if v, ok := cmd.Args["kind"].(string); ok && v != "" {
		kind = v
	}
	var value any = true
	if v, ok := cmd.Args["value"]; ok {
		value = v
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.latency > 0 {
			timer := time.NewTimer(s.latency)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(subject, kind, value)
		}
	}()
	return nil
}

func (s *Simulator) Subscribe(h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Drain blocks until all in-flight acknowledgements have been delivered
// or abandoned.
func (s *Simulator) Drain() {
	s.wg.Wait()
}

package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_AcquireRelease(t *testing.T) {
	sim := NewSimulator(0)
	ctx := context.Background()

	h, err := sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.NoError(t, err)
	assert.Equal(t, "tuner0", h.ID())

	// Exclusive: a second acquire of the same resource is refused.
	_, err = sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.Error(t, err)
	assert.True(t, IsAcquireError(err))

	require.NoError(t, sim.ReleaseResource(ctx, h))
	_, err = sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	assert.NoError(t, err)
}

func TestSimulator_AcquireFallsBackToKind(t *testing.T) {
	sim := NewSimulator(0)

	h, err := sim.AcquireResource(context.Background(), ResourceSpec{Kind: "tuner"})
	require.NoError(t, err)
	assert.Equal(t, "tuner", h.ID())
}

func TestSimulator_CommandAcknowledged(t *testing.T) {
	sim := NewSimulator(time.Millisecond)
	ctx := context.Background()

	var mu sync.Mutex
	var gotSubject, gotKind string
	var gotValue any
	sim.Subscribe(func(subject, kind string, value any) {
		mu.Lock()
		defer mu.Unlock()
		gotSubject, gotKind, gotValue = subject, kind, value
	})

	h, err := sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.NoError(t, err)

	err = sim.IssueCommand(ctx, h, CommandSpec{
		Name: "tune",
		Args: map[string]any{"kind": "locked", "value": 42},
	})
	require.NoError(t, err)
	sim.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "tuner0", gotSubject)
	assert.Equal(t, "locked", gotKind)
	assert.Equal(t, 42, gotValue)
}

func TestSimulator_CommandDefaults(t *testing.T) {
	sim := NewSimulator(0)
	ctx := context.Background()

	var mu sync.Mutex
	var gotKind string
	var gotValue any
	sim.Subscribe(func(subject, kind string, value any) {
		mu.Lock()
		defer mu.Unlock()
		gotKind, gotValue = kind, value
	})

	h, err := sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.NoError(t, err)

	require.NoError(t, sim.IssueCommand(ctx, h, CommandSpec{Name: "power_on"}))
	sim.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "power_on", gotKind)
	assert.Equal(t, true, gotValue)
}

func TestSimulator_Reject(t *testing.T) {
	sim := NewSimulator(0)
	ctx := context.Background()

	h, err := sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.NoError(t, err)

	err = sim.IssueCommand(ctx, h, CommandSpec{
		Name: "tune",
		Args: map[string]any{"reject": true},
	})
	require.Error(t, err)
	assert.True(t, IsCommandError(err))
}

func TestSimulator_CancelledContextDropsAck(t *testing.T) {
	sim := NewSimulator(50 * time.Millisecond)

	delivered := make(chan struct{}, 1)
	sim.Subscribe(func(subject, kind string, value any) {
		delivered <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	h, err := sim.AcquireResource(ctx, ResourceSpec{Kind: "tuner", ID: "tuner0"})
	require.NoError(t, err)

	require.NoError(t, sim.IssueCommand(ctx, h, CommandSpec{Name: "tune"}))
	cancel()
	sim.Drain()

	select {
	case <-delivered:
		t.Fatal("acknowledgement delivered after cancellation")
	default:
	}
}

package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorrow/vigil/internal/collab"
	"github.com/tmorrow/vigil/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_AcquiresResource(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")
	ctx := context.Background()

	scope, err := Open(ctx, fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner0"}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, scope.Handle())
	assert.Equal(t, "tuner0", scope.Handle().ID())
	assert.Equal(t, 1, fake.AcquireCount("tuner0"))

	held, err := fake.Held("tuner0")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestOpen_UnknownResource(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")

	_, err := Open(context.Background(), fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner9"}, discardLogger())
	require.Error(t, err)
	assert.True(t, collab.IsAcquireError(err))
}

func TestRelease_Idempotent(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")
	ctx := context.Background()

	scope, err := Open(ctx, fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner0"}, discardLogger())
	require.NoError(t, err)

	scope.Release(ctx)
	scope.Release(ctx)
	scope.Release(ctx)

	assert.Equal(t, 1, fake.ReleaseCount("tuner0"), "release must take effect exactly once")
	assert.True(t, scope.Released())
}

func TestRelease_FailureSwallowed(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")
	fake.FailReleases(errors.New("device wedged"))
	ctx := context.Background()

	scope, err := Open(ctx, fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner0"}, discardLogger())
	require.NoError(t, err)

	// Release must not panic or surface the failure.
	scope.Release(ctx)
	assert.True(t, scope.Released())
}

func TestRelease_FreesForNextAcquire(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")
	ctx := context.Background()

	scope, err := Open(ctx, fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner0"}, discardLogger())
	require.NoError(t, err)
	scope.Release(ctx)

	// Serial reacquisition mirrors per-device sweep loops.
	scope2, err := Open(ctx, fake, collab.ResourceSpec{Kind: "tuner", ID: "tuner0"}, discardLogger())
	require.NoError(t, err)
	scope2.Release(ctx)

	assert.Equal(t, 2, fake.AcquireCount("tuner0"))
	assert.Equal(t, 2, fake.ReleaseCount("tuner0"))
}

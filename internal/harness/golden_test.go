package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmorrow/vigil/internal/testutil"
)

// TestGolden_TuneBasic locks down the full execution trace of the
// canonical tune scenario. The fake delivers its event promptly but on
// its own goroutine; the await in the scenario serializes the trace, so
// the snapshot is deterministic.
func TestGolden_TuneBasic(t *testing.T) {
	fake := testutil.NewFakeCollaborator("tuner0")
	fake.SetBehavior("tune", testutil.CommandBehavior{
		Emissions: []testutil.Emission{{Subject: "tuner0", Kind: "video_available", Value: true}},
	})
	defer fake.Drain()

	runner := NewRunner(fake, discardLogger(), testutil.NewFixedIDGenerator(""))

	result := RunWithGolden(t, runner, tuneScenario("tuner0"))
	assert.Equal(t, OutcomePass, result.Outcome)
}

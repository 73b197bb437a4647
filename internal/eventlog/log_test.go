package eventlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Record_IncrementsGeneration(t *testing.T) {
	l := New()

	assert.Equal(t, int64(0), l.Generation("tuner0", "video_available"))

	l.Record("tuner0", "video_available", true)
	assert.Equal(t, int64(1), l.Generation("tuner0", "video_available"))

	l.Record("tuner0", "video_available", false)
	assert.Equal(t, int64(2), l.Generation("tuner0", "video_available"))

	// Other pairs are untouched
	assert.Equal(t, int64(0), l.Generation("tuner0", "track_selected"))
	assert.Equal(t, int64(0), l.Generation("tuner1", "video_available"))
}

func TestLog_Latest(t *testing.T) {
	l := New()

	_, ok := l.Latest("cam0", "focus_state")
	assert.False(t, ok, "no value before first record")

	l.Record("cam0", "focus_state", "scanning")
	l.Record("cam0", "focus_state", "locked")

	v, ok := l.Latest("cam0", "focus_state")
	require.True(t, ok)
	assert.Equal(t, "locked", v)
}

func TestLog_Events_AppendOrderAndSeq(t *testing.T) {
	l := New()

	l.Record("a", "k", 1)
	l.Record("b", "k", 2)
	l.Record("a", "k", 3)

	events := l.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Subject)
	assert.Equal(t, "b", events[1].Subject)
	assert.Equal(t, "a", events[2].Subject)

	// Seq values strictly increase in append order
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Less(t, events[1].Seq, events[2].Seq)
}

func TestLog_Events_ReturnsCopy(t *testing.T) {
	l := New()
	l.Record("a", "k", 1)

	events := l.Events()
	events[0].Subject = "mutated"

	assert.Equal(t, "a", l.Events()[0].Subject, "caller mutation must not leak into the log")
}

func TestLog_UnicodeKeyNormalization(t *testing.T) {
	l := New()

	// "é" composed (U+00E9) vs decomposed (U+0065 U+0301) must share
	// one generation counter.
	l.Record("café", "ready", true)
	l.Record("café", "ready", true)

	assert.Equal(t, int64(2), l.Generation("café", "ready"))
	assert.Equal(t, int64(2), l.Generation("café", "ready"))
}

func TestLog_ConcurrentRecord(t *testing.T) {
	l := New()
	const goroutines = 50
	const recordsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			subject := fmt.Sprintf("subject-%d", id%5)
			for j := 0; j < recordsPerGoroutine; j++ {
				l.Record(subject, "tick", j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, goroutines*recordsPerGoroutine, l.Len())

	var total int64
	for i := 0; i < 5; i++ {
		total += l.Generation(fmt.Sprintf("subject-%d", i), "tick")
	}
	assert.Equal(t, int64(goroutines*recordsPerGoroutine), total,
		"generation counts should account for every record")
}

func TestLog_SharedClock(t *testing.T) {
	clock := NewClock()
	l1 := NewWithClock(clock)
	l2 := NewWithClock(clock)

	e1 := l1.Record("a", "k", nil)
	e2 := l2.Record("b", "k", nil)

	assert.Less(t, e1.Seq, e2.Seq, "shared clock keeps seqs comparable across logs")
}

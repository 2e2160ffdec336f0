package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSource_CountAndWake(t *testing.T) {
	t.Parallel()
	src := &tickSource{}
	assert.Zero(t, src.Count())

	ch, unsubscribe := src.subscribe()
	defer unsubscribe()

	src.Tick()
	src.Tick()
	src.Tick()

	// Wake-ups coalesce; the counter does not.
	assert.EqualValues(t, 3, src.Count())
	select {
	case <-ch:
	default:
		t.Fatal("expected a pending wake-up")
	}
	select {
	case <-ch:
		t.Fatal("wake-ups should have coalesced")
	default:
	}
}

func TestTickSource_UnsubscribeStopsWakeups(t *testing.T) {
	t.Parallel()
	src := &tickSource{}
	ch, unsubscribe := src.subscribe()
	unsubscribe()

	src.Tick()
	select {
	case <-ch:
		t.Fatal("unsubscribed channel must not receive wake-ups")
	default:
	}
	assert.EqualValues(t, 1, src.Count())
}

func TestTickSource_WallClockDriver(t *testing.T) {
	t.Parallel()
	src := &tickSource{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go src.runWallClock(ctx, 1000)

	deadline := time.Now().Add(5 * time.Second)
	for src.Count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.GreaterOrEqual(t, src.Count(), uint64(3))
}

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_RunsAllJobsInOrder(t *testing.T) {
	m := NewManager(Dependencies{Logger: zerolog.Nop()})

	var order []string
	m.Add("incidents", func(context.Context) error { order = append(order, "incidents"); return nil })
	m.Add("corrections", func(context.Context) error { order = append(order, "corrections"); return nil })

	require.NoError(t, m.RunOnce(context.Background()))
	assert.Equal(t, []string{"incidents", "corrections"}, order)
	assert.Equal(t, int64(1), m.Runs())
}

func TestRunOnce_FailureDoesNotStopLaterJobs(t *testing.T) {
	m := NewManager(Dependencies{Logger: zerolog.Nop()})
	boom := errors.New("db locked")

	ran := false
	m.Add("first", func(context.Context) error { return boom })
	m.Add("second", func(context.Context) error { ran = true; return nil })

	err := m.RunOnce(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
	assert.True(t, ran)
}

func TestStart_FlushesPeriodicallyAndOnStop(t *testing.T) {
	m := NewManager(Dependencies{Interval: 10 * time.Millisecond, Logger: zerolog.Nop()})

	var calls atomic.Int32
	m.Add("count", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	before := calls.Load()
	cancel()
	m.Wait()

	assert.Greater(t, calls.Load(), before, "a final flush runs on stop")
	assert.GreaterOrEqual(t, m.GetLastWriteDuration(), time.Duration(0))
}

func TestNewManager_DefaultInterval(t *testing.T) {
	m := NewManager(Dependencies{})
	assert.Equal(t, 2*time.Second, m.deps.Interval)
}

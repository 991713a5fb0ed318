package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTick_RunsOnFollowingTick(t *testing.T) {
	s := New()
	calls := 0
	s.NextTick(func() { calls++ })

	assert.Equal(t, 0, calls, "must not run inline")

	s.Tick(0)
	assert.Equal(t, 1, calls)

	s.Tick(time.Second)
	assert.Equal(t, 1, calls, "must run only once")
}

func TestNextTick_ScheduledDuringTickWaits(t *testing.T) {
	s := New()
	var order []string

	s.NextTick(func() {
		order = append(order, "first")
		s.NextTick(func() { order = append(order, "second") })
	})

	s.Tick(0)
	assert.Equal(t, []string{"first"}, order)

	s.Tick(0)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOnce_WaitsForDelay(t *testing.T) {
	s := New()
	calls := 0
	s.Once(100*time.Millisecond, func() { calls++ })

	s.Tick(50 * time.Millisecond)
	assert.Equal(t, 0, calls)

	s.Tick(50 * time.Millisecond)
	assert.Equal(t, 1, calls)

	s.Tick(time.Second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Pending())
}

func TestRepeat_BoundedCount(t *testing.T) {
	s := New()
	calls := 0
	timer := s.Repeat(time.Second, 3, func() { calls++ })

	for i := 0; i < 10; i++ {
		s.Tick(time.Second)
	}

	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, timer.Remaining())
	assert.Equal(t, 0, s.Pending())
}

func TestRepeat_CatchesUpWithinOneTick(t *testing.T) {
	s := New()
	calls := 0
	s.Repeat(time.Second, 10, func() { calls++ })

	s.Tick(4 * time.Second)

	assert.Equal(t, 4, calls)
}

func TestRepeat_ZeroCountNeverRuns(t *testing.T) {
	s := New()
	calls := 0
	s.Repeat(time.Second, 0, func() { calls++ })

	s.Tick(time.Minute)

	assert.Equal(t, 0, calls)
}

func TestTimer_Stop(t *testing.T) {
	s := New()
	calls := 0
	var timer *Timer
	timer = s.Repeat(time.Second, 5, func() {
		calls++
		if calls == 2 {
			timer.Stop()
		}
	})

	for i := 0; i < 5; i++ {
		s.Tick(time.Second)
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, s.Pending())
}

func TestTick_TimersRunInDueOrder(t *testing.T) {
	s := New()
	var order []int

	s.Once(300*time.Millisecond, func() { order = append(order, 3) })
	s.Once(100*time.Millisecond, func() { order = append(order, 1) })
	s.Once(200*time.Millisecond, func() { order = append(order, 2) })
	s.NextTick(func() { order = append(order, 0) })

	s.Tick(time.Second)

	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestTick_TimerScheduledDuringTickWaits(t *testing.T) {
	s := New()
	calls := 0

	s.Once(0, func() {
		s.Once(0, func() { calls++ })
	})

	s.Tick(0)
	assert.Equal(t, 0, calls)

	s.Tick(0)
	assert.Equal(t, 1, calls)
}

func TestNow_Advances(t *testing.T) {
	s := New()
	s.Tick(time.Second)
	s.Tick(500 * time.Millisecond)

	assert.Equal(t, 1500*time.Millisecond, s.Now())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{})
	s.NextTick(func() { close(ran) })

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond, nil) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("next-tick callback never ran")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ExecutesWorkOnLoop(t *testing.T) {
	s := New()
	work := make(chan func())
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), 0, work) }()

	work <- func() { s.Tick(time.Second) }
	var now time.Duration
	work <- func() { now = s.Now() }
	close(work)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after work closed")
	}
	assert.Equal(t, time.Second, now)
}

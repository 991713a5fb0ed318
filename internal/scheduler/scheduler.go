// Package scheduler runs deferred callbacks against a tick-driven clock.
//
// All callbacks run serially on whichever goroutine calls Tick. Anything
// scheduled while a tick is in progress runs on a later tick, never
// re-entrantly inside the current one.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Timer is a handle on a scheduled callback.
type Timer struct {
	at        time.Duration
	interval  time.Duration
	remaining int
	fn        func()
	seq       uint64
	stopped   bool
	index     int
}

// Stop prevents any further runs of the callback.
func (t *Timer) Stop() {
	t.stopped = true
}

// Remaining returns how many runs are left.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Scheduler owns a virtual clock advanced by Tick.
type Scheduler struct {
	mu       sync.Mutex
	now      time.Duration
	seq      uint64
	timers   timerHeap
	nextTick []func()
}

// New creates a Scheduler at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the virtual time elapsed since the scheduler was created.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// NextTick runs fn at the start of the next tick.
func (s *Scheduler) NextTick(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTick = append(s.nextTick, fn)
}

// Once runs fn once after delay.
func (s *Scheduler) Once(delay time.Duration, fn func()) *Timer {
	return s.Repeat(delay, 1, fn)
}

// Repeat runs fn every interval, count times. The first run happens one
// interval from now.
func (s *Scheduler) Repeat(interval time.Duration, count int, fn func()) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &Timer{
		at:        s.now + interval,
		interval:  interval,
		remaining: count,
		fn:        fn,
		seq:       s.seq,
	}
	if count > 0 {
		heap.Push(&s.timers, t)
	}
	return t
}

// Pending returns the number of queued next-tick callbacks and live timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.nextTick)
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Tick advances the clock by dt and runs everything that became due: first
// the callbacks queued with NextTick, then timers in due order.
func (s *Scheduler) Tick(dt time.Duration) {
	s.mu.Lock()
	s.now += dt
	now := s.now
	lastSeq := s.seq
	queued := s.nextTick
	s.nextTick = nil
	s.mu.Unlock()

	for _, fn := range queued {
		fn()
	}

	for {
		t := s.popDue(now, lastSeq)
		if t == nil {
			return
		}
		t.fn()
	}
}

// popDue removes the earliest timer due at or before now that existed when
// the tick started, and re-arms it if it has runs left.
func (s *Scheduler) popDue(now time.Duration, lastSeq uint64) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deferred []*Timer
	defer func() {
		for _, t := range deferred {
			heap.Push(&s.timers, t)
		}
	}()

	for s.timers.Len() > 0 {
		t := s.timers[0]
		if t.at > now {
			return nil
		}
		heap.Pop(&s.timers)
		if t.stopped {
			continue
		}
		if t.seq > lastSeq {
			deferred = append(deferred, t)
			continue
		}

		t.remaining--
		if t.remaining > 0 {
			t.at += t.interval
			deferred = append(deferred, t)
		}
		return t
	}
	return nil
}

// Run drives the scheduler until ctx is done or work is closed. Functions
// received on work run on the same goroutine as the ticks, so callers can
// funnel external events through it. A period of zero disables the wall
// clock and leaves time to explicit Tick calls made from work.
func (s *Scheduler) Run(ctx context.Context, period time.Duration, work <-chan func()) error {
	var tick <-chan time.Time
	if period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn, ok := <-work:
			if !ok {
				return nil
			}
			fn()
		case now := <-tick:
			s.Tick(now.Sub(last))
			last = now
		}
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at == h[j].at {
		return h[i].seq < h[j].seq
	}
	return h[i].at < h[j].at
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

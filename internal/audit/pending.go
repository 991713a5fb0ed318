package audit

import "sync"

// pending holds rows waiting for the next flush. A batch that failed to write
// goes back in front of rows recorded since, so rows reach the table in the
// order they were recorded. With a positive limit the oldest rows are dropped
// once the buffer grows past it.
type pending[T any] struct {
	mu      sync.Mutex
	rows    []T
	limit   int
	dropped int
}

func newPending[T any](limit int) *pending[T] {
	return &pending[T]{limit: limit}
}

func (p *pending[T]) add(row T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, row)
	p.trim()
}

// take empties the buffer and returns its rows, or nil when there are none.
func (p *pending[T]) take() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rows) == 0 {
		return nil
	}
	rows := p.rows
	p.rows = nil
	return rows
}

// restore puts a failed batch back ahead of anything added since take. It
// returns how many rows the limit forced out.
func (p *pending[T]) restore(batch []T) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(batch, p.rows...)
	return p.trim()
}

func (p *pending[T]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

// droppedRows reports the total number of rows lost to the limit.
func (p *pending[T]) droppedRows() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *pending[T]) trim() int {
	if p.limit <= 0 || len(p.rows) <= p.limit {
		return 0
	}
	n := len(p.rows) - p.limit
	p.rows = append([]T(nil), p.rows[n:]...)
	p.dropped += n
	return n
}

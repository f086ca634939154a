package orchestration

import (
	"context"
	"errors"
	"sync"
)

// ErrTooManyDone is returned by [PlaybackQueue.Done] when it is called more
// times than units were retrieved.
var ErrTooManyDone = errors.New("playback queue: done called more times than units retrieved")

// PlaybackQueue is an unbounded FIFO hand-off between the segmenter and the
// narrator. It tracks every unit from Put until it is marked Done so callers
// can wait for the narration to drain, not just for the queue to empty.
type PlaybackQueue struct {
	mu    sync.Mutex
	units []Unit
	// pending counts units that were put and not yet marked done or
	// discarded.
	pending int
	// inFlight counts units handed out by Get that are not yet done.
	inFlight int

	updateSignal chan struct{}
	// idle is closed whenever pending drops to zero and replaced when the
	// next unit is put.
	idle chan struct{}
}

func NewPlaybackQueue() *PlaybackQueue {
	idle := make(chan struct{})
	close(idle)
	return &PlaybackQueue{
		updateSignal: make(chan struct{}, 1),
		idle:         idle,
	}
}

// Put appends unit to the queue. It never blocks.
func (q *PlaybackQueue) Put(unit Unit) {
	q.mu.Lock()
	q.units = append(q.units, unit)
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()
	q.signalUpdate()
}

// Get removes and returns the oldest unit, waiting until one is available or
// ctx is done.
func (q *PlaybackQueue) Get(ctx context.Context) (Unit, error) {
	for {
		q.mu.Lock()
		if len(q.units) > 0 {
			unit := q.units[0]
			q.units[0] = Unit{}
			q.units = q.units[1:]
			q.inFlight++
			remaining := len(q.units)
			q.mu.Unlock()
			if remaining > 0 {
				q.signalUpdate()
			}
			return unit, nil
		}
		q.mu.Unlock()

		select {
		case <-q.updateSignal:
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		}
	}
}

// Done marks one unit returned by Get as fully processed.
func (q *PlaybackQueue) Done() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == 0 {
		return ErrTooManyDone
	}
	q.inFlight--
	q.release(1)
	return nil
}

// Discard drops every unit that has not been retrieved yet and accounts for
// them as done. Units already handed out by Get still need Done.
func (q *PlaybackQueue) Discard() []Unit {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := q.units
	q.units = nil
	q.release(len(discarded))
	return discarded
}

// Abandon is Discard for when the consumer has stopped: units handed out by
// Get are accounted for as well, nobody is left to mark them done.
func (q *PlaybackQueue) Abandon() []Unit {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := q.units
	q.units = nil
	q.release(len(discarded) + q.inFlight)
	q.inFlight = 0
	return discarded
}

// Join blocks until every unit put so far is done or discarded, or ctx is
// done.
func (q *PlaybackQueue) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of units waiting to be retrieved.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// Pending returns the number of units that were put and are not yet done.
func (q *PlaybackQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// release must be called with mu held.
func (q *PlaybackQueue) release(n int) {
	if n <= 0 || q.pending == 0 {
		return
	}
	q.pending -= n
	if q.pending <= 0 {
		q.pending = 0
		close(q.idle)
	}
}

func (q *PlaybackQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}

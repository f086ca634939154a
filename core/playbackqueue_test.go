package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlaybackQueuePreservesOrder(t *testing.T) {
	queue := NewPlaybackQueue()
	for i := range 5 {
		queue.Put(Unit{Seq: i})
	}

	for i := range 5 {
		unit, err := queue.Get(context.Background())
		if err != nil {
			t.Fatalf("expected unit %d, got error %v", i, err)
		}
		if unit.Seq != i {
			t.Fatalf("expected unit %d, got %d", i, unit.Seq)
		}
	}
}

func TestPlaybackQueueGetWaitsForPut(t *testing.T) {
	queue := NewPlaybackQueue()

	got := make(chan Unit, 1)
	go func() {
		unit, err := queue.Get(context.Background())
		if err == nil {
			got <- unit
		}
	}()

	select {
	case <-got:
		t.Fatalf("expected get to block on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	queue.Put(Unit{Seq: 7, Text: "late"})
	select {
	case unit := <-got:
		if unit.Text != "late" {
			t.Fatalf("expected unit %q, got %q", "late", unit.Text)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected get to return after put")
	}
}

func TestPlaybackQueueGetReturnsOnCancel(t *testing.T) {
	queue := NewPlaybackQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := queue.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlaybackQueueJoinWaitsForDone(t *testing.T) {
	queue := NewPlaybackQueue()
	if err := queue.Join(context.Background()); err != nil {
		t.Fatalf("expected join on an empty queue to return, got %v", err)
	}

	queue.Put(Unit{Seq: 0})
	if _, err := queue.Get(context.Background()); err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected empty queue after get, got %d", queue.Len())
	}

	joined := make(chan error, 1)
	go func() { joined <- queue.Join(context.Background()) }()

	select {
	case <-joined:
		t.Fatalf("expected join to wait for the retrieved unit to be done")
	case <-time.After(20 * time.Millisecond):
	}

	if err := queue.Done(); err != nil {
		t.Fatalf("unexpected done error: %v", err)
	}
	select {
	case err := <-joined:
		if err != nil {
			t.Fatalf("expected join to succeed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected join to return after done")
	}
}

func TestPlaybackQueueJoinReturnsOnCancel(t *testing.T) {
	queue := NewPlaybackQueue()
	queue.Put(Unit{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := queue.Join(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected unit to remain pending, got %d", queue.Pending())
	}
}

func TestPlaybackQueueDoneWithoutGet(t *testing.T) {
	queue := NewPlaybackQueue()
	queue.Put(Unit{})

	if err := queue.Done(); !errors.Is(err, ErrTooManyDone) {
		t.Fatalf("expected ErrTooManyDone, got %v", err)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected pending count to be unchanged, got %d", queue.Pending())
	}
}

func TestPlaybackQueueDiscardAccountsForUnretrievedUnits(t *testing.T) {
	queue := NewPlaybackQueue()
	for i := range 3 {
		queue.Put(Unit{Seq: i})
	}
	if _, err := queue.Get(context.Background()); err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}

	discarded := queue.Discard()
	if len(discarded) != 2 || discarded[0].Seq != 1 || discarded[1].Seq != 2 {
		t.Fatalf("expected units 1 and 2 to be discarded, got %+v", discarded)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected the in-flight unit to stay pending, got %d", queue.Pending())
	}

	if err := queue.Done(); err != nil {
		t.Fatalf("unexpected done error: %v", err)
	}
	if err := queue.Join(context.Background()); err != nil {
		t.Fatalf("expected drained queue, got %v", err)
	}
}

func TestPlaybackQueueReusableAfterDrain(t *testing.T) {
	queue := NewPlaybackQueue()
	queue.Put(Unit{Seq: 0})
	_, _ = queue.Get(context.Background())
	_ = queue.Done()

	queue.Put(Unit{Seq: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := queue.Join(ctx); err == nil {
		t.Fatalf("expected join to wait for the new unit")
	}
}

func TestPlaybackQueueAbandonReleasesInFlightUnits(t *testing.T) {
	queue := NewPlaybackQueue()
	for i := range 3 {
		queue.Put(Unit{Seq: i})
	}
	if _, err := queue.Get(context.Background()); err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}

	if discarded := queue.Abandon(); len(discarded) != 2 {
		t.Fatalf("expected two queued units abandoned, got %d", len(discarded))
	}
	if queue.Pending() != 0 {
		t.Fatalf("expected nothing pending after abandon, got %d", queue.Pending())
	}
	if err := queue.Join(context.Background()); err != nil {
		t.Fatalf("expected drained queue, got %v", err)
	}
	if err := queue.Done(); !errors.Is(err, ErrTooManyDone) {
		t.Fatalf("expected ErrTooManyDone for an abandoned unit, got %v", err)
	}
}

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-narrator/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrSessionAborted is returned by [StreamSession.Run] when the session was
	// aborted or its context was cancelled before the narration drained.
	ErrSessionAborted = errors.New("stream session aborted")
	// ErrSessionUsed is returned when Run is called on a session that already
	// ran.
	ErrSessionUsed = errors.New("stream session already used")

	errNarratorStopped = errors.New("narrator stopped before the queue drained")
)

var _ llms.StreamHandler = (*StreamSession)(nil)

// StreamSession is one round trip of a user turn: it streams the response,
// splits it into units and narrates them while the rest of the response is
// still arriving. The session ends once every unit has been narrated.
type StreamSession struct {
	id string

	narrator  *Narrator
	segmenter *Segmenter
	queue     *PlaybackQueue

	text       strings.Builder
	finishOnce sync.Once
	streamErr  error

	onFragment func(string)

	started atomic.Bool
	cancel  atomic.Pointer[context.CancelFunc]
	aborted atomic.Bool

	done chan struct{}
	err  error
}

// NewStreamSession creates a session narrated by narrator. A nil narrator
// drains units without narrating them.
func NewStreamSession(narrator *Narrator, opts ...SegmenterOption) *StreamSession {
	if narrator == nil {
		narrator = NewNarrator()
	}

	queue := NewPlaybackQueue()
	return &StreamSession{
		id:        uuid.NewString(),
		narrator:  narrator,
		queue:     queue,
		segmenter: NewSegmenter(queue, opts...),
		done:      make(chan struct{}),
	}
}

func (s *StreamSession) ID() string { return s.id }

// Done is closed after Run has returned.
func (s *StreamSession) Done() <-chan struct{} { return s.done }

// Err returns the result of Run once Done is closed.
func (s *StreamSession) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Text returns everything received from the stream so far. It must not be
// called concurrently with Run.
func (s *StreamSession) Text() string { return s.text.String() }

// Abort stops the session: the unit being narrated is abandoned and queued
// units are discarded.
func (s *StreamSession) Abort() {
	s.aborted.Store(true)
	if cancel := s.cancel.Load(); cancel != nil {
		(*cancel)()
	}
}

func (s *StreamSession) OnFragment(text string) {
	s.text.WriteString(text)
	if s.onFragment != nil {
		s.onFragment(text)
	}
	s.segmenter.Accept(text)
}

func (s *StreamSession) OnDone() {
	s.finish()
}

// OnError keeps the buffered text, it is narrated as the final unit.
func (s *StreamSession) OnError(err error) {
	s.streamErr = err
	s.finish()
}

func (s *StreamSession) finish() {
	s.finishOnce.Do(s.segmenter.Finish)
}

// Run streams the response and blocks until it has been fully narrated. It
// returns the response text together with the stream error, if any.
func (s *StreamSession) Run(ctx context.Context, stream llms.Stream) (string, error) {
	if !s.started.CompareAndSwap(false, true) {
		return "", ErrSessionUsed
	}
	defer close(s.done)

	if s.aborted.Load() {
		s.err = ErrSessionAborted
		return "", s.err
	}

	ctx, span := tracer.Start(ctx, "stream session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel.Store(&cancel)
	if s.aborted.Load() {
		cancel()
	}

	narratorCtx, stopNarrator := context.WithCancel(ctx)
	narratorDone := make(chan error, 1)
	go func() {
		narratorDone <- panicSafeNamedWorker("narrator", func(ctx context.Context) error {
			return s.narrator.Run(ctx, s.queue)
		})(narratorCtx)
	}()

	// Stream errors reach the session through OnError.
	_ = llms.Forward(ctx, stream, s)

	// The narrator may stop before the queue drains, nothing would be left
	// to mark the remaining units done.
	drained := make(chan error, 1)
	go func() { drained <- s.queue.Join(narratorCtx) }()

	var joinErr, narratorErr error
	select {
	case joinErr = <-drained:
		stopNarrator()
		narratorErr = <-narratorDone
	case narratorErr = <-narratorDone:
		stopNarrator()
		joinErr = <-drained
		if ctx.Err() == nil {
			joinErr = nil
			if narratorErr == nil {
				narratorErr = errNarratorStopped
			}
			logger.Error("narrator stopped before the response was narrated", "session", s.id, "error", narratorErr)
		}
	}
	// The narrator has stopped, anything still queued or in flight is
	// abandoned.
	if discarded := s.queue.Abandon(); len(discarded) > 0 {
		span.SetAttributes(attribute.Int("session.discarded_units", len(discarded)))
	}

	var err error
	if joinErr != nil {
		err = errors.Join(ErrSessionAborted, context.Cause(ctx))
	} else if s.streamErr != nil {
		err = fmt.Errorf("completion stream failed: %w", s.streamErr)
	}
	if narratorErr != nil {
		err = errors.Join(err, narratorErr)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("session.units", s.segmenter.Emitted()))

	s.err = err
	return s.text.String(), err
}

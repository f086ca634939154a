package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultCharacterDelay = 50 * time.Millisecond

// Narrator voices and types units, one at a time.
//
// Within a unit the audio (synthesis followed by playback) and the typed
// display run concurrently and both finish before the next unit starts. Media
// failures are logged and never stop the narration of the following units.
type Narrator struct {
	synthesizer SpeechSynthesizer
	audioOutput AudioOutput
	display     TextDisplay

	characterDelay      time.Duration
	typeDuringSynthesis bool

	logger         *slog.Logger
	onUnitNarrated func(Unit, error)

	// narrateMu keeps two units from being narrated at the same time.
	narrateMu sync.Mutex
}

func NewNarrator(opts ...NarratorOption) *Narrator {
	n := &Narrator{
		characterDelay: DefaultCharacterDelay,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run narrates units from queue until ctx is done. Every retrieved unit is
// marked done, also when its narration was cut short by cancellation.
func (n *Narrator) Run(ctx context.Context, queue *PlaybackQueue) error {
	for ctx.Err() == nil {
		unit, err := queue.Get(ctx)
		if err != nil {
			return nil
		}

		n.narrateRecovered(ctx, unit)
		if err := queue.Done(); err != nil {
			return fmt.Errorf("failed to mark unit %d as narrated: %w", unit.Seq, err)
		}
	}
	return nil
}

// narrateRecovered keeps a panicking unit from stopping the loop, the unit
// still has to be marked done.
func (n *Narrator) narrateRecovered(ctx context.Context, unit Unit) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.logger.Error("narration panicked", "unit", unit.Seq, "panic", recovered)
		}
	}()
	_ = n.Narrate(ctx, unit)
}

// Narrate synthesizes, plays and types unit, returning once both the audio and
// the display are finished. The returned error reports media failures, they
// are already logged.
func (n *Narrator) Narrate(ctx context.Context, unit Unit) error {
	n.narrateMu.Lock()
	defer n.narrateMu.Unlock()

	ctx, span := tracer.Start(ctx, "narrate unit", trace.WithAttributes(
		attribute.Int("unit.seq", unit.Seq),
		attribute.Int("unit.length", len(unit.Text)),
	))
	defer span.End()

	synthesized := make(chan struct{})
	var audioErr, displayErr error

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		audioErr = panicSafeNamedWorker("audio", func(ctx context.Context) error {
			return n.speak(ctx, unit, synthesized)
		})(ctx)
	}()
	go func() {
		defer wg.Done()
		displayErr = panicSafeNamedWorker("display", func(ctx context.Context) error {
			if !n.typeDuringSynthesis {
				select {
				case <-synthesized:
				case <-ctx.Done():
					return nil
				}
			}
			return n.typeOut(ctx, unit)
		})(ctx)
	}()
	wg.Wait()

	err := errors.Join(audioErr, displayErr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Warn("failed to narrate unit", "unit", unit.Seq, "error", err)
	}
	n.notifyUnitNarrated(unit, err)

	return err
}

func (n *Narrator) notifyUnitNarrated(unit Unit, err error) {
	if n.onUnitNarrated == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			n.logger.Error("unit narrated callback panicked", "unit", unit.Seq, "panic", recovered)
		}
	}()
	n.onUnitNarrated(unit, err)
}

// speak closes synthesized once synthesis has resolved, whatever the outcome.
func (n *Narrator) speak(ctx context.Context, unit Unit, synthesized chan struct{}) error {
	var once sync.Once
	markSynthesized := func() { once.Do(func() { close(synthesized) }) }
	defer markSynthesized()

	if n.synthesizer == nil {
		return nil
	}

	synthCtx, span := tracer.Start(ctx, "synthesize speech")
	audio, err := n.synthesizer.Synthesize(synthCtx, unit.Text)
	if err != nil {
		err = fmt.Errorf("failed to synthesize speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return err
	}
	span.SetAttributes(attribute.Int("speech.bytes", len(audio)))
	span.End()
	markSynthesized()

	if n.audioOutput == nil || len(audio) == 0 {
		return nil
	}
	if err := n.audioOutput.Play(ctx, audio); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to play speech: %w", err)
	}

	return nil
}

func (n *Narrator) typeOut(ctx context.Context, unit Unit) error {
	if n.display == nil {
		return nil
	}

	for _, r := range unit.Text {
		if err := n.display.ShowCharacter(r); err != nil {
			return fmt.Errorf("failed to display text: %w", err)
		}
		if err := sleepContext(ctx, n.characterDelay); err != nil {
			return nil
		}
	}

	if display, ok := n.display.(TextDisplayWithUnits); ok {
		display.UnitEnded(unit)
	}

	return nil
}

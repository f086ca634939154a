package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-narrator/core/llms"
)

type recordingSink struct {
	units []Unit
}

func (s *recordingSink) Put(unit Unit) { s.units = append(s.units, unit) }

func (s *recordingSink) texts() []string {
	texts := make([]string, 0, len(s.units))
	for _, unit := range s.units {
		texts = append(texts, unit.Text)
	}
	return texts
}

type fakeContentChunk struct {
	content string
}

func (c fakeContentChunk) FinishReason() *string { return nil }
func (c fakeContentChunk) Content() string       { return c.content }

// fakeStream yields its fragments and then err, if set. When gate is set, the
// fragment at gateAt is only yielded once gate is closed.
type fakeStream struct {
	fragments []string
	err       error

	gateAt int
	gate   chan struct{}
}

func (s *fakeStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for i, fragment := range s.fragments {
			if s.gate != nil && i == s.gateAt {
				select {
				case <-s.gate:
				case <-ctx.Done():
					return
				}
			}
			if !yield(fakeContentChunk{content: fragment}, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	options []llms.StreamingPromptOptions

	streams []*fakeStream
}

func (l *fakeLLM) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt.ApplyToStreaming(&options)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.options = append(l.options, options)

	if len(l.streams) == 0 {
		return &fakeStream{}
	}
	stream := l.streams[0]
	l.streams = l.streams[1:]
	return stream
}

var errSynthesis = errors.New("synthesis failed")

// fakeSynthesizer returns the text as audio, failing for texts listed in
// failFor.
type fakeSynthesizer struct {
	mu      sync.Mutex
	texts   []string
	failFor map[string]bool
	block   chan struct{}
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failFor[text] {
		return nil, errSynthesis
	}
	return []byte(text), nil
}

func (s *fakeSynthesizer) synthesized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// fakeAudioOutput records played audio and tracks how many plays overlap.
type fakeAudioOutput struct {
	mu     sync.Mutex
	played []string

	active     atomic.Int32
	maxOverlap atomic.Int32
	block      chan struct{}
	started    chan struct{}
}

func (o *fakeAudioOutput) Play(ctx context.Context, audio []byte) error {
	active := o.active.Add(1)
	defer o.active.Add(-1)
	for {
		current := o.maxOverlap.Load()
		if active <= current || o.maxOverlap.CompareAndSwap(current, active) {
			break
		}
	}

	if o.started != nil {
		select {
		case o.started <- struct{}{}:
		default:
		}
	}
	if o.block != nil {
		select {
		case <-o.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.mu.Lock()
	o.played = append(o.played, string(audio))
	o.mu.Unlock()
	return nil
}

func (o *fakeAudioOutput) playedAudio() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.played...)
}

type recordingDisplay struct {
	mu    sync.Mutex
	text  strings.Builder
	units []int
}

func (d *recordingDisplay) ShowCharacter(r rune) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text.WriteRune(r)
	return nil
}

func (d *recordingDisplay) UnitEnded(unit Unit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.units = append(d.units, unit.Seq)
}

func (d *recordingDisplay) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text.String()
}

func (d *recordingDisplay) endedUnits() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.units...)
}

type fakeImageGenerator struct {
	mu      sync.Mutex
	prompts []string
	url     string
	err     error
}

func (g *fakeImageGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.url, g.err
}

func (g *fakeImageGenerator) generated() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

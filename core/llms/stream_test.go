package llms

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type testChunk struct{ content string }

func (c testChunk) FinishReason() *string { return nil }
func (c testChunk) Content() string       { return c.content }

type finishChunk struct{}

func (finishChunk) FinishReason() *string {
	reason := "stop"
	return &reason
}

type testStream struct {
	chunks []StreamChunk
	err    error
}

func (s testStream) Chunks(context.Context) func(func(StreamChunk, error) bool) {
	return func(yield func(StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type recordingHandler struct {
	fragments []string
	done      int
	errs      []error
}

func (h *recordingHandler) OnFragment(text string) { h.fragments = append(h.fragments, text) }
func (h *recordingHandler) OnDone()                { h.done++ }
func (h *recordingHandler) OnError(err error)      { h.errs = append(h.errs, err) }

func TestForwardPassesFragmentsInOrder(t *testing.T) {
	handler := &recordingHandler{}
	stream := testStream{chunks: []StreamChunk{
		testChunk{"Once "}, testChunk{""}, testChunk{"upon"}, finishChunk{},
	}}

	if err := Forward(context.Background(), stream, handler); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if !slices.Equal(handler.fragments, []string{"Once ", "upon"}) {
		t.Fatalf("expected non-empty fragments in order, got %q", handler.fragments)
	}
	if handler.done != 1 || len(handler.errs) != 0 {
		t.Fatalf("expected a single done, got done=%d errors=%v", handler.done, handler.errs)
	}
}

func TestForwardReportsStreamError(t *testing.T) {
	handler := &recordingHandler{}
	boom := errors.New("boom")

	err := Forward(context.Background(), testStream{chunks: []StreamChunk{testChunk{"partial"}}, err: boom}, handler)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if handler.done != 0 {
		t.Fatalf("expected no done after an error")
	}
	if len(handler.errs) != 1 || !errors.Is(handler.errs[0], boom) {
		t.Fatalf("expected one OnError with the stream error, got %v", handler.errs)
	}
	if !slices.Equal(handler.fragments, []string{"partial"}) {
		t.Fatalf("expected fragments before the error to be delivered, got %q", handler.fragments)
	}
}

func TestForwardReportsCancellation(t *testing.T) {
	handler := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Forward(ctx, testStream{}, handler)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if handler.done != 0 || len(handler.errs) != 1 {
		t.Fatalf("expected cancellation reported through OnError, got done=%d errors=%v", handler.done, handler.errs)
	}
}

func TestStreamingPromptOptions(t *testing.T) {
	options := StreamingPromptOptions{}
	turns := []Turn{{Role: TurnRoleUser, Content: "hi"}}
	for _, opt := range []StreamingPromptOption{WithInstructions("be brief"), WithTurns(turns...)} {
		opt.ApplyToStreaming(&options)
	}

	if options.Instructions != "be brief" {
		t.Fatalf("expected instructions %q, got %q", "be brief", options.Instructions)
	}
	if !slices.Equal(options.Turns, turns) {
		t.Fatalf("expected turns %+v, got %+v", turns, options.Turns)
	}
}

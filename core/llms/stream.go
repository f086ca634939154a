package llms

import "context"

type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	// FinishReason is set on the chunk that ends the response.
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamHandler receives the events of a completion stream in order. Exactly
// one of OnDone and OnError is called, last.
type StreamHandler interface {
	OnFragment(text string)
	OnDone()
	OnError(err error)
}

// Forward drives stream to completion, passing every content fragment to
// handler. It returns the first error the stream reported.
func Forward(ctx context.Context, stream Stream, handler StreamHandler) error {
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			handler.OnError(err)
			return err
		}

		if content, ok := chunk.(StreamContentChunk); ok {
			if text := content.Content(); text != "" {
				handler.OnFragment(text)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		handler.OnError(err)
		return err
	}

	handler.OnDone()
	return nil
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/koscakluka/ema-narrator/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
)

func PromptWithStream(
	_ context.Context,
	client *goopenai.Client,
	model string,
	prompt string,
	opts ...llms.StreamingPromptOption,
) *Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt.ApplyToStreaming(&options)
	}

	messages := toOpenAIMessages(options.Instructions, options.Turns)
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	return &Stream{
		client:   client,
		model:    model,
		messages: messages,
	}
}

// Stream is a single streamed chat completion. Every call to Chunks sends a
// new request.
type Stream struct {
	client *goopenai.Client

	model    string
	messages []goopenai.ChatCompletionMessage
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream chat completion")
		defer span.End()

		stream, err := s.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
			Model:    s.model,
			Messages: s.messages,
			Stream:   true,
		})
		if err != nil {
			err = fmt.Errorf("error creating chat completion stream: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			} else if err != nil {
				err = fmt.Errorf("error receiving chat completion chunk: %w", err)
				span.RecordError(err)
				yield(nil, err)
				return
			}

			for _, choice := range response.Choices {
				var finishReason *string
				if choice.FinishReason != "" {
					reason := string(choice.FinishReason)
					finishReason = &reason
				}

				if choice.Delta.Content == "" && finishReason == nil {
					continue
				}
				if !yield(StreamContentChunk{finishReason: finishReason, content: choice.Delta.Content}, nil) {
					return
				}
			}
		}
	}
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string { return s.finishReason }
func (s StreamContentChunk) Content() string       { return s.content }

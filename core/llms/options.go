package llms

type StreamingPromptOptions struct {
	Instructions string
	Turns        []Turn
}

type StreamingPromptOption interface {
	ApplyToStreaming(*StreamingPromptOptions)
}

type streamingPromptOption func(*StreamingPromptOptions)

func (f streamingPromptOption) ApplyToStreaming(o *StreamingPromptOptions) { f(o) }

// WithInstructions sets the system prompt.
// Repeating this option will overwrite the previous system prompt.
func WithInstructions(instructions string) StreamingPromptOption {
	return streamingPromptOption(func(o *StreamingPromptOptions) {
		o.Instructions = instructions
	})
}

// WithTurns appends earlier turns of the conversation to the prompt context.
func WithTurns(turns ...Turn) StreamingPromptOption {
	return streamingPromptOption(func(o *StreamingPromptOptions) {
		o.Turns = append(o.Turns, turns...)
	})
}

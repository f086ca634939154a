package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-narrator/core/llms"
)

type OrchestratorOption func(*Orchestrator)

type LLMWithStream interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream
}

// WithStreamingLLM sets the completion stream source used for every turn.
func WithStreamingLLM(client LLMWithStream) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

// WithInstructions sets the system prompt sent with every turn.
func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) { o.instructions = instructions }
}

// WithNarrator sets the narrator that voices and types the responses. Without
// it responses are still streamed and recorded but not narrated.
func WithNarrator(narrator *Narrator) OrchestratorOption {
	return func(o *Orchestrator) {
		if narrator != nil {
			o.narrator = narrator
		}
	}
}

// WithSegmenterOptions configures the segmenter created for every turn.
func WithSegmenterOptions(opts ...SegmenterOption) OrchestratorOption {
	return func(o *Orchestrator) { o.segmenterOptions = append(o.segmenterOptions, opts...) }
}

// WithOrchestratorLogger sets the logger for failures outside narration, such
// as scene image generation.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WithSceneImages generates an image for every completed response and passes
// its locator to onImage. Generation happens in the background and never
// delays the next turn.
func WithSceneImages(generator ImageGenerator, onImage func(url string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.images = generator
		if onImage != nil {
			o.onImage = onImage
		}
	}
}

// WithResponseCallbacks registers callbacks for every fragment received from
// the completion stream and for the end of each response.
func WithResponseCallbacks(onResponse func(fragment string), onResponseEnd func()) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onResponse = onResponse
		o.onResponseEnd = onResponseEnd
	}
}

type SpeechSynthesizer interface {
	// Synthesize returns playable audio for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type AudioOutput interface {
	// Play blocks until audio has finished playing, or ctx is done.
	Play(ctx context.Context, audio []byte) error
}

type TextDisplay interface {
	ShowCharacter(r rune) error
}

// TextDisplayWithUnits is implemented by displays that want to know when a
// unit has been fully typed.
type TextDisplayWithUnits interface {
	TextDisplay
	UnitEnded(unit Unit)
}

type NarratorOption func(*Narrator)

func WithSpeechSynthesizer(synthesizer SpeechSynthesizer) NarratorOption {
	return func(n *Narrator) { n.synthesizer = synthesizer }
}

func WithAudioOutput(output AudioOutput) NarratorOption {
	return func(n *Narrator) { n.audioOutput = output }
}

func WithTextDisplay(display TextDisplay) NarratorOption {
	return func(n *Narrator) { n.display = display }
}

// WithCharacterDelay sets the pause after every typed character.
func WithCharacterDelay(delay time.Duration) NarratorOption {
	return func(n *Narrator) {
		if delay >= 0 {
			n.characterDelay = delay
		}
	}
}

// WithTypingDuringSynthesis starts typing a unit right away instead of
// waiting for its audio to be synthesized.
func WithTypingDuringSynthesis(enabled bool) NarratorOption {
	return func(n *Narrator) { n.typeDuringSynthesis = enabled }
}

func WithLogger(logger *slog.Logger) NarratorOption {
	return func(n *Narrator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithUnitNarratedCallback registers a callback invoked after every unit,
// with the joined media errors of that unit, if any.
func WithUnitNarratedCallback(callback func(unit Unit, err error)) NarratorOption {
	return func(n *Narrator) { n.onUnitNarrated = callback }
}

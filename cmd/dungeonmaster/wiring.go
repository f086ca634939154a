package main

import (
	"fmt"
	"log/slog"
	"os"

	orchestration "github.com/koscakluka/ema-narrator/core"
	"github.com/koscakluka/ema-narrator/core/audio"
	"github.com/koscakluka/ema-narrator/core/audio/miniaudio"
	"github.com/koscakluka/ema-narrator/core/audio/portaudio"
	imagesopenai "github.com/koscakluka/ema-narrator/core/images/openai"
	llmopenai "github.com/koscakluka/ema-narrator/core/llms/openai"
	"github.com/koscakluka/ema-narrator/core/texttospeech"
	"github.com/koscakluka/ema-narrator/core/texttospeech/deepgram"
	ttsopenai "github.com/koscakluka/ema-narrator/core/texttospeech/openai"
	"github.com/koscakluka/ema-narrator/internal/config"
)

const defaultPortaudioBufferSize = 1024

// closer releases resources acquired while wiring.
type closer func()

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func loadInstructions(cfg *config.Config) (string, error) {
	if cfg.Instructions == "" {
		return "", nil
	}
	data, err := os.ReadFile(cfg.Instructions)
	if err != nil {
		return "", fmt.Errorf("failed to read instructions: %w", err)
	}
	return string(data), nil
}

func newLLM(cfg *config.Config) (*llmopenai.Client, error) {
	apiKey, err := cfg.LLMAPIKey()
	if err != nil {
		return nil, err
	}

	var opts []llmopenai.ClientOption
	if baseURL := cfg.LLMBaseURL(); baseURL != "" {
		opts = append(opts, llmopenai.WithBaseURL(baseURL))
	}
	return llmopenai.NewClient(apiKey, cfg.LLM.Model, opts...), nil
}

// newSpeech builds the synthesizer together with the encoding of the audio it
// returns. A nil synthesizer means speech is disabled.
func newSpeech(cfg *config.Config) (orchestration.SpeechSynthesizer, audio.EncodingInfo, error) {
	if !cfg.Speech.Enabled {
		return nil, audio.EncodingInfo{}, nil
	}

	switch cfg.Speech.Provider {
	case config.ProviderDeepgram:
		encoding := audio.GetDefaultEncodingInfo()
		client, err := deepgram.NewTextToSpeechClient(
			deepgram.WithSpeechOptions(
				texttospeech.WithVoice(deepgramVoice(cfg.Speech.Voice)),
				texttospeech.WithEncodingInfo(encoding),
			),
		)
		if err != nil {
			return nil, audio.EncodingInfo{}, fmt.Errorf("failed to create deepgram speech client: %w", err)
		}
		return client, encoding, nil

	default:
		apiKey, err := config.OpenAIAPIKey()
		if err != nil {
			return nil, audio.EncodingInfo{}, err
		}
		client, err := ttsopenai.NewTextToSpeechClient(apiKey, ttsopenai.WithSpeechOptions(
			texttospeech.WithModel(cfg.Speech.Model),
			texttospeech.WithVoice(cfg.Speech.Voice),
			texttospeech.WithSpeed(cfg.Speech.Speed),
		))
		if err != nil {
			return nil, audio.EncodingInfo{}, fmt.Errorf("failed to create openai speech client: %w", err)
		}
		return client, client.EncodingInfo(), nil
	}
}

// deepgramVoice returns voice if it is an Aura voice, e.g. aura-asteria-en.
// Other voices, like the OpenAI default, fall back to the Deepgram default.
func deepgramVoice(voice string) string {
	if voice == "" || deepgram.IsAvailableVoice(voice) {
		return voice
	}
	slog.Warn("voice is not a deepgram voice, using the default", "voice", voice)
	return ""
}

func newAudioOutput(cfg *config.Config, encoding audio.EncodingInfo) (orchestration.AudioOutput, closer, error) {
	switch cfg.Audio.Backend {
	case config.AudioBackendNone:
		return nil, func() {}, nil

	case config.AudioBackendPortaudio:
		bufferSize := cfg.Audio.BufferSize
		if bufferSize <= 0 {
			bufferSize = defaultPortaudioBufferSize
		}
		client, err := portaudio.NewClient(bufferSize, encoding)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open portaudio output: %w", err)
		}
		return client, client.Close, nil

	default:
		client, err := miniaudio.NewClient(encoding)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open miniaudio output: %w", err)
		}
		return client, client.Close, nil
	}
}

func newImages(cfg *config.Config) (orchestration.ImageGenerator, error) {
	if !cfg.Images.Enabled {
		return nil, nil
	}
	apiKey, err := config.OpenAIAPIKey()
	if err != nil {
		return nil, err
	}
	return imagesopenai.NewClient(apiKey,
		imagesopenai.WithModel(cfg.Images.Model),
		imagesopenai.WithSize(cfg.Images.Size),
	), nil
}

// newNarrator wires speech and audio output according to cfg. Speech is
// optional: when the audio device cannot be opened the story is only typed.
func newNarrator(cfg *config.Config, display orchestration.TextDisplay, withSpeech bool) (*orchestration.Narrator, closer, error) {
	opts := []orchestration.NarratorOption{
		orchestration.WithTextDisplay(display),
		orchestration.WithCharacterDelay(cfg.Narration.CharacterDelay.Duration()),
		orchestration.WithTypingDuringSynthesis(cfg.Narration.TypeDuringSynthesis),
		orchestration.WithLogger(slog.Default()),
	}
	release := closer(func() {})

	if withSpeech {
		synthesizer, encoding, err := newSpeech(cfg)
		if err != nil {
			return nil, nil, err
		}
		if synthesizer != nil {
			output, closeOutput, err := newAudioOutput(cfg, encoding)
			if err != nil {
				slog.Warn("audio output unavailable, narrating text only", "error", err)
			} else if output != nil {
				opts = append(opts,
					orchestration.WithSpeechSynthesizer(synthesizer),
					orchestration.WithAudioOutput(output),
				)
				release = closeOutput
			}
		}
	}

	return orchestration.NewNarrator(opts...), release, nil
}

func newOrchestrator(cfg *config.Config, narrator *orchestration.Narrator, opts ...orchestration.OrchestratorOption) (*orchestration.Orchestrator, error) {
	llm, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}
	instructions, err := loadInstructions(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]orchestration.OrchestratorOption{
		orchestration.WithStreamingLLM(llm),
		orchestration.WithInstructions(instructions),
		orchestration.WithNarrator(narrator),
		orchestration.WithOrchestratorLogger(slog.Default()),
		orchestration.WithSegmenterOptions(orchestration.WithBoundary(cfg.Narration.Boundary)),
	}, opts...)
	return orchestration.NewOrchestrator(opts...), nil
}

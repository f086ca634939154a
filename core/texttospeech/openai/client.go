package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-narrator/core/audio"
	"github.com/koscakluka/ema-narrator/core/texttospeech"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultModel = "tts-1"
	DefaultVoice = "fable"
)

// TextToSpeechClient synthesizes speech with the OpenAI speech endpoint. The
// audio is requested as raw PCM so it can be played without decoding.
type TextToSpeechClient struct {
	client  *goopenai.Client
	config  goopenai.ClientConfig
	options texttospeech.SpeechOptions
}

type ClientOption func(*TextToSpeechClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		if baseURL != "" {
			c.config.BaseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) {
		if client != nil {
			c.config.HTTPClient = client
		}
	}
}

func WithSpeechOptions(opts ...texttospeech.SpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	config := goopenai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	client := &TextToSpeechClient{
		config: config,
		options: texttospeech.SpeechOptions{
			Model:        DefaultModel,
			Voice:        DefaultVoice,
			Speed:        1,
			EncodingInfo: audio.OpenAISpeechEncoding(),
		},
	}
	for _, opt := range opts {
		opt(client)
	}

	if encoding := client.options.EncodingInfo; encoding != audio.OpenAISpeechEncoding() {
		return nil, fmt.Errorf("unsupported encoding %s at %dHz, openai speech is %s at %dHz",
			encoding.Format.Name(), encoding.SampleRate,
			audio.EncodingLinear16.Name(), audio.OpenAISpeechSampleRate)
	}

	client.client = goopenai.NewClientWithConfig(client.config)
	return client, nil
}

// Synthesize returns 24kHz mono linear16 PCM for text.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	response, err := c.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.options.Model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(c.options.Voice),
		ResponseFormat: goopenai.SpeechResponseFormatPcm,
		Speed:          c.options.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	defer response.Close()

	speech, err := io.ReadAll(response)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}

	return speech, nil
}

func (c *TextToSpeechClient) EncodingInfo() audio.EncodingInfo {
	return c.options.EncodingInfo
}

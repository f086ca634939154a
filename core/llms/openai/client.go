package openai

import (
	"context"
	"net/http"

	"github.com/koscakluka/ema-narrator/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultModel = "gpt-4-0125-preview"

// Client streams chat completions from OpenAI or any API compatible with
// its chat completions endpoint.
type Client struct {
	client *goopenai.Client
	model  string
}

type ClientOption func(*goopenai.ClientConfig)

// WithBaseURL points the client at an OpenAI compatible API, e.g.
// https://api.groq.com/openai/v1.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *goopenai.ClientConfig) {
		if baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *goopenai.ClientConfig) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	if model == "" {
		model = DefaultModel
	}

	config := goopenai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	for _, opt := range opts {
		opt(&config)
	}

	return &Client{
		client: goopenai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	return PromptWithStream(ctx, c.client, c.model, prompt, opts...)
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultModel = goopenai.CreateImageModelDallE3
	DefaultSize  = goopenai.CreateImageSize1024x1024
)

// maxPromptLength is the longest prompt dall-e-3 accepts, in characters.
const maxPromptLength = 4000

var ErrNoImage = errors.New("no image generated")

// Client generates scene images and returns their URLs.
type Client struct {
	client *goopenai.Client
	config goopenai.ClientConfig

	model string
	size  string
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.config.BaseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.config.HTTPClient = client
		}
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSize sets the image size, e.g. "1024x1024".
func WithSize(size string) ClientOption {
	return func(c *Client) {
		if size != "" {
			c.size = size
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	config := goopenai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	c := &Client{
		config: config,
		model:  DefaultModel,
		size:   DefaultSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = goopenai.NewClientWithConfig(c.config)
	return c
}

// Generate creates a single image for prompt and returns its URL. Prompts
// longer than the API accepts are truncated.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if runes := []rune(prompt); len(runes) > maxPromptLength {
		prompt = string(runes[:maxPromptLength])
	}

	response, err := c.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		Size:           c.size,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create image: %w", err)
	}

	if len(response.Data) == 0 || response.Data[0].URL == "" {
		return "", ErrNoImage
	}

	return response.Data[0].URL, nil
}

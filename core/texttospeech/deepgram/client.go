package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-narrator/core/audio"
	"github.com/koscakluka/ema-narrator/core/texttospeech"
)

const defaultBaseURL = "wss://api.deepgram.com"

// TextToSpeechClient synthesizes speech with Deepgram Aura voices over the
// streaming websocket API, one connection per synthesized text.
type TextToSpeechClient struct {
	apiKey  string
	baseURL *url.URL
	dialer  *websocket.Dialer

	voice   deepgramVoice
	options texttospeech.SpeechOptions
}

type ClientOption func(*TextToSpeechClient) error

// WithAPIKey sets the API key, by default it is read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) error {
		c.apiKey = apiKey
		return nil
	}
}

// WithBaseURL points the client at another websocket endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		c.baseURL = u
		return nil
	}
}

func WithSpeechOptions(opts ...texttospeech.SpeechOption) ClientOption {
	return func(c *TextToSpeechClient) error {
		for _, opt := range opts {
			opt(&c.options)
		}
		return nil
	}
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	baseURL, _ := url.Parse(defaultBaseURL)
	client := &TextToSpeechClient{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		options: texttospeech.SpeechOptions{
			Voice:        string(defaultVoice),
			EncodingInfo: audio.OpenAISpeechEncoding(),
		},
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	if !IsAvailableVoice(client.options.Voice) {
		return nil, fmt.Errorf("invalid voice: %s", client.options.Voice)
	}
	client.voice = deepgramVoice(client.options.Voice)

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

// Synthesize returns raw audio for text in the configured encoding.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	conn, err := c.connectWebsocket(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(sendTextMsg(text)); err != nil {
		return nil, fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}

	var speech []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("websocket read error: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			speech = append(speech, msg...)
		case websocket.TextMessage:
			var parsedMsg incomingMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
					logger.Debug("failed to close deepgram stream", "error", err)
				}
				return speech, nil
			case "Warning":
				logger.Warn("deepgram warning", "description", parsedMsg.Description)
			case "Error":
				return nil, fmt.Errorf("deepgram error: %s", parsedMsg.Description)
			}
		}
	}
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	encodingInfo := c.options.EncodingInfo

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")

	u := *c.baseURL
	u.Path = "/v1/speak"
	u.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type websocketMessage struct {
	Type string `json:"type"`
}

type incomingMessage struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

var (
	sendTextMsg = func(text string) struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} {
		return struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "Speak", Text: text}
	}
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-narrator/core/audio"
)

// Client plays narration through the default PortAudio output stream.
// Audio is written in blocking mode, so Play returns once the last buffer has
// been handed to the device.
type Client struct {
	bufferSize   int
	stream       *portaudio.Stream
	encodingInfo audio.EncodingInfo

	out []int16
	mu  sync.Mutex
}

// NewClient opens the default output stream with bufferSize frames per
// buffer. A zero encodingInfo defaults to the OpenAI speech encoding.
func NewClient(bufferSize int, encodingInfo audio.EncodingInfo) (*Client, error) {
	if encodingInfo.IsZero() {
		encodingInfo = audio.OpenAISpeechEncoding()
	}
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported playback format: %s", encodingInfo.Format.Name())
	}
	if bufferSize <= 0 {
		bufferSize = encodingInfo.SampleRate / 10
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(encodingInfo.SampleRate), bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize:   bufferSize,
		stream:       stream,
		encodingInfo: encodingInfo,
		out:          out,
	}, nil
}

// Play writes audio to the device buffer by buffer, checking ctx in between.
// The last partial buffer is padded with silence.
func (c *Client) Play(ctx context.Context, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bufferBytes := c.bufferSize * c.encodingInfo.BytesPerFrame()
	for start := 0; start < len(audio); start += bufferBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+bufferBytes, len(audio))
		chunk := audio[start:end]
		if len(chunk) < bufferBytes {
			padded := make([]byte, bufferBytes)
			copy(padded, chunk)
			chunk = padded
		}

		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode audio: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}

	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

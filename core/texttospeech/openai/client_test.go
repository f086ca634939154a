package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-narrator/core/audio"
	"github.com/koscakluka/ema-narrator/core/texttospeech"
	goopenai "github.com/sashabaranov/go-openai"
)

func TestSynthesizeRequestsRawPCM(t *testing.T) {
	requests := make(chan goopenai.CreateSpeechRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var request goopenai.CreateSpeechRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests <- request

		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient("test-key",
		WithBaseURL(server.URL+"/v1"),
		WithSpeechOptions(texttospeech.WithVoice("onyx")),
	)
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	speech, err := client.Synthesize(context.Background(), "Beware the mimic.")
	if err != nil {
		t.Fatalf("unexpected synthesize error: %v", err)
	}
	if string(speech) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("expected response body as audio, got %v", speech)
	}

	request := <-requests
	if request.Input != "Beware the mimic." {
		t.Fatalf("expected input text, got %q", request.Input)
	}
	if request.Model != DefaultModel {
		t.Fatalf("expected model %q, got %q", DefaultModel, request.Model)
	}
	if request.Voice != "onyx" {
		t.Fatalf("expected voice %q, got %q", "onyx", request.Voice)
	}
	if request.ResponseFormat != goopenai.SpeechResponseFormatPcm {
		t.Fatalf("expected pcm response format, got %q", request.ResponseFormat)
	}
}

func TestSynthesizeReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient("test-key", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected an error for a rejected request")
	}
}

func TestNewTextToSpeechClientRejectsOtherEncodings(t *testing.T) {
	_, err := NewTextToSpeechClient("test-key", WithSpeechOptions(
		texttospeech.WithEncodingInfo(audio.GetDefaultEncodingInfo()),
	))
	if err == nil {
		t.Fatalf("expected an error for an encoding the endpoint cannot produce")
	}
}

func TestEncodingInfoDescribesOpenAISpeech(t *testing.T) {
	client, err := NewTextToSpeechClient("test-key")
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	if got := client.EncodingInfo(); got != audio.OpenAISpeechEncoding() {
		t.Fatalf("expected openai speech encoding, got %+v", got)
	}
}

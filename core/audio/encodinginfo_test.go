package audio

import "testing"

func TestOpenAISpeechEncoding(t *testing.T) {
	encoding := OpenAISpeechEncoding()
	if encoding.SampleRate != 24000 {
		t.Fatalf("expected 24kHz, got %d", encoding.SampleRate)
	}
	if encoding.BytesPerFrame() != 2 {
		t.Fatalf("expected 16-bit samples, got %d bytes", encoding.BytesPerFrame())
	}
	if encoding.IsZero() {
		t.Fatalf("expected a complete encoding")
	}
}

func TestBytesPerFrame(t *testing.T) {
	cases := map[encodingFormat]int{
		EncodingLinear16:       2,
		EncodingMulaw:          1,
		EncodingALaw:           1,
		encodingFormat("opus"): 0,
	}
	for format, want := range cases {
		if got := (EncodingInfo{SampleRate: 8000, Format: format}).BytesPerFrame(); got != want {
			t.Fatalf("expected %d bytes per frame for %s, got %d", want, format.Name(), got)
		}
	}
}

func TestEncodingInfoIsZero(t *testing.T) {
	if !(EncodingInfo{}).IsZero() {
		t.Fatalf("expected empty encoding to be zero")
	}
	if (GetDefaultEncodingInfo()).IsZero() {
		t.Fatalf("expected default encoding to be complete")
	}
}

package audio

// Encodings as named by the speech providers.
const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
)

const (
	DefaultSampleRate = 16000

	// OpenAISpeechSampleRate is the sample rate of raw PCM returned by the
	// OpenAI speech endpoint.
	OpenAISpeechSampleRate = 24000
)

// EncodingInfo describes raw mono audio.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

// OpenAISpeechEncoding describes the audio returned by the OpenAI speech
// endpoint with the pcm response format: 24kHz, 16-bit, mono.
func OpenAISpeechEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: OpenAISpeechSampleRate, Format: EncodingLinear16}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

// BytesPerFrame is the size of one mono sample, or 0 for unknown formats.
func (e EncodingInfo) BytesPerFrame() int {
	return max(e.Format.ByteSize(), 0)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

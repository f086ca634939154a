package texttospeech

import "github.com/koscakluka/ema-narrator/core/audio"

type SpeechOptions struct {
	// Model is the provider specific speech model.
	Model string
	// Voice is the provider specific voice name.
	Voice string
	// Speed is the playback speed the speech is generated at, 1.0 is normal
	// speed. Not supported by all clients.
	Speed float64

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithModel(model string) SpeechOption {
	return func(o *SpeechOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithVoice(voice string) SpeechOption {
	return func(o *SpeechOptions) {
		if voice != "" {
			o.Voice = voice
		}
	}
}

func WithSpeed(speed float64) SpeechOption {
	return func(o *SpeechOptions) {
		if speed > 0 {
			o.Speed = speed
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

package tts

import "context"

// Client defines the interface for text-to-speech providers. Implementations
// must return audio in the telephony wire format (8 kHz mono μ-law) so the
// frame scheduler can transmit it without a resample step.
type Client interface {
	// Synthesize converts text to speech and returns the full audio payload.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SynthesizeStream converts text to speech and streams audio chunks as
	// they are produced. The channel is closed when synthesis ends.
	SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error)
}

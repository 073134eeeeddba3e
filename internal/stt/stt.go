package stt

import "context"

// Recognizer is a streaming speech-to-text engine fed with decoded audio.
// Accept pushes linear PCM16 for one call incrementally; Partial exposes the
// recognizer's in-progress transcript for the current utterance, and Final
// its confirmed transcript once the engine has closed the utterance.
type Recognizer interface {
	// Accept sends one chunk of 16-bit little-endian PCM audio.
	Accept(ctx context.Context, pcm []byte) error

	// Partial returns the in-progress transcript, possibly empty.
	Partial() string

	// Final returns the confirmed transcript for the last completed
	// utterance, or "" if the engine has not produced one. Reading it
	// clears the buffered result and the current partial.
	Final() string

	// Close shuts down the recognizer connection.
	Close() error
}

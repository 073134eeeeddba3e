package audio

import (
	"context"
	"fmt"
	"time"
)

// Twilio Media Streams wire format: one frame is 20 ms of 8 kHz μ-law audio.
const (
	SampleRate    = 8000
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 160 // SampleRate * FrameDuration, in μ-law bytes
)

// FrameWriter transmits one wire frame. Implementations must be safe to call
// from the playback goroutine; they are not required to be safe for
// concurrent use by multiple schedulers.
type FrameWriter interface {
	WriteFrame(payload []byte) error
}

// Frames slices a μ-law byte stream into FrameSize chunks, padding the final
// partial chunk with μ-law silence. The input slice is not retained.
func Frames(payload []byte) [][]byte {
	if len(payload) == 0 {
		return nil
	}
	n := (len(payload) + FrameSize - 1) / FrameSize
	frames := make([][]byte, 0, n)
	for off := 0; off < len(payload); off += FrameSize {
		frame := make([]byte, FrameSize)
		copied := copy(frame, payload[off:])
		for i := copied; i < FrameSize; i++ {
			frame[i] = SilenceByte
		}
		frames = append(frames, frame)
	}
	return frames
}

// Scheduler paces outbound audio at the wire's real-time rate: one frame per
// FrameDuration tick. One scheduler serves one call.
type Scheduler struct {
	w        FrameWriter
	interval time.Duration
}

func NewScheduler(w FrameWriter) *Scheduler {
	return &Scheduler{w: w, interval: FrameDuration}
}

// Play chunks the μ-law stream and transmits it in real time. It returns the
// number of frames written. A write failure aborts the remainder of the
// utterance; the caller decides whether that is fatal (for a call session it
// is not, the candidate simply did not hear the utterance). Cancellation of
// ctx also aborts playback.
func (s *Scheduler) Play(ctx context.Context, payload []byte) (int, error) {
	frames := Frames(payload)
	if len(frames) == 0 {
		return 0, nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i, frame := range frames {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		case <-ticker.C:
		}
		if err := s.w.WriteFrame(frame); err != nil {
			return i, fmt.Errorf("write frame %d/%d: %w", i+1, len(frames), err)
		}
	}
	return len(frames), nil
}

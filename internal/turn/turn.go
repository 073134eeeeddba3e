// Package turn decides when a caller has finished speaking, based on how long
// the recognizer's partial transcript has stopped changing. It is a pure
// observer: feed it one partial per inbound audio frame and it fires once per
// utterance, independent of any transport.
package turn

// DefaultSilenceFrames is the number of consecutive unchanged partials that
// ends a turn: 50 frames of 20 ms audio, roughly one second of silence.
const DefaultSilenceFrames = 50

// Detector tracks the convergence of a single call's partial transcripts.
// It is owned by one call's processing flow and is not safe for concurrent use.
type Detector struct {
	threshold int

	lastPartial string
	idleFrames  int
}

// NewDetector returns a detector that fires after threshold consecutive
// unchanged observations. A threshold below 1 falls back to
// DefaultSilenceFrames.
func NewDetector(threshold int) *Detector {
	if threshold < 1 {
		threshold = DefaultSilenceFrames
	}
	return &Detector{threshold: threshold}
}

// Observe records one partial-transcript observation and reports whether the
// utterance is complete. A changed partial resets the idle count; an unchanged
// one increments it. The detector fires only when the idle count reaches the
// threshold and the last partial is non-empty, so pure silence before any
// speech never produces a turn. Firing resets the detector for the next
// utterance.
func (d *Detector) Observe(partial string) (text string, done bool) {
	if partial != "" && partial != d.lastPartial {
		d.lastPartial = partial
		d.idleFrames = 0
		return "", false
	}

	d.idleFrames++
	if d.idleFrames >= d.threshold && d.lastPartial != "" {
		text = d.lastPartial
		d.Reset()
		return text, true
	}
	return "", false
}

// Pending returns the partial accumulated for the current utterance, if any.
func (d *Detector) Pending() string {
	return d.lastPartial
}

// Reset clears the detector state, discarding any pending partial.
func (d *Detector) Reset() {
	d.lastPartial = ""
	d.idleFrames = 0
}

package turn

import "testing"

func TestDetectorFiresAfterThreshold(t *testing.T) {
	d := NewDetector(3)

	sequence := []string{"a", "ab", "ab", "ab", "ab"}
	var fired []string
	for _, p := range sequence {
		if text, done := d.Observe(p); done {
			fired = append(fired, text)
		}
	}

	if len(fired) != 1 {
		t.Fatalf("detector fired %d times, want exactly once", len(fired))
	}
	if fired[0] != "ab" {
		t.Errorf("detector reported %q, want %q", fired[0], "ab")
	}
}

func TestDetectorFiresOnExactObservation(t *testing.T) {
	d := NewDetector(3)

	// Threshold 3 means the fourth "ab" (third unchanged repeat) fires.
	inputs := []string{"a", "ab", "ab", "ab", "ab"}
	for i, p := range inputs[:len(inputs)-1] {
		if _, done := d.Observe(p); done {
			t.Fatalf("detector fired early at observation %d", i)
		}
	}
	if text, done := d.Observe(inputs[len(inputs)-1]); !done || text != "ab" {
		t.Fatalf("Observe(final) = (%q, %v), want (\"ab\", true)", text, done)
	}
}

func TestDetectorNeverFiresOnSilence(t *testing.T) {
	d := NewDetector(3)
	for i := 0; i < 100; i++ {
		if text, done := d.Observe(""); done {
			t.Fatalf("detector fired on empty partial stream at frame %d with %q", i, text)
		}
	}
}

func TestDetectorResetsOnChange(t *testing.T) {
	d := NewDetector(3)

	d.Observe("hello")
	d.Observe("hello")
	d.Observe("hello")
	// Change just before the threshold would have been met.
	if _, done := d.Observe("hello world"); done {
		t.Fatal("changed partial must not complete the turn")
	}

	// The counter restarted: two repeats are not enough.
	d.Observe("hello world")
	if _, done := d.Observe("hello world"); done {
		t.Fatal("detector fired before threshold after reset")
	}
	if text, done := d.Observe("hello world"); !done || text != "hello world" {
		t.Fatalf("Observe = (%q, %v), want (\"hello world\", true)", text, done)
	}
}

func TestDetectorResetAfterFiring(t *testing.T) {
	d := NewDetector(2)

	d.Observe("yes")
	d.Observe("yes")
	if _, done := d.Observe("yes"); !done {
		t.Fatal("detector should have fired")
	}

	// Trailing silence after the turn must not re-fire with stale text.
	for i := 0; i < 10; i++ {
		if text, done := d.Observe(""); done {
			t.Fatalf("detector re-fired with %q after reset", text)
		}
	}

	// A fresh utterance works as usual.
	d.Observe("next answer")
	d.Observe("next answer")
	if text, done := d.Observe("next answer"); !done || text != "next answer" {
		t.Fatalf("Observe = (%q, %v), want (\"next answer\", true)", text, done)
	}
}

func TestDetectorPending(t *testing.T) {
	d := NewDetector(5)
	if d.Pending() != "" {
		t.Errorf("Pending() = %q before any speech", d.Pending())
	}
	d.Observe("partial text")
	if d.Pending() != "partial text" {
		t.Errorf("Pending() = %q, want %q", d.Pending(), "partial text")
	}
	d.Reset()
	if d.Pending() != "" {
		t.Errorf("Pending() = %q after Reset", d.Pending())
	}
}

func TestNewDetectorDefaultThreshold(t *testing.T) {
	d := NewDetector(0)
	if d.threshold != DefaultSilenceFrames {
		t.Errorf("threshold = %d, want default %d", d.threshold, DefaultSilenceFrames)
	}
}

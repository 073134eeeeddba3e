package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// ActiveSessions is the number of interview calls currently in flight.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "prescreen_active_sessions",
		Help: "Number of interview call sessions currently active",
	})

	// MediaFramesReceived counts inbound wire frames across all calls.
	MediaFramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prescreen_media_frames_received_total",
		Help: "Total inbound media frames across all calls",
	})

	// TurnsFinalized counts completed utterances handed to sessions.
	TurnsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prescreen_turns_finalized_total",
		Help: "Total completed utterances detected",
	})

	// SpeechFailures counts outbound utterances aborted by transport faults.
	SpeechFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prescreen_speech_failures_total",
		Help: "Outbound utterances aborted by transport write failures",
	})

	// EvaluationFailures counts answer evaluations that degraded to the
	// neutral score.
	EvaluationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prescreen_evaluation_failures_total",
		Help: "Answer evaluations that fell back to the neutral score",
	})

	// InterviewsFinalized counts finished interviews by decision.
	InterviewsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prescreen_interviews_finalized_total",
		Help: "Finished interviews by decision",
	}, []string{"decision"})
)

func init() {
	registry.MustRegister(
		ActiveSessions,
		MediaFramesReceived,
		TurnsFinalized,
		SpeechFailures,
		EvaluationFailures,
		InterviewsFinalized,
	)
}

// Handler serves the metrics endpoint for the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

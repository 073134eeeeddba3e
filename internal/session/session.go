package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/interview"
	"github.com/rsahay/prescreen/internal/metrics"
	"github.com/rsahay/prescreen/internal/store"
)

// Stage is where a call currently sits in the interview flow.
type Stage int

const (
	StageGreeting Stage = iota
	StageConsentPending
	StageAsking
	StageFinalizing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageGreeting:
		return "greeting"
	case StageConsentPending:
		return "consent_pending"
	case StageAsking:
		return "asking"
	case StageFinalizing:
		return "finalizing"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome is the terminal result of a session, surfaced through the report.
type Outcome string

const (
	OutcomeSelected Outcome = "SELECT"
	OutcomeRejected Outcome = "REJECT"
	OutcomeNotReady Outcome = "NOT_READY"
	OutcomeTimedOut Outcome = "TIMED_OUT"
)

// DecisionThreshold is the average score at or above which a candidate is
// selected.
const DecisionThreshold = 6.0

// Spoken flow text.
const (
	greetingText = "Namaste! I am your automated HR interviewer for this screening call."
	consentText  = "Before we begin: are you in a calm and quiet place, and ready to start the interview? Please say yes or no."
	notReadyText = "No problem. We will reach out to reschedule the interview. Goodbye!"
	timeoutText  = "We did not receive any response. Ending the interview. Goodbye!"
)

// Speaker voices one utterance to the caller. A Speak error means the
// candidate did not hear the text; sessions treat it as non-fatal.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ReportSink persists the finalized interview report.
type ReportSink interface {
	InsertReport(ctx context.Context, r store.Report) error
}

// Config carries one call's identity and collaborators.
type Config struct {
	CallID    string
	Candidate *store.Candidate
	Job       *store.Job

	Questions interview.QuestionSource
	Evaluator interview.Evaluator
	Readiness interview.ReadinessClassifier
	Speaker   Speaker
	Reports   ReportSink
	Events    *eventlog.Logger
	Logger    *log.Logger
}

// Session is one call's interview state machine. All methods must be invoked
// from the call's own processing flow: state is single-writer and carries no
// locks. The registry guarantees no two flows share a call.
type Session struct {
	callID   string
	streamID string
	cfg      Config

	stage     Stage
	questions []string
	results   []store.QAResult
	qIndex    int
	outcome   Outcome
	reported  bool
}

// New creates a session for one call. The question strategy in cfg.Questions
// is fixed for the session's lifetime.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Session{
		callID: cfg.CallID,
		cfg:    cfg,
		stage:  StageGreeting,
	}
}

func (s *Session) CallID() string   { return s.callID }
func (s *Session) StreamID() string { return s.streamID }
func (s *Session) Stage() Stage     { return s.stage }
func (s *Session) Outcome() Outcome { return s.outcome }
func (s *Session) Done() bool       { return s.stage == StageDone }

// SetStreamID records the media stream identifier once media begins.
func (s *Session) SetStreamID(id string) { s.streamID = id }

// Begin runs the greeting: load the question list, speak the introduction and
// the consent question, then wait for the candidate's first utterance.
// Question generation failure degrades to the fixed standard list rather than
// aborting the call.
func (s *Session) Begin(ctx context.Context) {
	if s.stage != StageGreeting {
		return
	}

	profile := interview.Profile{}
	if s.cfg.Candidate != nil {
		profile.CandidateName = s.cfg.Candidate.Name
		profile.ResumeText = s.cfg.Candidate.ResumeText
	}
	if s.cfg.Job != nil {
		profile.JobTitle = s.cfg.Job.Title
		profile.JobDescription = s.cfg.Job.Description
	}

	questions, err := s.cfg.Questions.Questions(ctx, profile)
	if err != nil || len(questions) == 0 {
		s.cfg.Logger.Printf("session: question generation failed for call %s, using standard list: %v", s.callID, err)
		questions, _ = interview.NewFixedSource().Questions(ctx, profile)
	}
	s.questions = questions

	s.cfg.Events.LogAsync(s.callID, eventlog.EventCallStarted, map[string]any{
		"questions": len(s.questions),
	})

	s.speak(ctx, greetingText)
	s.speak(ctx, consentText)
	s.stage = StageConsentPending
}

// HandleUtterance advances the state machine with one complete utterance.
// Utterances arriving after DONE are ignored.
func (s *Session) HandleUtterance(ctx context.Context, text string) {
	switch s.stage {
	case StageConsentPending:
		s.handleConsent(ctx, text)
	case StageAsking:
		s.handleAnswer(ctx, text)
	default:
		// Greeting expects no input; DONE and FINALIZING ignore events.
	}
}

// HandleTurnTimeout applies each state's failure handling when a turn expired
// without a complete utterance: consent fails closed, a question records an
// unanswered result and the interview moves on.
func (s *Session) HandleTurnTimeout(ctx context.Context) {
	s.cfg.Events.LogAsync(s.callID, eventlog.EventTurnTimeout, map[string]any{
		"stage": s.stage.String(),
	})

	switch s.stage {
	case StageConsentPending:
		s.cfg.Logger.Printf("session: consent turn timed out for call %s", s.callID)
		s.declineConsent(ctx, "no response to the readiness question")
	case StageAsking:
		s.cfg.Logger.Printf("session: answer turn timed out for call %s (question %d)", s.callID, s.qIndex+1)
		s.recordAnswer(ctx, "", interview.Score{Value: interview.NeutralScore, Reason: "No answer received."})
		s.advance(ctx)
	}
}

// HandleInactivity ends a session that stopped receiving media entirely.
func (s *Session) HandleInactivity(ctx context.Context) {
	if s.stage == StageDone {
		return
	}
	s.cfg.Logger.Printf("session: call %s inactive, ending interview", s.callID)
	s.cfg.Events.LogAsync(s.callID, eventlog.EventCallTimedOut, nil)

	s.speak(ctx, timeoutText)
	s.conclude(ctx, OutcomeTimedOut, "No media received before the inactivity window elapsed.")
}

func (s *Session) handleConsent(ctx context.Context, text string) {
	ready, err := s.cfg.Readiness.ClassifyReadiness(ctx, text)
	if err != nil {
		// Fail closed: an interview never starts on a failed or ambiguous
		// readiness judgment.
		s.cfg.Logger.Printf("session: readiness classification failed for call %s: %v", s.callID, err)
		ready = false
	}

	if !ready {
		s.declineConsent(ctx, fmt.Sprintf("candidate was not ready: %q", text))
		return
	}

	s.cfg.Events.LogAsync(s.callID, eventlog.EventConsentReady, map[string]any{"answer": text})
	s.stage = StageAsking
	s.qIndex = 0
	s.askCurrent(ctx)
}

func (s *Session) declineConsent(ctx context.Context, why string) {
	s.cfg.Events.LogAsync(s.callID, eventlog.EventConsentDeclined, map[string]any{"reason": why})
	s.speak(ctx, notReadyText)
	s.conclude(ctx, OutcomeNotReady, "Candidate not ready; reschedule requested.")
}

func (s *Session) handleAnswer(ctx context.Context, text string) {
	question := s.questions[s.qIndex]
	s.cfg.Logger.Printf("session: call %s answer to question %d: %s", s.callID, s.qIndex+1, text)

	score, err := s.cfg.Evaluator.Evaluate(ctx, question, text)
	if err != nil {
		// Scoring must never block progress; degrade to the neutral score.
		s.cfg.Logger.Printf("session: evaluation failed for call %s question %d: %v", s.callID, s.qIndex+1, err)
		metrics.EvaluationFailures.Inc()
		score = interview.Score{Value: interview.NeutralScore, Reason: "Evaluation unavailable."}
	}

	s.recordAnswer(ctx, text, score)
	s.advance(ctx)
}

func (s *Session) recordAnswer(ctx context.Context, answer string, score interview.Score) {
	question := s.questions[s.qIndex]
	s.results = append(s.results, store.QAResult{
		Question: question,
		Answer:   answer,
		Score:    score.Value,
		Reason:   score.Reason,
	})
	s.cfg.Events.LogAsync(s.callID, eventlog.EventAnswerScored, map[string]any{
		"question": s.qIndex + 1,
		"score":    score.Value,
	})
	s.qIndex++
}

func (s *Session) advance(ctx context.Context) {
	if s.qIndex < len(s.questions) {
		s.askCurrent(ctx)
		return
	}
	s.finalize(ctx)
}

func (s *Session) askCurrent(ctx context.Context) {
	s.cfg.Events.LogAsync(s.callID, eventlog.EventQuestionAsked, map[string]any{
		"question": s.qIndex + 1,
	})
	s.speak(ctx, fmt.Sprintf("Question %d: %s", s.qIndex+1, s.questions[s.qIndex]))
}

// finalize computes the decision from the accumulated scores, persists the
// report and speaks the result.
func (s *Session) finalize(ctx context.Context) {
	s.stage = StageFinalizing

	var sum float64
	for _, r := range s.results {
		sum += float64(r.Score)
	}
	var avg float64
	if len(s.results) > 0 {
		avg = sum / float64(len(s.results))
	}

	outcome := OutcomeRejected
	if avg >= DecisionThreshold {
		outcome = OutcomeSelected
	}
	reason := fmt.Sprintf("Average score = %.1f, threshold=%.0f.", avg, DecisionThreshold)

	s.cfg.Logger.Printf("session: call %s finalized: %s (%s)", s.callID, outcome, reason)
	s.speak(ctx, fmt.Sprintf("The interview is complete. Decision: %s. Thank you for your time. Goodbye!", outcome))
	s.concludeWithAverage(ctx, outcome, reason, avg)
}

// conclude records the terminal outcome, persists the report once, and moves
// the session to DONE. Calling it again is a no-op.
func (s *Session) conclude(ctx context.Context, outcome Outcome, reason string) {
	s.concludeWithAverage(ctx, outcome, reason, s.average())
}

func (s *Session) concludeWithAverage(ctx context.Context, outcome Outcome, reason string, avg float64) {
	if s.reported {
		return
	}
	s.reported = true
	s.outcome = outcome
	s.stage = StageDone

	report := store.Report{
		CallID:       s.callID,
		Results:      s.results,
		AverageScore: avg,
		Decision:     string(outcome),
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if s.cfg.Candidate != nil {
		report.CandidateID = s.cfg.Candidate.ID
	}
	if s.cfg.Job != nil {
		report.JobID = s.cfg.Job.ID
	}

	if s.cfg.Reports != nil {
		if err := s.cfg.Reports.InsertReport(ctx, report); err != nil {
			s.cfg.Logger.Printf("session: failed to persist report for call %s: %v", s.callID, err)
		}
	}

	metrics.InterviewsFinalized.WithLabelValues(string(outcome)).Inc()
	s.cfg.Events.LogAsync(s.callID, eventlog.EventFinalized, map[string]any{
		"decision": string(outcome),
		"reason":   reason,
	})
}

func (s *Session) average() float64 {
	if len(s.results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range s.results {
		sum += float64(r.Score)
	}
	return sum / float64(len(s.results))
}

// Results returns the question/answer/score list collected so far.
func (s *Session) Results() []store.QAResult { return s.results }

// speak voices text to the caller. Failures are logged and counted but never
// abort the interview: the candidate simply did not hear that utterance.
func (s *Session) speak(ctx context.Context, text string) {
	if s.cfg.Speaker == nil {
		return
	}
	if err := s.cfg.Speaker.Speak(ctx, text); err != nil {
		s.cfg.Logger.Printf("session: speech failed for call %s: %v", s.callID, err)
		metrics.SpeechFailures.Inc()
		s.cfg.Events.LogAsync(s.callID, eventlog.EventSpeechFailed, map[string]any{
			"error": err.Error(),
		})
	}
}

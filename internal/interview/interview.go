package interview

import "context"

// NeutralScore is recorded when evaluation fails or produces nothing usable,
// so one flaky scoring call never blocks or skews an interview.
const NeutralScore = 5

// QuestionCount is the fixed number of questions asked per interview.
const QuestionCount = 10

// Score is one answer's evaluation.
type Score struct {
	Value  int    `json:"score"`  // 1-10
	Reason string `json:"reason"` // rationale text
}

// Profile is the external context an interview is conducted against.
type Profile struct {
	CandidateName  string
	ResumeText     string
	JobTitle       string
	JobDescription string
}

// QuestionSource produces the ordered question list for one call. The source
// is selected once at session construction; sessions never re-check which
// strategy is in play.
type QuestionSource interface {
	Questions(ctx context.Context, p Profile) ([]string, error)
}

// Evaluator scores one question/answer pair.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) (Score, error)
}

// ReadinessClassifier judges whether a consent utterance means the candidate
// is ready to start. Callers must treat any error as "not ready" (fail
// closed): an interview never proceeds on an ambiguous or failed judgment.
type ReadinessClassifier interface {
	ClassifyReadiness(ctx context.Context, answer string) (bool, error)
}

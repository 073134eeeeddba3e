package interview

import "context"

// standardQuestions is the stock question list used when generation is
// disabled or fails. Order matters: sessions ask them verbatim.
var standardQuestions = []string{
	"Tell me about yourself.",
	"What are your key strengths?",
	"What is your biggest weakness?",
	"Describe a challenging project you worked on.",
	"Why are you interested in this role?",
	"How do you handle tight deadlines?",
	"Give an example of teamwork.",
	"Where do you see yourself in 5 years?",
	"How do you keep your skills updated?",
	"Do you have any questions for us?",
}

// FixedSource serves the standard question list regardless of profile.
type FixedSource struct{}

func NewFixedSource() *FixedSource {
	return &FixedSource{}
}

// Questions returns a copy of the standard list; callers may hold it for the
// call's lifetime without aliasing package state.
func (s *FixedSource) Questions(_ context.Context, _ Profile) ([]string, error) {
	out := make([]string, QuestionCount)
	copy(out, standardQuestions)
	return out, nil
}

package interview

import "fmt"

// systemPrompt frames every request to the model.
const systemPrompt = `You are an expert HR interviewer conducting automated phone interviews.`

// questionPrompt asks for the full question list in one shot: a mix drawn
// from the job description, the candidate profile, strengths and weaknesses.
func questionPrompt(p Profile) string {
	return fmt.Sprintf(`Generate %d unique interview questions for a candidate based on the following:
- 3 questions from the Job Description (JD)
- 3 questions from the candidate's profile
- 2 questions about strengths
- 2 questions about weaknesses

Job Description:
%s

Candidate Resume:
%s

Return the questions as a numbered list, one per line.`, QuestionCount, p.JobDescription, p.ResumeText)
}

// evaluationPrompt asks for a JSON verdict on one answer.
func evaluationPrompt(question, answer string) string {
	return fmt.Sprintf(`Evaluate the candidate's answer.
Question: %s
Answer: %s
Respond in JSON with fields: score (1-10), reason.`, question, answer)
}

// readinessPrompt asks for a strict YES/NO readiness judgment. Anything but a
// clear yes is treated as not ready by the caller.
func readinessPrompt(answer string) string {
	return fmt.Sprintf(`Given the following candidate response, determine if the candidate is ready to start the interview (i.e., they are in a calm and silent location and willing to proceed). Respond only with 'YES' or 'NO'.
Candidate: %s
Ready?`, answer)
}

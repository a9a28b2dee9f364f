package model

// SummaryContext describes what the summary is about.
type SummaryContext struct {
	QuestionID          int64  `json:"question_id"`
	QuestionText        string `json:"question_text"`
	SummaryInstructions string `json:"summary_instructions"`
}

// SummaryAnswer is one student answer handed to the summarizer.
type SummaryAnswer struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	AnswerText  string `json:"answer_text"`
	SubmittedAt string `json:"submitted_at"`
}

// SummaryRequest is the complete summarizer input.
type SummaryRequest struct {
	Context        SummaryContext  `json:"context"`
	StudentAnswers []SummaryAnswer `json:"student_answers"`
}

// SearchCandidate is a question the smart search may select.
type SearchCandidate struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

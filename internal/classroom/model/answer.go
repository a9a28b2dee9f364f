package model

import "time"

// Answer is the single answer one student holds for one question.
type Answer struct {
	ID         int64
	QuestionID int64
	StudentID  string
	Text       string
	Timestamp  time.Time
}

// NamedAnswer is an answer with the student's display name resolved.
type NamedAnswer struct {
	Answer
	StudentName string
}

// Student is a roster entry.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

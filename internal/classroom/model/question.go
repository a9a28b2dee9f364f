package model

import "time"

// MaxAnswerLength is the longest accepted answer, in characters.
const MaxAnswerLength = 200

// UnknownStudentName is shown for student ids the directory no longer knows.
const UnknownStudentName = "Unknown"

// Question is a prompt students answer under its access code.
type Question struct {
	ID         int64
	Title      string
	Text       string
	AccessCode string
	IsClosed   bool
	CreatedAt  time.Time
	CloseDate  *time.Time
}

// Status is the lifecycle state of a question.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Status reports the question's lifecycle state.
func (q *Question) Status() Status {
	if q.IsClosed {
		return StatusClosed
	}
	return StatusOpen
}

// StatusFilter selects questions by state when listing.
type StatusFilter string

const (
	FilterAll    StatusFilter = "all"
	FilterOpen   StatusFilter = "open"
	FilterClosed StatusFilter = "closed"
)

// ParseStatusFilter maps a query value onto a filter. Empty means all.
func ParseStatusFilter(raw string) (StatusFilter, bool) {
	switch StatusFilter(raw) {
	case "", FilterAll:
		return FilterAll, true
	case FilterOpen:
		return FilterOpen, true
	case FilterClosed:
		return FilterClosed, true
	}
	return "", false
}

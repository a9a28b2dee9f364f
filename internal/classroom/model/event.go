package model

import "time"

// QuestionEventType names a lifecycle transition.
type QuestionEventType string

const (
	QuestionEventOpened  QuestionEventType = "question.opened"
	QuestionEventClosed  QuestionEventType = "question.closed"
	QuestionEventDeleted QuestionEventType = "question.deleted"
)

// QuestionEvent is published after a lifecycle transition commits.
type QuestionEvent struct {
	EventType  QuestionEventType `json:"event_type"`
	QuestionID int64             `json:"question_id"`
	AccessCode string            `json:"access_code"`
	OccurredAt time.Time         `json:"occurred_at"`
}

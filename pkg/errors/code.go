package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Teacher authentication errors
// 12000-12999: Question & Answer lifecycle errors
// 13000-13999: Aggregation (summary / smart search) errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	TransactionFailed ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Teacher Authentication Errors (11000-11999) ==========

	InvalidPasscode       ErrorCode = 11000
	TokenExpired          ErrorCode = 11003
	TokenInvalid          ErrorCode = 11004
	TokenGenerationFailed ErrorCode = 11005
	PasscodeNotConfigured ErrorCode = 11100

	// ========== Question & Answer Errors (12000-12999) ==========

	// Question (12000-12099)
	QuestionNotFound      ErrorCode = 12000
	AccessCodeExists      ErrorCode = 12001
	QuestionAlreadyClosed ErrorCode = 12002
	QuestionClosed        ErrorCode = 12003

	// Answer (12100-12199)
	AnswerTooLong ErrorCode = 12100

	// Student directory (12200-12299)
	StudentNotFound   ErrorCode = 12200
	RosterUnavailable ErrorCode = 12201

	// ========== Aggregation Errors (13000-13999) ==========

	EmptyAnswerSet      ErrorCode = 13000
	EmptyInstructions   ErrorCode = 13001
	EmptyQuery          ErrorCode = 13002
	SummarizationFailed ErrorCode = 13100
	SearchFailed        ErrorCode = 13101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database operation failed",
	TransactionFailed: "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Teacher authentication
	InvalidPasscode:       "Invalid passcode",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",
	PasscodeNotConfigured: "Teacher passcode not configured",

	// Question
	QuestionNotFound:      "Question not found",
	AccessCodeExists:      "Access code already exists",
	QuestionAlreadyClosed: "Question is already closed",
	QuestionClosed:        "This question is closed and no longer accepting answers",

	// Answer
	AnswerTooLong: "Answer text must be at most 200 characters",

	// Students
	StudentNotFound:   "Student not found",
	RosterUnavailable: "Student roster unavailable",

	// Aggregation
	EmptyAnswerSet:      "No answers to summarize",
	EmptyInstructions:   "Summary instructions are required",
	EmptyQuery:          "Search query is required",
	SummarizationFailed: "Failed to generate summary",
	SearchFailed:        "Smart search failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Kind groups error codes into the categories clients branch on.
type Kind string

const (
	KindNone                Kind = ""
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation"
	KindClosed              Kind = "closed"
	KindCollaboratorFailure Kind = "collaborator_failure"
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindInternal            Kind = "internal"
)

// Kind returns the taxonomy bucket of the error code
func (c ErrorCode) Kind() Kind {
	switch c {
	case Success:
		return KindNone
	case NotFound, QuestionNotFound, StudentNotFound:
		return KindNotFound
	case AccessCodeExists, QuestionAlreadyClosed:
		return KindConflict
	case QuestionClosed:
		return KindClosed
	case InvalidParams, AnswerTooLong, EmptyAnswerSet, EmptyInstructions, EmptyQuery:
		return KindValidation
	case SummarizationFailed, SearchFailed:
		return KindCollaboratorFailure
	case Unauthorized, InvalidPasscode, TokenExpired, TokenInvalid:
		return KindUnauthorized
	case TooManyRequests:
		return KindRateLimited
	}
	if c >= 10300 && c < 10400 {
		return KindValidation
	}
	return KindInternal
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch c.Kind() {
	case KindNone:
		return 200
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindClosed:
		return 403
	case KindValidation:
		return 400
	case KindCollaboratorFailure:
		return 502
	case KindRateLimited:
		return 429
	case KindUnauthorized:
		return 401
	}
	if c == ServiceUnavailable || c == RosterUnavailable {
		return 503
	}
	if c == Timeout {
		return 504
	}
	return 500
}

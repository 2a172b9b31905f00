package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem errors
// 13000-13999: Submission & Judge errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database and cache errors (10100-10299)
	DatabaseError ErrorCode = 10100
	CacheError    ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301

	// Queue and storage errors (10400-10499)
	QueueError   ErrorCode = 10400
	StorageError ErrorCode = 10401

	// ========== Problem Errors (12000-12999) ==========

	ProblemNotFound    ErrorCode = 12000
	ProblemTypeInvalid ErrorCode = 12006
	JudgeConfigInvalid ErrorCode = 12300

	// ========== Submission & Judge Errors (13000-13999) ==========

	SubmissionNotFound ErrorCode = 13000
	JudgeSystemError   ErrorCode = 13101
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError: "Database operation failed",
	CacheError:    "Cache operation failed",
	QueueError:    "Message queue operation failed",
	StorageError:  "Object storage operation failed",

	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",

	ProblemNotFound:    "Problem not found",
	ProblemTypeInvalid: "Unsupported problem type",
	JudgeConfigInvalid: "Invalid special judge configuration",

	SubmissionNotFound: "Submission not found",
	JudgeSystemError:   "Judge system error",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return 404
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}

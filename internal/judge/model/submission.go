package model

// SubmissionStatus is the lifecycle state stored on a submission.
type SubmissionStatus string

const (
	StatusPending          SubmissionStatus = "pending"
	StatusJudging          SubmissionStatus = "judging"
	StatusAccepted         SubmissionStatus = "accepted"
	StatusWrongAnswer      SubmissionStatus = "wrong_answer"
	StatusPartiallyCorrect SubmissionStatus = "partially_correct"
	StatusError            SubmissionStatus = "error"
)

// IsTerminal reports whether judging has finished.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusPartiallyCorrect, StatusError:
		return true
	}
	return false
}

// Submission is one user's attempt at a problem.
type Submission struct {
	ID            int64
	UserID        int64
	ProblemID     int64
	Code          string
	Language      string
	Status        SubmissionStatus
	Result        string
	ExecutionTime float64 // seconds
	MemoryUsed    int
	IsOverdue     bool
}

// CaseReport describes one judged test case.
type CaseReport struct {
	Index         int      `json:"index"`
	Passed        bool     `json:"passed"`
	ExecutionTime float64  `json:"execution_time"`
	Message       string   `json:"message,omitempty"`
	Score         *float64 `json:"score,omitempty"`
}

// JudgeResult is the terminal write-back for a submission.
type JudgeResult struct {
	Status        SubmissionStatus
	Result        string
	ExecutionTime float64
	IsOverdue     bool
	Cases         []CaseReport
}

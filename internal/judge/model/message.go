package model

// JudgeMessage is the queue payload referencing a submission.
type JudgeMessage struct {
	SubmissionID int64 `json:"submission_id"`
}

// StatusEvent is published when a submission reaches a terminal status.
type StatusEvent struct {
	SubmissionID  int64            `json:"submission_id"`
	UserID        int64            `json:"user_id"`
	ProblemID     int64            `json:"problem_id"`
	Status        SubmissionStatus `json:"status"`
	ExecutionTime float64          `json:"execution_time"`
	IsOverdue     bool             `json:"is_overdue"`
	FinishedAt    int64            `json:"finished_at"`
}

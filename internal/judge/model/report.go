package model

// JudgeReport is the archived per-case record of one judging run.
type JudgeReport struct {
	SubmissionID  int64            `json:"submission_id"`
	UserID        int64            `json:"user_id"`
	ProblemID     int64            `json:"problem_id"`
	Language      string           `json:"language"`
	Status        SubmissionStatus `json:"status"`
	Result        string           `json:"result"`
	ExecutionTime float64          `json:"execution_time"`
	IsOverdue     bool             `json:"is_overdue"`
	Cases         []CaseReport     `json:"cases,omitempty"`
	JudgedAt      int64            `json:"judged_at"`
}

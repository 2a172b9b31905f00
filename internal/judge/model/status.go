package model

// JudgeStatus is the cached view served by the status endpoint.
type JudgeStatus struct {
	SubmissionID  int64            `json:"submission_id"`
	Status        SubmissionStatus `json:"status"`
	Result        string           `json:"result,omitempty"`
	ExecutionTime float64          `json:"execution_time"`
	IsOverdue     bool             `json:"is_overdue"`
	Cases         []CaseReport     `json:"cases,omitempty"`
	UpdatedAt     int64            `json:"updated_at"`
}

// StatusFromSubmission builds a status view from a stored submission row.
func StatusFromSubmission(s *Submission, updatedAt int64) JudgeStatus {
	return JudgeStatus{
		SubmissionID:  s.ID,
		Status:        s.Status,
		Result:        s.Result,
		ExecutionTime: s.ExecutionTime,
		IsOverdue:     s.IsOverdue,
		UpdatedAt:     updatedAt,
	}
}

package service

import (
	"context"
	"time"

	"ojjudge/internal/judge/model"
	"ojjudge/internal/judge/repository"
)

// OverdueChecker decides whether a submission is a permitted late submission.
type OverdueChecker struct {
	assignments repository.AssignmentRepository
}

// NewOverdueChecker creates a checker over assignments.
func NewOverdueChecker(assignments repository.AssignmentRepository) *OverdueChecker {
	return &OverdueChecker{assignments: assignments}
}

// Check reports whether sub, judged at now, falls inside its assignment's overdue window.
// Problems outside any assignment are never overdue.
func (c *OverdueChecker) Check(ctx context.Context, sub *model.Submission, now time.Time) (bool, error) {
	assignment, err := c.assignments.FindByProblem(ctx, sub.ProblemID)
	if err != nil {
		return false, err
	}
	return assignment.AllowsOverdue(sub.UserID, now), nil
}

package model

import (
	"slices"
	"time"
)

// Assignment holds the late-submission policy of an assignment.
type Assignment struct {
	ID                     int64
	DueDate                time.Time
	AllowOverdueSubmission bool
	OverdueDeadline        *time.Time
	OverdueAllowUserIDs    []int64
}

// AllowsOverdue reports whether userID submitting at now is a permitted late submission.
func (a *Assignment) AllowsOverdue(userID int64, now time.Time) bool {
	if a == nil || !a.AllowOverdueSubmission || a.OverdueDeadline == nil {
		return false
	}
	if !a.DueDate.Before(now) || now.After(*a.OverdueDeadline) {
		return false
	}
	return slices.Contains(a.OverdueAllowUserIDs, userID)
}

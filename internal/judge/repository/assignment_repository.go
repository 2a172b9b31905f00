package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"ojjudge/internal/common/db"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
)

// AssignmentRepository finds the assignment a problem belongs to.
type AssignmentRepository interface {
	// FindByProblem returns nil, nil when the problem is not part of any assignment.
	FindByProblem(ctx context.Context, problemID int64) (*model.Assignment, error)
}

// SQLAssignmentRepository implements AssignmentRepository on assignments and
// assignment_problems.
type SQLAssignmentRepository struct {
	provider db.Provider
}

// NewAssignmentRepository creates an assignment repository.
func NewAssignmentRepository(provider db.Provider) *SQLAssignmentRepository {
	return &SQLAssignmentRepository{provider: provider}
}

// FindByProblem uses the first link row of the problem.
func (r *SQLAssignmentRepository) FindByProblem(ctx context.Context, problemID int64) (*model.Assignment, error) {
	database, err := db.CurrentDatabase(r.provider)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	query := `
		SELECT a.id, a.due_date, a.allow_overdue_submission, a.overdue_deadline, a.overdue_allow_user_ids
		FROM assignment_problems ap
		JOIN assignments a ON a.id = ap.assignment_id
		WHERE ap.problem_id = ?
		ORDER BY ap.id
		LIMIT 1
	`
	var (
		a        model.Assignment
		allow    sql.NullBool
		deadline sql.NullTime
		userIDs  sql.NullString
	)
	if err := database.QueryRow(ctx, query, problemID).Scan(&a.ID, &a.DueDate, &allow, &deadline, &userIDs); err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query assignment of problem %d", problemID)
	}
	a.AllowOverdueSubmission = allow.Bool
	if deadline.Valid {
		t := deadline.Time
		a.OverdueDeadline = &t
	}
	if userIDs.Valid && userIDs.String != "" {
		if err := json.Unmarshal([]byte(userIDs.String), &a.OverdueAllowUserIDs); err != nil {
			return nil, appErr.Wrapf(err, appErr.InvalidFormat, "decode overdue_allow_user_ids of assignment %d", a.ID)
		}
	}
	return &a, nil
}

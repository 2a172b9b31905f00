package repository

import (
	"context"
	"database/sql"

	"ojjudge/internal/common/db"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
)

// SubmissionRepository reads submissions and writes judging transitions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
	MarkJudging(ctx context.Context, id int64) error
	SaveResult(ctx context.Context, id int64, result model.JudgeResult) error
}

// SQLSubmissionRepository implements SubmissionRepository on the submission table.
type SQLSubmissionRepository struct {
	provider db.Provider
}

// NewSubmissionRepository creates a repository backed by the provider's current database.
func NewSubmissionRepository(provider db.Provider) *SQLSubmissionRepository {
	return &SQLSubmissionRepository{provider: provider}
}

const submissionColumns = "id, user_id, problem_id, code, language, status, result, execution_time, is_overdue"

// GetByID loads a submission; a missing row is SubmissionNotFound.
func (r *SQLSubmissionRepository) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	database, err := db.CurrentDatabase(r.provider)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	var (
		s       model.Submission
		status  sql.NullString
		result  sql.NullString
		elapsed sql.NullFloat64
		overdue sql.NullBool
	)
	row := database.QueryRow(ctx, "SELECT "+submissionColumns+" FROM submission WHERE id = ?", id)
	if err := row.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Code, &s.Language, &status, &result, &elapsed, &overdue); err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query submission %d", id)
	}
	s.Status = model.SubmissionStatus(status.String)
	if s.Status == "" {
		s.Status = model.StatusPending
	}
	s.Result = result.String
	s.ExecutionTime = elapsed.Float64
	s.IsOverdue = overdue.Bool
	return &s, nil
}

// MarkJudging persists the pending to judging transition.
func (r *SQLSubmissionRepository) MarkJudging(ctx context.Context, id int64) error {
	database, err := db.CurrentDatabase(r.provider)
	if err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	if _, err := database.Exec(ctx, "UPDATE submission SET status = ? WHERE id = ?", string(model.StatusJudging), id); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "mark submission %d judging", id)
	}
	return nil
}

// SaveResult writes the terminal verdict in a single statement.
func (r *SQLSubmissionRepository) SaveResult(ctx context.Context, id int64, result model.JudgeResult) error {
	database, err := db.CurrentDatabase(r.provider)
	if err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	query := `
		UPDATE submission
		SET status = ?, result = ?, execution_time = ?, memory_used = ?, is_overdue = ?
		WHERE id = ?
	`
	_, err = database.Exec(ctx, query,
		string(result.Status),
		result.Result,
		result.ExecutionTime,
		0,
		result.IsOverdue,
		id,
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save result of submission %d", id)
	}
	return nil
}

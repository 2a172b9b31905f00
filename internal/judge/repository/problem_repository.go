package repository

import (
	"context"
	"database/sql"

	"ojjudge/internal/common/db"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
)

// ProblemRepository loads problems for judging.
type ProblemRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Problem, error)
}

// SQLProblemRepository implements ProblemRepository on the problem table.
type SQLProblemRepository struct {
	provider db.Provider
}

// NewProblemRepository creates a problem repository.
func NewProblemRepository(provider db.Provider) *SQLProblemRepository {
	return &SQLProblemRepository{provider: provider}
}

const problemColumns = `id, title, type, test_cases, expected_output, time_limit, memory_limit,
	enable_special_judge, special_judge_script, special_judge_language,
	special_judge_timeout, special_judge_memory_limit, judge_config`

// GetByID loads a problem with column defaults applied; a missing row is ProblemNotFound.
func (r *SQLProblemRepository) GetByID(ctx context.Context, id int64) (*model.Problem, error) {
	database, err := db.CurrentDatabase(r.provider)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	var (
		p              model.Problem
		typ            sql.NullString
		testCases      sql.NullString
		expected       sql.NullString
		timeLimit      sql.NullInt64
		memoryLimit    sql.NullInt64
		enableSpecial  sql.NullBool
		specialScript  sql.NullString
		specialLang    sql.NullString
		specialTimeout sql.NullInt64
		specialMemory  sql.NullInt64
		judgeConfig    sql.NullString
	)
	row := database.QueryRow(ctx, "SELECT "+problemColumns+" FROM problem WHERE id = ?", id)
	err = row.Scan(&p.ID, &p.Title, &typ, &testCases, &expected, &timeLimit, &memoryLimit,
		&enableSpecial, &specialScript, &specialLang, &specialTimeout, &specialMemory, &judgeConfig)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.Newf(appErr.ProblemNotFound, "problem %d not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query problem %d", id)
	}
	p.Type = typ.String
	if !typ.Valid {
		p.Type = model.ProblemProgramming.String()
	}
	p.TestCases = testCases.String
	p.ExpectedOutput = expected.String
	p.TimeLimit = int(timeLimit.Int64)
	p.MemoryLimit = int(memoryLimit.Int64)
	p.EnableSpecialJudge = enableSpecial.Bool
	p.SpecialJudgeScript = specialScript.String
	p.SpecialJudgeLanguage = specialLang.String
	p.SpecialJudgeTimeout = int(specialTimeout.Int64)
	p.SpecialJudgeMemoryLimit = int(specialMemory.Int64)
	p.JudgeConfig = judgeConfig.String
	p.ApplyDefaults()
	return &p, nil
}

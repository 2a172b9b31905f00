package judger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"ojjudge/internal/judge/model"
	"ojjudge/internal/judge/sandbox"
	"ojjudge/internal/judge/specialjudge"
	"ojjudge/internal/judge/testcase"
	"ojjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// PartialPassThreshold is the lowest PARTIALLY_CORRECT score that still passes a case.
const PartialPassThreshold = 0.8

const (
	messageAllPassed      = "所有测试用例通过"
	messageAllLinesPassed = "所有输出行都匹配"
	messageSomeFailed     = "部分测试用例失败:\n"
)

// ProgrammingJudge runs the submitted code against every resolved case.
type ProgrammingJudge struct {
	exec    Executor
	special SpecialJudge
}

// NewProgrammingJudge creates a programming judge. special may be nil when no problem
// enables special judging.
func NewProgrammingJudge(exec Executor, special SpecialJudge) *ProgrammingJudge {
	return &ProgrammingJudge{exec: exec, special: special}
}

// caseStyle captures the differences between structured and legacy case handling.
type caseStyle struct {
	label    string
	prepare  func(actual, expected string) (string, string)
	mismatch func(n int, actual, expected string) string
}

var structuredStyle = caseStyle{
	label: "用例",
	prepare: func(actual, expected string) (string, string) {
		return testcase.Normalize(actual), testcase.Normalize(expected)
	},
	mismatch: func(n int, actual, expected string) string {
		return fmt.Sprintf("用例 %d: 输出不匹配\n期望: \n%s\n实际: \n%s", n, expected, actual)
	},
}

var legacyStyle = caseStyle{
	label: "测试用例",
	prepare: func(actual, expected string) (string, string) {
		return strings.TrimSpace(actual), expected
	},
	mismatch: func(n int, actual, expected string) string {
		return fmt.Sprintf("测试用例 %d: 期望 '%s', 实际 '%s'", n, expected, actual)
	},
}

// Judge implements Judge.
func (j *ProgrammingJudge) Judge(ctx context.Context, sub *model.Submission, p *model.Problem) (Outcome, error) {
	problem := *p
	problem.ApplyDefaults()

	plan := testcase.ResolveProblem(&problem)
	logger.Info(ctx, "test cases resolved",
		zap.String("mode", plan.Mode.String()),
		zap.Int("cases", len(plan.Cases)),
	)
	switch plan.Mode {
	case testcase.ModeNoInputMultiLine:
		return j.judgeLines(ctx, sub, &problem, plan.ExpectedLines)
	case testcase.ModeLegacyZip:
		return j.judgeCases(ctx, sub, &problem, plan.Cases, legacyStyle)
	default:
		return j.judgeCases(ctx, sub, &problem, plan.Cases, structuredStyle)
	}
}

func (j *ProgrammingJudge) run(ctx context.Context, sub *model.Submission, p *model.Problem, input string) sandbox.Result {
	return j.exec.Execute(ctx, sandbox.Request{
		Code:        sub.Code,
		Language:    sub.Language,
		Input:       input,
		TimeLimit:   p.TimeLimit,
		MemoryLimit: p.MemoryLimit,
	})
}

func (j *ProgrammingJudge) judgeCases(ctx context.Context, sub *model.Submission, p *model.Problem, cases []testcase.Case, style caseStyle) (Outcome, error) {
	special := j.specialConfig(ctx, p)

	var (
		failures []string
		maxTime  float64
		reports  = make([]model.CaseReport, 0, len(cases))
	)
	for i, c := range cases {
		n := i + 1
		res := j.run(ctx, sub, p, c.Input)
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		elapsed := res.Elapsed.Seconds()
		maxTime = max(maxTime, elapsed)
		report := model.CaseReport{Index: n, ExecutionTime: elapsed}

		if res.Error != "" {
			report.Message = fmt.Sprintf("%s %d: 执行错误 - %s", style.label, n, res.Error)
			logger.Debug(ctx, "case execution failed", zap.Int("case", n), zap.String("outcome", string(res.Outcome)))
			failures = append(failures, report.Message)
			reports = append(reports, report)
			continue
		}

		actual, expected := style.prepare(res.Stdout, c.Output)
		passed, msg, score := j.compare(ctx, special, p, c.Input, actual, expected)
		if !passed {
			if msg == "" {
				msg = style.mismatch(n, actual, expected)
			} else {
				msg = fmt.Sprintf("%s %d: %s", style.label, n, msg)
			}
			failures = append(failures, msg)
		}
		report.Passed = passed
		report.Message = msg
		report.Score = score
		reports = append(reports, report)
	}

	out := Outcome{ExecutionTime: maxTime, Cases: reports}
	if len(failures) == 0 {
		out.Status = model.StatusAccepted
		out.Result = messageAllPassed
	} else {
		out.Status = model.StatusWrongAnswer
		out.Result = messageSomeFailed + strings.Join(failures, "\n")
	}
	return out, nil
}

type specialSetup struct {
	enabled bool
	config  *specialjudge.Config
}

// specialConfig parses the judge config once per submission. A broken config disables
// the special judge so cases fall back to plain comparison.
func (j *ProgrammingJudge) specialConfig(ctx context.Context, p *model.Problem) specialSetup {
	if !p.EnableSpecialJudge || j.special == nil {
		return specialSetup{}
	}
	cfg, err := specialjudge.ParseConfig(p.JudgeConfig)
	if err != nil {
		logger.Warn(ctx, "judge config invalid, using plain comparison", zap.Int64("problem_id", p.ID), zap.Error(err))
		return specialSetup{}
	}
	return specialSetup{enabled: true, config: cfg}
}

// compare returns whether the case passed. A failing case with an empty message uses
// the caller's mismatch text; otherwise the message is the special judge detail.
func (j *ProgrammingJudge) compare(ctx context.Context, special specialSetup, p *model.Problem, input, actual, expected string) (bool, string, *float64) {
	if !special.enabled {
		return actual == expected, "", nil
	}
	v := j.special.Judge(ctx, specialjudge.Input{
		UserOutput:        actual,
		ExpectedOutput:    expected,
		InputData:         input,
		Script:            p.SpecialJudgeScript,
		ScriptLanguage:    p.SpecialJudgeLanguage,
		ScriptTimeout:     time.Duration(p.SpecialJudgeTimeout) * time.Millisecond,
		ScriptMemoryLimit: p.SpecialJudgeMemoryLimit,
		Config:            special.config,
	})
	score := v.Score
	logger.Debug(ctx, "special judge verdict", zap.String("result", string(v.Result)), zap.Float64("score", score))
	switch v.Result {
	case specialjudge.Accepted:
		return true, "", &score
	case specialjudge.PartiallyCorrect:
		if score >= PartialPassThreshold {
			return true, "", &score
		}
		return false, fmt.Sprintf("Special Judge部分正确 - %s (得分: %s)", v.Message, specialjudge.FormatScore(score)), &score
	default:
		return false, "Special Judge失败 - " + v.Message, &score
	}
}

// judgeLines runs once with no input and compares trimmed non-blank output lines.
func (j *ProgrammingJudge) judgeLines(ctx context.Context, sub *model.Submission, p *model.Problem, expected []string) (Outcome, error) {
	res := j.run(ctx, sub, p, "")
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	elapsed := res.Elapsed.Seconds()
	report := model.CaseReport{Index: 1, ExecutionTime: elapsed}
	if res.Error != "" {
		report.Message = res.Error
		return Outcome{
			Status:        model.StatusError,
			Result:        res.Error,
			ExecutionTime: elapsed,
			Cases:         []model.CaseReport{report},
		}, nil
	}

	actual := testcase.SplitLines(res.Stdout)
	out := Outcome{ExecutionTime: elapsed}
	if slices.Equal(actual, expected) {
		report.Passed = true
		out.Status = model.StatusAccepted
		out.Result = messageAllLinesPassed
	} else {
		out.Status = model.StatusWrongAnswer
		out.Result = fmt.Sprintf("输出不匹配\n期望:\n%s\n实际:\n%s", strings.Join(expected, "\n"), strings.Join(actual, "\n"))
		report.Message = out.Result
	}
	out.Cases = []model.CaseReport{report}
	return out, nil
}

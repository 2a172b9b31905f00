// Package judger turns a submission and its problem into a terminal verdict.
package judger

import (
	"context"
	"fmt"

	"ojjudge/internal/judge/model"
	"ojjudge/internal/judge/sandbox"
	"ojjudge/internal/judge/specialjudge"
)

// Executor runs one program against one input.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) sandbox.Result
}

// SpecialJudge verifies one case's output.
type SpecialJudge interface {
	Judge(ctx context.Context, in specialjudge.Input) specialjudge.Verdict
}

// Outcome is a judge's terminal verdict for one submission.
type Outcome struct {
	Status        model.SubmissionStatus
	Result        string
	ExecutionTime float64 // seconds
	Cases         []model.CaseReport
}

// Judge grades one problem type.
type Judge interface {
	Judge(ctx context.Context, sub *model.Submission, p *model.Problem) (Outcome, error)
}

// Dispatcher routes a submission to the judge for its problem type.
type Dispatcher struct {
	programming Judge
	choice      Judge
	trueFalse   Judge
	shortAnswer Judge
}

// NewDispatcher wires the four judges.
func NewDispatcher(exec Executor, special SpecialJudge) *Dispatcher {
	return &Dispatcher{
		programming: NewProgrammingJudge(exec, special),
		choice:      ChoiceJudge{},
		trueFalse:   TrueFalseJudge{},
		shortAnswer: ShortAnswerJudge{},
	}
}

// Judge dispatches on the parsed problem type.
func (d *Dispatcher) Judge(ctx context.Context, typ model.ProblemType, sub *model.Submission, p *model.Problem) (Outcome, error) {
	switch typ {
	case model.ProblemProgramming:
		return d.programming.Judge(ctx, sub, p)
	case model.ProblemChoice:
		return d.choice.Judge(ctx, sub, p)
	case model.ProblemTrueFalse:
		return d.trueFalse.Judge(ctx, sub, p)
	case model.ProblemShortAnswer:
		return d.shortAnswer.Judge(ctx, sub, p)
	default:
		return Outcome{}, fmt.Errorf("unhandled problem type %d", typ)
	}
}

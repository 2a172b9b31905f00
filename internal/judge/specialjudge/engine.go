package specialjudge

import (
	"context"
	"fmt"
	"time"

	"ojjudge/internal/judge/sandbox"
	"ojjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Runner executes a judge script. *sandbox.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, req sandbox.Request) sandbox.Result
}

// Input is everything one special judge call needs.
type Input struct {
	UserOutput     string
	ExpectedOutput string
	InputData      string

	// Script, when set, takes precedence over Config.
	Script            string
	ScriptLanguage    string
	ScriptTimeout     time.Duration
	ScriptMemoryLimit int // MB

	Config *Config
}

// Engine dispatches to a judge script, a configured strategy or smart detection.
type Engine struct {
	runner Runner
}

// NewEngine creates an engine. runner may be nil when scripts are not used.
func NewEngine(runner Runner) *Engine {
	return &Engine{runner: runner}
}

// Judge never panics and never returns an error: failures become Error verdicts.
func (e *Engine) Judge(ctx context.Context, in Input) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "special judge panic", zap.Any("panic", r))
			v = errorVerdict(fmt.Sprintf("判题过程出错: %v", r))
		}
	}()

	var err error
	switch {
	case in.Script != "":
		v, err = e.runScript(ctx, in)
	case !in.Config.Empty():
		v, err = strategyFor(in.Config.Type)(in.UserOutput, in.ExpectedOutput, in.Config)
	default:
		v, err = judgeSmart(in.UserOutput, in.ExpectedOutput)
	}
	if err != nil {
		logger.Warn(ctx, "special judge failed", zap.Error(err))
		return errorVerdict(err.Error())
	}
	return clampScore(v)
}

func clampScore(v Verdict) Verdict {
	switch {
	case v.Score < 0:
		v.Score = 0
	case v.Score > 1:
		v.Score = 1
	}
	return v
}

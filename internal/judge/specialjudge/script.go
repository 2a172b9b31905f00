package specialjudge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ojjudge/internal/judge/model"
	"ojjudge/internal/judge/sandbox"
)

// MaxScriptTimeout caps a judge script's wall time.
const MaxScriptTimeout = 10 * time.Second

var errScriptTimeout = errors.New("判题脚本执行超时")

type scriptRequest struct {
	UserOutput     string         `json:"user_output"`
	ExpectedOutput string         `json:"expected_output"`
	InputData      string         `json:"input_data"`
	Config         map[string]any `json:"config"`
}

type scriptResponse struct {
	Result  *string `json:"result"`
	Message *string `json:"message"`
	Score   any     `json:"score"`
}

func (e *Engine) runScript(ctx context.Context, in Input) (Verdict, error) {
	if e.runner == nil {
		return Verdict{}, errors.New("执行自定义判题失败: 未配置脚本执行器")
	}
	req := scriptRequest{
		UserOutput:     in.UserOutput,
		ExpectedOutput: in.ExpectedOutput,
		InputData:      in.InputData,
		Config:         map[string]any{},
	}
	if in.Config != nil && in.Config.Raw != nil {
		req.Config = in.Config.Raw
	}
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return Verdict{}, fmt.Errorf("执行自定义判题失败: %w", err)
	}

	lang := in.ScriptLanguage
	if lang == "" {
		lang = model.DefaultSpecialJudgeLanguage
	}
	res := e.runner.Execute(ctx, sandbox.Request{
		Code:        in.Script,
		Language:    lang,
		Input:       payload.String(),
		TimeLimit:   int(scriptTimeout(in.ScriptTimeout) / time.Millisecond),
		MemoryLimit: in.ScriptMemoryLimit,
	})

	switch res.Outcome {
	case sandbox.OutcomeOK:
		return parseScriptOutput(res.Stdout)
	case sandbox.OutcomeTimeLimitExceeded:
		return Verdict{}, errScriptTimeout
	case sandbox.OutcomeRuntimeError, sandbox.OutcomeCompileError:
		return Verdict{}, fmt.Errorf("判题脚本执行失败: %s", res.Error)
	default:
		return Verdict{}, fmt.Errorf("执行自定义判题失败: %s", res.Error)
	}
}

func scriptTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > MaxScriptTimeout {
		return MaxScriptTimeout
	}
	return d
}

func parseScriptOutput(stdout string) (Verdict, error) {
	var resp scriptResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		return Verdict{}, fmt.Errorf("判题脚本输出格式错误: %s", stdout)
	}
	v := Verdict{Result: Error, Message: "未知错误"}
	if resp.Result != nil {
		v.Result = ParseResult(*resp.Result)
	}
	if resp.Message != nil {
		v.Message = *resp.Message
	}
	score, err := toScore(resp.Score)
	if err != nil {
		return Verdict{}, fmt.Errorf("执行自定义判题失败: %w", err)
	}
	v.Score = score
	return v, nil
}

func toScore(v any) (float64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return s, nil
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score %q", s)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("invalid score %v", v)
	}
}

package specialjudge

import (
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"testing"
	"time"

	"ojjudge/internal/judge/sandbox"
	appErr "ojjudge/pkg/errors"

	"github.com/stretchr/testify/require"
)

func mustConfig(t *testing.T, raw string) *Config {
	t.Helper()
	cfg, err := ParseConfig(raw)
	require.NoError(t, err)
	return cfg
}

func TestParseConfig(t *testing.T) {
	t.Parallel()
	cfg := mustConfig(t, `{"type":"float","epsilon":0.01,"format_rules":{"line_count":null,"line_format":"^\\d+$"}}`)
	require.Equal(t, TypeFloat, cfg.Type)
	require.Equal(t, 0.01, cfg.Epsilon)
	require.Equal(t, 1e-6, cfg.RelativeError)
	require.True(t, cfg.FormatRules.CheckLineCount)
	require.True(t, cfg.FormatRules.HasLineFormat)
	require.Equal(t, `^\d+$`, cfg.FormatRules.LineFormat)

	for _, raw := range []string{"", "  ", "null", "{}"} {
		require.True(t, mustConfig(t, raw).Empty(), "raw %q", raw)
	}
	require.Equal(t, TypeExact, mustConfig(t, `{"solutions":["a"]}`).Type)

	_, err := ParseConfig(`{"type":`)
	require.True(t, appErr.Is(err, appErr.JudgeConfigInvalid), "got %v", err)
	_, err = ParseConfig(`[1,2]`)
	require.True(t, appErr.Is(err, appErr.JudgeConfigInvalid), "got %v", err)
}

func TestFloatEqual(t *testing.T) {
	t.Parallel()
	values := []float64{0, 1, -1, 3.141593, 1e-9, 1e12, -2.5e-3}
	for _, a := range values {
		require.True(t, FloatEqual(a, a, 1e-6, 1e-6), "reflexive %v", a)
		for _, b := range values {
			require.Equal(t, FloatEqual(a, b, 1e-6, 1e-6), FloatEqual(b, a, 1e-6, 1e-6), "symmetric %v %v", a, b)
		}
	}
	require.True(t, FloatEqual(1e12, 1e12+1, 1e-6, 1e-6))
	require.False(t, FloatEqual(1, 1.1, 1e-6, 1e-6))
}

func TestStrategies(t *testing.T) {
	t.Parallel()
	engine := NewEngine(nil)
	tests := []struct {
		name     string
		user     string
		expected string
		config   string
		want     Result
		message  string
		score    float64
	}{
		{"exact pass", " 42\n", "42", `{"type":"exact"}`, Accepted, "答案完全正确", 1},
		{"exact fail", "41", "42", `{"type":"exact"}`, WrongAnswer, "答案不正确", 0},
		{"unknown type is exact", "42", "42", `{"type":"weird"}`, Accepted, "答案完全正确", 1},
		{"float boundary", "3.141592", "3.141593", `{"type":"float","epsilon":1e-6}`, Accepted, "浮点数比较通过", 1},
		{"float count mismatch", "1 2", "1", `{"type":"float"}`, WrongAnswer, "输出数值数量不匹配", 0},
		{"float partial", "1 2 3 4 9", "1 2 3 4 5", `{"type":"float"}`, PartiallyCorrect, "部分正确 (4/5)", 0.8},
		{"float wrong", "9 9", "1 2", `{"type":"float"}`, WrongAnswer, "浮点数误差过大 (0/2)", 0},
		{"float scientific", "1.5e3", "1500", `{"type":"float"}`, Accepted, "浮点数比较通过", 1},
		{"float no numbers", "abc", "def", `{"type":"float"}`, Accepted, "浮点数比较通过", 1},
		{"multi exact", "3  2\n1", "", `{"type":"multiple_solutions","solutions":["1 2 3","3 2 1"]}`, Accepted, "多解验证通过", 1},
		{"multi none", "xyz", "", `{"type":"multiple_solutions","solutions":["1 2 3"]}`, WrongAnswer, "未找到匹配的解", 0},
		{"multi missing", "x", "", `{"type":"multiple_solutions"}`, Error, "未配置多解信息", 0},
		{"format line count", "a\nb", "a\nb\nc", `{"type":"format","format_rules":{"line_count":true}}`, WrongAnswer, "行数不匹配: 期望3行，实际2行", 0},
		{"format lines", "1\n2\nx\n4\n5", "", `{"type":"format","format_rules":{"line_format":"\\d+"}}`, PartiallyCorrect, "格式部分正确 (4/5)", 0.8},
		{"format anchored at start", "a1", "", `{"type":"format","format_rules":{"line_format":"\\d"}}`, WrongAnswer, "格式错误过多 (0/1)", 0},
		{"format no rules", "x", "x", `{"type":"format"}`, Accepted, "答案完全正确", 1},
		{"format bad regex", "x", "x", `{"type":"format","format_rules":{"line_format":"("}}`, Error, "", 0},
		{"partial all", "hello world", "hello world", `{"type":"partial","scoring_rules":[{"type":"exact","score":2},{"type":"contains","keywords":["hello"],"score":1}]}`, Accepted, "完全正确: 3.0/3.0", 1},
		{"partial some", "hello there", "hello world", `{"type":"partial","scoring_rules":[{"type":"exact","score":1},{"type":"contains","keywords":["hello"],"score":2},{"type":"pattern","pattern":"th.re","score":1}]}`, PartiallyCorrect, "部分正确: 3.0/4.0", 0.75},
		{"partial low", "nope", "hello", `{"type":"partial","scoring_rules":[{"type":"exact","score":1},{"type":"pattern","pattern":"^o","score":0.5}]}`, WrongAnswer, "得分过低: 0.0/1.5", 0},
		{"partial missing", "x", "x", `{"type":"partial"}`, Error, "未配置评分规则", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := engine.Judge(context.Background(), Input{UserOutput: tt.user, ExpectedOutput: tt.expected, Config: mustConfig(t, tt.config)})
			require.Equal(t, tt.want, v.Result)
			if tt.message != "" {
				require.Equal(t, tt.message, v.Message)
			}
			require.InDelta(t, tt.score, v.Score, 1e-9)
		})
	}
}

func TestMultipleSolutionsNearMatch(t *testing.T) {
	t.Parallel()
	v := NewEngine(nil).Judge(context.Background(), Input{
		UserOutput: "abcdefghiX",
		Config:     mustConfig(t, `{"type":"multiple_solutions","solutions":["abcdefghij"]}`),
	})
	require.Equal(t, PartiallyCorrect, v.Result)
	require.Equal(t, "部分匹配 (0.90)", v.Message)
	require.InDelta(t, 0.9, v.Score, 1e-9)
}

func TestSmartJudge(t *testing.T) {
	t.Parallel()
	engine := NewEngine(nil)
	judge := func(user, expected string) Verdict {
		return engine.Judge(context.Background(), Input{UserOutput: user, ExpectedOutput: expected, Config: &Config{}})
	}
	require.Equal(t, Accepted, judge("0.3333334", "0.3333333").Result)
	require.Equal(t, "行数不匹配: 期望2行，实际1行", judge("a", "a\nb").Message)
	require.Equal(t, Accepted, judge("a\nb", "a\nb").Result)
	require.Equal(t, WrongAnswer, judge("7", "8").Result)
	require.Equal(t, Accepted, judge("7", "7").Result)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 0.0, Similarity("", "a"))
	require.InDelta(t, 0.5, Similarity("ab", "ac"), 1e-9)
	require.InDelta(t, 2.0/3.0, Similarity("你好吗", "你好啊"), 1e-9)
	require.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
}

func TestFormatScore(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.0", FormatScore(0))
	require.Equal(t, "1.0", FormatScore(1))
	require.Equal(t, "0.75", FormatScore(0.75))
	require.Equal(t, "12.0", FormatScore(12))
}

type fakeRunner struct {
	result sandbox.Result
	req    sandbox.Request
}

func (f *fakeRunner) Execute(_ context.Context, req sandbox.Request) sandbox.Result {
	f.req = req
	return f.result
}

func TestScriptProtocol(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{result: sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: `{"result":"PARTIALLY_CORRECT","message":"close","score":0.85}`}}
	v := NewEngine(runner).Judge(context.Background(), Input{
		UserOutput:     "1",
		ExpectedOutput: "2",
		InputData:      "x<y",
		Script:         "print()",
		ScriptTimeout:  time.Minute,
		Config:         mustConfig(t, `{"type":"float","epsilon":0.5}`),
	})
	require.Equal(t, Verdict{Result: PartiallyCorrect, Message: "close", Score: 0.85}, v)
	require.Equal(t, "python", runner.req.Language)
	require.Equal(t, 10000, runner.req.TimeLimit)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(runner.req.Input), &sent))
	require.Equal(t, "1", sent["user_output"])
	require.Equal(t, "2", sent["expected_output"])
	require.Equal(t, "x<y", sent["input_data"])
	require.Equal(t, map[string]any{"type": "float", "epsilon": 0.5}, sent["config"])
}

func TestScriptFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		result  sandbox.Result
		want    Result
		message string
		score   float64
	}{
		{"timeout", sandbox.Result{Outcome: sandbox.OutcomeTimeLimitExceeded, Error: sandbox.MessageTimeLimitExceeded}, Error, "判题脚本执行超时", 0},
		{"crash", sandbox.Result{Outcome: sandbox.OutcomeRuntimeError, Error: "Traceback"}, Error, "判题脚本执行失败: Traceback", 0},
		{"bad json", sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: "ok"}, Error, "判题脚本输出格式错误: ok", 0},
		{"defaults", sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: `{}`}, Error, "未知错误", 0},
		{"string score", sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: `{"result":"accepted","message":"ok","score":"1"}`}, Accepted, "ok", 1},
		{"clamped score", sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: `{"result":"ACCEPTED","message":"ok","score":7}`}, Accepted, "ok", 1},
		{"unknown verdict", sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: `{"result":"MAYBE","message":"?"}`}, Error, "?", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewEngine(&fakeRunner{result: tt.result}).Judge(context.Background(), Input{Script: "x"})
			require.Equal(t, tt.want, v.Result)
			require.Equal(t, tt.message, v.Message)
			require.InDelta(t, tt.score, v.Score, 1e-9)
		})
	}
}

func TestScriptWithoutRunner(t *testing.T) {
	t.Parallel()
	v := NewEngine(nil).Judge(context.Background(), Input{Script: "print(1)"})
	require.Equal(t, Error, v.Result)
}

type panicRunner struct{}

func (panicRunner) Execute(context.Context, sandbox.Request) sandbox.Result {
	panic("boom")
}

func TestJudgeRecoversPanics(t *testing.T) {
	t.Parallel()
	v := NewEngine(panicRunner{}).Judge(context.Background(), Input{Script: "x"})
	require.Equal(t, Verdict{Result: Error, Message: "判题过程出错: boom"}, v)
}

func TestTemplatesRunWithPython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	exe, err := sandbox.NewExecutor(sandbox.Config{WorkRoot: t.TempDir()}, nil)
	require.NoError(t, err)
	engine := NewEngine(exe)

	src, ok := Template("float_comparison")
	require.True(t, ok)
	v := engine.Judge(context.Background(), Input{
		UserOutput:     "3.1415926 2.0",
		ExpectedOutput: "3.1415925 2",
		Script:         src,
		ScriptTimeout:  5 * time.Second,
		Config:         mustConfig(t, `{"epsilon":1e-5}`),
	})
	require.Equal(t, Accepted, v.Result, v.Message)

	src, ok = Template("multiple_solutions")
	require.True(t, ok)
	v = engine.Judge(context.Background(), Input{
		UserOutput: "3 2 1",
		Script:     src,
		Config:     mustConfig(t, `{"solutions":["1 2 3","3 2 1"]}`),
	})
	require.Equal(t, Accepted, v.Result, v.Message)
	require.False(t, math.IsNaN(v.Score))

	require.Equal(t, []string{"float_comparison", "multiple_solutions"}, TemplateNames())
}

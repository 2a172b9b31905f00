package specialjudge

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)
	decimalPattern = regexp.MustCompile(`-?\d+\.\d+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

var (
	errNoSolutions    = errors.New("未配置多解信息")
	errNoScoringRules = errors.New("未配置评分规则")
)

type strategyFunc func(user, expected string, cfg *Config) (Verdict, error)

var strategies = map[string]strategyFunc{
	TypeExact:             judgeExactStrategy,
	TypeFloat:             judgeFloat,
	TypeMultipleSolutions: judgeMultipleSolutions,
	TypeFormat:            judgeFormat,
	TypePartial:           judgePartial,
}

func strategyFor(typ string) strategyFunc {
	if fn, ok := strategies[typ]; ok {
		return fn
	}
	return judgeExactStrategy
}

func judgeExact(user, expected string) Verdict {
	if strings.TrimSpace(user) == strings.TrimSpace(expected) {
		return accepted("答案完全正确")
	}
	return Verdict{Result: WrongAnswer, Message: "答案不正确"}
}

func judgeExactStrategy(user, expected string, _ *Config) (Verdict, error) {
	return judgeExact(user, expected), nil
}

func judgeFloat(user, expected string, cfg *Config) (Verdict, error) {
	userNums, err := extractNumbers(user)
	if err != nil {
		return Verdict{}, fmt.Errorf("浮点数判题失败: %w", err)
	}
	expectedNums, err := extractNumbers(expected)
	if err != nil {
		return Verdict{}, fmt.Errorf("浮点数判题失败: %w", err)
	}
	if len(userNums) != len(expectedNums) {
		return Verdict{Result: WrongAnswer, Message: "输出数值数量不匹配"}, nil
	}
	if len(expectedNums) == 0 {
		return accepted("浮点数比较通过"), nil
	}

	correct := 0
	for i := range expectedNums {
		if FloatEqual(userNums[i], expectedNums[i], cfg.Epsilon, cfg.RelativeError) {
			correct++
		}
	}
	total := len(expectedNums)
	ratio := fmt.Sprintf("(%d/%d)", correct, total)
	return graded(float64(correct)/float64(total), 0.99, 0.8,
		"浮点数比较通过", "部分正确 "+ratio, "浮点数误差过大 "+ratio), nil
}

// FloatEqual reports whether a and b agree within an absolute epsilon or a relative
// error measured against the larger magnitude.
func FloatEqual(a, b, epsilon, relativeError float64) bool {
	diff := math.Abs(a - b)
	if diff <= epsilon {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return scale > 0 && diff/scale <= relativeError
}

func extractNumbers(text string) ([]float64, error) {
	matches := numberPattern.FindAllString(text, -1)
	nums := make([]float64, 0, len(matches))
	for _, m := range matches {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			var numErr *strconv.NumError
			// out of range literals parse to ±Inf
			if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
				nums = append(nums, f)
				continue
			}
			return nil, err
		}
		nums = append(nums, f)
	}
	return nums, nil
}

func collapseSpace(s string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

func judgeMultipleSolutions(user, _ string, cfg *Config) (Verdict, error) {
	if len(cfg.Solutions) == 0 {
		return Verdict{}, errNoSolutions
	}
	cleaned := collapseSpace(user)
	for _, sol := range cfg.Solutions {
		if collapseSpace(sol) == cleaned {
			return accepted("多解验证通过"), nil
		}
	}
	best := 0.0
	for _, sol := range cfg.Solutions {
		best = math.Max(best, Similarity(cleaned, collapseSpace(sol)))
	}
	if best >= 0.9 {
		return Verdict{Result: PartiallyCorrect, Message: fmt.Sprintf("部分匹配 (%.2f)", best), Score: best}, nil
	}
	return Verdict{Result: WrongAnswer, Message: "未找到匹配的解", Score: best}, nil
}

func judgeFormat(user, expected string, cfg *Config) (Verdict, error) {
	rules := cfg.FormatRules
	if rules.CheckLineCount {
		userLines := strings.Split(strings.TrimSpace(user), "\n")
		expectedLines := strings.Split(strings.TrimSpace(expected), "\n")
		if len(userLines) != len(expectedLines) {
			return Verdict{
				Result:  WrongAnswer,
				Message: fmt.Sprintf("行数不匹配: 期望%d行，实际%d行", len(expectedLines), len(userLines)),
			}, nil
		}
	}
	if !rules.HasLineFormat {
		return judgeExact(user, expected), nil
	}

	re, err := regexp.Compile(rules.LineFormat)
	if err != nil {
		return Verdict{}, fmt.Errorf("格式判题失败: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(user), "\n")
	correct := 0
	for _, line := range lines {
		if matchesAtStart(re, strings.TrimSpace(line)) {
			correct++
		}
	}
	ratio := fmt.Sprintf("(%d/%d)", correct, len(lines))
	return graded(float64(correct)/float64(len(lines)), 0.99, 0.8,
		"格式验证通过", "格式部分正确 "+ratio, "格式错误过多 "+ratio), nil
}

func matchesAtStart(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

func judgePartial(user, expected string, cfg *Config) (Verdict, error) {
	if len(cfg.ScoringRules) == 0 {
		return Verdict{}, errNoScoringRules
	}
	var total, maxScore float64
	for _, rule := range cfg.ScoringRules {
		maxScore += rule.Score
		ok, err := ruleSatisfied(rule, user, expected)
		if err != nil {
			return Verdict{}, fmt.Errorf("部分正确判题失败: %w", err)
		}
		if ok {
			total += rule.Score
		}
	}
	score := 0.0
	if maxScore > 0 {
		score = total / maxScore
	}
	ratio := FormatScore(total) + "/" + FormatScore(maxScore)
	return graded(score, 0.99, 0.6, "完全正确: "+ratio, "部分正确: "+ratio, "得分过低: "+ratio), nil
}

func ruleSatisfied(rule ScoringRule, user, expected string) (bool, error) {
	switch rule.Type {
	case "", TypeExact:
		return strings.TrimSpace(user) == strings.TrimSpace(expected), nil
	case "contains":
		for _, kw := range rule.Keywords {
			if !strings.Contains(user, kw) {
				return false, nil
			}
		}
		return true, nil
	case "pattern":
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(user), nil
	default:
		return false, nil
	}
}

// judgeSmart picks a strategy from the shape of the outputs.
func judgeSmart(user, expected string) (Verdict, error) {
	if decimalPattern.MatchString(user) && decimalPattern.MatchString(expected) {
		return judgeFloat(user, expected, &Config{Epsilon: defaultTolerance, RelativeError: defaultTolerance})
	}
	if strings.Contains(user, "\n") || strings.Contains(expected, "\n") {
		return judgeFormat(user, expected, &Config{FormatRules: FormatRules{CheckLineCount: true}})
	}
	return judgeExact(user, expected), nil
}

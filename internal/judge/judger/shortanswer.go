package judger

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ojjudge/internal/judge/model"

	"github.com/pmezard/go-difflib/difflib"
)

// Short answer grading weights and thresholds.
const (
	jaccardWeight  = 0.4
	keywordWeight  = 0.3
	charWeight     = 0.3
	acceptAtLeast  = 0.7
	partialAtLeast = 0.5
)

var (
	hanPattern  = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	wordPattern = regexp.MustCompile(`[a-zA-Z]+`)
)

// ShortAnswerJudge grades free text by similarity to the reference answer.
type ShortAnswerJudge struct{}

// Judge implements Judge.
func (ShortAnswerJudge) Judge(_ context.Context, sub *model.Submission, p *model.Problem) (Outcome, error) {
	reference := strings.TrimSpace(p.ExpectedOutput)
	answer := strings.TrimSpace(sub.Code)
	switch {
	case reference == "":
		return Outcome{Status: model.StatusError, Result: "题目缺少参考答案"}, nil
	case answer == "":
		return Outcome{Status: model.StatusWrongAnswer, Result: "请填写答案"}, nil
	}

	sim := AnswerSimilarity(answer, reference)
	pct := fmt.Sprintf("%.1f%%", sim*100)
	switch {
	case sim >= acceptAtLeast:
		return Outcome{Status: model.StatusAccepted, Result: fmt.Sprintf("答案正确 (相似度: %s)", pct)}, nil
	case sim >= partialAtLeast:
		return Outcome{
			Status: model.StatusPartiallyCorrect,
			Result: fmt.Sprintf("答案部分正确 (相似度: %s)\n参考答案: %s", pct, reference),
		}, nil
	default:
		return Outcome{
			Status: model.StatusWrongAnswer,
			Result: fmt.Sprintf("答案不正确 (相似度: %s)\n参考答案: %s", pct, reference),
		}, nil
	}
}

// AnswerSimilarity blends token Jaccard similarity, reference keyword coverage and a
// character sequence ratio into a score in [0, 1].
func AnswerSimilarity(answer, reference string) float64 {
	if answer == "" || reference == "" {
		return 0
	}
	refTokens := tokenSet(reference)
	if len(refTokens) == 0 {
		return 0
	}
	ansTokens := tokenSet(answer)
	inter := 0
	for tok := range ansTokens {
		if _, ok := refTokens[tok]; ok {
			inter++
		}
	}
	union := len(ansTokens) + len(refTokens) - inter
	jaccard := float64(inter) / float64(union)

	return jaccardWeight*jaccard +
		keywordWeight*keywordCoverage(answer, reference) +
		charWeight*charRatio(answer, reference)
}

// tokenSet splits Han text into characters and Latin text into lowercase words.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, ch := range hanPattern.FindAllString(s, -1) {
		set[ch] = struct{}{}
	}
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		set[w] = struct{}{}
	}
	return set
}

func keywordCoverage(answer, reference string) float64 {
	lowered := strings.ToLower(answer)
	total, matched := 0, 0
	for _, kw := range strings.Split(reference, ",") {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		total++
		if strings.Contains(lowered, strings.ToLower(kw)) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func charRatio(a, b string) float64 {
	return difflib.NewMatcher(runeStrings(strings.ToLower(a)), runeStrings(strings.ToLower(b))).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

package judger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ojjudge/internal/judge/model"
)

const (
	messageCorrect        = "答案正确"
	messageMissingCorrect = "题目缺少正确答案"
	messageNoChoice       = "请选择答案"
)

// ChoiceJudge grades single and multiple choice answers.
type ChoiceJudge struct{}

// Judge implements Judge.
func (ChoiceJudge) Judge(_ context.Context, sub *model.Submission, p *model.Problem) (Outcome, error) {
	return judgeAnswer(sub, p, NormalizeChoice), nil
}

// TrueFalseJudge grades true/false answers written in any supported vocabulary.
type TrueFalseJudge struct{}

// Judge implements Judge.
func (TrueFalseJudge) Judge(_ context.Context, sub *model.Submission, p *model.Problem) (Outcome, error) {
	return judgeAnswer(sub, p, NormalizeTrueFalse), nil
}

func judgeAnswer(sub *model.Submission, p *model.Problem, normalize func(string) string) Outcome {
	correct := strings.TrimSpace(p.ExpectedOutput)
	answer := strings.TrimSpace(sub.Code)
	switch {
	case correct == "":
		return Outcome{Status: model.StatusError, Result: messageMissingCorrect}
	case answer == "":
		return Outcome{Status: model.StatusWrongAnswer, Result: messageNoChoice}
	}
	if normalize(answer) == normalize(correct) {
		return Outcome{Status: model.StatusAccepted, Result: messageCorrect}
	}
	return Outcome{
		Status: model.StatusWrongAnswer,
		Result: fmt.Sprintf("答案错误\n你的答案: %s\n正确答案: %s", answer, correct),
	}
}

// NormalizeChoice lowercases s, drops all whitespace and sorts comma-separated parts
// so selection order does not matter.
func NormalizeChoice(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), "")
	if !strings.Contains(s, ",") {
		return s
	}
	parts := strings.Split(s, ",")
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

var trueFalseVocabulary = map[string]string{
	"true": "true", "t": "true", "yes": "true", "y": "true", "1": "true",
	"对": "true", "正确": "true", "是": "true", "真": "true",
	"false": "false", "f": "false", "no": "false", "n": "false", "0": "false",
	"错": "false", "错误": "false", "否": "false", "假": "false",
}

// NormalizeTrueFalse maps a synonym to "true" or "false"; unknown answers are returned
// lowercased.
func NormalizeTrueFalse(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := trueFalseVocabulary[s]; ok {
		return v
	}
	return s
}

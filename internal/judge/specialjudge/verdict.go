// Package specialjudge verifies program output with configurable rules or a custom
// judge script.
package specialjudge

import (
	"strconv"
	"strings"
)

// Result is the special judge verdict class.
type Result string

const (
	Accepted         Result = "ACCEPTED"
	PartiallyCorrect Result = "PARTIALLY_CORRECT"
	WrongAnswer      Result = "WRONG_ANSWER"
	Error            Result = "ERROR"
)

// ParseResult maps a script-reported verdict; unknown values become Error.
func ParseResult(s string) Result {
	switch r := Result(strings.ToUpper(strings.TrimSpace(s))); r {
	case Accepted, PartiallyCorrect, WrongAnswer, Error:
		return r
	}
	return Error
}

// Verdict is the outcome of one special judge call. Score is in [0, 1].
type Verdict struct {
	Result  Result  `json:"result"`
	Message string  `json:"message"`
	Score   float64 `json:"score"`
}

func accepted(msg string) Verdict {
	return Verdict{Result: Accepted, Message: msg, Score: 1}
}

func errorVerdict(msg string) Verdict {
	return Verdict{Result: Error, Message: msg}
}

// graded maps a score onto the three grading bands.
func graded(score, acceptAt, partialAt float64, acceptMsg, partialMsg, wrongMsg string) Verdict {
	switch {
	case score >= acceptAt:
		return accepted(acceptMsg)
	case score >= partialAt:
		return Verdict{Result: PartiallyCorrect, Message: partialMsg, Score: score}
	default:
		return Verdict{Result: WrongAnswer, Message: wrongMsg, Score: score}
	}
}

// FormatScore renders a score the way result messages show it: integral values keep
// one decimal place ("1.0"), others use the shortest exact form.
func FormatScore(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

package model

import "strings"

// ProblemType is the closed set of judgeable problem kinds.
type ProblemType int

const (
	ProblemProgramming ProblemType = iota + 1
	ProblemChoice
	ProblemTrueFalse
	ProblemShortAnswer
)

var problemTypeTags = map[string]ProblemType{
	"programming":  ProblemProgramming,
	"choice":       ProblemChoice,
	"judge":        ProblemTrueFalse,
	"short_answer": ProblemShortAnswer,
}

// ParseProblemType maps a stored type tag to a ProblemType.
func ParseProblemType(tag string) (ProblemType, bool) {
	t, ok := problemTypeTags[strings.TrimSpace(tag)]
	return t, ok
}

// String returns the stored tag.
func (t ProblemType) String() string {
	switch t {
	case ProblemProgramming:
		return "programming"
	case ProblemChoice:
		return "choice"
	case ProblemTrueFalse:
		return "judge"
	case ProblemShortAnswer:
		return "short_answer"
	default:
		return "unknown"
	}
}

// Default limits applied when the stored columns are zero.
const (
	DefaultTimeLimitMs           = 1000
	DefaultMemoryLimitMB         = 128
	DefaultSpecialJudgeTimeoutMs = 5000
	DefaultSpecialJudgeMemoryMB  = 256
	DefaultSpecialJudgeLanguage  = "python"
)

// Problem holds the fields the judge reads from the problem table.
type Problem struct {
	ID             int64
	Title          string
	Type           string
	TestCases      string
	ExpectedOutput string
	TimeLimit      int // ms
	MemoryLimit    int // MB

	EnableSpecialJudge      bool
	SpecialJudgeScript      string
	SpecialJudgeLanguage    string
	SpecialJudgeTimeout     int // ms
	SpecialJudgeMemoryLimit int // MB
	JudgeConfig             string
}

// ApplyDefaults fills zero limits with the column defaults.
func (p *Problem) ApplyDefaults() {
	if p.TimeLimit <= 0 {
		p.TimeLimit = DefaultTimeLimitMs
	}
	if p.MemoryLimit <= 0 {
		p.MemoryLimit = DefaultMemoryLimitMB
	}
	if p.SpecialJudgeLanguage == "" {
		p.SpecialJudgeLanguage = DefaultSpecialJudgeLanguage
	}
	if p.SpecialJudgeTimeout <= 0 {
		p.SpecialJudgeTimeout = DefaultSpecialJudgeTimeoutMs
	}
	if p.SpecialJudgeMemoryLimit <= 0 {
		p.SpecialJudgeMemoryLimit = DefaultSpecialJudgeMemoryMB
	}
}

package testcase

import (
	"strings"

	"ojjudge/internal/judge/model"
)

// Mode selects how the programming judge runs and compares a plan.
type Mode int

const (
	// ModeStructured runs every case and compares normalized blocks.
	ModeStructured Mode = iota + 1
	// ModeNoInputMultiLine runs once with empty input and compares line sequences.
	ModeNoInputMultiLine
	// ModeLegacyZip runs one input line per expected output line.
	ModeLegacyZip
)

func (m Mode) String() string {
	switch m {
	case ModeStructured:
		return "structured"
	case ModeNoInputMultiLine:
		return "no_input_multi_line"
	case ModeLegacyZip:
		return "legacy_zip"
	default:
		return "unknown"
	}
}

// Plan is the uniform, ordered view of a problem's test data.
type Plan struct {
	Mode  Mode
	Cases []Case
	// ExpectedLines is set for ModeNoInputMultiLine.
	ExpectedLines []string
}

// ResolveProblem parses the problem's test cases and builds its plan.
func ResolveProblem(p *model.Problem) Plan {
	return Resolve(Parse(p.TestCases), p.ExpectedOutput)
}

// Resolve builds a plan from a detected source and the problem's expected output.
func Resolve(src Source, expectedOutput string) Plan {
	if s, ok := src.(Structured); ok {
		return Plan{Mode: ModeStructured, Cases: s.Cases}
	}
	raw := ""
	if l, ok := src.(Legacy); ok {
		raw = l.Raw
	}

	inputs := legacyInputs(raw)
	expected := SplitLines(expectedOutput)

	if allBlank(inputs) {
		if len(expected) > 1 {
			return Plan{
				Mode:          ModeNoInputMultiLine,
				Cases:         []Case{{Input: ""}},
				ExpectedLines: expected,
			}
		}
		inputs = []string{""}
	}

	n := min(len(inputs), len(expected))
	cases := make([]Case, 0, n)
	for i := 0; i < n; i++ {
		cases = append(cases, Case{Input: inputs[i], Output: expected[i]})
	}
	return Plan{Mode: ModeLegacyZip, Cases: cases}
}

// legacyInputs splits raw on newlines, keeping empty lines (no stdin) and dropping
// lines that hold only whitespace.
func legacyInputs(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line == "" || strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func allBlank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

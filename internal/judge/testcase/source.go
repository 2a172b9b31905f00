// Package testcase turns a problem's stored test data into an ordered run plan.
package testcase

import (
	"encoding/json"
	"io"
	"strings"
)

// Case is one (input, expected output) pair.
type Case struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Source is the result of the one-shot format detection: Structured or Legacy.
type Source interface {
	isSource()
}

// Structured holds cases decoded from a JSON array of objects.
type Structured struct {
	Cases []Case
}

// Legacy holds the raw newline-delimited text.
type Legacy struct {
	Raw string
}

func (Structured) isSource() {}
func (Legacy) isSource()     {}

// Parse detects the encoding of testCases. A non-empty JSON array whose elements are
// all objects is Structured; everything else is Legacy.
func Parse(testCases string) Source {
	if cases, ok := parseStructured(testCases); ok {
		return Structured{Cases: cases}
	}
	return Legacy{Raw: testCases}
}

func parseStructured(raw string) ([]Case, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	cases := make([]Case, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		cases = append(cases, Case{
			Input:  stringify(obj["input"]),
			Output: stringify(obj["output"]),
		})
	}
	return cases, true
}

// stringify renders a decoded JSON value as case text. Missing and null become "".
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

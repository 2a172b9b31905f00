package specialjudge

import (
	"encoding/json"
	"fmt"
	"strings"

	appErr "ojjudge/pkg/errors"
)

// Strategy types accepted in the "type" field of a judge config.
const (
	TypeExact             = "exact"
	TypeFloat             = "float"
	TypeMultipleSolutions = "multiple_solutions"
	TypeFormat            = "format"
	TypePartial           = "partial"
)

const defaultTolerance = 1e-6

// Config is a decoded judge_config blob. Raw keeps the full object for judge scripts.
type Config struct {
	Type          string
	Epsilon       float64
	RelativeError float64
	Solutions     []string
	FormatRules   FormatRules
	ScoringRules  []ScoringRule
	Raw           map[string]any
}

// FormatRules configures the format strategy. Presence of line_count enables the
// line count check regardless of its value.
type FormatRules struct {
	CheckLineCount bool
	LineFormat     string
	HasLineFormat  bool
}

// ScoringRule is one weighted rule of the partial strategy.
type ScoringRule struct {
	Type     string   `json:"type"`
	Score    float64  `json:"score"`
	Keywords []string `json:"keywords"`
	Pattern  string   `json:"pattern"`
}

// Empty reports whether no rule was configured; empty configs use smart detection.
func (c *Config) Empty() bool {
	return c == nil || len(c.Raw) == 0
}

type rawConfig struct {
	Type          string                     `json:"type"`
	Epsilon       *float64                   `json:"epsilon"`
	RelativeError *float64                   `json:"relative_error"`
	Solutions     []string                   `json:"solutions"`
	FormatRules   map[string]json.RawMessage `json:"format_rules"`
	ScoringRules  []ScoringRule              `json:"scoring_rules"`
}

// ParseConfig decodes a judge_config blob. A blank blob or JSON null yields an empty
// config; malformed JSON or a non-object is an error.
func ParseConfig(raw string) (*Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return &Config{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeConfigInvalid, "decode judge config: %v", err)
	}
	var rc rawConfig
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeConfigInvalid, "decode judge config: %v", err)
	}

	cfg := &Config{
		Type:          rc.Type,
		Epsilon:       defaultTolerance,
		RelativeError: defaultTolerance,
		Solutions:     rc.Solutions,
		ScoringRules:  rc.ScoringRules,
		Raw:           obj,
	}
	if cfg.Type == "" {
		cfg.Type = TypeExact
	}
	if rc.Epsilon != nil {
		cfg.Epsilon = *rc.Epsilon
	}
	if rc.RelativeError != nil {
		cfg.RelativeError = *rc.RelativeError
	}
	if rc.FormatRules != nil {
		_, cfg.FormatRules.CheckLineCount = rc.FormatRules["line_count"]
		if lf, ok := rc.FormatRules["line_format"]; ok {
			if err := json.Unmarshal(lf, &cfg.FormatRules.LineFormat); err != nil {
				return nil, fmt.Errorf("decode line_format: %w", err)
			}
			cfg.FormatRules.HasLineFormat = true
		}
	}
	return cfg, nil
}

package metrics

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed rules/default.yaml
var defaultRulesYAML []byte

// Kind identifies the source entity a rule applies to.
type Kind string

const (
	KindNews Kind = "news"
	KindBill Kind = "bill"
)

// Stage is a named legislative stage with its progress percentage.
type Stage struct {
	Name     string `yaml:"stage"`
	Progress int    `yaml:"progress"`
}

// StageRule matches a latest-action text when every AllOf phrase is present
// and, if AnyOf is non-empty, at least one AnyOf phrase is present.
type StageRule struct {
	AllOf    []string `yaml:"all_of"`
	AnyOf    []string `yaml:"any_of"`
	Stage    string   `yaml:"stage"`
	Progress int      `yaml:"progress"`
}

func (r StageRule) matches(text string) bool {
	if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
		return false
	}
	for _, p := range r.AllOf {
		if !strings.Contains(text, p) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	return containsAny(text, r.AnyOf)
}

// TagRule adds Tag when any phrase occurs in the text. Kinds restricts the
// rule to the listed entity kinds; empty means all kinds.
type TagRule struct {
	Tag   string   `yaml:"tag"`
	AnyOf []string `yaml:"any_of"`
	Kinds []Kind   `yaml:"kinds"`
}

func (r TagRule) appliesTo(k Kind) bool {
	if len(r.Kinds) == 0 {
		return true
	}
	for _, kk := range r.Kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// RuleSet holds every editable table used by the classifiers.
type RuleSet struct {
	ImpactKeywords      []string      `yaml:"impact_keywords"`
	ImpactHighThreshold int           `yaml:"impact_high_threshold"`
	WordsPerMinute      int           `yaml:"words_per_minute"`
	MaxReadingMinutes   int           `yaml:"max_reading_minutes"`
	StageRules          []StageRule   `yaml:"stage_rules"`
	NoAction            Stage         `yaml:"no_action"`
	FallbackStage       Stage         `yaml:"fallback_stage"`
	TagRules            []TagRule     `yaml:"tag_rules"`
	BreakingWindow      time.Duration `yaml:"breaking_window"`
}

var (
	defaultOnce  sync.Once
	defaultRules *RuleSet
)

// Default returns the built-in rule set. The returned value must not be mutated.
func Default() *RuleSet {
	defaultOnce.Do(func() {
		rs, err := ParseRules(nil)
		if err != nil {
			panic(fmt.Sprintf("metrics: embedded rules are invalid: %v", err))
		}
		defaultRules = rs
	})
	return defaultRules
}

// ParseRules decodes an override document on top of the built-in defaults.
// A nil or empty override yields the defaults.
func ParseRules(override []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(defaultRulesYAML, &rs); err != nil {
		return nil, fmt.Errorf("parsing default rules: %w", err)
	}
	if len(override) > 0 {
		if err := yaml.Unmarshal(override, &rs); err != nil {
			return nil, fmt.Errorf("parsing rules override: %w", err)
		}
	}
	rs.normalize()
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRules reads an override file from path. An empty path yields the defaults.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// normalize lowercases every phrase so matching can run on lowercased text.
func (rs *RuleSet) normalize() {
	lowerAll(rs.ImpactKeywords)
	for i := range rs.StageRules {
		lowerAll(rs.StageRules[i].AllOf)
		lowerAll(rs.StageRules[i].AnyOf)
	}
	for i := range rs.TagRules {
		lowerAll(rs.TagRules[i].AnyOf)
		rs.TagRules[i].Tag = strings.ToLower(strings.TrimSpace(rs.TagRules[i].Tag))
	}
}

func (rs *RuleSet) validate() error {
	if rs.WordsPerMinute <= 0 {
		return fmt.Errorf("words_per_minute must be positive, got %d", rs.WordsPerMinute)
	}
	if rs.MaxReadingMinutes < 1 {
		return fmt.Errorf("max_reading_minutes must be at least 1, got %d", rs.MaxReadingMinutes)
	}
	if rs.ImpactHighThreshold < 2 {
		return fmt.Errorf("impact_high_threshold must be at least 2, got %d", rs.ImpactHighThreshold)
	}
	for i, r := range rs.StageRules {
		if r.Stage == "" {
			return fmt.Errorf("stage_rules[%d]: stage is required", i)
		}
		if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
			return fmt.Errorf("stage_rules[%d]: at least one of all_of or any_of is required", i)
		}
		if r.Progress < 0 || r.Progress > 100 {
			return fmt.Errorf("stage_rules[%d]: progress %d out of range", i, r.Progress)
		}
	}
	for i, r := range rs.TagRules {
		if r.Tag == "" {
			return fmt.Errorf("tag_rules[%d]: tag is required", i)
		}
	}
	return nil
}

func lowerAll(ss []string) {
	for i, s := range ss {
		ss[i] = strings.ToLower(s)
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

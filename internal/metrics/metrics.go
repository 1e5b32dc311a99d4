// Package metrics computes the derived scores and classifications attached
// to enrichment records. Everything here is pure: no I/O, no clocks except
// the ones passed in.
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ImpactLevel is the coarse impact classification of an entity.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// singlePartyScore is reported when every cosponsor belongs to the same party.
const singlePartyScore = 25

// BipartisanScore returns the normalized Shannon entropy of the cosponsor
// party distribution scaled to [0,100]. Parties with a non-positive count
// are ignored.
func BipartisanScore(partyCounts map[string]int) int {
	total := 0
	parties := 0
	for _, n := range partyCounts {
		if n > 0 {
			total += n
			parties++
		}
	}
	if total == 0 {
		return 0
	}
	if parties == 1 {
		return singlePartyScore
	}

	var h float64
	for _, n := range partyCounts {
		if n <= 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	score := int(math.Round(h / math.Log2(float64(parties)) * 100))
	return clamp(score, 0, 100)
}

// ImpactLevel counts the impact keywords present in title and summary.
func (rs *RuleSet) ImpactLevel(title, summary string) ImpactLevel {
	text := strings.ToLower(title + " " + summary)
	matches := 0
	for _, kw := range rs.ImpactKeywords {
		if kw != "" && strings.Contains(text, kw) {
			matches++
		}
	}
	switch {
	case matches >= rs.ImpactHighThreshold:
		return ImpactHigh
	case matches >= 1:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// ReadingTime estimates minutes to read text, clamped to [1, MaxReadingMinutes].
func (rs *RuleSet) ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / float64(rs.WordsPerMinute)))
	return clamp(minutes, 1, rs.MaxReadingMinutes)
}

// Stage classifies a latest-action description. A nil or blank action maps
// to NoAction; text matching no rule maps to FallbackStage.
func (rs *RuleSet) Stage(latestAction *string) Stage {
	if latestAction == nil || strings.TrimSpace(*latestAction) == "" {
		return rs.NoAction
	}
	text := strings.ToLower(*latestAction)
	for _, r := range rs.StageRules {
		if r.matches(text) {
			return Stage{Name: r.Stage, Progress: r.Progress}
		}
	}
	return rs.FallbackStage
}

// TagInput carries everything tag extraction looks at.
type TagInput struct {
	Kind           Kind
	Text           string
	PublishedAt    *time.Time
	Now            time.Time
	AffectedGroups []string
}

// Tags derives keyword tags and unions them with the model-supplied affected
// groups. The result is lowercased, de-duplicated and sorted.
func (rs *RuleSet) Tags(in TagInput) []string {
	text := strings.ToLower(in.Text)
	set := make(map[string]struct{})

	for _, r := range rs.TagRules {
		if r.appliesTo(in.Kind) && containsAny(text, r.AnyOf) {
			set[r.Tag] = struct{}{}
		}
	}

	if in.Kind == KindNews && in.PublishedAt != nil && rs.BreakingWindow > 0 {
		age := in.Now.Sub(*in.PublishedAt)
		if age >= 0 && age < rs.BreakingWindow {
			set["breaking"] = struct{}{}
		}
	}

	for _, g := range in.AffectedGroups {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			set[g] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

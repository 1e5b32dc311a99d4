package coerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QuickSummary is the card-level shape requested from the quick model.
type QuickSummary struct {
	Summary        string     `json:"summary"`
	KeyPoints      StringList `json:"key_points"`
	Benefits       StringList `json:"benefits"`
	Concerns       StringList `json:"concerns"`
	AffectedGroups StringList `json:"affected_groups"`
}

// FiscalImpact is the cost breakdown of a deep analysis.
type FiscalImpact struct {
	EstimatedCost string `json:"estimated_cost"`
	FundingSource string `json:"funding_source"`
	Timeframe     string `json:"timeframe"`
}

// DeepAnalysis is the multi-section shape requested from the deep model.
// RecentDevelopments and StateImpacts are only requested for federal bills.
type DeepAnalysis struct {
	ExecutiveSummary         string       `json:"executive_summary"`
	StatusQuoVsChange        string       `json:"status_quo_vs_change"`
	SectionBreakdown         StringList   `json:"section_breakdown"`
	MechanismOfAction        string       `json:"mechanism_of_action"`
	AgencyPowers             StringList   `json:"agency_powers"`
	FiscalImpact             FiscalImpact `json:"fiscal_impact"`
	StakeholderImpact        StringMap    `json:"stakeholder_impact"`
	UnintendedConsequences   StringList   `json:"unintended_consequences"`
	ArgumentsFor             StringList   `json:"arguments_for"`
	ArgumentsAgainst         StringList   `json:"arguments_against"`
	ImplementationChallenges StringList   `json:"implementation_challenges"`
	PassageLikelihood        Percent      `json:"passage_likelihood"`
	PassageReasoning         string       `json:"passage_reasoning"`
	RecentDevelopments       StringList   `json:"recent_developments"`
	StateImpacts             StringMap    `json:"state_impacts"`
}

// DecodeQuick coerces raw quick-model output. The boolean reports whether
// the output parsed; when false the summary is the leading raw text.
func DecodeQuick(raw string) (QuickSummary, bool) {
	var q QuickSummary
	if Unmarshal(raw, &q) {
		return q, true
	}
	return QuickSummary{Summary: Snippet(raw, FallbackSummaryLen)}, false
}

// DecodeDeep coerces raw deep-model output. The boolean reports whether the
// output parsed; when false the executive summary is the leading raw text.
func DecodeDeep(raw string) (DeepAnalysis, bool) {
	var d DeepAnalysis
	if Unmarshal(raw, &d) {
		return d, true
	}
	return DeepAnalysis{ExecutiveSummary: Snippet(raw, FallbackSummaryLen)}, false
}

// fields splits a JSON object into its members. Only a non-object is an
// error; member values are decoded leniently by the helpers below.
type fields map[string]json.RawMessage

func objectFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// text renders any member value as a string; objects and arrays become
// compact JSON.
func (f fields) text(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return scalarString(v)
}

// decode fills dst from a member, leaving it zero when the member has the
// wrong shape.
func (f fields) decode(key string, dst json.Unmarshaler) {
	raw, ok := f[key]
	if !ok {
		return
	}
	_ = dst.UnmarshalJSON(raw)
}

func (q *QuickSummary) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*q = QuickSummary{Summary: f.text("summary")}
	f.decode("key_points", &q.KeyPoints)
	f.decode("benefits", &q.Benefits)
	f.decode("concerns", &q.Concerns)
	f.decode("affected_groups", &q.AffectedGroups)
	return nil
}

func (d *DeepAnalysis) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*d = DeepAnalysis{
		ExecutiveSummary:  f.text("executive_summary"),
		StatusQuoVsChange: f.text("status_quo_vs_change"),
		MechanismOfAction: f.text("mechanism_of_action"),
		PassageReasoning:  f.text("passage_reasoning"),
	}
	f.decode("section_breakdown", &d.SectionBreakdown)
	f.decode("agency_powers", &d.AgencyPowers)
	f.decode("fiscal_impact", &d.FiscalImpact)
	f.decode("stakeholder_impact", &d.StakeholderImpact)
	f.decode("unintended_consequences", &d.UnintendedConsequences)
	f.decode("arguments_for", &d.ArgumentsFor)
	f.decode("arguments_against", &d.ArgumentsAgainst)
	f.decode("implementation_challenges", &d.ImplementationChallenges)
	f.decode("passage_likelihood", &d.PassageLikelihood)
	f.decode("recent_developments", &d.RecentDevelopments)
	f.decode("state_impacts", &d.StateImpacts)
	return nil
}

// UnmarshalJSON accepts the object form or a bare string, which is taken as
// the estimated cost.
func (fi *FiscalImpact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*fi = FiscalImpact{EstimatedCost: s}
		return nil
	}
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*fi = FiscalImpact{
		EstimatedCost: f.text("estimated_cost"),
		FundingSource: f.text("funding_source"),
		Timeframe:     f.text("timeframe"),
	}
	return nil
}

// StringList accepts a JSON array of scalars or a single string. A single
// string is split on newlines with list bullets removed.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitLines(s)
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s := strings.TrimSpace(scalarString(it))
		if s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// StringMap accepts a JSON object whose values may be any scalar or nested
// value; non-string values are rendered as compact JSON.
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		out[k] = scalarString(v)
	}
	*m = out
	return nil
}

// Percent accepts a number or a numeric string such as "65" or "65%" and
// clamps the result to [0,100]. Anything else, such as "Moderate", is 0.
type Percent int

func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = 0
	var f float64
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
		if err != nil {
			return nil
		}
		f = v
	} else if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	v := int(math.Round(f))
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	*p = Percent(v)
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

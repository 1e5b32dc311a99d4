package coerce

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain JSON unchanged", `{"a":1}`, `{"a":1}`},
		{"json fenced block", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fenced block", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"fence without closing", "```json\n{\"a\":1}", `{"a":1}`},
		{"inner backticks untouched", "say ```hi```", "say ```hi```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, StripFences(tt.input), tt.want)
		})
	}
}

func TestObject_FencedJSON(t *testing.T) {
	got := Object("```json\n{\"a\":1}\n```")
	assert.Equal(t, got, map[string]any{"a": float64(1)})
}

func TestObject_ProseAroundJSON(t *testing.T) {
	got := Object("Here is the analysis:\n{\"summary\":\"ok\"}\nHope this helps!")
	assert.Equal(t, got["summary"], "ok")
}

func TestObject_FallbackNeverPanics(t *testing.T) {
	got := Object("not json at all")
	assert.Equal(t, got["summary"], "not json at all")
	assert.Equal(t, got["executive_summary"], "not json at all")
	assert.Equal(t, got["key_points"], []any{})
}

func TestObject_FallbackTruncates(t *testing.T) {
	raw := strings.Repeat("é", FallbackSummaryLen+100)
	got := Object(raw)
	s, ok := got["summary"].(string)
	if !ok {
		t.Fatalf("summary is %T, want string", got["summary"])
	}
	assert.Equal(t, len([]rune(s)), FallbackSummaryLen)
}

func TestObject_ArrayIsNotAnObject(t *testing.T) {
	got := Object(`["a","b"]`)
	assert.Equal(t, got["summary"], `["a","b"]`)
}

func TestDecodeQuick(t *testing.T) {
	raw := "```json\n" + `{
		"summary": "Expands rural broadband.",
		"key_points": ["Funds towers", "Sets deadlines"],
		"benefits": "- Faster internet\n- More jobs",
		"concerns": [],
		"affected_groups": ["rural residents", 42]
	}` + "\n```"

	q, ok := DecodeQuick(raw)
	if !ok {
		t.Fatal("DecodeQuick reported failure for valid JSON")
	}
	assert.Equal(t, q.Summary, "Expands rural broadband.")
	assert.Equal(t, []string(q.KeyPoints), []string{"Funds towers", "Sets deadlines"})
	assert.Equal(t, []string(q.Benefits), []string{"Faster internet", "More jobs"})
	assert.Equal(t, len(q.Concerns), 0)
	assert.Equal(t, []string(q.AffectedGroups), []string{"rural residents", "42"})
}

func TestDecodeQuick_Fallback(t *testing.T) {
	q, ok := DecodeQuick("The model refused to produce JSON.")
	if ok {
		t.Fatal("DecodeQuick reported success for prose")
	}
	assert.Equal(t, q.Summary, "The model refused to produce JSON.")
	assert.Equal(t, len(q.KeyPoints), 0)
}

func TestDecodeDeep(t *testing.T) {
	raw := `{
		"executive_summary": "Creates a grant program.",
		"section_breakdown": ["Sec. 1 title", "Sec. 2 grants"],
		"fiscal_impact": {"estimated_cost": "$2B", "funding_source": "appropriations", "timeframe": "5 years"},
		"stakeholder_impact": {"states": "new grants", "agencies": {"lead": "HHS"}},
		"passage_likelihood": "65%",
		"state_impacts": {"CA": "largest share"}
	}`
	d, ok := DecodeDeep(raw)
	if !ok {
		t.Fatal("DecodeDeep reported failure for valid JSON")
	}
	assert.Equal(t, d.ExecutiveSummary, "Creates a grant program.")
	assert.Equal(t, len(d.SectionBreakdown), 2)
	assert.Equal(t, d.FiscalImpact.EstimatedCost, "$2B")
	assert.Equal(t, d.StakeholderImpact["states"], "new grants")
	assert.Equal(t, d.StakeholderImpact["agencies"], `{"lead":"HHS"}`)
	assert.Equal(t, d.PassageLikelihood, Percent(65))
	assert.Equal(t, d.StateImpacts["CA"], "largest share")
}

func TestPercent_Clamps(t *testing.T) {
	tests := map[string]Percent{
		`{"passage_likelihood": 140}`:    100,
		`{"passage_likelihood": -3}`:     0,
		`{"passage_likelihood": 33.6}`:   34,
		`{"passage_likelihood": null}`:   0,
		`{"passage_likelihood": " 7 %"}`: 7,
	}
	for raw, want := range tests {
		d, ok := DecodeDeep(raw)
		if !ok {
			t.Errorf("DecodeDeep(%s) failed", raw)
			continue
		}
		assert.Equal(t, d.PassageLikelihood, want)
	}
}

func TestDecodeDeep_OffTypeFieldsDegrade(t *testing.T) {
	raw := `{"executive_summary":"Expands rural broadband.","arguments_for":["access"],` +
		`"passage_likelihood":"Moderate","passage_reasoning":"Broad support.",` +
		`"fiscal_impact":"$2B over 5 years","state_impacts":["not","a","map"],"agency_powers":42}`
	d, ok := DecodeDeep(raw)
	if !ok {
		t.Fatal("valid JSON with off-type fields should not fall back")
	}
	assert.Equal(t, d.ExecutiveSummary, "Expands rural broadband.")
	assert.Equal(t, len(d.ArgumentsFor), 1)
	assert.Equal(t, d.PassageLikelihood, Percent(0))
	assert.Equal(t, d.PassageReasoning, "Broad support.")
	assert.Equal(t, d.FiscalImpact.EstimatedCost, "$2B over 5 years")
	assert.Equal(t, len(d.StateImpacts), 0)
	assert.Equal(t, len(d.AgencyPowers), 0)
}

func TestDecodeQuick_NonStringSummary(t *testing.T) {
	q, ok := DecodeQuick(`{"summary":{"text":"nested"},"key_points":"one\n- two","concerns":7}`)
	if !ok {
		t.Fatal("DecodeQuick reported failure for valid JSON")
	}
	assert.Equal(t, q.Summary, `{"text":"nested"}`)
	assert.Equal(t, len(q.KeyPoints), 2)
	assert.Equal(t, len(q.Concerns), 0)
}

func TestDecodeDeep_NonObjectFallsBack(t *testing.T) {
	d, ok := DecodeDeep(`["not", "an", "object"]`)
	if ok {
		t.Fatal("expected fallback for a JSON array")
	}
	assert.Equal(t, d.ExecutiveSummary, `["not", "an", "object"]`)
}

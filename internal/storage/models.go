package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Processing status of an enrichment or analysis record.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

type NewsArticle struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type Cosponsor struct {
	Name  string `json:"name"`
	Party string `json:"party"`
}

type Bill struct {
	ID               string      `json:"id"`
	Congress         int         `json:"congress"`
	BillType         string      `json:"bill_type"`
	BillNumber       string      `json:"bill_number"`
	Title            string      `json:"title"`
	SponsorName      string      `json:"sponsor_name"`
	SponsorParty     string      `json:"sponsor_party"`
	IntroducedDate   string      `json:"introduced_date"`
	LatestActionText *string     `json:"latest_action_text,omitempty"`
	LatestActionDate string      `json:"latest_action_date"`
	PolicyArea       string      `json:"policy_area"`
	FullText         string      `json:"full_text"`
	FullTextFormat   string      `json:"full_text_format"`
	Cosponsors       []Cosponsor `json:"cosponsors"`
}

// PartyCounts tallies cosponsors by party.
func (b Bill) PartyCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range b.Cosponsors {
		counts[c.Party]++
	}
	return counts
}

type StateBill struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	Session        string   `json:"session"`
	Identifier     string   `json:"identifier"`
	Title          string   `json:"title"`
	Abstract       string   `json:"abstract"`
	Subjects       []string `json:"subjects"`
	LatestAction   *string  `json:"latest_action,omitempty"`
	FullText       string   `json:"full_text"`
	FullTextFormat string   `json:"full_text_format"`
}

// Enrichment is the quick-summary record for a news article or a bill.
// BipartisanScore, CurrentStage and ProgressPercentage are only set for bills.
type Enrichment struct {
	EntityID             string     `json:"entity_id"`
	PlainLanguageSummary string     `json:"plain_language_summary"`
	KeyPoints            []string   `json:"key_points"`
	Benefits             []string   `json:"benefits"`
	Concerns             []string   `json:"concerns"`
	AffectedGroups       []string   `json:"affected_groups"`
	ReadingTimeMinutes   int        `json:"reading_time_minutes"`
	ImpactLevel          string     `json:"impact_level"`
	BipartisanScore      *int       `json:"bipartisan_score,omitempty"`
	CurrentStage         *string    `json:"current_stage,omitempty"`
	ProgressPercentage   *int       `json:"progress_percentage,omitempty"`
	Tags                 []string   `json:"tags"`
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ModelUsed            string     `json:"model_used"`
	ErrorMessage         string     `json:"error_message,omitempty"`
}

type FiscalImpact struct {
	EstimatedCost string `json:"estimated_cost"`
	FundingSource string `json:"funding_source"`
	Timeframe     string `json:"timeframe"`
}

// Analysis is the deep-analysis record for a federal or state bill.
// RecentDevelopments and StateImpacts are only persisted for federal bills.
type Analysis struct {
	EntityID                 string            `json:"entity_id"`
	ExecutiveSummary         string            `json:"executive_summary"`
	StatusQuoVsChange        string            `json:"status_quo_vs_change"`
	SectionBreakdown         []string          `json:"section_breakdown"`
	MechanismOfAction        string            `json:"mechanism_of_action"`
	AgencyPowers             []string          `json:"agency_powers"`
	FiscalImpact             FiscalImpact      `json:"fiscal_impact"`
	StakeholderImpact        map[string]string `json:"stakeholder_impact"`
	UnintendedConsequences   []string          `json:"unintended_consequences"`
	ArgumentsFor             []string          `json:"arguments_for"`
	ArgumentsAgainst         []string          `json:"arguments_against"`
	ImplementationChallenges []string          `json:"implementation_challenges"`
	PassageLikelihood        int               `json:"passage_likelihood"`
	PassageReasoning         string            `json:"passage_reasoning"`
	RecentDevelopments       []string          `json:"recent_developments,omitempty"`
	StateImpacts             map[string]string `json:"state_impacts,omitempty"`
	Status                   string            `json:"status"`
	StartedAt                time.Time         `json:"started_at"`
	CompletedAt              *time.Time        `json:"completed_at,omitempty"`
	ModelUsed                string            `json:"model_used"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	LeaseUntil  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// encodeJSON renders list and map columns. Nil values are stored as empty
// collections so readers never see JSON null.
func encodeJSON(v any) (string, error) {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return "[]", nil
		}
	case []Cosponsor:
		if t == nil {
			return "[]", nil
		}
	case map[string]string:
		if t == nil {
			return "{}", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func decodeMap(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

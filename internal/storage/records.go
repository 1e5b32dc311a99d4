package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	tableNewsEnrichment    = "news_enrichment"
	tableBillEnrichment    = "bill_enrichment"
	tableBillAnalysis      = "bill_analysis"
	tableStateBillAnalysis = "state_bill_analysis"
)

var enrichmentColumns = []string{
	"entity_id", "plain_language_summary", "key_points", "benefits", "concerns", "affected_groups",
	"reading_time_minutes", "impact_level", "bipartisan_score", "current_stage", "progress_percentage",
	"tags", "status", "started_at", "completed_at", "model_used", "error_message",
}

func (s *Store) UpsertNewsEnrichment(ctx context.Context, e Enrichment) error {
	return s.upsertEnrichment(ctx, tableNewsEnrichment, e)
}

func (s *Store) UpsertBillEnrichment(ctx context.Context, e Enrichment) error {
	return s.upsertEnrichment(ctx, tableBillEnrichment, e)
}

func (s *Store) GetNewsEnrichment(ctx context.Context, id string) (Enrichment, error) {
	return s.getEnrichment(ctx, tableNewsEnrichment, id)
}

func (s *Store) GetBillEnrichment(ctx context.Context, id string) (Enrichment, error) {
	return s.getEnrichment(ctx, tableBillEnrichment, id)
}

// MarkNewsEnrichmentProcessing records that a news enrichment has started.
// On an existing row only status, started_at and model_used change, so a
// previous result survives until the new one is written.
func (s *Store) MarkNewsEnrichmentProcessing(ctx context.Context, id, model string, started time.Time) error {
	return s.markEnrichmentProcessing(ctx, tableNewsEnrichment, id, model, started)
}

// MarkBillEnrichmentProcessing is MarkNewsEnrichmentProcessing for bill records.
func (s *Store) MarkBillEnrichmentProcessing(ctx context.Context, id, model string, started time.Time) error {
	return s.markEnrichmentProcessing(ctx, tableBillEnrichment, id, model, started)
}

// MarkNewsEnrichmentFailed sets status=failed on a news record, creating a
// minimal row if none exists. summary replaces the plain-language summary
// and detail is kept in error_message; list fields are left untouched.
func (s *Store) MarkNewsEnrichmentFailed(ctx context.Context, id, model, summary, detail string) error {
	return s.markEnrichmentFailed(ctx, tableNewsEnrichment, id, model, summary, detail)
}

// MarkBillEnrichmentFailed is MarkNewsEnrichmentFailed for bill records.
func (s *Store) MarkBillEnrichmentFailed(ctx context.Context, id, model, summary, detail string) error {
	return s.markEnrichmentFailed(ctx, tableBillEnrichment, id, model, summary, detail)
}

func (s *Store) upsertEnrichment(ctx context.Context, table string, e Enrichment) error {
	if e.EntityID == "" {
		return errors.New("enrichment entity_id is required")
	}
	lists := make([]string, 0, 5)
	for _, l := range [][]string{e.KeyPoints, e.Benefits, e.Concerns, e.AffectedGroups, e.Tags} {
		enc, err := encodeJSON(l)
		if err != nil {
			return err
		}
		lists = append(lists, enc)
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	impact := e.ImpactLevel
	if impact == "" {
		impact = "low"
	}
	reading := e.ReadingTimeMinutes
	if reading < 1 {
		reading = 1
	}

	q, args, err := s.sb.Insert(table).
		Columns(enrichmentColumns...).
		Values(e.EntityID, e.PlainLanguageSummary, lists[0], lists[1], lists[2], lists[3],
			reading, impact, e.BipartisanScore, e.CurrentStage, e.ProgressPercentage,
			lists[4], e.Status, formatTime(e.StartedAt), formatTimePtr(e.CompletedAt), e.ModelUsed, e.ErrorMessage).
		Suffix(upsertSuffix("entity_id", enrichmentColumns)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upserting %s: %w", table, err)
	}
	return nil
}

func (s *Store) markEnrichmentProcessing(ctx context.Context, table, id, model string, started time.Time) error {
	if id == "" {
		return errors.New("enrichment entity_id is required")
	}
	cols := []string{"entity_id", "status", "started_at", "model_used"}
	err := s.upsertColumns(ctx, table, cols, []any{id, StatusProcessing, formatTime(started), model}, cols)
	if err != nil {
		return fmt.Errorf("marking %s processing: %w", table, err)
	}
	return nil
}

func (s *Store) markEnrichmentFailed(ctx context.Context, table, id, model, summary, detail string) error {
	now := formatTime(time.Now())
	cols := []string{"entity_id", "plain_language_summary", "status", "started_at", "completed_at", "model_used", "error_message"}
	update := []string{"plain_language_summary", "status", "completed_at", "model_used", "error_message"}
	err := s.upsertColumns(ctx, table, cols, []any{id, summary, StatusFailed, now, now, model, detail}, update)
	if err != nil {
		return fmt.Errorf("marking %s failed: %w", table, err)
	}
	return nil
}

// upsertColumns inserts a row from cols and, on a key conflict, overwrites
// only the update columns.
func (s *Store) upsertColumns(ctx context.Context, table string, cols []string, values []any, update []string) error {
	q, args, err := s.sb.Insert(table).
		Columns(cols...).
		Values(values...).
		Suffix(upsertSuffix("entity_id", update)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) getEnrichment(ctx context.Context, table, id string) (Enrichment, error) {
	q, args, err := s.sb.Select(enrichmentColumns...).From(table).Where(sq.Eq{"entity_id": id}).ToSql()
	if err != nil {
		return Enrichment{}, err
	}

	var e Enrichment
	var keyPoints, benefits, concerns, groups, tags, startedAt string
	var bipartisan, progress sql.NullInt64
	var stage, completedAt sql.NullString
	err = s.db.QueryRowContext(ctx, q, args...).Scan(
		&e.EntityID, &e.PlainLanguageSummary, &keyPoints, &benefits, &concerns, &groups,
		&e.ReadingTimeMinutes, &e.ImpactLevel, &bipartisan, &stage, &progress,
		&tags, &e.Status, &startedAt, &completedAt, &e.ModelUsed, &e.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrichment{}, ErrNotFound
	}
	if err != nil {
		return Enrichment{}, err
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{keyPoints, &e.KeyPoints}, {benefits, &e.Benefits}, {concerns, &e.Concerns},
		{groups, &e.AffectedGroups}, {tags, &e.Tags},
	} {
		if *f.dst, err = decodeList(f.raw); err != nil {
			return Enrichment{}, fmt.Errorf("decoding %s list: %w", table, err)
		}
	}
	if bipartisan.Valid {
		v := int(bipartisan.Int64)
		e.BipartisanScore = &v
	}
	if progress.Valid {
		v := int(progress.Int64)
		e.ProgressPercentage = &v
	}
	if stage.Valid {
		e.CurrentStage = &stage.String
	}
	if e.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
		return Enrichment{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if e.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return Enrichment{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	return e, nil
}

// --- Analysis ---

var analysisColumns = []string{
	"entity_id", "executive_summary", "status_quo_vs_change", "section_breakdown", "mechanism_of_action",
	"agency_powers", "fiscal_impact", "stakeholder_impact", "unintended_consequences", "arguments_for",
	"arguments_against", "implementation_challenges", "passage_likelihood", "passage_reasoning",
	"status", "started_at", "completed_at", "model_used",
}

var federalOnlyColumns = []string{"recent_developments", "state_impacts"}

// UpsertBillAnalysis writes every column of a federal bill analysis.
func (s *Store) UpsertBillAnalysis(ctx context.Context, a Analysis) error {
	return s.upsertAnalysis(ctx, tableBillAnalysis, a, true)
}

// UpsertStateBillAnalysis writes a state bill analysis. RecentDevelopments
// and StateImpacts are ignored.
func (s *Store) UpsertStateBillAnalysis(ctx context.Context, a Analysis) error {
	return s.upsertAnalysis(ctx, tableStateBillAnalysis, a, false)
}

func (s *Store) GetBillAnalysis(ctx context.Context, id string) (Analysis, error) {
	return s.getAnalysis(ctx, tableBillAnalysis, id, true)
}

func (s *Store) GetStateBillAnalysis(ctx context.Context, id string) (Analysis, error) {
	return s.getAnalysis(ctx, tableStateBillAnalysis, id, false)
}

func (s *Store) upsertAnalysis(ctx context.Context, table string, a Analysis, federal bool) error {
	if a.EntityID == "" {
		return errors.New("analysis entity_id is required")
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}

	var err error
	enc := func(v any) string {
		if err != nil {
			return ""
		}
		var out string
		out, err = encodeJSON(v)
		return out
	}
	values := []any{
		a.EntityID, a.ExecutiveSummary, a.StatusQuoVsChange, enc(a.SectionBreakdown), a.MechanismOfAction,
		enc(a.AgencyPowers), enc(a.FiscalImpact), enc(a.StakeholderImpact), enc(a.UnintendedConsequences),
		enc(a.ArgumentsFor), enc(a.ArgumentsAgainst), enc(a.ImplementationChallenges),
		a.PassageLikelihood, a.PassageReasoning,
		a.Status, formatTime(a.StartedAt), formatTimePtr(a.CompletedAt), a.ModelUsed,
	}
	cols := analysisColumns
	if federal {
		cols = append(append([]string{}, analysisColumns...), federalOnlyColumns...)
		values = append(values, enc(a.RecentDevelopments), enc(a.StateImpacts))
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", table, err)
	}

	q, args, err := s.sb.Insert(table).
		Columns(cols...).
		Values(values...).
		Suffix(upsertSuffix("entity_id", cols)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upserting %s: %w", table, err)
	}
	return nil
}

func (s *Store) getAnalysis(ctx context.Context, table, id string, federal bool) (Analysis, error) {
	cols := analysisColumns
	if federal {
		cols = append(append([]string{}, analysisColumns...), federalOnlyColumns...)
	}
	q, args, err := s.sb.Select(cols...).From(table).Where(sq.Eq{"entity_id": id}).ToSql()
	if err != nil {
		return Analysis{}, err
	}

	var a Analysis
	var sections, powers, fiscal, stakeholders, unintended, argsFor, argsAgainst, challenges, startedAt string
	var recent, stateImpacts string
	var completedAt sql.NullString
	dest := []any{
		&a.EntityID, &a.ExecutiveSummary, &a.StatusQuoVsChange, &sections, &a.MechanismOfAction,
		&powers, &fiscal, &stakeholders, &unintended, &argsFor, &argsAgainst, &challenges,
		&a.PassageLikelihood, &a.PassageReasoning, &a.Status, &startedAt, &completedAt, &a.ModelUsed,
	}
	if federal {
		dest = append(dest, &recent, &stateImpacts)
	}
	err = s.db.QueryRowContext(ctx, q, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{sections, &a.SectionBreakdown}, {powers, &a.AgencyPowers}, {unintended, &a.UnintendedConsequences},
		{argsFor, &a.ArgumentsFor}, {argsAgainst, &a.ArgumentsAgainst}, {challenges, &a.ImplementationChallenges},
	} {
		if *f.dst, err = decodeList(f.raw); err != nil {
			return Analysis{}, fmt.Errorf("decoding %s list: %w", table, err)
		}
	}
	if a.StakeholderImpact, err = decodeMap(stakeholders); err != nil {
		return Analysis{}, fmt.Errorf("decoding stakeholder_impact: %w", err)
	}
	if fiscal != "" {
		if err := json.Unmarshal([]byte(fiscal), &a.FiscalImpact); err != nil {
			return Analysis{}, fmt.Errorf("decoding fiscal_impact: %w", err)
		}
	}
	if federal {
		if a.RecentDevelopments, err = decodeList(recent); err != nil {
			return Analysis{}, fmt.Errorf("decoding recent_developments: %w", err)
		}
		if a.StateImpacts, err = decodeMap(stateImpacts); err != nil {
			return Analysis{}, fmt.Errorf("decoding state_impacts: %w", err)
		}
	}
	if a.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
		return Analysis{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if a.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return Analysis{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	return a, nil
}

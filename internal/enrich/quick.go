package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hakivo/enricher/internal/coerce"
	"github.com/hakivo/enricher/internal/doctext"
	"github.com/hakivo/enricher/internal/llm"
	"github.com/hakivo/enricher/internal/metrics"
	"github.com/hakivo/enricher/internal/storage"
)

// EnrichNews writes a quick-summary record for a news article. A missing
// article is skipped without writing a record.
func (p *Pipeline) EnrichNews(ctx context.Context, id string) error {
	article, err := p.store.GetNewsArticle(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Info("news article not found, skipping", "entity_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading news article %s: %w", id, err)
	}

	model := p.llm.Model(llm.DepthQuick)
	started := p.now()
	fail := func(err error) error {
		p.markFailed(ctx, "news_enrichment", id, func(ctx context.Context) error {
			return p.store.MarkNewsEnrichmentFailed(ctx, id, model, failureSummary(err), err.Error())
		})
		return err
	}

	if err := p.store.MarkNewsEnrichmentProcessing(ctx, id, model, started); err != nil {
		return fail(fmt.Errorf("writing processing record: %w", err))
	}

	body := newsBody(article)
	resp, err := p.llm.Invoke(ctx, llm.DepthQuick, newsPrompt(article, doctext.Truncate(body, QuickTextLimit)), quickSystemPrompt)
	if err != nil {
		return fail(fmt.Errorf("summarizing news article %s: %w", id, err))
	}

	summary, ok := coerce.DecodeQuick(resp.Text)
	if !ok {
		p.logger.Warn("model output was not valid JSON, using fallback", "entity_id", id, "model", resp.Model)
	}

	rs := p.rules.Get()
	rec := quickRecord(id, summary, resp.Model, started, p.timestamp())
	rec.ImpactLevel = string(rs.ImpactLevel(article.Title, summary.Summary))
	rec.ReadingTimeMinutes = rs.ReadingTime(body)
	rec.Tags = rs.Tags(metrics.TagInput{
		Kind:           metrics.KindNews,
		Text:           strings.Join([]string{article.Title, summary.Summary, body}, "\n"),
		PublishedAt:    article.PublishedAt,
		Now:            p.now(),
		AffectedGroups: summary.AffectedGroups,
	})

	if err := p.store.UpsertNewsEnrichment(ctx, rec); err != nil {
		return fail(fmt.Errorf("saving news enrichment %s: %w", id, err))
	}
	return nil
}

// newsBody picks the richest text available: full content with markup
// removed, then description, then summary.
func newsBody(a storage.NewsArticle) string {
	if a.Content != "" {
		if text := doctext.Plain(a.Content, doctext.FormatHTML); text != "" {
			return text
		}
	}
	if a.Description != "" {
		return doctext.Collapse(a.Description)
	}
	return doctext.Collapse(a.Summary)
}

// EnrichBill writes a quick-summary record for a federal bill. The
// processing row is written before the bill is loaded, so a missing bill
// leaves a failed row behind.
func (p *Pipeline) EnrichBill(ctx context.Context, id string) error {
	model := p.llm.Model(llm.DepthQuick)
	started := p.now()
	fail := func(err error) error {
		p.markFailed(ctx, "bill_enrichment", id, func(ctx context.Context) error {
			return p.store.MarkBillEnrichmentFailed(ctx, id, model, failureSummary(err), err.Error())
		})
		return err
	}

	if err := p.store.MarkBillEnrichmentProcessing(ctx, id, model, started); err != nil {
		return fmt.Errorf("writing processing record for bill %s: %w", id, err)
	}

	bill, err := p.store.GetBill(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("bill not found", "entity_id", id)
		_ = fail(fmt.Errorf("bill %s not found", id))
		return nil
	}
	if err != nil {
		return fail(fmt.Errorf("loading bill %s: %w", id, err))
	}

	text := doctext.Plain(bill.FullText, doctext.Format(bill.FullTextFormat))
	resp, err := p.llm.Invoke(ctx, llm.DepthQuick, billPrompt(bill, doctext.Truncate(text, QuickTextLimit)), quickSystemPrompt)
	if err != nil {
		return fail(fmt.Errorf("summarizing bill %s: %w", id, err))
	}

	summary, ok := coerce.DecodeQuick(resp.Text)
	if !ok {
		p.logger.Warn("model output was not valid JSON, using fallback", "entity_id", id, "model", resp.Model)
	}

	rs := p.rules.Get()
	stage := rs.Stage(bill.LatestActionText)
	bipartisan := metrics.BipartisanScore(bill.PartyCounts())

	var latest string
	if bill.LatestActionText != nil {
		latest = *bill.LatestActionText
	}

	rec := quickRecord(id, summary, resp.Model, started, p.timestamp())
	rec.ImpactLevel = string(rs.ImpactLevel(bill.Title, summary.Summary))
	rec.ReadingTimeMinutes = rs.ReadingTime(text)
	rec.BipartisanScore = &bipartisan
	rec.CurrentStage = &stage.Name
	rec.ProgressPercentage = &stage.Progress
	rec.Tags = rs.Tags(metrics.TagInput{
		Kind:           metrics.KindBill,
		Text:           strings.Join([]string{bill.Title, summary.Summary, latest}, "\n"),
		Now:            p.now(),
		AffectedGroups: summary.AffectedGroups,
	})

	if err := p.store.UpsertBillEnrichment(ctx, rec); err != nil {
		return fail(fmt.Errorf("saving bill enrichment %s: %w", id, err))
	}
	return nil
}

func quickRecord(id string, s coerce.QuickSummary, model string, started time.Time, completed *time.Time) storage.Enrichment {
	return storage.Enrichment{
		EntityID:             id,
		PlainLanguageSummary: s.Summary,
		KeyPoints:            s.KeyPoints,
		Benefits:             s.Benefits,
		Concerns:             s.Concerns,
		AffectedGroups:       s.AffectedGroups,
		Status:               storage.StatusComplete,
		StartedAt:            started,
		CompletedAt:          completed,
		ModelUsed:            model,
	}
}

package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hakivo/enricher/internal/coerce"
	"github.com/hakivo/enricher/internal/doctext"
	"github.com/hakivo/enricher/internal/llm"
	"github.com/hakivo/enricher/internal/storage"
)

// deepTarget adapts the deep-analysis flow to one bill kind.
type deepTarget struct {
	kind    string
	federal bool
	// prompt loads the entity and renders the analysis prompt.
	prompt func(ctx context.Context) (string, error)
	save   func(ctx context.Context, a storage.Analysis) error
}

// AnalyzeBill writes a deep analysis record for a federal bill.
func (p *Pipeline) AnalyzeBill(ctx context.Context, id string) error {
	return p.analyze(ctx, id, deepTarget{
		kind:    "bill_analysis",
		federal: true,
		prompt: func(ctx context.Context) (string, error) {
			b, err := p.store.GetBill(ctx, id)
			if err != nil {
				return "", err
			}
			text := doctext.Plain(b.FullText, doctext.Format(b.FullTextFormat))
			return billAnalysisPrompt(b, doctext.Truncate(text, DeepTextLimit)), nil
		},
		save: p.store.UpsertBillAnalysis,
	})
}

// AnalyzeStateBill writes a deep analysis record for a state bill.
func (p *Pipeline) AnalyzeStateBill(ctx context.Context, id string) error {
	return p.analyze(ctx, id, deepTarget{
		kind: "state_bill_analysis",
		prompt: func(ctx context.Context) (string, error) {
			b, err := p.store.GetStateBill(ctx, id)
			if err != nil {
				return "", err
			}
			text := doctext.Plain(b.FullText, doctext.Format(b.FullTextFormat))
			return stateBillAnalysisPrompt(b, doctext.Truncate(text, DeepTextLimit)), nil
		},
		save: p.store.UpsertStateBillAnalysis,
	})
}

func (p *Pipeline) analyze(ctx context.Context, id string, t deepTarget) error {
	model := p.llm.Model(llm.DepthDeep)
	started := p.now()

	// A failed record keeps only lifecycle fields and the error; every
	// analysis field goes back to its zero value.
	fail := func(err error) error {
		p.markFailed(ctx, t.kind, id, func(ctx context.Context) error {
			return t.save(ctx, storage.Analysis{
				EntityID:         id,
				ExecutiveSummary: failureSummary(err),
				Status:           storage.StatusFailed,
				StartedAt:        started,
				CompletedAt:      p.timestamp(),
				ModelUsed:        model,
			})
		})
		return err
	}

	if err := t.save(ctx, storage.Analysis{
		EntityID:         id,
		ExecutiveSummary: AnalysisPlaceholder,
		Status:           storage.StatusProcessing,
		StartedAt:        started,
		ModelUsed:        model,
	}); err != nil {
		return fmt.Errorf("writing processing record for %s %s: %w", t.kind, id, err)
	}

	prompt, err := t.prompt(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("entity not found for analysis", "kind", t.kind, "entity_id", id)
		_ = fail(fmt.Errorf("%s %s not found", entityName(t.federal), id))
		return nil
	}
	if err != nil {
		return fail(fmt.Errorf("loading %s %s: %w", entityName(t.federal), id, err))
	}

	resp, err := p.llm.Invoke(ctx, llm.DepthDeep, prompt, deepSystemPromptFor(t.federal))
	if err != nil {
		return fail(fmt.Errorf("analyzing %s %s: %w", entityName(t.federal), id, err))
	}

	analysis, ok := coerce.DecodeDeep(resp.Text)
	if !ok {
		p.logger.Warn("model output was not valid JSON, using fallback", "entity_id", id, "model", resp.Model)
	}

	rec := analysisRecord(id, analysis, t.federal, resp.Model, started, p.timestamp())
	if err := t.save(ctx, rec); err != nil {
		return fail(fmt.Errorf("saving %s %s: %w", t.kind, id, err))
	}
	return nil
}

func analysisRecord(id string, d coerce.DeepAnalysis, federal bool, model string, started time.Time, completed *time.Time) storage.Analysis {
	a := storage.Analysis{
		EntityID:          id,
		ExecutiveSummary:  d.ExecutiveSummary,
		StatusQuoVsChange: d.StatusQuoVsChange,
		SectionBreakdown:  d.SectionBreakdown,
		MechanismOfAction: d.MechanismOfAction,
		AgencyPowers:      d.AgencyPowers,
		FiscalImpact: storage.FiscalImpact{
			EstimatedCost: d.FiscalImpact.EstimatedCost,
			FundingSource: d.FiscalImpact.FundingSource,
			Timeframe:     d.FiscalImpact.Timeframe,
		},
		StakeholderImpact:        d.StakeholderImpact,
		UnintendedConsequences:   d.UnintendedConsequences,
		ArgumentsFor:             d.ArgumentsFor,
		ArgumentsAgainst:         d.ArgumentsAgainst,
		ImplementationChallenges: d.ImplementationChallenges,
		PassageLikelihood:        int(d.PassageLikelihood),
		PassageReasoning:         d.PassageReasoning,
		Status:                   storage.StatusComplete,
		StartedAt:                started,
		CompletedAt:              completed,
		ModelUsed:                model,
	}
	if federal {
		a.RecentDevelopments = d.RecentDevelopments
		a.StateImpacts = d.StateImpacts
	}
	return a
}

func entityName(federal bool) string {
	if federal {
		return "bill"
	}
	return "state bill"
}

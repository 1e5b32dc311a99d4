// Package enrich turns source entities into enrichment and analysis records.
// A Pipeline holds the four job handlers; a Router dispatches queue jobs to
// them by type.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/hakivo/enricher/internal/doctext"
	"github.com/hakivo/enricher/internal/llm"
	"github.com/hakivo/enricher/internal/metrics"
	"github.com/hakivo/enricher/internal/storage"
)

// Truncation limits for text sent to the model.
const (
	QuickTextLimit = 8000
	DeepTextLimit  = 50000
)

// ErrorTextLimit caps the error text shown in a failed record's summary.
const ErrorTextLimit = 500

// AnalysisPlaceholder is the executive summary of an analysis still running.
const AnalysisPlaceholder = "Analysis in progress..."

// NewsStore is the persistence the news handler needs.
type NewsStore interface {
	GetNewsArticle(ctx context.Context, id string) (storage.NewsArticle, error)
	UpsertNewsEnrichment(ctx context.Context, e storage.Enrichment) error
	MarkNewsEnrichmentProcessing(ctx context.Context, id, model string, started time.Time) error
	MarkNewsEnrichmentFailed(ctx context.Context, id, model, summary, detail string) error
}

// BillStore is the persistence the federal bill handlers need.
type BillStore interface {
	GetBill(ctx context.Context, id string) (storage.Bill, error)
	UpsertBillEnrichment(ctx context.Context, e storage.Enrichment) error
	MarkBillEnrichmentProcessing(ctx context.Context, id, model string, started time.Time) error
	MarkBillEnrichmentFailed(ctx context.Context, id, model, summary, detail string) error
	UpsertBillAnalysis(ctx context.Context, a storage.Analysis) error
}

// StateBillStore is the persistence the state bill handler needs.
type StateBillStore interface {
	GetStateBill(ctx context.Context, id string) (storage.StateBill, error)
	UpsertStateBillAnalysis(ctx context.Context, a storage.Analysis) error
}

// Store combines the per-handler stores. *storage.Store satisfies it.
type Store interface {
	NewsStore
	BillStore
	StateBillStore
}

// Invoker sends a prompt at a depth. *llm.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, depth llm.Depth, prompt, systemPrompt string) (llm.Response, error)
	Model(depth llm.Depth) string
}

// RuleSource supplies the current metric rules. *metrics.Rules satisfies it.
type RuleSource interface {
	Get() *metrics.RuleSet
}

// Pipeline runs the enrichment handlers.
type Pipeline struct {
	store  Store
	llm    Invoker
	rules  RuleSource
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Pipeline. A nil rules source uses the built-in rules.
func New(store Store, inv Invoker, rules RuleSource) *Pipeline {
	if rules == nil {
		rules = metrics.NewRules(metrics.Default())
	}
	return &Pipeline{
		store:  store,
		llm:    inv,
		rules:  rules,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
}

// markFailed runs a best-effort failure write. It never returns an error so
// the caller's original error is what propagates.
func (p *Pipeline) markFailed(ctx context.Context, kind, id string, write func(context.Context) error) {
	if err := write(context.WithoutCancel(ctx)); err != nil {
		p.logger.Error("failed to mark record failed", "kind", kind, "entity_id", id, "error", err)
	}
}

// failureSummary is the user-visible text of a failed record.
func failureSummary(err error) string {
	return "Error: " + doctext.Truncate(err.Error(), ErrorTextLimit)
}

func (p *Pipeline) timestamp() *time.Time {
	t := p.now()
	return &t
}

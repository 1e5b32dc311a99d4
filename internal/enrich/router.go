package enrich

import (
	"context"
	"log/slog"

	"github.com/hakivo/enricher/internal/queue"
)

// HandlerFunc handles one job for an entity id.
type HandlerFunc func(ctx context.Context, entityID string) error

// Router dispatches jobs to handlers by type. It implements queue.Handler.
type Router struct {
	handlers map[queue.JobType]HandlerFunc
	logger   *slog.Logger
}

// NewRouter binds each job type to its Pipeline handler.
func NewRouter(p *Pipeline) *Router {
	return &Router{
		handlers: map[queue.JobType]HandlerFunc{
			queue.EnrichNews:            p.EnrichNews,
			queue.EnrichBill:            p.EnrichBill,
			queue.DeepAnalysisBill:      p.AnalyzeBill,
			queue.DeepAnalysisStateBill: p.AnalyzeStateBill,
		},
		logger: slog.Default(),
	}
}

// Route runs the handler for job.Type. Unknown types are logged and
// consumed without error.
func (r *Router) Route(ctx context.Context, job queue.Job) error {
	h, ok := r.handlers[job.Type]
	if !ok {
		r.logger.Warn("unknown job type, skipping", "type", job.Type, "entity_id", job.EntityID)
		return nil
	}
	return h(ctx, job.EntityID)
}

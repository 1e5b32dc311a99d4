// Package api exposes the worker's operator surfaces: an HTTP API for health,
// job submission and record inspection, and an MCP server with the same
// capabilities for tool-using clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hakivo/enricher/internal/queue"
	"github.com/hakivo/enricher/internal/storage"
)

const maxRequestBodySize = 64 << 10

// RecordReader reads enrichment and analysis records.
type RecordReader interface {
	GetNewsEnrichment(ctx context.Context, id string) (storage.Enrichment, error)
	GetBillEnrichment(ctx context.Context, id string) (storage.Enrichment, error)
	GetBillAnalysis(ctx context.Context, id string) (storage.Analysis, error)
	GetStateBillAnalysis(ctx context.Context, id string) (storage.Analysis, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AppDeps struct {
	Records   RecordReader
	Publisher queue.Publisher
	Stats     queue.StatsReporter
	Health    Pinger
	Token     string // bearer token; empty disables auth
}

type EnqueueRequest struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
}

// NewAppHandler builds the ops router. /health is always unauthenticated.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/jobs", handleEnqueue(deps))
		r.Get("/jobs/stats", handleStats(deps))
		r.Get("/news/{id}/enrichment", handleRecord(deps.Records.GetNewsEnrichment, "enrichment"))
		r.Get("/bills/{id}/enrichment", handleRecord(deps.Records.GetBillEnrichment, "enrichment"))
		r.Get("/bills/{id}/analysis", handleRecord(deps.Records.GetBillAnalysis, "analysis"))
		r.Get("/state-bills/{id}/analysis", handleRecord(deps.Records.GetStateBillAnalysis, "analysis"))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Ping(r.Context()); err != nil {
				httpError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleEnqueue(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		typ, err := queue.ParseJobType(req.Type)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if strings.TrimSpace(req.EntityID) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "entity_id is required")
			return
		}

		id, err := deps.Publisher.Publish(r.Context(), queue.NewJob(typ, req.EntityID))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     id,
			"status": "queued",
		})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Stats == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "queue transport does not report stats")
			return
		}
		stats, err := deps.Stats.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read queue stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleRecord[T any](get func(context.Context, string) (T, error), what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get %s: %v", what, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

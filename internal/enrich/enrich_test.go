package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hakivo/enricher/internal/llm"
	"github.com/hakivo/enricher/internal/storage"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeModel records prompts and answers with a canned response or error.
type fakeModel struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []llm.Request
}

func (f *fakeModel) Generate(_ context.Context, r llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, r)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

func (f *fakeModel) lastPrompt(t *testing.T) llm.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		t.Fatal("model was not called")
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestPipeline(store Store, quick, deep *fakeModel) *Pipeline {
	inv := llm.NewInvoker(
		llm.Binding{Provider: "fake", Generator: quick, Params: llm.Params{Model: "quick-model"}},
		llm.Binding{Provider: "fake", Generator: deep, Params: llm.Params{Model: "deep-model"}},
	)
	p := New(store, inv, nil)
	p.now = func() time.Time { return fixedNow }
	return p
}

func strPtr(s string) *string { return &s }

// failingMarks wraps a store so that failure marking itself fails.
type failingMarks struct {
	*storage.Store
}

var errMarkBroken = errors.New("mark broken")

func (f failingMarks) MarkBillEnrichmentFailed(context.Context, string, string, string, string) error {
	return errMarkBroken
}

func (f failingMarks) MarkNewsEnrichmentFailed(context.Context, string, string, string, string) error {
	return errMarkBroken
}

func (f failingMarks) UpsertBillAnalysis(ctx context.Context, a storage.Analysis) error {
	if a.Status == storage.StatusFailed {
		return errMarkBroken
	}
	return f.Store.UpsertBillAnalysis(ctx, a)
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func TestUpsertBillEnrichment_LastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.UpsertBillEnrichment(ctx, Enrichment{
		EntityID:  "b-1",
		Status:    StatusProcessing,
		StartedAt: started,
		ModelUsed: "llama3.1",
	}); err != nil {
		t.Fatalf("processing upsert: %v", err)
	}

	done := started.Add(time.Minute)
	final := Enrichment{
		EntityID:             "b-1",
		PlainLanguageSummary: "Funds schools.",
		KeyPoints:            []string{"a", "b"},
		AffectedGroups:       []string{"students"},
		ReadingTimeMinutes:   3,
		ImpactLevel:          "medium",
		BipartisanScore:      intPtr(100),
		CurrentStage:         strPtr("Committee Review"),
		ProgressPercentage:   intPtr(30),
		Tags:                 []string{"bipartisan", "students"},
		Status:               StatusComplete,
		StartedAt:            started,
		CompletedAt:          &done,
		ModelUsed:            "llama3.1",
	}
	if err := s.UpsertBillEnrichment(ctx, final); err != nil {
		t.Fatalf("complete upsert: %v", err)
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM bill_enrichment WHERE entity_id = 'b-1'`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}

	got, err := s.GetBillEnrichment(ctx, "b-1")
	if err != nil {
		t.Fatalf("GetBillEnrichment: %v", err)
	}
	if got.Status != StatusComplete || got.PlainLanguageSummary != "Funds schools." {
		t.Errorf("got %+v", got)
	}
	if got.BipartisanScore == nil || *got.BipartisanScore != 100 {
		t.Errorf("BipartisanScore = %v", got.BipartisanScore)
	}
	if got.CurrentStage == nil || *got.CurrentStage != "Committee Review" {
		t.Errorf("CurrentStage = %v", got.CurrentStage)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v", got.CompletedAt)
	}
	if len(got.KeyPoints) != 2 || len(got.Tags) != 2 {
		t.Errorf("lists = %v / %v", got.KeyPoints, got.Tags)
	}
	if got.Benefits == nil || len(got.Benefits) != 0 {
		t.Errorf("Benefits = %#v, want empty non-nil", got.Benefits)
	}
}

func TestNewsEnrichment_NullBillFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertNewsEnrichment(ctx, Enrichment{EntityID: "n-1", Status: StatusComplete, ReadingTimeMinutes: 2}); err != nil {
		t.Fatalf("UpsertNewsEnrichment: %v", err)
	}
	got, err := s.GetNewsEnrichment(ctx, "n-1")
	if err != nil {
		t.Fatalf("GetNewsEnrichment: %v", err)
	}
	if got.BipartisanScore != nil || got.CurrentStage != nil || got.ProgressPercentage != nil {
		t.Errorf("bill-only fields set on news record: %+v", got)
	}
	if got.ImpactLevel != "low" {
		t.Errorf("ImpactLevel = %q, want default low", got.ImpactLevel)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}
}

func TestMarkBillEnrichmentFailed_KeepsLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBillEnrichment(ctx, Enrichment{
		EntityID:             "b-2",
		PlainLanguageSummary: "previous",
		KeyPoints:            []string{"funds broadband"},
		Status:               StatusComplete,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkBillEnrichmentFailed(ctx, "b-2", "m", "Error: provider down", "summarizing bill b-2: provider down"); err != nil {
		t.Fatalf("MarkBillEnrichmentFailed: %v", err)
	}

	got, err := s.GetBillEnrichment(ctx, "b-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.ModelUsed != "m" {
		t.Errorf("got %+v", got)
	}
	if got.PlainLanguageSummary != "Error: provider down" {
		t.Errorf("summary = %q", got.PlainLanguageSummary)
	}
	if got.ErrorMessage != "summarizing bill b-2: provider down" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
	if len(got.KeyPoints) != 1 {
		t.Errorf("KeyPoints = %v, want untouched", got.KeyPoints)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestMarkBillEnrichmentProcessing_KeepsResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBillEnrichment(ctx, Enrichment{
		EntityID:             "b-3",
		PlainLanguageSummary: "done",
		KeyPoints:            []string{"a", "b"},
		Tags:                 []string{"bipartisan"},
		Status:               StatusComplete,
		ModelUsed:            "old",
	}); err != nil {
		t.Fatal(err)
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkBillEnrichmentProcessing(ctx, "b-3", "new", started); err != nil {
		t.Fatalf("MarkBillEnrichmentProcessing: %v", err)
	}

	got, err := s.GetBillEnrichment(ctx, "b-3")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusProcessing || got.ModelUsed != "new" || !got.StartedAt.Equal(started) {
		t.Errorf("lifecycle = %s/%s/%v", got.Status, got.ModelUsed, got.StartedAt)
	}
	if got.PlainLanguageSummary != "done" || len(got.KeyPoints) != 2 || len(got.Tags) != 1 {
		t.Errorf("previous result lost: %+v", got)
	}
}

func TestMarkNewsEnrichmentProcessing_CreatesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MarkNewsEnrichmentProcessing(ctx, "n-1", "m", time.Now()); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetNewsEnrichment(ctx, "n-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusProcessing || got.ReadingTimeMinutes != 1 || got.ImpactLevel != "low" {
		t.Errorf("got %+v", got)
	}
}

func TestMarkNewsEnrichmentFailed_CreatesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MarkNewsEnrichmentFailed(ctx, "n-9", "m", "Error: boom", "boom"); err != nil {
		t.Fatalf("MarkNewsEnrichmentFailed: %v", err)
	}
	got, err := s.GetNewsEnrichment(ctx, "n-9")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q", got.Status)
	}
}

func TestGetEnrichmentNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetBillEnrichment(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestBillAnalysis_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := Analysis{
		EntityID:           "b-3",
		ExecutiveSummary:   "Summary",
		SectionBreakdown:   []string{"Sec. 1"},
		FiscalImpact:       FiscalImpact{EstimatedCost: "$1B", Timeframe: "5 years"},
		StakeholderImpact:  map[string]string{"farmers": "benefit"},
		PassageLikelihood:  65,
		RecentDevelopments: []string{"hearing held"},
		StateImpacts:       map[string]string{"CA": "more funding"},
		Status:             StatusComplete,
		CompletedAt:        timePtr(time.Now().UTC()),
		ModelUsed:          "claude",
	}
	if err := s.UpsertBillAnalysis(ctx, a); err != nil {
		t.Fatalf("UpsertBillAnalysis: %v", err)
	}

	got, err := s.GetBillAnalysis(ctx, "b-3")
	if err != nil {
		t.Fatalf("GetBillAnalysis: %v", err)
	}
	if got.FiscalImpact.EstimatedCost != "$1B" || got.StakeholderImpact["farmers"] != "benefit" {
		t.Errorf("got %+v", got)
	}
	if got.StateImpacts["CA"] != "more funding" || len(got.RecentDevelopments) != 1 {
		t.Errorf("federal fields = %v / %v", got.StateImpacts, got.RecentDevelopments)
	}
	if got.PassageLikelihood != 65 {
		t.Errorf("PassageLikelihood = %d", got.PassageLikelihood)
	}

	// A failure write resets content fields.
	failed := Analysis{EntityID: "b-3", ExecutiveSummary: "Error: boom", Status: StatusFailed, ModelUsed: "claude"}
	if err := s.UpsertBillAnalysis(ctx, failed); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetBillAnalysis(ctx, "b-3")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || len(got.SectionBreakdown) != 0 || got.PassageLikelihood != 0 || len(got.StateImpacts) != 0 {
		t.Errorf("failed record kept stale fields: %+v", got)
	}
}

func TestStateBillAnalysis_NoFederalFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := Analysis{
		EntityID:           "ca-1",
		ExecutiveSummary:   "State summary",
		RecentDevelopments: []string{"ignored"},
		Status:             StatusComplete,
	}
	if err := s.UpsertStateBillAnalysis(ctx, a); err != nil {
		t.Fatalf("UpsertStateBillAnalysis: %v", err)
	}
	got, err := s.GetStateBillAnalysis(ctx, "ca-1")
	if err != nil {
		t.Fatalf("GetStateBillAnalysis: %v", err)
	}
	if got.ExecutiveSummary != "State summary" {
		t.Errorf("ExecutiveSummary = %q", got.ExecutiveSummary)
	}
	if got.RecentDevelopments != nil || got.StateImpacts != nil {
		t.Errorf("federal-only fields populated: %v / %v", got.RecentDevelopments, got.StateImpacts)
	}
}

package storage

import (
	"context"
	"os"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestTablesExist(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"news_articles", "bills", "bill_cosponsors", "state_bills",
		"news_enrichment", "bill_enrichment", "bill_analysis", "state_bill_analysis", "jobs",
	}
	for _, tbl := range tables {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tbl).Scan(&count)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("table %q not found", tbl)
		}
	}
}

func TestUpsertSuffix(t *testing.T) {
	got := upsertSuffix("id", []string{"id", "title", "body"})
	want := "ON CONFLICT (id) DO UPDATE SET title = excluded.title, body = excluded.body"
	if got != want {
		t.Errorf("upsertSuffix() = %q, want %q", got, want)
	}
}

func TestBuilderForPlaceholders(t *testing.T) {
	tests := map[Dialect]string{
		DialectSQLite:   "SELECT status FROM jobs WHERE id = ?",
		DialectPostgres: "SELECT status FROM jobs WHERE id = $1",
	}
	for d, want := range tests {
		q, _, err := builderFor(d).Select("status").From("jobs").Where("id = ?", "j-1").ToSql()
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if q != want {
			t.Errorf("%s: query = %q, want %q", d, q, want)
		}
	}
}

func TestDialect(t *testing.T) {
	s := openTestStore(t)
	if s.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q", s.Dialect())
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

// TestOpenPostgres runs against a live server when ENRICHER_TEST_POSTGRES_DSN is set.
func TestOpenPostgres(t *testing.T) {
	dsn := os.Getenv("ENRICHER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ENRICHER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer s.Close()

	if err := s.UpsertBillEnrichment(ctx, Enrichment{EntityID: "pg-1", Status: StatusProcessing}); err != nil {
		t.Fatalf("UpsertBillEnrichment: %v", err)
	}
	got, err := s.GetBillEnrichment(ctx, "pg-1")
	if err != nil {
		t.Fatalf("GetBillEnrichment: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("Status = %q", got.Status)
	}
}

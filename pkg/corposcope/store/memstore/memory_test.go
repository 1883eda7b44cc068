package memstore

import (
	"context"
	"testing"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

func rec(id, domain string, tokens int) metadata.Record {
	return metadata.Record{
		DocumentID: id,
		Domain:     domain,
		TokenCount: tokens,
		Metrics: metadata.QualityMetrics{
			Corruption: metadata.CorruptionResult{IssuesFound: []string{"gibberish"}},
		},
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.UpsertRecord(ctx, rec("a", "risk_management", 100)); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetRecord(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Domain != "risk_management" {
		t.Errorf("domain = %q", got.Domain)
	}

	// Upsert replaces.
	if err := s.UpsertRecord(ctx, rec("a", "valuation_models", 200)); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.GetRecord(ctx, "a")
	if got.Domain != "valuation_models" || got.TokenCount != 200 {
		t.Errorf("after upsert: %+v", got)
	}

	if _, ok, _ := s.GetRecord(ctx, "missing"); ok {
		t.Error("unexpected hit for missing id")
	}
}

func TestReturnedRecordIsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.UpsertRecord(ctx, rec("a", "risk_management", 100)); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.GetRecord(ctx, "a")
	got.Metrics.Corruption.IssuesFound[0] = "mutated"

	again, _, _ := s.GetRecord(ctx, "a")
	if again.Metrics.Corruption.IssuesFound[0] != "gibberish" {
		t.Error("stored record mutated through returned copy")
	}
}

func TestListAndCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, r := range []metadata.Record{
		rec("c", "risk_management", 1),
		rec("a", "risk_management", 1),
		rec("b", "valuation_models", 1),
	} {
		if err := s.UpsertRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].DocumentID != "a" || all[2].DocumentID != "c" {
		t.Errorf("list = %v", all)
	}

	risk, err := s.ListByDomain(ctx, "risk_management")
	if err != nil {
		t.Fatal(err)
	}
	if len(risk) != 2 {
		t.Errorf("risk_management records = %d, want 2", len(risk))
	}

	counts, err := s.CountByDomain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["risk_management"] != 2 || counts["valuation_models"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

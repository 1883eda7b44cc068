package balance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/store/memstore"
)

func seedDomain(t *testing.T, st *memstore.Store, domain string, n int, score float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := metadata.Record{
			DocumentID:  fmt.Sprintf("%s-%04d", domain, i),
			Domain:      domain,
			FileType:    ".pdf",
			TokenCount:  500 + i,
			QualityFlag: score >= 0.7,
			Language:    "en",
			Metrics:     metadata.QualityMetrics{OverallScore: score, QualityFlag: score >= 0.7},
		}
		if err := st.UpsertRecord(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAnalyzeEmptyCorpus(t *testing.T) {
	a := NewAnalyzer(config.Default().Balance, memstore.New(), nil)
	_, err := a.Analyze(context.Background(), false)
	if !errors.Is(err, internalerr.ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestAnalyzeBalancedCorpus(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance
	for _, spec := range cfg.Domains {
		seedDomain(t, st, spec.Name, 50, 0.9)
	}
	a := NewAnalyzer(cfg, st, nil)

	res, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalDocuments != 400 {
		t.Errorf("total = %d, want 400", res.TotalDocuments)
	}
	if math.Abs(res.Entropy-3.0) > 1e-9 {
		t.Errorf("entropy = %v, want 3.0 for eight even domains", res.Entropy)
	}
	if math.Abs(res.BalanceRatio-1.0) > 1e-9 {
		t.Errorf("balance ratio = %v, want 1.0", res.BalanceRatio)
	}
	if res.DominanceRatio != 1.0 {
		t.Errorf("dominance = %v, want 1.0", res.DominanceRatio)
	}
	if math.Abs(res.DomainGini) > 1e-9 {
		t.Errorf("domain gini = %v, want 0 for an even spread", res.DomainGini)
	}
	if len(res.MissingDomains) != 0 {
		t.Errorf("missing domains = %v, want none", res.MissingDomains)
	}
	for _, f := range res.Findings {
		if f.Check == "entropy" || f.Check == "dominance" {
			t.Errorf("balanced corpus produced finding %+v", f)
		}
	}
}

func TestAnalyzeSingleDomain(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance
	seedDomain(t, st, "risk_management", 100, 0.9)
	a := NewAnalyzer(cfg, st, nil)

	res, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Entropy != 0 {
		t.Errorf("entropy = %v, want 0 for one domain", res.Entropy)
	}
	if len(res.MissingDomains) != 7 {
		t.Errorf("missing domains = %d, want 7", len(res.MissingDomains))
	}
	if !hasFinding(res.Findings, "entropy", metadata.SeverityCritical) {
		t.Errorf("no critical entropy finding in %v", res.Findings)
	}
	if !hasFinding(res.Findings, "dominance", metadata.SeverityWarning) {
		t.Errorf("no dominance finding in %v", res.Findings)
	}
	if !hasRecommendation(res.Recommendations, "collect_data", "high") {
		t.Errorf("no collect_data recommendation in %v", res.Recommendations)
	}
}

func TestAnalyzeLowQualityRecommendation(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance
	seedDomain(t, st, "risk_management", 60, 0.9)
	seedDomain(t, st, "valuation_models", 40, 0.4) // 40% below the gate

	a := NewAnalyzer(cfg, st, nil)
	res, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.LowQualityRatio-0.4) > 1e-9 {
		t.Errorf("low quality ratio = %v, want 0.4", res.LowQualityRatio)
	}
	if !hasFinding(res.Findings, "low_quality_ratio", metadata.SeverityWarning) {
		t.Errorf("no low-quality finding in %v", res.Findings)
	}
	if !hasRecommendation(res.Recommendations, "improve_extraction", "medium") {
		t.Errorf("no improve_extraction recommendation in %v", res.Recommendations)
	}
	if !hasRecommendation(res.Recommendations, "diversify_sources", "low") {
		t.Errorf("no diversify_sources recommendation for all-pdf corpus in %v", res.Recommendations)
	}
}

func TestAnalyzeTemporalDistribution(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance

	days := map[string]int{
		"2026-03-01": 2,
		"2026-03-02": 1,
		"2026-03-04": 3,
	}
	i := 0
	for day, n := range days {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j < n; j++ {
			rec := metadata.Record{
				DocumentID:     fmt.Sprintf("doc-%02d", i),
				Domain:         "risk_management",
				FileType:       ".pdf",
				TokenCount:     500,
				QualityFlag:    true,
				ExtractionDate: date,
			}
			if err := st.UpsertRecord(context.Background(), rec); err != nil {
				t.Fatal(err)
			}
			i++
		}
	}

	a := NewAnalyzer(cfg, st, nil)
	res, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	for day, want := range days {
		if got := res.TemporalCounts[day]; got != want {
			t.Errorf("count for %s = %d, want %d", day, got, want)
		}
	}
	ts := res.Temporal
	if ts.Days != 3 || ts.FirstDay != "2026-03-01" || ts.LastDay != "2026-03-04" {
		t.Errorf("temporal range = %+v, want 3 days from 2026-03-01 to 2026-03-04", ts)
	}
	if math.Abs(ts.MeanPerDay-2.0) > 1e-9 {
		t.Errorf("mean per day = %v, want 2", ts.MeanPerDay)
	}
	if ts.MinPerDay != 1 || ts.MaxPerDay != 3 {
		t.Errorf("per-day extremes = %d/%d, want 1/3", ts.MinPerDay, ts.MaxPerDay)
	}
	if math.Abs(ts.StdDevPerDay-math.Sqrt(2.0/3.0)) > 1e-9 {
		t.Errorf("std dev per day = %v, want sqrt(2/3)", ts.StdDevPerDay)
	}
}

func TestAnalyzeCaching(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance
	seedDomain(t, st, "risk_management", 50, 0.9)

	a := NewAnalyzer(cfg, st, nil)
	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	first, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}

	// The corpus changes, but the cache is still fresh.
	seedDomain(t, st, "valuation_models", 50, 0.9)
	clock = clock.Add(time.Minute)
	cached, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if cached.TotalDocuments != first.TotalDocuments {
		t.Errorf("cached total = %d, want %d", cached.TotalDocuments, first.TotalDocuments)
	}

	forced, err := a.Analyze(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.TotalDocuments != 100 {
		t.Errorf("forced total = %d, want 100", forced.TotalDocuments)
	}

	// TTL expiry also refreshes.
	seedDomain(t, st, "crypto_derivatives", 50, 0.9)
	clock = clock.Add(time.Duration(cfg.CacheTTLSeconds+1) * time.Second)
	expired, err := a.Analyze(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if expired.TotalDocuments != 150 {
		t.Errorf("post-expiry total = %d, want 150", expired.TotalDocuments)
	}
}

func TestCollectTargets(t *testing.T) {
	st := memstore.New()
	cfg := config.Default().Balance
	// Only risk_management meets its minimum (90).
	seedDomain(t, st, "risk_management", 120, 0.9)
	seedDomain(t, st, "valuation_models", 10, 0.9)

	a := NewAnalyzer(cfg, st, nil)
	targets, err := a.CollectTargets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 7 {
		t.Fatalf("targets = %d, want 7", len(targets))
	}
	if targets[0].Priority != "high" {
		t.Errorf("first target priority = %q, want high-priority domains first", targets[0].Priority)
	}
	for _, tgt := range targets {
		if tgt.Domain == "risk_management" {
			t.Error("satisfied domain listed as collect target")
		}
		if len(tgt.SearchTerms) == 0 {
			t.Errorf("target %s has no search terms", tgt.Domain)
		}
	}
}

func hasFinding(findings []Finding, check string, sev metadata.Severity) bool {
	for _, f := range findings {
		if f.Check == check && f.Severity == sev {
			return true
		}
	}
	return false
}

func hasRecommendation(recs []Recommendation, action, priority string) bool {
	for _, r := range recs {
		if r.Action == action && r.Priority == priority {
			return true
		}
	}
	return false
}

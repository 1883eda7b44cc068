package balance

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

func sampleResult() Result {
	return Result{
		GeneratedAt:    time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		TotalDocuments: 200,
		DomainCounts:   map[string]int{"risk_management": 150, "valuation_models": 50},
		FileTypeCounts: map[string]int{".pdf": 180, ".html": 20},
		LanguageCounts: map[string]int{"en": 200},
		QualityCounts:  map[string]int{"passed": 180, "low_quality": 20},
		TokenStats:     TokenStats{Total: 100000, Mean: 500, Median: 480, Min: 120, Max: 2200},
		Temporal: TemporalStats{
			Days: 30, FirstDay: "2026-06-01", LastDay: "2026-06-30",
			MeanPerDay: 6.7, MinPerDay: 1, MaxPerDay: 15,
		},
		Entropy:        0.81,
		BalanceRatio:   0.27,
		DomainGini:     0.25,
		DominanceRatio: 3.0,
		MissingDomains: []string{"crypto_derivatives"},
		Findings: []Finding{
			{Check: "entropy", Severity: metadata.SeverityCritical, Message: "domain entropy 0.81 below minimum 2.00"},
		},
		Recommendations: []Recommendation{
			{Priority: "high", Action: "collect_data", Domains: []string{"crypto_derivatives"}, Detail: "no documents"},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleResult())
	for _, want := range []string{
		"# Corpus Balance Report",
		"Total documents: 200",
		"| risk_management | 150 | 75.0% |",
		"Domain Gini: 0.250",
		"Date range: 2026-06-01 to 2026-06-30 (30 days with documents)",
		"## Missing Domains",
		"- crypto_derivatives",
		"**entropy** [critical]",
		"(high) collect_data for crypto_derivatives",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	mdPath, jsonPath, err := WriteReports(dir, sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "# Corpus Balance Report") {
		t.Error("markdown file missing report header")
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var got Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalDocuments != 200 || got.DomainCounts["risk_management"] != 150 {
		t.Errorf("json round trip = %+v", got)
	}
	// Both files share the same ULID-stamped basename.
	if strings.TrimSuffix(mdPath, ".md") != strings.TrimSuffix(jsonPath, ".json") {
		t.Errorf("basenames differ: %s vs %s", mdPath, jsonPath)
	}
}

package balance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
)

// WriteReports persists a balance analysis into dir as Markdown and
// JSON under a shared ULID-stamped basename, returning both paths.
func WriteReports(dir string, res Result) (mdPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}
	base := "balance_report_" + ulid.Make().String()
	mdPath = filepath.Join(dir, base+".md")
	jsonPath = filepath.Join(dir, base+".json")

	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(res)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown report: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write json report: %w", err)
	}
	return mdPath, jsonPath, nil
}

// RenderMarkdown renders a balance analysis as a human-readable report.
func RenderMarkdown(res Result) string {
	var b strings.Builder

	b.WriteString("# Corpus Balance Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", res.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Total documents: %d\n", res.TotalDocuments)
	fmt.Fprintf(&b, "- Domain entropy: %.3f\n", res.Entropy)
	fmt.Fprintf(&b, "- Balance ratio: %.3f\n", res.BalanceRatio)
	fmt.Fprintf(&b, "- Domain Gini: %.3f\n", res.DomainGini)
	fmt.Fprintf(&b, "- Dominance ratio: %.2f\n", res.DominanceRatio)
	fmt.Fprintf(&b, "- Low-quality share: %.1f%%\n\n", res.LowQualityRatio*100)

	b.WriteString("## Domain Distribution\n\n")
	b.WriteString("| Domain | Documents | Share |\n")
	b.WriteString("|--------|-----------|-------|\n")
	for _, domain := range sortedKeys(res.DomainCounts) {
		count := res.DomainCounts[domain]
		share := float64(count) / float64(res.TotalDocuments) * 100
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", domain, count, share)
	}
	b.WriteString("\n")

	if len(res.FileTypeCounts) > 0 {
		b.WriteString("## File Types\n\n")
		for _, ft := range sortedKeys(res.FileTypeCounts) {
			fmt.Fprintf(&b, "- %s: %d\n", ft, res.FileTypeCounts[ft])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Token Statistics\n\n")
	fmt.Fprintf(&b, "- Total tokens: %d\n", res.TokenStats.Total)
	fmt.Fprintf(&b, "- Mean per document: %.1f\n", res.TokenStats.Mean)
	fmt.Fprintf(&b, "- Median per document: %.1f\n", res.TokenStats.Median)
	fmt.Fprintf(&b, "- Range: %d to %d\n\n", res.TokenStats.Min, res.TokenStats.Max)

	if res.Temporal.Days > 0 {
		b.WriteString("## Temporal Coverage\n\n")
		fmt.Fprintf(&b, "- Date range: %s to %s (%d days with documents)\n", res.Temporal.FirstDay, res.Temporal.LastDay, res.Temporal.Days)
		fmt.Fprintf(&b, "- Documents per day: mean %.1f, min %d, max %d\n\n", res.Temporal.MeanPerDay, res.Temporal.MinPerDay, res.Temporal.MaxPerDay)
	}

	if len(res.MissingDomains) > 0 {
		b.WriteString("## Missing Domains\n\n")
		for _, d := range res.MissingDomains {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(res.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range res.Findings {
			fmt.Fprintf(&b, "- **%s** [%s]: %s\n", f.Check, f.Severity, f.Message)
		}
		b.WriteString("\n")
	}

	if len(res.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, rec := range res.Recommendations {
			fmt.Fprintf(&b, "%d. (%s) %s", i+1, rec.Priority, rec.Action)
			if len(rec.Domains) > 0 {
				fmt.Fprintf(&b, " for %s", strings.Join(rec.Domains, ", "))
			}
			fmt.Fprintf(&b, ": %s\n", rec.Detail)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

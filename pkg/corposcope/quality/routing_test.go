package quality

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

func scoredRecord(id, domain string, overall float64, tokens int) metadata.Record {
	return metadata.Record{
		DocumentID:     id,
		Domain:         domain,
		FileType:       ".txt",
		TokenCount:     tokens,
		QualityFlag:    overall >= 0.7,
		ExtractionDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Language:       "en",
		LanguageConf:   0.99,
		Metrics: metadata.QualityMetrics{
			LanguageDetection: metadata.LanguageResult{Language: "en", Confidence: 0.99},
			OverallScore:      overall,
			QualityFlag:       overall >= 0.7,
		},
	}
}

func writePair(t *testing.T, dir, name string, rec metadata.Record, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".txt"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := metadata.WriteRecord(filepath.Join(dir, name+".json"), rec); err != nil {
		t.Fatal(err)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return n
}

func TestProcessDirectoryRoutesByScore(t *testing.T) {
	root := t.TempDir()
	writePair(t, root, "good", scoredRecord("good", "risk_management", 0.9, 500), sampleText)
	writePair(t, root, "weak", scoredRecord("weak", "valuation_models", 0.4, 500), sampleText)
	writePair(t, root, "short", scoredRecord("short", "risk_management", 0.9, 40), sampleText)

	r := &Router{Control: newControl()}
	sum, err := r.ProcessDirectory(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 3 || sum.Passed != 1 || sum.Failed != 2 {
		t.Fatalf("summary = %+v, want 3 processed, 1 passed, 2 failed", sum)
	}

	checks := []struct {
		path string
	}{
		{filepath.Join(root, metadata.BucketQualityCheck, "risk_management", "good.json")},
		{filepath.Join(root, metadata.BucketQualityCheck, "risk_management", "good.txt")},
		{filepath.Join(root, metadata.BucketLowQuality, "valuation_models", "weak.json")},
		{filepath.Join(root, metadata.BucketLowQuality, "risk_management", "short.json")},
	}
	for _, c := range checks {
		if _, err := os.Stat(c.path); err != nil {
			t.Errorf("expected routed file %s: %v", c.path, err)
		}
	}

	rec, err := metadata.ReadRecord(filepath.Join(root, metadata.BucketQualityCheck, "risk_management", "good.json"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Directory != metadata.BucketQualityCheck {
		t.Errorf("routed record directory = %q, want %q", rec.Directory, metadata.BucketQualityCheck)
	}
}

func TestProcessDirectoryIdempotent(t *testing.T) {
	root := t.TempDir()
	writePair(t, root, "doc", scoredRecord("doc", "crypto_derivatives", 0.92, 400), sampleText)

	r := &Router{Control: newControl()}
	if _, err := r.ProcessDirectory(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	first := countFiles(t, filepath.Join(root, metadata.BucketQualityCheck))

	sum, err := r.ProcessDirectory(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	second := countFiles(t, filepath.Join(root, metadata.BucketQualityCheck))
	if second != first {
		t.Errorf("re-run grew the output bucket from %d to %d files", first, second)
	}
	if sum.Passed != 1 {
		t.Errorf("re-run summary = %+v, want 1 passed", sum)
	}
}

func TestProcessDirectoryIdempotentWithoutDate(t *testing.T) {
	root := t.TempDir()
	rec := metadata.Record{
		DocumentID: "undated",
		Domain:     "risk_management",
		FileType:   ".txt",
		TokenCount: 400,
	}
	writePair(t, root, "undated", rec, sampleText)

	r := &Router{Control: newControl()}
	if _, err := r.ProcessDirectory(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	first := countFiles(t, filepath.Join(root, metadata.BucketQualityCheck))

	if _, err := r.ProcessDirectory(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	second := countFiles(t, filepath.Join(root, metadata.BucketQualityCheck))
	if second != first {
		t.Errorf("re-run grew the output bucket from %d to %d files", first, second)
	}

	routed, err := metadata.ReadRecord(filepath.Join(root, metadata.BucketQualityCheck, "risk_management", "undated.json"))
	if err != nil {
		t.Fatal(err)
	}
	if routed.ExtractionDate.IsZero() {
		t.Error("routed record still has a zero extraction date")
	}
}

func TestProcessDirectoryBadMetadata(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken.txt"), []byte(sampleText), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Router{Control: newControl()}
	sum, err := r.ProcessDirectory(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v, want one contained failure", sum)
	}
	if sum.Failures[0].Reason != ReasonBadMetadata {
		t.Errorf("failure reason = %q, want %q", sum.Failures[0].Reason, ReasonBadMetadata)
	}
	routed := filepath.Join(root, metadata.BucketLowQuality, "unknown", "broken.txt")
	if _, err := os.Stat(routed); err != nil {
		t.Errorf("broken document not routed to low quality: %v", err)
	}
}

func TestProcessDirectoryScoresUnscored(t *testing.T) {
	root := t.TempDir()
	rec := metadata.Record{
		DocumentID: "fresh",
		Domain:     "market_microstructure",
		FileType:   ".txt",
		TokenCount: 400,
	}
	writePair(t, root, "fresh", rec, sampleText)

	r := &Router{Control: newControl()}
	sum, err := r.ProcessDirectory(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Passed != 1 {
		t.Fatalf("summary = %+v, want unscored clean document to pass", sum)
	}
	routed, err := metadata.ReadRecord(filepath.Join(root, metadata.BucketQualityCheck, "market_microstructure", "fresh.json"))
	if err != nil {
		t.Fatal(err)
	}
	if routed.DocumentID != "fresh" {
		t.Errorf("document id = %q, want preserved id", routed.DocumentID)
	}
	if routed.Metrics.LanguageDetection.Language == "" {
		t.Error("routed record still has no language metrics")
	}
}

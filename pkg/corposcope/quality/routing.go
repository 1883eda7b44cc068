package quality

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// Failure reasons reported in batch summaries.
const (
	ReasonBadMetadata     = "bad_metadata"
	ReasonDetectorTimeout = "detector_timeout"
	ReasonCopyFailed      = "copy_failed"
)

// BatchSummary reports one ProcessDirectory run. Per-document failures
// are contained here; they never abort the batch.
type BatchSummary struct {
	Processed int
	Passed    int
	Failed    int
	Failures  []Failure
}

// Failure names one document that could not be scored or routed.
type Failure struct {
	Path   string
	Reason string
}

// Router routes document/metadata pairs into the quality_checked and
// low_quality buckets under a corpus root.
type Router struct {
	Control *Control
	Logger  *slog.Logger
}

type routeEntry struct {
	metaPath string
	docPath  string
	record   metadata.Record
	pass     bool
	failWhy  string
}

// ProcessDirectory scans root for metadata records (excluding the
// output buckets, which makes re-runs idempotent), scores any document
// that has no stored quality metrics, and copies each document/metadata
// pair into quality_checked/<domain>/ or low_quality/<domain>/.
func (r *Router) ProcessDirectory(ctx context.Context, root string) (BatchSummary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var summary BatchSummary

	entries, err := r.collect(root, logger)
	if err != nil {
		return summary, err
	}

	r.scoreMissing(ctx, entries, logger)

	for i := range entries {
		e := &entries[i]
		if e.failWhy == "" {
			e.pass = r.Control.Passes(e.record)
		}
		summary.Processed++
		if err := r.route(root, e); err != nil {
			logger.Warn("routing failed", "path", e.metaPath, "error", err)
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Path: e.metaPath, Reason: ReasonCopyFailed})
			continue
		}
		switch {
		case e.failWhy != "":
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Path: e.metaPath, Reason: e.failWhy})
			r.Control.metrics.DocsFailed.Inc()
			r.Control.metrics.RoutedLowQuality.Inc()
		case e.pass:
			summary.Passed++
			r.Control.metrics.RoutedAccepted.Inc()
		default:
			summary.Failed++
			r.Control.metrics.RoutedLowQuality.Inc()
		}
	}
	return summary, nil
}

// collect walks the tree and loads every metadata record outside the
// output buckets. Unreadable records become automatic failures with
// reason bad_metadata.
func (r *Router) collect(root string, logger *slog.Logger) ([]routeEntry, error) {
	var entries []routeEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// New documents may appear or vanish mid-scan; skip and move on.
			logger.Warn("scan error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == metadata.BucketQualityCheck || d.Name() == metadata.BucketLowQuality {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		entry := routeEntry{metaPath: path}
		rec, rerr := metadata.ReadRecord(path)
		if rerr != nil {
			logger.Warn("bad metadata record", "path", path, "error", rerr)
			entry.failWhy = ReasonBadMetadata
			entry.record = metadata.Record{DocumentID: stem(path), Domain: "unknown"}
		} else {
			entry.record = rec
		}
		entry.docPath = findDocumentFile(path)
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	return entries, nil
}

// scoreMissing runs the detector pool over entries whose records carry
// no stored quality metrics.
func (r *Router) scoreMissing(ctx context.Context, entries []routeEntry, logger *slog.Logger) {
	var docs []Document
	var idx []int
	for i := range entries {
		e := &entries[i]
		if e.failWhy != "" || e.record.Metrics.LanguageDetection.Language != "" {
			continue
		}
		if e.docPath == "" {
			continue
		}
		text, err := os.ReadFile(e.docPath)
		if err != nil {
			logger.Warn("unreadable document", "path", e.docPath, "error", err)
			e.failWhy = ReasonBadMetadata
			continue
		}
		// A record without an extraction date gets one derived from the
		// document file itself, so re-runs score to identical bytes.
		if e.record.ExtractionDate.IsZero() {
			if info, serr := os.Stat(e.docPath); serr == nil {
				e.record.ExtractionDate = info.ModTime().UTC()
			}
		}
		docs = append(docs, Document{
			Text:             string(text),
			FileType:         e.record.FileType,
			Domain:           e.record.Domain,
			ExtractionMethod: e.record.ExtractionMethod,
			TokenCount:       e.record.TokenCount,
			FileSize:         e.record.FileSize,
			ExtractionDate:   e.record.ExtractionDate,
		})
		idx = append(idx, i)
	}
	if len(docs) == 0 {
		return
	}

	pool := &Pool{Control: r.Control}
	for _, out := range pool.Run(ctx, docs) {
		e := &entries[idx[out.Index]]
		if out.Err != nil {
			e.failWhy = ReasonDetectorTimeout
			continue
		}
		// Keep the identity fields from the original record.
		out.Record.DocumentID = e.record.DocumentID
		if out.Record.DocumentID == "" {
			out.Record.DocumentID = stem(e.metaPath)
		}
		e.record = out.Record
	}
}

// route copies the document/metadata pair into its destination bucket.
func (r *Router) route(root string, e *routeEntry) error {
	bucket := metadata.BucketLowQuality
	if e.failWhy == "" && e.pass {
		bucket = metadata.BucketQualityCheck
	}
	domain := e.record.Domain
	if domain == "" {
		domain = "unknown"
	}
	destDir := filepath.Join(root, bucket, domain)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	e.record.Directory = bucket
	name := stem(e.metaPath)
	if err := writeRouted(destDir, name+".json", func(path string) error {
		return metadata.WriteRecord(path, e.record)
	}); err != nil {
		return err
	}
	if e.docPath != "" {
		docName := filepath.Base(e.docPath)
		if err := writeRouted(destDir, docName, func(path string) error {
			return copyFile(e.docPath, path)
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeRouted writes a destination file once. An existing identical
// file is left alone (re-runs add nothing); a conflicting file gets a
// unique suffix so concurrent writers cannot clobber each other.
func writeRouted(dir, name string, write func(path string) error) error {
	dest := filepath.Join(dir, name)
	tmp := filepath.Join(dir, ".routing-"+uuid.NewString()+filepath.Ext(name))
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if same, err := sameContent(tmp, dest); err == nil && same {
		return os.Remove(tmp)
	} else if _, serr := os.Stat(dest); serr == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		dest = filepath.Join(dir, base+"-"+uuid.NewString()[:8]+ext)
	}
	return os.Rename(tmp, dest)
}

func sameContent(a, b string) (bool, error) {
	ha, err := hashFile(a)
	if err != nil {
		return false, err
	}
	hb, err := hashFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ha, hb), nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// findDocumentFile returns the sibling document for a metadata path:
// same stem, any non-JSON extension.
func findDocumentFile(metaPath string) string {
	dir := filepath.Dir(metaPath)
	base := stem(metaPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			continue
		}
		if stem(filepath.Join(dir, name)) == base {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

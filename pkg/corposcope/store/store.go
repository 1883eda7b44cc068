// Package store persists document metadata records so balance analysis
// can read the corpus in bulk without re-walking the filesystem.
package store

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// Store is the main interface for persisting and querying corpus records
type Store interface {
	Close() error

	UpsertRecord(ctx context.Context, rec metadata.Record) error
	DeleteRecord(ctx context.Context, id string) error
	GetRecord(ctx context.Context, id string) (metadata.Record, bool, error)
	ListRecords(ctx context.Context) ([]metadata.Record, error)
	ListByDomain(ctx context.Context, domain string) ([]metadata.Record, error)
	CountByDomain(ctx context.Context) (map[string]int, error)
}

// IndexDirectory walks the routed buckets under root and upserts every
// readable metadata record. Unreadable records are logged and skipped;
// the walk itself only fails on filesystem errors.
func IndexDirectory(ctx context.Context, st Store, root string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	indexed := 0
	for _, bucket := range []string{metadata.BucketQualityCheck, metadata.BucketLowQuality} {
		dir := filepath.Join(root, bucket)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // bucket may not exist yet
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
				return nil
			}
			rec, rerr := metadata.ReadRecord(path)
			if rerr != nil {
				logger.Warn("skipping unreadable record", "path", path, "error", rerr)
				return nil
			}
			if rec.Directory == "" {
				rec.Directory = bucket
			}
			if uerr := st.UpsertRecord(ctx, rec); uerr != nil {
				return uerr
			}
			indexed++
			return nil
		})
		if err != nil {
			return indexed, err
		}
	}
	return indexed, nil
}

// Package sqlite is the durable store.Store used by the record index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates
// the schema if it does not exist.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS records (
	document_id TEXT PRIMARY KEY,
	directory TEXT,
	domain TEXT,
	file_type TEXT,
	extraction_method TEXT,
	token_count INTEGER DEFAULT 0,
	quality_flag INTEGER DEFAULT 0,
	extraction_date TEXT,
	language TEXT,
	language_confidence REAL DEFAULT 0,
	file_size INTEGER DEFAULT 0,
	corruption_score_normalized REAL DEFAULT 0,
	machine_translation_flag INTEGER DEFAULT 0,
	academic_paper INTEGER DEFAULT 0,
	metrics TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_domain ON records(domain);
CREATE INDEX IF NOT EXISTS idx_records_directory ON records(directory);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertRecord inserts or replaces a record, keyed by document ID.
func (s *sqliteStore) UpsertRecord(ctx context.Context, rec metadata.Record) error {
	if rec.DocumentID == "" {
		return nil
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO records (
	document_id, directory, domain, file_type, extraction_method,
	token_count, quality_flag, extraction_date, language, language_confidence,
	file_size, corruption_score_normalized, machine_translation_flag,
	academic_paper, metrics
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(document_id) DO UPDATE SET
	directory = excluded.directory,
	domain = excluded.domain,
	file_type = excluded.file_type,
	extraction_method = excluded.extraction_method,
	token_count = excluded.token_count,
	quality_flag = excluded.quality_flag,
	extraction_date = excluded.extraction_date,
	language = excluded.language,
	language_confidence = excluded.language_confidence,
	file_size = excluded.file_size,
	corruption_score_normalized = excluded.corruption_score_normalized,
	machine_translation_flag = excluded.machine_translation_flag,
	academic_paper = excluded.academic_paper,
	metrics = excluded.metrics`,
		rec.DocumentID, rec.Directory, rec.Domain, rec.FileType, rec.ExtractionMethod,
		rec.TokenCount, boolInt(rec.QualityFlag), rec.ExtractionDate.UTC().Format(time.RFC3339Nano),
		rec.Language, rec.LanguageConf, rec.FileSize, rec.CorruptionScoreNormalized,
		boolInt(rec.MachineTranslationFlag), boolInt(rec.AcademicPaper), string(metrics))
	return err
}

// DeleteRecord removes a record. Deleting a missing ID is a no-op.
func (s *sqliteStore) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE document_id = ?`, id)
	return err
}

// GetRecord returns a record by document ID.
func (s *sqliteStore) GetRecord(ctx context.Context, id string) (metadata.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM records WHERE document_id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return metadata.Record{}, false, nil
	}
	if err != nil {
		return metadata.Record{}, false, err
	}
	return rec, true, nil
}

// ListRecords returns all records ordered by document ID.
func (s *sqliteStore) ListRecords(ctx context.Context) ([]metadata.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM records ORDER BY document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByDomain returns all records for one domain ordered by document ID.
func (s *sqliteStore) ListByDomain(ctx context.Context, domain string) ([]metadata.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM records WHERE domain = ? ORDER BY document_id`, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountByDomain tallies records per domain.
func (s *sqliteStore) CountByDomain(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM records GROUP BY domain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, err
		}
		counts[domain] = n
	}
	return counts, rows.Err()
}

const selectColumns = `SELECT document_id, directory, domain, file_type, extraction_method,
	token_count, quality_flag, extraction_date, language, language_confidence,
	file_size, corruption_score_normalized, machine_translation_flag,
	academic_paper, metrics`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (metadata.Record, error) {
	var rec metadata.Record
	var qualityFlag, mtFlag, academic int
	var extractionDate, metrics string
	if err := row.Scan(
		&rec.DocumentID, &rec.Directory, &rec.Domain, &rec.FileType, &rec.ExtractionMethod,
		&rec.TokenCount, &qualityFlag, &extractionDate, &rec.Language, &rec.LanguageConf,
		&rec.FileSize, &rec.CorruptionScoreNormalized, &mtFlag, &academic, &metrics,
	); err != nil {
		return metadata.Record{}, err
	}
	rec.QualityFlag = qualityFlag != 0
	rec.MachineTranslationFlag = mtFlag != 0
	rec.AcademicPaper = academic != 0
	if ts, err := time.Parse(time.RFC3339Nano, extractionDate); err == nil {
		rec.ExtractionDate = ts
	}
	if metrics != "" {
		if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
			return metadata.Record{}, fmt.Errorf("unmarshal metrics for %s: %w", rec.DocumentID, err)
		}
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]metadata.Record, error) {
	var out []metadata.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

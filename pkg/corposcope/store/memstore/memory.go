// Package memstore is an in-memory store.Store for tests and one-shot
// analysis runs that never touch disk.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]metadata.Record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{records: make(map[string]metadata.Record)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertRecord inserts or replaces a record, keyed by document ID.
func (s *Store) UpsertRecord(ctx context.Context, rec metadata.Record) error {
	if rec.DocumentID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.DocumentID] = copyRecord(rec)
	return nil
}

// DeleteRecord removes a record. Deleting a missing ID is a no-op.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// GetRecord returns a record by document ID.
func (s *Store) GetRecord(ctx context.Context, id string) (metadata.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[id]; ok {
		return copyRecord(rec), true, nil
	}
	return metadata.Record{}, false, nil
}

// ListRecords returns all records sorted by document ID.
func (s *Store) ListRecords(ctx context.Context) ([]metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]metadata.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// ListByDomain returns all records for one domain sorted by document ID.
func (s *Store) ListByDomain(ctx context.Context, domain string) ([]metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []metadata.Record
	for _, rec := range s.records {
		if rec.Domain == domain {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// CountByDomain tallies records per domain.
func (s *Store) CountByDomain(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range s.records {
		counts[rec.Domain]++
	}
	return counts, nil
}

// copyRecord deep-copies the slice fields so callers cannot mutate
// stored state through a returned record.
func copyRecord(rec metadata.Record) metadata.Record {
	out := rec
	out.Metrics.MachineTranslation.Reasons = copyStrings(rec.Metrics.MachineTranslation.Reasons)
	out.Metrics.LanguageDetection.MixedLanguages = copyStrings(rec.Metrics.LanguageDetection.MixedLanguages)
	out.Metrics.LanguageDetection.Reasons = copyStrings(rec.Metrics.LanguageDetection.Reasons)
	out.Metrics.Corruption.IssuesFound = copyStrings(rec.Metrics.Corruption.IssuesFound)
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
)

// ReadRecord loads one metadata record from a JSON file. Unreadable or
// malformed files return ErrBadMetadata so callers can count them as
// contained per-document failures.
func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", internalerr.ErrBadMetadata, path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", internalerr.ErrBadMetadata, path, err)
	}
	if rec.DocumentID == "" {
		rec.DocumentID = stem(path)
	}
	return rec, nil
}

// WriteRecord serializes a record to path atomically (write temp file,
// then rename). Concurrent writers to the same destination cannot leave
// a torn file behind.
func WriteRecord(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rec-*.json")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

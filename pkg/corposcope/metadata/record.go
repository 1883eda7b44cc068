// Package metadata defines the per-document record produced by quality
// control and consumed in bulk by balance analysis. Records are created
// once at extraction time and read-only afterwards.
package metadata

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Severity classifies a detector finding.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Buckets documents are routed into after quality control.
const (
	BucketQualityCheck = "quality_checked"
	BucketLowQuality   = "low_quality"
)

// LanguageResult is the language-confidence detector output.
type LanguageResult struct {
	Language          string   `json:"language"`
	Confidence        float64  `json:"language_confidence"`
	MixedLanguageFlag bool     `json:"mixed_language_flag"`
	MixedLanguages    []string `json:"mixed_languages,omitempty"`
	Reasons           []string `json:"reasons,omitempty"`
	Severity          Severity `json:"severity"`
}

// CorruptionResult is the corruption detector output. Score is in [0,1].
type CorruptionResult struct {
	IsCorrupted     bool     `json:"is_corrupted"`
	CorruptionScore float64  `json:"corruption_score"`
	IssuesFound     []string `json:"issues_found,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// TranslationResult is the machine-translation detector output.
// Score is in [0,100]; Confidence in [0,1].
type TranslationResult struct {
	Flag       bool     `json:"machine_translated_flag"`
	Score      int      `json:"machine_translation_score"`
	Reasons    []string `json:"machine_translation_reasons,omitempty"`
	Severity   Severity `json:"machine_translation_severity"`
	Confidence float64  `json:"machine_translation_confidence"`
}

// QualityMetrics aggregates the three detector outputs for one document.
// Computed once, never mutated.
type QualityMetrics struct {
	MachineTranslation TranslationResult `json:"machine_translation"`
	LanguageDetection  LanguageResult    `json:"language_detection"`
	Corruption         CorruptionResult  `json:"corruption"`
	OverallScore       float64           `json:"overall_quality_score"`
	QualityFlag        bool              `json:"quality_flag"`
}

// Record is the persisted per-document metadata.
type Record struct {
	DocumentID       string         `json:"document_id"`
	Directory        string         `json:"directory"`
	Domain           string         `json:"domain"`
	FileType         string         `json:"file_type"`
	ExtractionMethod string         `json:"extraction_method,omitempty"`
	TokenCount       int            `json:"token_count"`
	QualityFlag      bool           `json:"quality_flag"`
	ExtractionDate   time.Time      `json:"extraction_date"`
	Language         string         `json:"language"`
	LanguageConf     float64        `json:"language_confidence"`
	FileSize         int64          `json:"file_size"`
	Metrics          QualityMetrics `json:"quality_metrics"`

	// Denormalized fields the analyzer reads without unpacking Metrics.
	CorruptionScoreNormalized float64 `json:"corruption_score_normalized"`
	MachineTranslationFlag    bool    `json:"machine_translation_flag"`
	AcademicPaper             bool    `json:"academic_paper"`
}

// NewDocumentID returns a fresh ULID string.
func NewDocumentID() string {
	return ulid.Make().String()
}

// Package quality scores extracted documents with three rule-based
// detectors (machine translation, corruption, language confidence),
// combines them into an overall quality verdict, and routes
// document/metadata pairs into accepted and low-quality buckets.
package quality

import (
	"log/slog"
	"strings"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/metrics"
)

// Document is the extractor-produced input for one document.
type Document struct {
	Text             string
	FileType         string
	Domain           string
	ExtractionMethod string
	TokenCount       int
	FileSize         int64
	ExtractionDate   time.Time
}

// Control runs the three detectors over single documents and derives
// the overall quality score and flag.
type Control struct {
	cfg         config.QualityConfig
	translation *TranslationDetector
	corruption  *CorruptionDetector
	language    *LanguageDetector
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewControl builds a Control with the given configuration. logger and
// m may be nil.
func NewControl(cfg config.QualityConfig, logger *slog.Logger, m *metrics.Metrics) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Control{
		cfg:         cfg,
		translation: NewTranslationDetector(cfg.Translation),
		corruption:  NewCorruptionDetector(cfg.Corruption),
		language:    NewLanguageDetector(cfg.Language),
		logger:      logger,
		metrics:     m,
	}
}

// Metrics returns the counter set the control reports into.
func (c *Control) Metrics() *metrics.Metrics { return c.metrics }

// CheckQuality runs all detectors over one text and combines their
// outputs. The overall score weights each detector's normalized
// "goodness" sub-score; problem detectors therefore lower the
// composite.
func (c *Control) CheckQuality(text, fileType, domain string) metadata.QualityMetrics {
	qm := metadata.QualityMetrics{
		MachineTranslation: c.translation.Detect(text, fileType, domain),
		LanguageDetection:  c.language.Detect(text),
		Corruption:         c.corruption.Detect(text),
	}

	w := c.cfg.Weights
	translationSub := 1 - float64(qm.MachineTranslation.Score)/float64(maxTranslationScore)
	languageSub := qm.LanguageDetection.Confidence
	corruptionSub := 1 - qm.Corruption.CorruptionScore

	qm.OverallScore = w.MachineTranslation*translationSub +
		w.LanguageDetection*languageSub +
		w.Corruption*corruptionSub
	qm.QualityFlag = qm.OverallScore >= c.cfg.MinQualityScore
	return qm
}

// Process scores one document and assembles its metadata record.
func (c *Control) Process(doc Document) metadata.Record {
	qm := c.CheckQuality(doc.Text, doc.FileType, doc.Domain)

	rec := metadata.Record{
		DocumentID:       metadata.NewDocumentID(),
		Domain:           doc.Domain,
		FileType:         doc.FileType,
		ExtractionMethod: doc.ExtractionMethod,
		TokenCount:       doc.TokenCount,
		QualityFlag:      qm.QualityFlag,
		ExtractionDate:   doc.ExtractionDate,
		Language:         qm.LanguageDetection.Language,
		LanguageConf:     qm.LanguageDetection.Confidence,
		FileSize:         doc.FileSize,
		Metrics:          qm,

		CorruptionScoreNormalized: (1 - qm.Corruption.CorruptionScore) * 100,
		MachineTranslationFlag:    qm.MachineTranslation.Flag,
		AcademicPaper:             isAcademicPaper(doc.Text),
	}
	if rec.ExtractionDate.IsZero() {
		rec.ExtractionDate = time.Now().UTC()
	}
	c.metrics.DocsScored.Inc()
	c.logger.Debug("document scored",
		"document_id", rec.DocumentID,
		"domain", rec.Domain,
		"overall_score", qm.OverallScore,
		"quality_flag", qm.QualityFlag,
		"corruption_issues", describeIssues(qm.Corruption))
	return rec
}

// Passes applies the quality gate with the token-count fallback:
// too-short documents fail regardless of score.
func (c *Control) Passes(rec metadata.Record) bool {
	if rec.TokenCount < c.cfg.MinTokenCount {
		return false
	}
	return rec.Metrics.OverallScore >= c.cfg.MinQualityScore
}

// isAcademicPaper is a light structural heuristic: papers carry an
// abstract and a references section (or a DOI).
func isAcademicPaper(text string) bool {
	lower := strings.ToLower(text)
	hasAbstract := strings.Contains(lower, "abstract")
	hasRefs := strings.Contains(lower, "references") || strings.Contains(lower, "bibliography")
	hasDOI := strings.Contains(lower, "doi:") || strings.Contains(lower, "doi.org/")
	return (hasAbstract && hasRefs) || hasDOI
}

package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// detectionLanguages is the candidate set for identification. Narrower
// than lingua's full list: the corpus is collected from financial and
// technical sources, and a smaller set keeps model loading cheap.
var detectionLanguages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Russian,
	lingua.Chinese, lingua.Japanese, lingua.Korean, lingua.Arabic,
}

// minSegmentWords is the shortest sentence-like segment worth running
// per-segment identification on.
const minSegmentWords = 5

// LanguageDetector identifies the primary language of a text and flags
// mixed-language content by tallying per-segment detections.
//
// The underlying lingua detector is expensive to build; construct one
// LanguageDetector and reuse it across documents.
type LanguageDetector struct {
	cfg config.LanguageConfig
	det lingua.LanguageDetector
}

// NewLanguageDetector builds the lingua-backed detector.
func NewLanguageDetector(cfg config.LanguageConfig) *LanguageDetector {
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectionLanguages...).
		Build()
	return &LanguageDetector{cfg: cfg, det: det}
}

// Detect identifies the text's language, its confidence, and any mixed
// languages across sentence-like segments.
func (d *LanguageDetector) Detect(text string) metadata.LanguageResult {
	primary, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return metadata.LanguageResult{
			Language: "unknown",
			Reasons:  []string{"no language detected"},
			Severity: metadata.SeverityCritical,
		}
	}

	res := metadata.LanguageResult{
		Language:   isoCode(primary),
		Confidence: d.det.ComputeLanguageConfidence(text, primary),
		Severity:   metadata.SeverityOK,
	}

	counts := d.segmentLanguages(text)
	if len(counts) > 1 {
		total := 0
		for _, c := range counts {
			total += c
		}
		var mixed []string
		for lang, c := range counts {
			if float64(c)/float64(total) > d.cfg.MixedLanguageRatio {
				mixed = append(mixed, lang)
			}
		}
		sort.Strings(mixed)
		if len(mixed) > 0 {
			res.MixedLanguageFlag = true
			res.MixedLanguages = mixed
			res.Reasons = append(res.Reasons,
				fmt.Sprintf("mixed languages detected: %s", strings.Join(mixed, ", ")))
			res.Severity = metadata.SeverityWarning
		}
	}

	if res.Confidence < d.cfg.LowConfidenceThreshold {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("low language detection confidence: %.2f", res.Confidence))
		res.Severity = metadata.SeverityWarning
	}

	return res
}

// segmentLanguages tallies the detected language of each sentence-like
// segment with at least minSegmentWords words.
func (d *LanguageDetector) segmentLanguages(text string) map[string]int {
	counts := make(map[string]int)
	for _, seg := range splitSentences(text) {
		if len(strings.Fields(seg)) < minSegmentWords {
			continue
		}
		lang, ok := d.det.DetectLanguageOf(seg)
		if !ok {
			continue
		}
		counts[isoCode(lang)]++
	}
	return counts
}

func isoCode(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

package quality

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// issueThreshold is the sub-score above which a sub-check is reported
// in IssuesFound.
const issueThreshold = 0.3

// Issue names reported by the corruption sub-checks.
const (
	issueEncodingErrors = "encoding_errors"
	issueGibberish      = "gibberish"
	issueFormatErrors   = "format_errors"
)

// CorruptionDetector scores encoding errors, gibberish runs, and
// structural anomalies in extracted text. The corruption score is the
// maximum of the fired sub-scores, each in [0,1].
type CorruptionDetector struct {
	cfg      config.CorruptionConfig
	encoding []*regexp.Regexp
	garbled  []*regexp.Regexp
}

// NewCorruptionDetector compiles the configured patterns. Invalid
// patterns are skipped.
func NewCorruptionDetector(cfg config.CorruptionConfig) *CorruptionDetector {
	d := &CorruptionDetector{cfg: cfg}
	for _, pat := range cfg.EncodingPatterns {
		if re, err := regexp.Compile(pat); err == nil {
			d.encoding = append(d.encoding, re)
		}
	}
	for _, pat := range cfg.GarbledPatterns {
		if re, err := regexp.Compile(pat); err == nil {
			d.garbled = append(d.garbled, re)
		}
	}
	return d
}

// Detect scores one text. Texts below the configured minimum length are
// exempt and always come back clean.
func (d *CorruptionDetector) Detect(text string) metadata.CorruptionResult {
	if len(text) < d.cfg.MinTextLength {
		return metadata.CorruptionResult{Reason: "text too short"}
	}

	res := metadata.CorruptionResult{}
	record := func(name string, score float64) {
		if score > issueThreshold {
			res.IssuesFound = append(res.IssuesFound, name)
		}
		if score > res.CorruptionScore {
			res.CorruptionScore = score
		}
	}

	if d.cfg.Checks.EncodingErrors {
		record(issueEncodingErrors, d.checkEncodingErrors(text))
	}
	if d.cfg.Checks.Gibberish {
		record(issueGibberish, d.checkGibberish(text))
	}
	if d.cfg.Checks.FormatErrors {
		record(issueFormatErrors, d.checkFormatErrors(text))
	}

	res.IsCorrupted = res.CorruptionScore >= d.cfg.CorruptionThreshold
	return res
}

// checkEncodingErrors counts escape-sequence artifacts and replacement
// characters left behind by a bad decode. Ten or more matches saturate
// the score.
func (d *CorruptionDetector) checkEncodingErrors(text string) float64 {
	matches := 0
	for _, re := range d.encoding {
		matches += len(re.FindAllString(text, -1))
	}
	return clamp01(float64(matches) * 0.1)
}

// checkGibberish measures how much of the text is covered by garbled
// character runs (long non-ASCII spans, 20+ letter runs, symbol runs).
func (d *CorruptionDetector) checkGibberish(text string) float64 {
	covered := 0
	for _, re := range d.garbled {
		for _, m := range re.FindAllString(text, -1) {
			covered += len(m)
		}
	}
	ratio := float64(covered) / float64(len(text))
	return clamp01(5 * ratio)
}

// checkFormatErrors combines two structural signals: the share of
// sentences outside the configured length bounds, and the density of
// unstripped HTML markup (extractors are expected to deliver plain
// text).
func (d *CorruptionDetector) checkFormatErrors(text string) float64 {
	score := d.sentenceLengthScore(text)
	if hs := htmlArtifactScore(text); hs > score {
		score = hs
	}
	return score
}

func (d *CorruptionDetector) sentenceLengthScore(text string) float64 {
	bad, total := 0, 0
	for _, s := range splitSentences(text) {
		total++
		if len(s) < d.cfg.MinSentenceLength || len(s) > d.cfg.MaxSentenceLength {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(float64(bad) / float64(total))
}

// htmlArtifactScore tokenizes the text as HTML and counts element tags.
// Plain prose produces none; twenty or more tags saturate the score.
func htmlArtifactScore(text string) float64 {
	if !strings.ContainsRune(text, '<') {
		return 0
	}
	tz := html.NewTokenizer(strings.NewReader(text))
	tags := 0
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return clamp01(float64(tags) / 20)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			tags++
		}
	}
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// describeIssues renders the issue list for logs and batch summaries.
func describeIssues(res metadata.CorruptionResult) string {
	if len(res.IssuesFound) == 0 {
		return "none"
	}
	return fmt.Sprintf("%s (score %.2f)", strings.Join(res.IssuesFound, ", "), res.CorruptionScore)
}

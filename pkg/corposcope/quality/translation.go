package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// Score contributions and trigger weights for the translation heuristics.
// Tuned against the original corpus; preserved as-is for behavior
// compatibility.
const (
	disclaimerScore  = 50
	repetitionScore  = 30
	minorScore       = 10
	maxTranslationScore = 100

	disclaimerWeight   = 1.0
	repetitionWeight   = 0.9
	ngramStrongWeight  = 0.9
	ngramWeakWeight    = 0.7
	minorWeight        = 0.5
	dampenedMinorWeight = 0.25

	// shortTextWordCount is the corroboration cutoff: below it, minor
	// heuristics need company before the document is flagged.
	shortTextWordCount = 200
	shortConfidencePerTrigger = 0.4
	shortConfidenceCap        = 0.8
	ngramCriticalScore        = 20
)

// Trigger names. The first three are "major" signals that flag on their own.
const (
	triggerDisclaimer     = "disclaimer"
	triggerRepeatedPhrase = "repeated_phrase"
	triggerNGram          = "ngram"
	triggerFuncContent    = "func_content"
	triggerMissingArticle = "missing_article"
	triggerVerbTense      = "verb_tense"
	triggerRareWord       = "rare_word"
)

// trigger is one fired heuristic: what it saw, how much score it adds,
// and how much it contributes to overall confidence.
type trigger struct {
	name     string
	score    int
	severity metadata.Severity
	weight   float64
	reasons  []string
}

var (
	wordRe        = regexp.MustCompile(`\w+`)
	codeLineRe    = regexp.MustCompile(`^(def |class |[a-zA-Z_][a-zA-Z0-9_]* ?=)`)
	numberedLine  = regexp.MustCompile(`^[0-9]+\. `)
	bulletLine    = regexp.MustCompile(`^[\-\*] `)
	articleRe     = regexp.MustCompile(`^(the|a|an)\b`)
	presentContRe = regexp.MustCompile(`\b(am|is|are|was|were)\s+\w+ing\b`)
	pastPerfectRe = regexp.MustCompile(`\bhad\s+\w+ed\b`)
	verbFormRe    = regexp.MustCompile(`\b\w+ed\b|\b\w+ing\b`)
)

// functionalWords are closed-class English words used for the
// functional-to-content ratio heuristic.
var functionalWords = wordSet(
	"the", "a", "an", "in", "on", "at", "by", "for", "with", "to", "from",
	"of", "and", "or", "but", "as", "if", "than", "then", "when", "while",
	"where", "after", "before", "above", "below", "over", "under", "again",
	"further", "once", "about", "against", "between", "into", "through",
	"during", "without", "within", "along", "across", "behind", "beyond",
	"plus", "except", "up", "down", "off", "out", "around", "near",
)

// commonWords is the small reference vocabulary for the rare-word ratio.
var commonWords = wordSet(
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
	"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// TranslationDetector flags likely machine-translated text by combining
// seven independent heuristics with length-adaptive corroboration rules.
type TranslationDetector struct {
	cfg        config.TranslationConfig
	disclaimers []*regexp.Regexp
	exclusions  map[string]struct{}
}

// NewTranslationDetector compiles the configured disclaimer patterns.
// Invalid patterns are skipped rather than failing construction.
func NewTranslationDetector(cfg config.TranslationConfig) *TranslationDetector {
	d := &TranslationDetector{
		cfg:        cfg,
		exclusions: make(map[string]struct{}, len(cfg.DomainExclusions)),
	}
	for _, pat := range cfg.DisclaimerPatterns {
		re, err := regexp.Compile(`(?i)` + pat)
		if err != nil {
			continue
		}
		d.disclaimers = append(d.disclaimers, re)
	}
	for _, dom := range cfg.DomainExclusions {
		d.exclusions[dom] = struct{}{}
	}
	return d
}

// Detect runs all heuristics over text and combines the fired triggers.
// fileType and domain may be empty; they select relaxed thresholds for
// code-derived text and short-circuit excluded domains.
func (d *TranslationDetector) Detect(text, fileType, domain string) metadata.TranslationResult {
	if domain != "" {
		if _, ok := d.exclusions[domain]; ok {
			return metadata.TranslationResult{
				Severity: metadata.SeverityOK,
				Reasons:  []string{"domain excluded"},
			}
		}
	}
	if isCodePattern(text) {
		return metadata.TranslationResult{
			Severity: metadata.SeverityOK,
			Reasons:  []string{"code pattern detected"},
		}
	}

	ngramThreshold := d.cfg.NGramRepetitionThreshold
	rareThreshold := d.cfg.RareWordRatioThreshold
	if fileType == ".py" || fileType == ".ipynb" {
		ngramThreshold = d.cfg.CodeComment.NGramRepetition
		rareThreshold = d.cfg.CodeComment.RareWordRatio
	}

	words := lowerWords(text)
	wordCount := len(words)
	uniqueCount := countUnique(words)

	var triggers []trigger
	if t := d.checkDisclaimers(text); t != nil {
		triggers = append(triggers, *t)
	}
	if t := checkRepeatedPhrase(text); t != nil {
		triggers = append(triggers, *t)
	}
	if t := checkNGramRepetition(text, ngramThreshold, wordCount); t != nil {
		triggers = append(triggers, *t)
	}
	if wordCount >= 100 {
		ratio := d.cfg.FunctionalToContentRatio
		if wordCount > 500 {
			ratio *= 0.9
		}
		if t := checkFunctionalContentRatio(words, ratio); t != nil {
			triggers = append(triggers, *t)
		}
	}
	if wordCount >= 25 {
		if t := checkMissingArticles(text, d.cfg.MissingArticleThreshold, wordCount); t != nil {
			triggers = append(triggers, *t)
		}
	}
	if t := checkUnusualVerbTense(text, d.cfg.UnusualVerbTenseThreshold); t != nil {
		triggers = append(triggers, *t)
	}
	if uniqueCount >= 50 {
		if t := checkRareWordRatio(words, rareThreshold); t != nil {
			triggers = append(triggers, *t)
		}
	}

	return combineTriggers(triggers, wordCount)
}

// combineTriggers applies the length-adaptive corroboration and severity
// policy over the fired triggers. Pure function; see the package tests
// for the exact decision table.
func combineTriggers(triggers []trigger, wordCount int) metadata.TranslationResult {
	score := 0
	severity := metadata.SeverityOK
	var reasons []string
	ngramScore := 0
	majorFired := false
	ngramFired := false
	var minorCount int
	var weightSum float64

	for _, t := range triggers {
		score += t.score
		reasons = append(reasons, t.reasons...)
		weightSum += t.weight
		if severityRank(t.severity) > severityRank(severity) {
			severity = t.severity
		}
		switch t.name {
		case triggerDisclaimer, triggerRepeatedPhrase:
			majorFired = true
		case triggerNGram:
			majorFired = true
			ngramFired = true
			ngramScore = t.score
		default:
			minorCount++
		}
	}
	if score > maxTranslationScore {
		score = maxTranslationScore
	}

	// Short texts need corroborating evidence: one minor signal alone is
	// not enough, two or more always flag.
	if wordCount < shortTextWordCount {
		if minorCount < 2 && !majorFired {
			return metadata.TranslationResult{
				Score:    score,
				Reasons:  reasons,
				Severity: metadata.SeverityOK,
			}
		}
		if minorCount >= 2 {
			conf := shortConfidencePerTrigger * float64(minorCount)
			if conf > shortConfidenceCap {
				conf = shortConfidenceCap
			}
			return metadata.TranslationResult{
				Flag:       true,
				Score:      score,
				Reasons:    reasons,
				Severity:   metadata.SeverityWarning,
				Confidence: conf,
			}
		}
	}

	if ngramScore >= ngramCriticalScore {
		return metadata.TranslationResult{
			Flag:       true,
			Score:      score,
			Reasons:    reasons,
			Severity:   metadata.SeverityCritical,
			Confidence: 0.9,
		}
	}

	confidence := weightSum
	if confidence > 1.0 {
		confidence = 1.0
	}
	flag := (score >= repetitionScore || severity == metadata.SeverityCritical) && confidence > 0.5
	if ngramFired {
		flag = true
	}
	switch {
	case score >= disclaimerScore:
		severity = metadata.SeverityCritical
	case score >= repetitionScore:
		severity = metadata.SeverityWarning
	default:
		severity = metadata.SeverityOK
	}
	return metadata.TranslationResult{
		Flag:       flag,
		Score:      score,
		Reasons:    reasons,
		Severity:   severity,
		Confidence: confidence,
	}
}

func (d *TranslationDetector) checkDisclaimers(text string) *trigger {
	for _, re := range d.disclaimers {
		if loc := re.FindString(text); loc != "" {
			return &trigger{
				name:     triggerDisclaimer,
				score:    disclaimerScore,
				severity: metadata.SeverityCritical,
				weight:   disclaimerWeight,
				reasons:  []string{fmt.Sprintf("found translation disclaimer: %q", loc)},
			}
		}
	}
	return nil
}

// checkRepeatedPhrase fires when the same normalized sentence appears
// three or more times in a row.
func checkRepeatedPhrase(text string) *trigger {
	const minRepeats = 3
	prev := ""
	count := 1
	for _, phrase := range splitSentences(text) {
		if phrase == prev {
			count++
			if count >= minRepeats {
				return &trigger{
					name:     triggerRepeatedPhrase,
					score:    repetitionScore,
					severity: metadata.SeverityCritical,
					weight:   repetitionWeight,
					reasons:  []string{fmt.Sprintf("exact phrase repetition: %q repeated %d times", phrase, count)},
				}
			}
		} else {
			count = 1
			prev = phrase
		}
	}
	return nil
}

// checkNGramRepetition counts repeated word 3-grams. The repetition
// threshold drops by one (floor 2) for short texts, and the whole check
// is skipped for legitimate enumerated lists.
func checkNGramRepetition(text string, threshold, wordCount int) *trigger {
	const n = 3
	if wordCount < shortTextWordCount {
		threshold--
		if threshold < 2 {
			threshold = 2
		}
	}
	fields := strings.Fields(text)
	if len(fields) < n {
		return nil
	}
	counts := make(map[string]int)
	for i := 0; i+n <= len(fields); i++ {
		counts[strings.Join(fields[i:i+n], " ")]++
	}
	maxFreq := 0
	var reasons []string
	for gram, c := range counts {
		if c >= threshold {
			reasons = append(reasons, fmt.Sprintf("high n-gram repetition: %q (%d times)", gram, c))
			if c > maxFreq {
				maxFreq = c
			}
		}
	}
	if maxFreq == 0 || isLegitimateRepetition(text) {
		return nil
	}
	score := minorScore + 5*max(0, maxFreq-2) // 3+ repetitions is strong evidence
	sev := metadata.SeverityWarning
	weight := ngramWeakWeight
	if score >= ngramCriticalScore {
		sev = metadata.SeverityCritical
		weight = ngramStrongWeight
	}
	return &trigger{
		name:     triggerNGram,
		score:    score,
		severity: sev,
		weight:   weight,
		reasons:  reasons,
	}
}

func checkFunctionalContentRatio(words []string, threshold float64) *trigger {
	if len(words) == 0 {
		return nil
	}
	funcCount := 0
	for _, w := range words {
		if _, ok := functionalWords[w]; ok {
			funcCount++
		}
	}
	contentCount := len(words) - funcCount
	if contentCount == 0 {
		return nil
	}
	ratio := float64(funcCount) / float64(contentCount)
	if ratio <= threshold {
		return nil
	}
	return &trigger{
		name:     triggerFuncContent,
		score:    minorScore,
		severity: metadata.SeverityWarning,
		weight:   minorWeight,
		reasons:  []string{fmt.Sprintf("high functional-to-content word ratio: %.2f", ratio)},
	}
}

// checkMissingArticles measures the share of 5+ word sentences that do
// not open with an article. Confidence weight is dampened below 100
// words, where the ratio is noisy.
func checkMissingArticles(text string, threshold float64, wordCount int) *trigger {
	missing, total := 0, 0
	for _, s := range splitSentences(text) {
		s = strings.ToLower(s)
		if len(strings.Fields(s)) < 5 {
			continue
		}
		total++
		if !articleRe.MatchString(s) {
			missing++
		}
	}
	if total == 0 {
		return nil
	}
	ratio := float64(missing) / float64(total)
	if ratio <= threshold {
		return nil
	}
	weight := minorWeight
	if wordCount < 100 {
		weight = dampenedMinorWeight
	}
	return &trigger{
		name:     triggerMissingArticle,
		score:    minorScore,
		severity: metadata.SeverityWarning,
		weight:   weight,
		reasons:  []string{fmt.Sprintf("high ratio of sentences missing articles: %.2f", ratio)},
	}
}

func checkUnusualVerbTense(text string, threshold float64) *trigger {
	totalVerbs := len(verbFormRe.FindAllString(text, -1))
	if totalVerbs == 0 {
		return nil
	}
	unusual := len(presentContRe.FindAllString(text, -1)) + len(pastPerfectRe.FindAllString(text, -1))
	ratio := float64(unusual) / float64(totalVerbs)
	if ratio <= threshold {
		return nil
	}
	return &trigger{
		name:     triggerVerbTense,
		score:    minorScore,
		severity: metadata.SeverityWarning,
		weight:   minorWeight,
		reasons:  []string{fmt.Sprintf("unusual verb tense pattern ratio: %.2f", ratio)},
	}
}

func checkRareWordRatio(words []string, threshold float64) *trigger {
	if len(words) == 0 {
		return nil
	}
	rare := 0
	for _, w := range words {
		if _, ok := commonWords[w]; !ok {
			rare++
		}
	}
	ratio := float64(rare) / float64(len(words))
	if ratio <= threshold {
		return nil
	}
	return &trigger{
		name:     triggerRareWord,
		score:    minorScore,
		severity: metadata.SeverityWarning,
		weight:   minorWeight,
		reasons:  []string{fmt.Sprintf("high rare word ratio: %.2f", ratio)},
	}
}

// isCodePattern reports whether any line looks like a source-code
// definition or assignment.
func isCodePattern(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if codeLineRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// isLegitimateRepetition reports whether every non-empty line is a
// numbered or bulleted list item.
func isLegitimateRepetition(text string) bool {
	for _, re := range []*regexp.Regexp{numberedLine, bulletLine} {
		all := true
		any := false
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			any = true
			if !re.MatchString(line) {
				all = false
				break
			}
		}
		if any && all {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence boundaries and newlines,
// dropping empty segments.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerWords(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

func countUnique(words []string) int {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return len(set)
}

func severityRank(s metadata.Severity) int {
	switch s {
	case metadata.SeverityCritical:
		return 2
	case metadata.SeverityWarning:
		return 1
	default:
		return 0
	}
}

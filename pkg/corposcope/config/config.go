package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the engine.
type Config struct {
	Quality QualityConfig `yaml:"quality"`
	Balance BalanceConfig `yaml:"balance"`
}

// QualityConfig configures per-document quality scoring.
type QualityConfig struct {
	// MinTokenCount is the length-based fallback: documents below it fail
	// the quality gate regardless of score.
	MinTokenCount int `yaml:"min_token_count"`
	// MinQualityScore is the pass threshold for the weighted overall score.
	MinQualityScore float64 `yaml:"min_quality_score"`

	Weights     ScoreWeights      `yaml:"weights"`
	Translation TranslationConfig `yaml:"translation"`
	Corruption  CorruptionConfig  `yaml:"corruption"`
	Language    LanguageConfig    `yaml:"language"`
	Processing  ProcessingConfig  `yaml:"processing"`
}

// ScoreWeights combines the three detector sub-scores into the overall
// quality score. The values are manually tuned in the original pipeline;
// keep them unless you have a corpus-specific reason not to.
type ScoreWeights struct {
	MachineTranslation float64 `yaml:"machine_translation"`
	LanguageDetection  float64 `yaml:"language_detection"`
	Corruption         float64 `yaml:"corruption"`
}

// TranslationConfig tunes the machine-translation heuristics.
type TranslationConfig struct {
	DisclaimerPatterns        []string `yaml:"disclaimer_patterns"`
	NGramRepetitionThreshold  int      `yaml:"ngram_repetition_threshold"`
	RareWordRatioThreshold    float64  `yaml:"rare_word_ratio_threshold"`
	FunctionalToContentRatio  float64  `yaml:"functional_to_content_ratio"`
	MissingArticleThreshold   float64  `yaml:"missing_article_threshold"`
	UnusualVerbTenseThreshold float64  `yaml:"unusual_verb_tense_threshold"`
	// DomainExclusions short-circuit detection for domains whose normal
	// vocabulary trips the heuristics (API docs, code-adjacent text).
	DomainExclusions []string `yaml:"domain_exclusions"`
	// CodeComment thresholds replace the defaults for .py/.ipynb inputs.
	CodeComment CodeCommentThresholds `yaml:"code_comment_thresholds"`
}

// CodeCommentThresholds relaxes repetition limits for source-derived text.
type CodeCommentThresholds struct {
	NGramRepetition int     `yaml:"ngram_repetition"`
	RareWordRatio   float64 `yaml:"rare_word_ratio"`
}

// CorruptionConfig tunes the corruption detector.
type CorruptionConfig struct {
	MinTextLength       int      `yaml:"min_text_length"`
	CorruptionThreshold float64  `yaml:"corruption_threshold"`
	EncodingPatterns    []string `yaml:"encoding_patterns"`
	GarbledPatterns     []string `yaml:"garbled_patterns"`
	MinSentenceLength   int      `yaml:"min_sentence_length"`
	MaxSentenceLength   int      `yaml:"max_sentence_length"`
	Checks              CorruptionChecks `yaml:"checks"`
}

// CorruptionChecks toggles individual sub-checks.
type CorruptionChecks struct {
	EncodingErrors bool `yaml:"encoding_errors"`
	Gibberish      bool `yaml:"gibberish"`
	FormatErrors   bool `yaml:"format_errors"`
}

// LanguageConfig tunes language identification.
type LanguageConfig struct {
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`
	MixedLanguageRatio     float64 `yaml:"mixed_language_ratio"`
}

// ProcessingConfig bounds the scoring worker pool.
type ProcessingConfig struct {
	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// BalanceConfig configures corpus balance analysis and rebalancing.
type BalanceConfig struct {
	Thresholds      BalanceThresholds `yaml:"thresholds"`
	CacheTTLSeconds int               `yaml:"cache_ttl_seconds"`
	Domains         []DomainSpec      `yaml:"domains"`
}

// BalanceThresholds trigger imbalance findings.
type BalanceThresholds struct {
	EntropyMin float64 `yaml:"entropy_min"`
	GiniMax    float64 `yaml:"gini_max"`
	RatioMax   float64 `yaml:"ratio_max"`
	MinSamples int     `yaml:"min_samples"`
}

// DomainSpec declares one valid corpus domain and its collection targets.
type DomainSpec struct {
	Name        string   `yaml:"name"`
	Allocation  float64  `yaml:"allocation"`
	MinDocs     int      `yaml:"min_documents"`
	Priority    string   `yaml:"priority"`
	SearchTerms []string `yaml:"search_terms"`
}

// Default returns the tuned defaults carried over from the original
// pipeline. Every numeric here is a behavior-compatibility constant, not
// a derived value.
func Default() Config {
	return Config{
		Quality: QualityConfig{
			MinTokenCount:   100,
			MinQualityScore: 0.7,
			Weights: ScoreWeights{
				MachineTranslation: 0.3,
				LanguageDetection:  0.3,
				Corruption:         0.4,
			},
			Translation: TranslationConfig{
				DisclaimerPatterns: []string{
					`translated by`, `machine translation`, `automatic translation`,
					`originally written in`, `this document was automatically translated`,
					`translation provided by`, `translated from`, `google translate`,
				},
				NGramRepetitionThreshold:  4,
				RareWordRatioThreshold:    0.15,
				FunctionalToContentRatio:  0.7,
				MissingArticleThreshold:   0.08,
				UnusualVerbTenseThreshold: 0.12,
				DomainExclusions:          []string{"blockchain", "cryptocurrency", "API", "function", "parameter"},
				CodeComment: CodeCommentThresholds{
					NGramRepetition: 6,
					RareWordRatio:   0.25,
				},
			},
			Corruption: CorruptionConfig{
				MinTextLength:       100,
				CorruptionThreshold: 0.3,
				EncodingPatterns: []string{
					`\\x[0-9a-fA-F]{2}`,
					`\\u[0-9a-fA-F]{4}`,
					`\\U[0-9a-fA-F]{8}`,
					`\\N\{[^}]+\}`,
					`�`,
				},
				GarbledPatterns: []string{
					`[^\x00-\x7F]{3,}`,
					`[A-Za-z]{20,}`,
					`[0-9]{20,}`,
					`[^A-Za-z0-9\s]{10,}`,
				},
				MinSentenceLength: 10,
				MaxSentenceLength: 200,
				Checks: CorruptionChecks{
					EncodingErrors: true,
					Gibberish:      true,
					FormatErrors:   true,
				},
			},
			Language: LanguageConfig{
				LowConfidenceThreshold: 0.85,
				MixedLanguageRatio:     0.15,
			},
			Processing: ProcessingConfig{
				Workers:        4,
				TimeoutSeconds: 30,
			},
		},
		Balance: BalanceConfig{
			Thresholds: BalanceThresholds{
				EntropyMin: 2.0,
				GiniMax:    0.7,
				RatioMax:   10.0,
				MinSamples: 30,
			},
			CacheTTLSeconds: 3600,
			Domains:         DefaultDomains(),
		},
	}
}

// DefaultDomains is the eight-domain crypto-finance taxonomy the corpus
// is collected against.
func DefaultDomains() []DomainSpec {
	return []DomainSpec{
		{Name: "crypto_derivatives", Allocation: 0.20, MinDocs: 100, Priority: "high",
			SearchTerms: []string{"cryptocurrency derivatives", "bitcoin futures", "crypto options", "perpetual swap", "funding rate", "basis trading"}},
		{Name: "decentralized_finance", Allocation: 0.12, MinDocs: 70, Priority: "medium",
			SearchTerms: []string{"defi protocols", "automated market maker design", "yield optimization strategies", "liquidity mining"}},
		{Name: "high_frequency_trading", Allocation: 0.15, MinDocs: 80, Priority: "high",
			SearchTerms: []string{"high frequency trading cryptocurrency", "algorithmic crypto trading", "low latency trading blockchain", "market making algorithms crypto"}},
		{Name: "market_microstructure", Allocation: 0.15, MinDocs: 60, Priority: "medium",
			SearchTerms: []string{"crypto market microstructure", "order book dynamics", "liquidity provision blockchain", "market impact crypto"}},
		{Name: "portfolio_construction", Allocation: 0.10, MinDocs: 50, Priority: "medium",
			SearchTerms: []string{"crypto portfolio construction", "digital asset allocation", "crypto diversification"}},
		{Name: "regulation_compliance", Allocation: 0.05, MinDocs: 30, Priority: "medium",
			SearchTerms: []string{"cryptocurrency regulation", "crypto compliance framework", "digital asset taxation"}},
		{Name: "risk_management", Allocation: 0.15, MinDocs: 90, Priority: "high",
			SearchTerms: []string{"cryptocurrency risk models", "crypto portfolio risk", "defi risk assessment"}},
		{Name: "valuation_models", Allocation: 0.08, MinDocs: 40, Priority: "low",
			SearchTerms: []string{"token valuation models", "cryptocurrency fundamental analysis", "on-chain metrics valuation"}},
	}
}

// Load reads a YAML config file and validates it. Missing sections keep
// their defaults; out-of-range values are clamped back to defaults with
// a warning, never a failure.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Validate(logger)
	return cfg, nil
}

// Validate repairs out-of-range values in place, logging each repair.
func (c *Config) Validate(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	def := Default()

	clampFloat := func(name string, v *float64, min, max, fallback float64) {
		if *v < min || *v > max {
			logger.Warn("config value out of range, using default",
				"field", name, "value", *v, "default", fallback)
			*v = fallback
		}
	}
	clampInt := func(name string, v *int, min int, fallback int) {
		if *v < min {
			logger.Warn("config value out of range, using default",
				"field", name, "value", *v, "default", fallback)
			*v = fallback
		}
	}

	q := &c.Quality
	dq := def.Quality
	clampInt("quality.min_token_count", &q.MinTokenCount, 1, dq.MinTokenCount)
	clampFloat("quality.min_quality_score", &q.MinQualityScore, 0, 1, dq.MinQualityScore)
	clampFloat("quality.weights.machine_translation", &q.Weights.MachineTranslation, 0, 1, dq.Weights.MachineTranslation)
	clampFloat("quality.weights.language_detection", &q.Weights.LanguageDetection, 0, 1, dq.Weights.LanguageDetection)
	clampFloat("quality.weights.corruption", &q.Weights.Corruption, 0, 1, dq.Weights.Corruption)

	tr := &q.Translation
	dtr := dq.Translation
	clampInt("quality.translation.ngram_repetition_threshold", &tr.NGramRepetitionThreshold, 1, dtr.NGramRepetitionThreshold)
	clampFloat("quality.translation.rare_word_ratio_threshold", &tr.RareWordRatioThreshold, 0, 1, dtr.RareWordRatioThreshold)
	clampFloat("quality.translation.functional_to_content_ratio", &tr.FunctionalToContentRatio, 0, 1, dtr.FunctionalToContentRatio)
	clampFloat("quality.translation.missing_article_threshold", &tr.MissingArticleThreshold, 0, 1, dtr.MissingArticleThreshold)
	clampFloat("quality.translation.unusual_verb_tense_threshold", &tr.UnusualVerbTenseThreshold, 0, 1, dtr.UnusualVerbTenseThreshold)
	clampInt("quality.translation.code_comment_thresholds.ngram_repetition", &tr.CodeComment.NGramRepetition, 1, dtr.CodeComment.NGramRepetition)
	clampFloat("quality.translation.code_comment_thresholds.rare_word_ratio", &tr.CodeComment.RareWordRatio, 0, 1, dtr.CodeComment.RareWordRatio)
	if len(tr.DisclaimerPatterns) == 0 {
		tr.DisclaimerPatterns = dtr.DisclaimerPatterns
	}

	co := &q.Corruption
	dco := dq.Corruption
	clampInt("quality.corruption.min_text_length", &co.MinTextLength, 1, dco.MinTextLength)
	clampFloat("quality.corruption.corruption_threshold", &co.CorruptionThreshold, 0, 1, dco.CorruptionThreshold)
	clampInt("quality.corruption.min_sentence_length", &co.MinSentenceLength, 1, dco.MinSentenceLength)
	clampInt("quality.corruption.max_sentence_length", &co.MaxSentenceLength, co.MinSentenceLength, dco.MaxSentenceLength)
	if len(co.EncodingPatterns) == 0 {
		co.EncodingPatterns = dco.EncodingPatterns
	}
	if len(co.GarbledPatterns) == 0 {
		co.GarbledPatterns = dco.GarbledPatterns
	}

	la := &q.Language
	dla := dq.Language
	clampFloat("quality.language.low_confidence_threshold", &la.LowConfidenceThreshold, 0, 1, dla.LowConfidenceThreshold)
	clampFloat("quality.language.mixed_language_ratio", &la.MixedLanguageRatio, 0, 1, dla.MixedLanguageRatio)

	clampInt("quality.processing.workers", &q.Processing.Workers, 1, dq.Processing.Workers)
	clampInt("quality.processing.timeout_seconds", &q.Processing.TimeoutSeconds, 1, dq.Processing.TimeoutSeconds)

	b := &c.Balance
	db := def.Balance
	if b.Thresholds.EntropyMin < 0 {
		logger.Warn("config value out of range, using default",
			"field", "balance.thresholds.entropy_min", "value", b.Thresholds.EntropyMin, "default", db.Thresholds.EntropyMin)
		b.Thresholds.EntropyMin = db.Thresholds.EntropyMin
	}
	clampFloat("balance.thresholds.gini_max", &b.Thresholds.GiniMax, 0, 1, db.Thresholds.GiniMax)
	if b.Thresholds.RatioMax < 1 {
		logger.Warn("config value out of range, using default",
			"field", "balance.thresholds.ratio_max", "value", b.Thresholds.RatioMax, "default", db.Thresholds.RatioMax)
		b.Thresholds.RatioMax = db.Thresholds.RatioMax
	}
	clampInt("balance.thresholds.min_samples", &b.Thresholds.MinSamples, 1, db.Thresholds.MinSamples)
	clampInt("balance.cache_ttl_seconds", &b.CacheTTLSeconds, 1, db.CacheTTLSeconds)
	if len(b.Domains) == 0 {
		b.Domains = db.Domains
	}
}

// ValidDomains returns the configured domain names in declaration order.
func (b BalanceConfig) ValidDomains() []string {
	names := make([]string, 0, len(b.Domains))
	for _, d := range b.Domains {
		names = append(names, d.Name)
	}
	return names
}

// Domain returns the spec for a named domain, if configured.
func (b BalanceConfig) Domain(name string) (DomainSpec, bool) {
	for _, d := range b.Domains {
		if d.Name == name {
			return d, true
		}
	}
	return DomainSpec{}, false
}

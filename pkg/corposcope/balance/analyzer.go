// Package balance measures corpus composition across domains, detects
// imbalance, and plans rebalancing actions. Analysis reads the record
// store populated by quality control; it never touches document bodies.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/store"
)

// Imbalance-finding thresholds beyond the configured ones.
const (
	lowQualityWarnRatio      = 0.3
	lowQualityRecommendRatio = 0.2
	dominanceRecommendRatio  = 5.0
	fileTypeMonocultureShare = 0.8
)

// Finding is one detected imbalance.
type Finding struct {
	Check    string            `json:"check"`
	Severity metadata.Severity `json:"severity"`
	Message  string            `json:"message"`
}

// Recommendation is one suggested corrective action.
type Recommendation struct {
	Priority string   `json:"priority"` // high, medium, low
	Action   string   `json:"action"`
	Domains  []string `json:"domains,omitempty"`
	Detail   string   `json:"detail"`
}

// TokenStats summarizes token counts across the corpus.
type TokenStats struct {
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Q25    int     `json:"q25"`
	Q75    int     `json:"q75"`
}

// Cut points on the normalized corruption score (0 worst, 100 clean)
// for the high- and low-quality shares.
const (
	corruptionHighCut = 80.0
	corruptionLowCut  = 50.0
)

// CorruptionStats summarizes normalized corruption scores across the
// corpus.
type CorruptionStats struct {
	Mean             float64 `json:"mean"`
	HighQualityRatio float64 `json:"high_quality_ratio"`
	LowQualityRatio  float64 `json:"low_quality_ratio"`
}

// TemporalStats summarizes per-day document counts over the extraction
// date range.
type TemporalStats struct {
	Days         int     `json:"days"`
	FirstDay     string  `json:"first_day,omitempty"`
	LastDay      string  `json:"last_day,omitempty"`
	MeanPerDay   float64 `json:"mean_per_day"`
	StdDevPerDay float64 `json:"std_dev_per_day"`
	MinPerDay    int     `json:"min_per_day"`
	MaxPerDay    int     `json:"max_per_day"`
}

// Result is one complete corpus balance analysis.
type Result struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	TotalDocuments int            `json:"total_documents"`

	DomainCounts   map[string]int  `json:"domain_distribution"`
	FileTypeCounts map[string]int  `json:"file_type_distribution"`
	LanguageCounts map[string]int  `json:"language_distribution"`
	QualityCounts  map[string]int  `json:"quality_distribution"`
	TemporalCounts map[string]int  `json:"temporal_distribution"`
	Temporal       TemporalStats   `json:"temporal_statistics"`
	TokenStats     TokenStats      `json:"token_statistics"`
	Corruption     CorruptionStats `json:"corruption_statistics"`

	Entropy         float64  `json:"entropy"`
	BalanceRatio    float64  `json:"balance_ratio"`
	DomainGini      float64  `json:"domain_gini"`
	GiniFileTypes   float64  `json:"gini_file_types"`
	DominanceRatio  float64  `json:"dominance_ratio"`
	LowQualityRatio float64  `json:"low_quality_ratio"`
	MissingDomains  []string `json:"missing_domains,omitempty"`

	Findings        []Finding        `json:"findings,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

type cachedResult struct {
	result     Result
	computedAt time.Time
}

// Analyzer computes balance analyses over the record store, caching the
// latest result for the configured TTL.
type Analyzer struct {
	cfg    config.BalanceConfig
	store  store.Store
	logger *slog.Logger

	mu     sync.Mutex
	cached *cachedResult
	now    func() time.Time
}

// NewAnalyzer builds an Analyzer over a record store. logger may be nil.
func NewAnalyzer(cfg config.BalanceConfig, st store.Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, store: st, logger: logger, now: time.Now}
}

// Analyze returns the current balance analysis. Results are cached for
// the configured TTL; forceRefresh bypasses the cache. An empty corpus
// returns ErrEmptyCorpus rather than a zeroed-out analysis.
func (a *Analyzer) Analyze(ctx context.Context, forceRefresh bool) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ttl := time.Duration(a.cfg.CacheTTLSeconds) * time.Second
	if !forceRefresh && a.cached != nil && a.now().Sub(a.cached.computedAt) < ttl {
		a.logger.Debug("balance analysis served from cache",
			"computed_at", a.cached.computedAt)
		return a.cached.result, nil
	}

	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		return Result{}, internalerr.ErrEmptyCorpus
	}

	res := a.compute(records)
	a.cached = &cachedResult{result: res, computedAt: a.now()}
	a.logger.Info("balance analysis computed",
		"documents", res.TotalDocuments,
		"entropy", res.Entropy,
		"findings", len(res.Findings))
	return res, nil
}

func (a *Analyzer) compute(records []metadata.Record) Result {
	res := Result{
		GeneratedAt:    a.now().UTC(),
		TotalDocuments: len(records),
		DomainCounts:   make(map[string]int),
		FileTypeCounts: make(map[string]int),
		LanguageCounts: make(map[string]int),
		QualityCounts:  make(map[string]int),
		TemporalCounts: make(map[string]int),
	}

	tokens := make([]int, 0, len(records))
	corruption := make([]float64, 0, len(records))
	lowQuality := 0
	for _, rec := range records {
		domain := rec.Domain
		if domain == "" {
			domain = "unknown"
		}
		res.DomainCounts[domain]++
		if rec.FileType != "" {
			res.FileTypeCounts[rec.FileType]++
		}
		if rec.Language != "" {
			res.LanguageCounts[rec.Language]++
		}
		if !rec.ExtractionDate.IsZero() {
			res.TemporalCounts[rec.ExtractionDate.UTC().Format("2006-01-02")]++
		}
		if rec.QualityFlag {
			res.QualityCounts["passed"]++
		} else {
			res.QualityCounts["low_quality"]++
			lowQuality++
		}
		tokens = append(tokens, rec.TokenCount)
		corruption = append(corruption, rec.CorruptionScoreNormalized)
	}
	res.TokenStats = tokenStats(tokens)
	res.Corruption = corruptionStats(corruption)
	res.Temporal = temporalStats(res.TemporalCounts)
	res.LowQualityRatio = float64(lowQuality) / float64(len(records))

	valid := a.validDomainCounts(res.DomainCounts)
	res.Entropy = entropy(valid)
	if n := len(a.cfg.Domains); n > 1 {
		res.BalanceRatio = res.Entropy / math.Log2(float64(n))
	}
	res.DomainGini = gini(res.DomainCounts)
	res.GiniFileTypes = gini(res.FileTypeCounts)
	res.MissingDomains = a.missingDomains(res.DomainCounts)

	// An infinite dominance ratio (single populated domain) is reported
	// as a finding; the stored value stays JSON-encodable.
	rawDominance := dominanceRatio(valid)
	res.DominanceRatio = rawDominance
	if math.IsInf(rawDominance, 1) {
		res.DominanceRatio = 0
	}

	res.Findings = a.detectImbalances(res, valid, rawDominance)
	res.Recommendations = a.recommend(res, valid, rawDominance)
	return res
}

// validDomainCounts filters the observed distribution down to the
// configured taxonomy; balance metrics ignore stray domains.
func (a *Analyzer) validDomainCounts(counts map[string]int) map[string]int {
	valid := make(map[string]int)
	for _, spec := range a.cfg.Domains {
		if c, ok := counts[spec.Name]; ok && c > 0 {
			valid[spec.Name] = c
		}
	}
	return valid
}

func (a *Analyzer) missingDomains(counts map[string]int) []string {
	var missing []string
	for _, spec := range a.cfg.Domains {
		if counts[spec.Name] == 0 {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

func (a *Analyzer) detectImbalances(res Result, valid map[string]int, dominance float64) []Finding {
	var findings []Finding
	th := a.cfg.Thresholds

	if res.Entropy < th.EntropyMin {
		findings = append(findings, Finding{
			Check:    "entropy",
			Severity: metadata.SeverityCritical,
			Message:  fmt.Sprintf("domain entropy %.2f below minimum %.2f", res.Entropy, th.EntropyMin),
		})
	}
	if math.IsInf(dominance, 1) {
		findings = append(findings, Finding{
			Check:    "dominance",
			Severity: metadata.SeverityWarning,
			Message:  "all documents sit in a single domain",
		})
	} else if dominance > th.RatioMax {
		findings = append(findings, Finding{
			Check:    "dominance",
			Severity: metadata.SeverityWarning,
			Message:  fmt.Sprintf("largest domain outweighs second largest %.1fx (max %.1fx)", dominance, th.RatioMax),
		})
	}
	var thin []string
	for _, spec := range a.cfg.Domains {
		if c, ok := valid[spec.Name]; ok && c < th.MinSamples {
			thin = append(thin, spec.Name)
		}
	}
	if len(thin) > 0 {
		sort.Strings(thin)
		findings = append(findings, Finding{
			Check:    "min_samples",
			Severity: metadata.SeverityWarning,
			Message:  fmt.Sprintf("domains below %d samples: %v", th.MinSamples, thin),
		})
	}
	if res.GiniFileTypes > th.GiniMax {
		findings = append(findings, Finding{
			Check:    "file_type_gini",
			Severity: metadata.SeverityInfo,
			Message:  fmt.Sprintf("file type gini %.2f above %.2f", res.GiniFileTypes, th.GiniMax),
		})
	}
	if res.LowQualityRatio > lowQualityWarnRatio {
		findings = append(findings, Finding{
			Check:    "low_quality_ratio",
			Severity: metadata.SeverityWarning,
			Message:  fmt.Sprintf("%.0f%% of the corpus failed quality control", res.LowQualityRatio*100),
		})
	}
	return findings
}

func (a *Analyzer) recommend(res Result, valid map[string]int, dominance float64) []Recommendation {
	var recs []Recommendation

	if len(res.MissingDomains) > 0 {
		recs = append(recs, Recommendation{
			Priority: "high",
			Action:   "collect_data",
			Domains:  res.MissingDomains,
			Detail:   "no documents at all for these domains; run collection against their search terms",
		})
	}
	if dominance > dominanceRecommendRatio && !math.IsInf(dominance, 1) {
		top := largestKey(valid)
		recs = append(recs, Recommendation{
			Priority: "medium",
			Action:   "reduce_overrepresentation",
			Domains:  []string{top},
			Detail:   fmt.Sprintf("%s dominates the corpus %.1fx over the runner-up", top, dominance),
		})
	}
	if res.LowQualityRatio > lowQualityRecommendRatio {
		recs = append(recs, Recommendation{
			Priority: "medium",
			Action:   "improve_extraction",
			Detail:   fmt.Sprintf("%.0f%% of documents fail quality control; review extraction for the worst sources", res.LowQualityRatio*100),
		})
	}
	if ft := largestKey(res.FileTypeCounts); ft != "" {
		share := float64(res.FileTypeCounts[ft]) / float64(res.TotalDocuments)
		if share > fileTypeMonocultureShare {
			recs = append(recs, Recommendation{
				Priority: "low",
				Action:   "diversify_sources",
				Detail:   fmt.Sprintf("%.0f%% of documents share file type %s", share*100, ft),
			})
		}
	}
	return recs
}

// CollectTarget points collection tooling at a domain that needs more
// documents.
type CollectTarget struct {
	Domain      string   `json:"domain"`
	SearchTerms []string `json:"search_terms"`
	Priority    string   `json:"priority"`
}

// CollectTargets lists the configured domains that are missing or below
// their minimum document count, most urgent first.
func (a *Analyzer) CollectTargets(ctx context.Context) ([]CollectTarget, error) {
	counts, err := a.store.CountByDomain(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by domain: %w", err)
	}
	var targets []CollectTarget
	for _, spec := range a.cfg.Domains {
		if counts[spec.Name] >= spec.MinDocs {
			continue
		}
		targets = append(targets, CollectTarget{
			Domain:      spec.Name,
			SearchTerms: spec.SearchTerms,
			Priority:    spec.Priority,
		})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return priorityRank(targets[i].Priority) > priorityRank(targets[j].Priority)
	})
	return targets, nil
}

func tokenStats(tokens []int) TokenStats {
	if len(tokens) == 0 {
		return TokenStats{}
	}
	st := TokenStats{Min: tokens[0], Max: tokens[0]}
	for _, t := range tokens {
		st.Total += t
		if t < st.Min {
			st.Min = t
		}
		if t > st.Max {
			st.Max = t
		}
	}
	st.Mean = float64(st.Total) / float64(len(tokens))
	st.Median = median(tokens)
	st.StdDev = stddev(tokens, st.Mean)
	st.Q25 = percentile(tokens, 25)
	st.Q75 = percentile(tokens, 75)
	return st
}

func temporalStats(counts map[string]int) TemporalStats {
	if len(counts) == 0 {
		return TemporalStats{}
	}
	days := make([]string, 0, len(counts))
	values := make([]int, 0, len(counts))
	for day, c := range counts {
		days = append(days, day)
		values = append(values, c)
	}
	sort.Strings(days)

	st := TemporalStats{
		Days:      len(days),
		FirstDay:  days[0],
		LastDay:   days[len(days)-1],
		MinPerDay: values[0],
		MaxPerDay: values[0],
	}
	total := 0
	for _, v := range values {
		total += v
		if v < st.MinPerDay {
			st.MinPerDay = v
		}
		if v > st.MaxPerDay {
			st.MaxPerDay = v
		}
	}
	st.MeanPerDay = float64(total) / float64(len(values))
	st.StdDevPerDay = stddev(values, st.MeanPerDay)
	return st
}

func corruptionStats(scores []float64) CorruptionStats {
	if len(scores) == 0 {
		return CorruptionStats{}
	}
	var sum float64
	high, low := 0, 0
	for _, s := range scores {
		sum += s
		if s >= corruptionHighCut {
			high++
		}
		if s < corruptionLowCut {
			low++
		}
	}
	n := float64(len(scores))
	return CorruptionStats{
		Mean:             sum / n,
		HighQualityRatio: float64(high) / n,
		LowQualityRatio:  float64(low) / n,
	}
}

func largestKey(counts map[string]int) string {
	best, bestCount := "", -1
	for k, c := range counts {
		if c > bestCount || (c == bestCount && k < best) {
			best, bestCount = k, c
		}
	}
	return best
}

func priorityRank(p string) int {
	switch p {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

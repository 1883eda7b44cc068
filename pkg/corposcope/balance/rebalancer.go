package balance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/store"
)

// Rebalancing strategies.
const (
	StrategyQualityWeighted = "quality_weighted"
	StrategyStratified      = "stratified"
	StrategySynthetic       = "synthetic"
)

// Action types and sampling methods.
const (
	ActionUpsample   = "upsample"
	ActionDownsample = "downsample"

	methodQualityDuplication = "quality_weighted_duplication"
	methodQualitySelection   = "quality_based_selection"
)

// Execution statuses for one action.
const (
	StatusCompleted = "completed"
	StatusPlanned   = "planned"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Per-domain deviation bounds that trigger sampling actions. Domains
// within half and double the per-domain target are left alone.
const (
	upsampleBelowFraction = 0.5
	downsampleAboveFactor = 2.0
)

// Action is one planned sampling step for a single domain.
type Action struct {
	Type         string `json:"type"`
	Domain       string `json:"domain"`
	CurrentCount int    `json:"current_count"`
	TargetCount  int    `json:"target_count"`
	Method       string `json:"method"`
}

// Plan is a content-addressed rebalancing plan. Identical corpus state
// and strategy always produce the same ID.
type Plan struct {
	ID              string    `json:"plan_id"`
	Strategy        string    `json:"strategy"`
	CreatedAt       time.Time `json:"created_at"`
	TotalDocuments  int       `json:"total_documents"`
	TargetPerDomain int       `json:"target_per_domain"`
	Actions         []Action  `json:"actions,omitempty"`
	Steps           []string  `json:"steps,omitempty"`
}

// ActionResult reports the outcome of executing one action.
type ActionResult struct {
	Domain string `json:"domain"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ExecutionReport summarizes one Execute run.
type ExecutionReport struct {
	PlanID    string         `json:"plan_id"`
	DryRun    bool           `json:"dry_run"`
	Results   []ActionResult `json:"results"`
	Completed int            `json:"completed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
}

// ExecuteOptions controls plan execution. Stop is polled between
// actions; returning true abandons the rest of the plan.
type ExecuteOptions struct {
	DryRun bool
	Stop   func() bool
}

// Rebalancer plans and executes corpus rebalancing against the record
// store.
type Rebalancer struct {
	cfg    config.BalanceConfig
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRebalancer builds a Rebalancer. logger may be nil.
func NewRebalancer(cfg config.BalanceConfig, st store.Store, logger *slog.Logger) *Rebalancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebalancer{cfg: cfg, store: st, logger: logger, now: time.Now}
}

// CreatePlan derives a rebalancing plan from the current per-domain
// counts. The quality_weighted strategy yields concrete actions; the
// stratified and synthetic strategies yield ordered implementation
// steps for operators, since they need document bodies we do not hold.
func (r *Rebalancer) CreatePlan(ctx context.Context, strategy string) (Plan, error) {
	if strategy == "" {
		strategy = StrategyQualityWeighted
	}
	counts, err := r.store.CountByDomain(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("count by domain: %w", err)
	}

	total := 0
	valid := make(map[string]int)
	for _, spec := range r.cfg.Domains {
		valid[spec.Name] = counts[spec.Name]
		total += counts[spec.Name]
	}
	if total == 0 {
		return Plan{}, internalerr.ErrEmptyCorpus
	}
	target := total / len(r.cfg.Domains)
	if target < 1 {
		target = 1
	}

	plan := Plan{
		Strategy:        strategy,
		CreatedAt:       r.now().UTC(),
		TotalDocuments:  total,
		TargetPerDomain: target,
	}

	switch strategy {
	case StrategyQualityWeighted:
		plan.Actions = planActions(valid, target)
	case StrategyStratified:
		plan.Steps = stratifiedSteps()
	case StrategySynthetic:
		plan.Steps = syntheticSteps()
	default:
		return Plan{}, fmt.Errorf("%w: unknown rebalancing strategy %q", internalerr.ErrInvalidConfig, strategy)
	}

	plan.ID = planID(plan)
	r.logger.Info("rebalancing plan created",
		"plan_id", plan.ID,
		"strategy", plan.Strategy,
		"actions", len(plan.Actions))
	return plan, nil
}

func planActions(valid map[string]int, target int) []Action {
	domains := make([]string, 0, len(valid))
	for d := range valid {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	var actions []Action
	for _, domain := range domains {
		count := valid[domain]
		switch {
		case count == 0:
			// Nothing to sample from; collection handles empty domains.
		case float64(count) < upsampleBelowFraction*float64(target):
			actions = append(actions, Action{
				Type:         ActionUpsample,
				Domain:       domain,
				CurrentCount: count,
				TargetCount:  target,
				Method:       methodQualityDuplication,
			})
		case float64(count) > downsampleAboveFactor*float64(target):
			actions = append(actions, Action{
				Type:         ActionDownsample,
				Domain:       domain,
				CurrentCount: count,
				TargetCount:  target,
				Method:       methodQualitySelection,
			})
		}
	}
	return actions
}

func stratifiedSteps() []string {
	return []string{
		"partition each domain by file type and token-count quartile",
		"compute per-stratum sampling rates that equalize domain totals",
		"sample documents within each stratum without replacement",
		"re-run balance analysis on the sampled corpus",
	}
}

func syntheticSteps() []string {
	return []string{
		"select the highest-quality documents from underrepresented domains",
		"generate paraphrased variants for the selected documents",
		"run quality control over the generated variants",
		"merge accepted variants and re-run balance analysis",
	}
}

// planID hashes the plan content (strategy, target, actions, steps) so
// re-planning an unchanged corpus yields the same ID. CreatedAt is
// deliberately excluded.
func planID(plan Plan) string {
	payload := struct {
		Strategy string   `json:"strategy"`
		Total    int      `json:"total"`
		Target   int      `json:"target"`
		Actions  []Action `json:"actions"`
		Steps    []string `json:"steps"`
	}{plan.Strategy, plan.TotalDocuments, plan.TargetPerDomain, plan.Actions, plan.Steps}
	data, err := json.Marshal(payload)
	if err != nil {
		return "unidentified"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// Execute runs a plan's actions against the store. Failures are
// contained per action; the report carries every outcome.
func (r *Rebalancer) Execute(ctx context.Context, plan Plan, opts ExecuteOptions) (ExecutionReport, error) {
	report := ExecutionReport{PlanID: plan.ID, DryRun: opts.DryRun}

	stopped := false
	for _, action := range plan.Actions {
		if stopped || (opts.Stop != nil && opts.Stop()) {
			stopped = true
			report.Results = append(report.Results, ActionResult{
				Domain: action.Domain,
				Type:   action.Type,
				Status: StatusSkipped,
				Detail: "stopped before execution",
			})
			continue
		}
		report.Results = append(report.Results, r.executeAction(ctx, action, opts.DryRun))
	}

	for _, res := range report.Results {
		switch res.Status {
		case StatusCompleted, StatusPlanned:
			report.Completed++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
	}
	r.logger.Info("rebalancing plan executed",
		"plan_id", plan.ID,
		"dry_run", opts.DryRun,
		"completed", report.Completed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

func (r *Rebalancer) executeAction(ctx context.Context, action Action, dryRun bool) ActionResult {
	res := ActionResult{Domain: action.Domain, Type: action.Type}

	switch action.Type {
	case ActionUpsample, ActionDownsample:
	default:
		res.Status = StatusSkipped
		res.Detail = fmt.Sprintf("%v: %q", internalerr.ErrUnknownAction, action.Type)
		return res
	}

	if dryRun {
		res.Status = StatusPlanned
		res.Detail = fmt.Sprintf("would %s %s from %d to %d documents",
			action.Type, action.Domain, action.CurrentCount, action.TargetCount)
		return res
	}

	var err error
	switch action.Type {
	case ActionUpsample:
		err = r.upsample(ctx, action)
	case ActionDownsample:
		err = r.downsample(ctx, action)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Detail = err.Error()
		return res
	}
	res.Status = StatusCompleted
	res.Detail = fmt.Sprintf("%sd %s from %d to %d documents",
		action.Type, action.Domain, action.CurrentCount, action.TargetCount)
	return res
}

// upsample duplicates the highest-quality records of a domain until it
// reaches the target count. Duplicates get fresh document IDs.
func (r *Rebalancer) upsample(ctx context.Context, action Action) error {
	records, err := r.store.ListByDomain(ctx, action.Domain)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records to duplicate in %s", action.Domain)
	}
	sortByQuality(records, false)

	needed := action.TargetCount - len(records)
	for i := 0; i < needed; i++ {
		dup := records[i%len(records)]
		dup.DocumentID = metadata.NewDocumentID()
		if err := r.store.UpsertRecord(ctx, dup); err != nil {
			return err
		}
	}
	return nil
}

// downsample removes the lowest-quality records of a domain until it
// shrinks to the target count.
func (r *Rebalancer) downsample(ctx context.Context, action Action) error {
	records, err := r.store.ListByDomain(ctx, action.Domain)
	if err != nil {
		return err
	}
	sortByQuality(records, true)

	excess := len(records) - action.TargetCount
	for i := 0; i < excess; i++ {
		if err := r.store.DeleteRecord(ctx, records[i].DocumentID); err != nil {
			return err
		}
	}
	return nil
}

// sortByQuality orders records by overall quality score, document ID as
// tiebreaker. ascending=true puts the worst records first.
func sortByQuality(records []metadata.Record, ascending bool) {
	sort.Slice(records, func(i, j int) bool {
		si, sj := records[i].Metrics.OverallScore, records[j].Metrics.OverallScore
		if si != sj {
			if ascending {
				return si < sj
			}
			return si > sj
		}
		return records[i].DocumentID < records[j].DocumentID
	})
}

// Package corposcope is the engine facade: per-document quality
// control, directory routing, corpus balance analysis, and rebalancing
// behind one handle.
package corposcope

import (
	"context"
	"log/slog"

	"github.com/cognicore/corposcope/pkg/corposcope/balance"
	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
	"github.com/cognicore/corposcope/pkg/corposcope/metrics"
	"github.com/cognicore/corposcope/pkg/corposcope/quality"
	"github.com/cognicore/corposcope/pkg/corposcope/store"
)

// Engine is the main corpus engine facade
type Engine struct {
	cfg        config.Config
	store      store.Store
	control    *quality.Control
	router     *quality.Router
	analyzer   *balance.Analyzer
	rebalancer *balance.Rebalancer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Options configures an Engine instance
type Options struct {
	Config  config.Config
	Store   store.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// New creates an Engine with the given dependencies. Logger and Metrics
// may be nil; Store is required for analysis and rebalancing but not
// for single-document checks.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	control := quality.NewControl(opts.Config.Quality, logger, m)
	e := &Engine{
		cfg:     opts.Config,
		store:   opts.Store,
		control: control,
		router:  &quality.Router{Control: control, Logger: logger},
		metrics: m,
		logger:  logger,
	}
	if opts.Store != nil {
		e.analyzer = balance.NewAnalyzer(opts.Config.Balance, opts.Store, logger)
		e.rebalancer = balance.NewRebalancer(opts.Config.Balance, opts.Store, logger)
	}
	return e
}

// Close releases the underlying store, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Metrics returns the engine's counter set.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// CheckDocument scores one document and returns its metadata record.
func (e *Engine) CheckDocument(doc quality.Document) metadata.Record {
	return e.control.Process(doc)
}

// ProcessDirectory scores and routes every document under root.
func (e *Engine) ProcessDirectory(ctx context.Context, root string) (quality.BatchSummary, error) {
	return e.router.ProcessDirectory(ctx, root)
}

// IndexDirectory loads the routed buckets under root into the store.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (int, error) {
	return store.IndexDirectory(ctx, e.store, root, e.logger)
}

// Analyze returns the corpus balance analysis, cached per the
// configured TTL unless forceRefresh is set.
func (e *Engine) Analyze(ctx context.Context, forceRefresh bool) (balance.Result, error) {
	return e.analyzer.Analyze(ctx, forceRefresh)
}

// CollectTargets lists domains that need more documents.
func (e *Engine) CollectTargets(ctx context.Context) ([]balance.CollectTarget, error) {
	return e.analyzer.CollectTargets(ctx)
}

// PlanRebalance derives a rebalancing plan for the given strategy.
func (e *Engine) PlanRebalance(ctx context.Context, strategy string) (balance.Plan, error) {
	return e.rebalancer.CreatePlan(ctx, strategy)
}

// ExecutePlan runs a rebalancing plan against the store.
func (e *Engine) ExecutePlan(ctx context.Context, plan balance.Plan, opts balance.ExecuteOptions) (balance.ExecutionReport, error) {
	return e.rebalancer.Execute(ctx, plan, opts)
}

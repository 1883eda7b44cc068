// Command corposcope runs quality control and balance analysis over an
// extracted document corpus.
//
// Subcommands:
//
//	check      score a single document and print its metadata record
//	process    score and route every document under a corpus root
//	index      load routed metadata records into the SQLite index
//	analyze    print the corpus balance analysis, optionally as reports
//	targets    list domains that need more documents
//	rebalance  plan (and optionally execute) corpus rebalancing
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cognicore/corposcope/pkg/corposcope"
	"github.com/cognicore/corposcope/pkg/corposcope/balance"
	"github.com/cognicore/corposcope/pkg/corposcope/config"
	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
	"github.com/cognicore/corposcope/pkg/corposcope/quality"
	"github.com/cognicore/corposcope/pkg/corposcope/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "check":
		err = runCheck(args)
	case "process":
		err = runProcess(args)
	case "index":
		err = runIndex(args)
	case "analyze":
		err = runAnalyze(args)
	case "targets":
		err = runTargets(args)
	case "rebalance":
		err = runRebalance(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "corposcope %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: corposcope <check|process|index|analyze|targets|rebalance> [flags]")
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (cfgPath *string, verbose *bool) {
	cfgPath = fs.String("config", "", "Path to YAML config (optional; defaults apply)")
	verbose = fs.Bool("v", false, "Enable debug logging")
	return
}

func setup(cfgPath string, verbose bool) (config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfgPath == "" {
		return config.Default(), logger, nil
	}
	cfg, err := config.Load(cfgPath, logger)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	file := fs.String("file", "", "Document file to score (required)")
	domain := fs.String("domain", "", "Domain the document belongs to")
	tokens := fs.Int("tokens", 0, "Token count (0 derives a rough count from the text)")
	fs.Parse(args)

	if *file == "" {
		return errors.New("-file required")
	}
	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	if *tokens == 0 {
		*tokens = roughTokenCount(string(text))
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Logger: logger})
	rec := engine.CheckDocument(quality.Document{
		Text:       string(text),
		FileType:   filepath.Ext(*file),
		Domain:     *domain,
		TokenCount: *tokens,
		FileSize:   int64(len(text)),
	})
	return printJSON(rec)
}

func runProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	root := fs.String("root", "", "Corpus root directory (required)")
	fs.Parse(args)

	if *root == "" {
		return errors.New("-root required")
	}
	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Logger: logger})
	summary, err := engine.ProcessDirectory(context.Background(), *root)
	if err != nil {
		return err
	}
	if summary.Processed == 0 {
		logger.Info("no documents found", "root", *root)
	}
	return printJSON(summary)
}

func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	root := fs.String("root", "", "Corpus root directory (required)")
	db := fs.String("db", "corposcope.db", "SQLite index path")
	fs.Parse(args)

	if *root == "" {
		return errors.New("-root required")
	}
	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, *db)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Store: st, Logger: logger})
	defer engine.Close()

	n, err := engine.IndexDirectory(ctx, *root)
	if err != nil {
		return err
	}
	logger.Info("index updated", "records", n, "db", *db)
	return nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	db := fs.String("db", "corposcope.db", "SQLite index path")
	force := fs.Bool("force", false, "Bypass the analysis cache")
	reports := fs.String("reports", "", "Directory to write Markdown and JSON reports into")
	fs.Parse(args)

	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, *db)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Store: st, Logger: logger})
	defer engine.Close()

	res, err := engine.Analyze(ctx, *force)
	if errors.Is(err, internalerr.ErrEmptyCorpus) {
		logger.Info("no documents in the index; nothing to analyze", "db", *db)
		return nil
	}
	if err != nil {
		return err
	}
	if *reports != "" {
		mdPath, jsonPath, err := balance.WriteReports(*reports, res)
		if err != nil {
			return err
		}
		logger.Info("reports written", "markdown", mdPath, "json", jsonPath)
	}
	return printJSON(res)
}

func runTargets(args []string) error {
	fs := flag.NewFlagSet("targets", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	db := fs.String("db", "corposcope.db", "SQLite index path")
	fs.Parse(args)

	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, *db)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Store: st, Logger: logger})
	defer engine.Close()

	targets, err := engine.CollectTargets(ctx)
	if err != nil {
		return err
	}
	return printJSON(targets)
}

func runRebalance(args []string) error {
	fs := flag.NewFlagSet("rebalance", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	db := fs.String("db", "corposcope.db", "SQLite index path")
	strategy := fs.String("strategy", balance.StrategyQualityWeighted, "Rebalancing strategy")
	execute := fs.Bool("execute", false, "Apply the plan instead of a dry run")
	fs.Parse(args)

	cfg, logger, err := setup(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, *db)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	engine := corposcope.New(corposcope.Options{Config: cfg, Store: st, Logger: logger})
	defer engine.Close()

	plan, err := engine.PlanRebalance(ctx, *strategy)
	if errors.Is(err, internalerr.ErrEmptyCorpus) {
		logger.Info("no documents in the index; nothing to rebalance", "db", *db)
		return nil
	}
	if err != nil {
		return err
	}
	if len(plan.Actions) == 0 && len(plan.Steps) == 0 {
		logger.Info("corpus already within bounds", "plan_id", plan.ID)
		return printJSON(plan)
	}

	report, err := engine.ExecutePlan(ctx, plan, balance.ExecuteOptions{DryRun: !*execute})
	if err != nil {
		return err
	}
	return printJSON(struct {
		Plan   balance.Plan            `json:"plan"`
		Report balance.ExecutionReport `json:"report"`
	}{plan, report})
}

// roughTokenCount approximates tokens as whitespace-separated words.
func roughTokenCount(text string) int {
	count, inWord := 0, false
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}

// Package core has the commit scoring pipeline and the workflows built on it.
package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/outwriter"
	"github.com/huangsam/kernscore/internal/ui"
	"github.com/huangsam/kernscore/schema"
)

// ExecutorFunc defines the function signature for executing the different workflows.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteAnalyze scores a version range and prints a run report.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	oracle, err := NewOracle(cfg)
	if err != nil {
		return err
	}
	client := contract.NewLocalGitClient()

	var report *schema.RunReport
	if cfg.ChineseCompanies {
		report, err = AnalyzeChineseCompanies(ctx, cfg, client, oracle, mgr)
	} else {
		report, err = AnalyzeRange(ctx, cfg, client, oracle, mgr)
	}
	if err != nil {
		return err
	}
	return outwriter.PrintRunReport(report, cfg, time.Since(start))
}

// ExecuteRepair re-scores the failure ledger of a version range.
// It serves as the main entry point for the 'repair' command.
func ExecuteRepair(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	oracle, err := NewOracle(cfg)
	if err != nil {
		return err
	}
	report, err := RepairRange(ctx, cfg, contract.NewLocalGitClient(), oracle, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintRunReport(report, cfg, time.Since(start))
}

// ExecuteSummary renders the summary of previously scored commits.
// It serves as the main entry point for the 'summary' command.
func ExecuteSummary(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	start := time.Now()
	summary, commits, err := LoadSummary(cfg.OutputDir, cfg.VersionRange, cfg.CompanyFilter)
	if err != nil {
		return err
	}
	return outwriter.PrintSummary(summary, RankByScore(commits), cfg, time.Since(start))
}

// ExecuteFailures renders the failure ledger of a version range.
// It serves as the main entry point for the 'failures' command.
func ExecuteFailures(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	start := time.Now()
	records, err := LoadLedger(cfg.OutputDir, cfg.VersionRange)
	if err != nil {
		return err
	}
	return outwriter.PrintFailures(records, cfg, time.Since(start))
}

// NewOracle builds the oracle backend selected in cfg.
func NewOracle(cfg *contract.Config) (contract.Oracle, error) {
	switch cfg.Oracle {
	case schema.OpenAIOracle:
		o, err := contract.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return contract.NewAgentOracle(cfg.AgentBinary, cfg.AgentName), nil
	}
}

// LoadSummary regenerates the summary of a version range from its results file.
// An empty companyFilter reuses the filter stored with the previous summary.
func LoadSummary(outputDir, versionRange, companyFilter string) (schema.Summary, []schema.ScoredCommit, error) {
	commits, found, err := LoadScoredCommits(AllResultsPath(outputDir, versionRange))
	if err != nil {
		return schema.Summary{}, nil, err
	}
	if !found {
		return schema.Summary{}, nil, fmt.Errorf("no results found for %s in %q: run 'kernscore analyze %s' first", versionRange, outputDir, versionRange)
	}
	if companyFilter == "" {
		companyFilter = storedCompanyFilter(outputDir, versionRange)
	}
	return GenerateSummary(commits, versionRange, companyFilter), commits, nil
}

// storedCompanyFilter returns the company filter of an existing summary file, or "all".
func storedCompanyFilter(outputDir, versionRange string) string {
	var prev schema.Summary
	if found, err := readJSONFile(SummaryPath(outputDir, versionRange), &prev); err == nil && found && prev.CompanyFilter != "" {
		return prev.CompanyFilter
	}
	return contract.DefaultCompany
}

func companyLabel(filter string) string {
	if filter == "" {
		return contract.DefaultCompany
	}
	return filter
}

// AnalyzeRange scores every commit of cfg.VersionRange matching cfg.CompanyFilter
// and writes the results, batch, summary and ledger files.
func AnalyzeRange(ctx context.Context, cfg *contract.Config, client contract.GitClient, oracle contract.Oracle, mgr contract.CacheManager) (*schema.RunReport, error) {
	return analyze(ctx, cfg, client, oracle, mgr, schema.AnalyzeMode, cfg.CompanyFilter)
}

// AnalyzeChineseCompanies scores the commits of all tracked Chinese companies
// and writes a JSONL file with a per-company summary.
func AnalyzeChineseCompanies(ctx context.Context, cfg *contract.Config, client contract.GitClient, oracle contract.Oracle, mgr contract.CacheManager) (*schema.RunReport, error) {
	return analyze(ctx, cfg, client, oracle, mgr, schema.CompaniesMode, ChineseCompanyFilter())
}

func analyze(ctx context.Context, cfg *contract.Config, client contract.GitClient, oracle contract.Oracle, mgr contract.CacheManager, mode schema.RunMode, filter string) (*schema.RunReport, error) {
	env, err := startRun(ctx, cfg, mgr, mode, filter)
	if err != nil {
		return nil, err
	}
	defer env.close()

	report := &schema.RunReport{
		Mode:           mode,
		VersionRange:   cfg.VersionRange,
		CompanyFilter:  companyLabel(filter),
		FailuresByKind: map[schema.ErrorKind]int{},
		RunID:          env.runID,
	}
	env.log.Info("run configuration", "company_filter", companyLabel(filter), "max_commits", cfg.MaxCommits,
		"workers", cfg.Workers, "timeout", cfg.Timeout, "max_retries", cfg.MaxRetries, "oracle", string(cfg.Oracle))

	spin := ui.NewSpinner(fmt.Sprintf("Running git log for %s...", cfg.VersionRange), !isQuiet(ctx))
	var commits []schema.RawCommit
	err = spin.Run(func() error {
		var listErr error
		commits, listErr = ListCommits(ctx, client, cfg.RepoPath, cfg.VersionRange, filter, cfg.MaxCommits)
		return listErr
	})
	if err != nil {
		env.log.Error("listing commits failed", "error", err)
		return nil, err
	}
	report.Found = len(commits)
	if len(commits) == 0 {
		env.log.Warn("no commits found matching the criteria")
		_, _ = fmt.Fprintln(env.out, "No commits found matching the criteria.")
		env.end(0, 0)
		return report, nil
	}

	env.log.Info("commits found", "count", len(commits))
	_, _ = fmt.Fprintf(env.out, "Found %d commits. Analyzing with %d parallel workers...\n", len(commits), cfg.Workers)
	_, _ = fmt.Fprintln(env.out, "Press Ctrl+C to stop and save partial results...")

	res := env.pipeline(ctx, cfg, client, oracle, mgr).Run(ctx, commits, cfg.Workers)
	if res.Interrupted {
		env.log.Warn("analysis interrupted", "unattempted", len(res.Unattempted))
		_, _ = fmt.Fprintln(env.out, "\n[INTERRUPTED] Analysis stopped by user. Saving partial results...")
	}
	report.Scored = len(res.Commits)
	report.Unattempted = len(res.Unattempted)
	report.Interrupted = res.Interrupted
	report.FailuresByKind = res.FailuresByKind()
	env.logOutcome(len(res.Commits), res.Failures)

	if mode == schema.CompaniesMode {
		err = persistCompanies(cfg, res.Commits, report)
	} else {
		err = persistAnalysis(cfg, res.Commits, filter, report)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case len(res.Failures) > 0:
		path, err := SaveLedger(cfg.OutputDir, cfg.VersionRange, res.Failures)
		if err != nil {
			return nil, err
		}
		report.LedgerPath = path
		env.log.Info("failure ledger saved", "path", path, "failures", len(res.Failures))
	case !res.Interrupted:
		if err := DeleteLedger(cfg.OutputDir, cfg.VersionRange); err != nil {
			return nil, err
		}
	}

	env.end(len(res.Commits), len(res.Failures))
	return report, nil
}

// persistAnalysis writes batch files, the full results file and the summary.
func persistAnalysis(cfg *contract.Config, commits []schema.ScoredCommit, filter string, report *schema.RunReport) error {
	if len(commits) == 0 {
		return nil
	}
	if len(commits) > BatchSize {
		for i := 0; i < len(commits); i += BatchSize {
			path := BatchPath(cfg.OutputDir, cfg.VersionRange, i/BatchSize+1)
			if err := writeJSONFile(path, commits[i:min(i+BatchSize, len(commits))]); err != nil {
				return fmt.Errorf("writing batch file: %w", err)
			}
			report.OutputFiles = append(report.OutputFiles, path)
		}
	}

	allPath := AllResultsPath(cfg.OutputDir, cfg.VersionRange)
	if err := writeJSONFile(allPath, commits); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	summary := GenerateSummary(commits, cfg.VersionRange, companyLabel(filter))
	summaryPath := SummaryPath(cfg.OutputDir, cfg.VersionRange)
	if err := writeJSONFile(summaryPath, summary); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	report.OutputFiles = append(report.OutputFiles, allPath, summaryPath)
	report.Summary = &summary
	return nil
}

// persistCompanies writes the JSONL results and the per-company summary.
func persistCompanies(cfg *contract.Config, commits []schema.ScoredCommit, report *schema.RunReport) error {
	if len(commits) == 0 {
		return nil
	}
	jsonlPath := CompaniesJSONLPath(cfg.OutputDir, cfg.VersionRange, cfg.Compress)
	if err := outwriter.WriteJSONLFile(jsonlPath, commits, cfg.Compress); err != nil {
		return fmt.Errorf("writing companies JSONL: %w", err)
	}
	summary := GenerateCompanySummary(commits, cfg.VersionRange)
	summaryPath := CompaniesSummaryPath(cfg.OutputDir, cfg.VersionRange)
	if err := writeJSONFile(summaryPath, summary); err != nil {
		return fmt.Errorf("writing companies summary: %w", err)
	}
	report.OutputFiles = append(report.OutputFiles, jsonlPath, summaryPath)
	report.CompanySummary = &summary
	return nil
}

// RepairRange re-scores the failure ledger of cfg.VersionRange.
// An empty or missing ledger is a no-op that touches no files.
func RepairRange(ctx context.Context, cfg *contract.Config, client contract.GitClient, oracle contract.Oracle, mgr contract.CacheManager) (*schema.RunReport, error) {
	report := &schema.RunReport{
		Mode:           schema.RepairMode,
		VersionRange:   cfg.VersionRange,
		CompanyFilter:  companyLabel(cfg.CompanyFilter),
		FailuresByKind: map[schema.ErrorKind]int{},
	}
	records, err := LoadLedger(cfg.OutputDir, cfg.VersionRange)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintf(consoleOut(ctx), "No failed commits found for version range: %s\n", cfg.VersionRange)
		return report, nil
	}

	env, err := startRun(ctx, cfg, mgr, schema.RepairMode, cfg.CompanyFilter)
	if err != nil {
		return nil, err
	}
	defer env.close()
	report.RunID = env.runID
	report.Found = len(records)

	_, _ = fmt.Fprintf(env.out, "Found %d failed commits to repair...\n", len(records))
	_, _ = fmt.Fprintln(env.out, "\nError breakdown:")
	counts := CountFailures(records)
	for _, kind := range SortedKinds(counts) {
		_, _ = fmt.Fprintf(env.out, "  %s: %d\n", kind, counts[kind])
		env.log.Info("ledger entry kind", "kind", string(kind), "count", counts[kind])
	}

	res := repairRecords(ctx, env.pipeline(ctx, cfg, client, oracle, mgr), records, cfg.Workers)
	if res.Interrupted {
		env.log.Warn("repair interrupted")
		_, _ = fmt.Fprintln(env.out, "\n[INTERRUPTED] Repair stopped by user. Saving partial results...")
	}
	report.Scored = len(res.Repaired)
	report.Interrupted = res.Interrupted
	report.FailuresByKind = CountFailures(res.StillFailed)
	env.log.Info("repair finished", "attempted", res.Attempted, "repaired", res.RepairedCount(), "still_failed", len(res.StillFailed))

	if len(res.StillFailed) > 0 {
		path, err := SaveLedger(cfg.OutputDir, cfg.VersionRange, res.StillFailed)
		if err != nil {
			return nil, err
		}
		report.LedgerPath = path
	} else {
		if err := DeleteLedger(cfg.OutputDir, cfg.VersionRange); err != nil {
			return nil, err
		}
		report.LedgerCleared = true
	}

	if err := persistRepair(cfg, res.Repaired, report); err != nil {
		return nil, err
	}
	env.end(len(res.Repaired), len(res.StillFailed))
	return report, nil
}

// persistRepair writes the repaired commits and merges them into the full
// results file, regenerating its summary.
func persistRepair(cfg *contract.Config, repaired []schema.ScoredCommit, report *schema.RunReport) error {
	if len(repaired) == 0 {
		return nil
	}
	repairedPath := RepairedPath(cfg.OutputDir, cfg.VersionRange)
	if err := writeJSONFile(repairedPath, repaired); err != nil {
		return fmt.Errorf("writing repaired commits: %w", err)
	}
	report.OutputFiles = append(report.OutputFiles, repairedPath)

	allPath := AllResultsPath(cfg.OutputDir, cfg.VersionRange)
	existing, found, err := LoadScoredCommits(allPath)
	if err != nil || !found {
		return err
	}
	merged := MergeScoredCommits(existing, repaired)
	if err := writeJSONFile(allPath, merged); err != nil {
		return fmt.Errorf("writing merged results: %w", err)
	}
	filter := cfg.CompanyFilter
	if filter == "" {
		filter = storedCompanyFilter(cfg.OutputDir, cfg.VersionRange)
	}
	summary := GenerateSummary(merged, cfg.VersionRange, filter)
	summaryPath := SummaryPath(cfg.OutputDir, cfg.VersionRange)
	if err := writeJSONFile(summaryPath, summary); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	report.OutputFiles = append(report.OutputFiles, allPath, summaryPath)
	report.Summary = &summary
	return nil
}

// runEnv is the per-run logging and history state.
type runEnv struct {
	log     *contract.RunLog
	out     io.Writer
	history contract.HistoryStore
	runID   string
	ended   bool
}

func startRun(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, mode schema.RunMode, filter string) (*runEnv, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", cfg.OutputDir, err)
	}
	runLog, err := contract.NewRunLogger(cfg.OutputDir, cfg.VersionRange, mode)
	if err != nil {
		return nil, err
	}
	env := &runEnv{log: runLog, out: consoleOut(ctx)}
	if mgr == nil {
		return env, nil
	}
	if env.history = mgr.GetHistoryStore(); env.history != nil {
		id, err := env.history.BeginRun(time.Now(), mode, cfg.VersionRange, companyLabel(filter), configParams(cfg))
		if err != nil {
			runLog.Warn("history run not recorded", "error", err)
			contract.LogWarn("recording run history", err)
		} else {
			env.runID = id
			runLog.Info("history run started", "run_id", id)
		}
	}
	return env, nil
}

func configParams(cfg *contract.Config) map[string]any {
	return map[string]any{
		"repo":        cfg.RepoPath,
		"max_commits": cfg.MaxCommits,
		"workers":     cfg.Workers,
		"timeout_s":   int(cfg.Timeout.Seconds()),
		"max_retries": cfg.MaxRetries,
		"oracle":      string(cfg.Oracle),
	}
}

// pipeline builds the Pipeline for this run.
func (e *runEnv) pipeline(ctx context.Context, cfg *contract.Config, client contract.GitClient, oracle contract.Oracle, mgr contract.CacheManager) *Pipeline {
	opts := ScoreOptions{Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries}
	if override, ok := scoreOptionsFrom(ctx); ok {
		opts = override
	}
	var cache contract.CacheStore
	if mgr != nil {
		cache = mgr.GetDiffStore()
	}
	return &Pipeline{
		Client:   client,
		Oracle:   oracle,
		RepoPath: cfg.RepoPath,
		Opts:     opts,
		Cache:    cache,
		History:  e.history,
		RunID:    e.runID,
		Logger:   e.log.Logger,
		Out:      e.out,
	}
}

func (e *runEnv) logOutcome(processed int, failures []schema.FailedCommitRecord) {
	e.log.Info("analysis summary", "processed", processed, "successful", processed-len(failures), "failed", len(failures))
	counts := CountFailures(failures)
	for _, kind := range SortedKinds(counts) {
		e.log.Info("failures by kind", "kind", string(kind), "count", counts[kind])
	}
}

// end closes the history run with its totals.
func (e *runEnv) end(total, failed int) {
	if e.ended {
		return
	}
	e.ended = true
	if e.history == nil || e.runID == "" {
		return
	}
	if err := e.history.EndRun(e.runID, time.Now(), total, failed); err != nil {
		e.log.Warn("history run not closed", "run_id", e.runID, "error", err)
	}
}

func (e *runEnv) close() {
	e.log.Info("run finished")
	_ = e.log.Close()
}

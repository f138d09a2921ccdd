// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/parquet"
	"github.com/huangsam/kernscore/schema"
)

// PrintRunReport renders what an analyze or repair run did.
// JSON output encodes the report itself; every other mode prints the text report.
func PrintRunReport(report *schema.RunReport, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeRunReport(w, report, cfg, duration)
	}, "Wrote report")
}

// PrintSummary renders a version range summary with its commits, which must
// already be ranked by score.
func PrintSummary(summary schema.Summary, ranked []schema.ScoredCommit, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCommitsCSV(w, ranked)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if err := parquet.WriteScoredCommitsParquet(parquet.ConvertScoredCommits(ranked), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
		return nil
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeSummaryOverview(w, summary, cfg); err != nil {
				return err
			}
			if err := writeCommitsTable(w, ranked[:min(cfg.ResultLimit, len(ranked))], cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Showing top %d of %d commits. Loaded in %v\n", min(cfg.ResultLimit, len(ranked)), len(ranked), duration)
			return err
		}, "Wrote table")
	}
}

// PrintFailures renders the failure ledger of a version range.
func PrintFailures(records []schema.FailedCommitRecord, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if records == nil {
				records = []schema.FailedCommitRecord{}
			}
			return writeJSON(w, records)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeFailuresCSV(w, records)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for the failure ledger")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if len(records) == 0 {
				_, err := fmt.Fprintf(w, "No failed commits recorded for %s\n", cfg.VersionRange)
				return err
			}
			if err := writeFailuresTable(w, records[:min(cfg.ResultLimit, len(records))], cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Showing %d of %d failed commits. Run 'kernscore repair %s' to retry them. Loaded in %v\n",
				min(cfg.ResultLimit, len(records)), len(records), cfg.VersionRange, duration)
			return err
		}, "Wrote table")
	}
}

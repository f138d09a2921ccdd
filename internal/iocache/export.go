package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/parquet"
)

// ExportHistory writes every run and commit score in the store to two Parquet
// files next to outputFile. It returns the paths written.
func ExportHistory(store contract.HistoryStore, outputFile string, w io.Writer) ([]string, error) {
	if outputFile == "" {
		return nil, errors.New("--output-file is required for export command")
	}
	if store == nil {
		return nil, errors.New("history tracking is disabled; set --history-backend to export runs")
	}

	status, err := store.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return nil, errors.New("no run history found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total commit scores: %d\n", status.TotalCommitScores)

	runs, err := store.GetAllRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve runs: %w", err)
	}
	scores, err := store.GetAllCommitScores()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve commit scores: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return nil, fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	scoresFile := outputFile + ".commit_scores.parquet"
	if err := parquet.WriteCommitScoresParquet(parquet.ConvertCommitScoreRecords(scores), scoresFile); err != nil {
		return nil, fmt.Errorf("failed to write commit scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d commit scores to: %s\n", len(scores), scoresFile)

	return []string{runsFile, scoresFile}, nil
}

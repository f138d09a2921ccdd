package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// BatchSize is the number of commits per batch file.
const BatchSize = 50

// LedgerPath is the failure ledger file of a version range.
func LedgerPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("failed_commits_%s.json", contract.VersionTag(versionRange)))
}

// AllResultsPath is the file holding every scored commit of a version range.
func AllResultsPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("commit_scores_%s_all.json", contract.VersionTag(versionRange)))
}

// SummaryPath is the summary file of a version range.
func SummaryPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("commit_scores_%s_summary.json", contract.VersionTag(versionRange)))
}

// BatchPath is the n-th (1-based) batch file of a version range.
func BatchPath(outputDir, versionRange string, n int) string {
	return filepath.Join(outputDir, fmt.Sprintf("commit_scores_%s_batch_%d.json", contract.VersionTag(versionRange), n))
}

// RepairedPath is the file holding the commits rescored by the last repair.
func RepairedPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("repaired_commits_%s.json", contract.VersionTag(versionRange)))
}

// CompaniesJSONLPath is the per-commit output of the companies mode.
func CompaniesJSONLPath(outputDir, versionRange string, compress bool) string {
	path := filepath.Join(outputDir, fmt.Sprintf("chinese_companies_%s.jsonl", contract.VersionTag(versionRange)))
	if compress {
		path += ".gz"
	}
	return path
}

// CompaniesSummaryPath is the per-company summary of the companies mode.
func CompaniesSummaryPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("chinese_companies_%s_summary.json", contract.VersionTag(versionRange)))
}

// SaveLedger writes the failure ledger of a version range and returns its path.
func SaveLedger(outputDir, versionRange string, records []schema.FailedCommitRecord) (string, error) {
	path := LedgerPath(outputDir, versionRange)
	if err := writeJSONFile(path, records); err != nil {
		return "", fmt.Errorf("saving failure ledger: %w", err)
	}
	return path, nil
}

// LoadLedger reads the failure ledger of a version range.
// A missing ledger is an empty one.
func LoadLedger(outputDir, versionRange string) ([]schema.FailedCommitRecord, error) {
	var records []schema.FailedCommitRecord
	found, err := readJSONFile(LedgerPath(outputDir, versionRange), &records)
	if err != nil {
		return nil, fmt.Errorf("loading failure ledger: %w", err)
	}
	if !found {
		return []schema.FailedCommitRecord{}, nil
	}
	return records, nil
}

// DeleteLedger removes the failure ledger of a version range, if present.
func DeleteLedger(outputDir, versionRange string) error {
	err := os.Remove(LedgerPath(outputDir, versionRange))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting failure ledger: %w", err)
	}
	return nil
}

// LoadScoredCommits reads a scored commits file such as AllResultsPath.
// A missing file yields no commits and found=false.
func LoadScoredCommits(path string) (commits []schema.ScoredCommit, found bool, err error) {
	found, err = readJSONFile(path, &commits)
	if err != nil {
		return nil, false, fmt.Errorf("loading scored commits: %w", err)
	}
	return commits, found, nil
}

// encodeJSON renders v as indented JSON without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeJSONFile atomically replaces path with the JSON encoding of v.
func writeJSONFile(path string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readJSONFile decodes path into v. found is false when the file does not exist.
func readJSONFile(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

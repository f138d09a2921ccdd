package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/klauspost/compress/gzip"
)

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader handles the common pattern of creating a CSV writer,
// writing a header, and writing data rows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	if err := writeRows(csvWriter); err != nil {
		return err
	}

	return nil
}

// writeJSONLines writes one compact JSON document per commit.
func writeJSONLines(w io.Writer, commits []schema.ScoredCommit) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, c := range commits {
		if err := encoder.Encode(c); err != nil {
			return fmt.Errorf("failed to encode commit %s: %w", c.ShortHash, err)
		}
	}
	return nil
}

// WriteJSONLFile writes commits to path as JSON Lines, gzip-compressed when compress is set.
func WriteJSONLFile(path string, commits []schema.ScoredCommit, compress bool) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if !compress {
		return writeJSONLines(file, commits)
	}
	gz := gzip.NewWriter(file)
	if err := writeJSONLines(gz, commits); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

// ReadJSONLFile reads a file written by WriteJSONLFile. Files ending in ".gz"
// are decompressed.
func ReadJSONLFile(path string) ([]schema.ScoredCommit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var commits []schema.ScoredCommit
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var c schema.ScoredCommit
		if err := decoder.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		commits = append(commits, c)
	}
	return commits, nil
}

package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Score label constants, one per distribution bucket.
const (
	ExceptionalValue = "Exceptional"
	HighValue        = "High"
	MediumValue      = "Medium"
	LowValue         = "Low"
	MinimalValue     = "Minimal"
	TrivialValue     = "Trivial"
)

// Color variables for console output.
var (
	ExceptionalColor = color.New(color.FgRed, color.Bold)     // top contributions stand out the most.
	HighColor        = color.New(color.FgMagenta, color.Bold) // strong, distinct signal.
	MediumColor      = color.New(color.FgYellow)              // standard caution, not bold.
	LowColor         = color.New(color.FgCyan)                // informational.
	MinimalColor     = color.New(color.FgBlue)
	TrivialColor     = color.New(color.FgWhite, color.Faint)
)

// GetPlainLabel returns a plain text label for a commit's grand total.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(score int) string {
	switch {
	case score >= 90:
		return ExceptionalValue
	case score >= 70:
		return HighValue
	case score >= 50:
		return MediumValue
	case score >= 30:
		return LowValue
	case score >= 10:
		return MinimalValue
	default:
		return TrivialValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(score int) string {
	text := GetPlainLabel(score)

	switch text {
	case ExceptionalValue:
		return ExceptionalColor.Sprint(text)
	case HighValue:
		return HighColor.Sprint(text)
	case MediumValue:
		return MediumColor.Sprint(text)
	case LowValue:
		return LowColor.Sprint(text)
	case MinimalValue:
		return MinimalColor.Sprint(text)
	default:
		return TrivialColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the diff cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".kernscore_cache.db"
	}
	return filepath.Join(homeDir, ".kernscore_cache.db")
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for run history.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".kernscore_history.db"
	}
	return filepath.Join(homeDir, ".kernscore_history.db")
}

// VersionTag turns a version range into a file name fragment.
// "v6.17..v6.18" becomes "v6_17_v6_18"; "^" and "~" are dropped.
func VersionTag(versionRange string) string {
	tag := strings.ReplaceAll(versionRange, "..", "_")
	tag = strings.ReplaceAll(tag, ".", "_")
	tag = strings.ReplaceAll(tag, "^", "")
	return strings.ReplaceAll(tag, "~", "")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

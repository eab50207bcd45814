package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/benchtrail/schema"
)

// Color variables for console output.
var (
	FlaggedColor      = color.New(color.FgRed, color.Bold) // regression
	InconclusiveColor = color.New(color.FgYellow)          // not enough history
	PassColor         = color.New(color.FgGreen)
	SkippedColor      = color.New(color.FgCyan)
)

// Default history locations.
const (
	DefaultHistoryFile   = "benchmark-data.json"
	defaultHistoryDBName = ".benchtrail_history.db"
)

// GetPlainLabel returns the upper-case label of a verdict status, used by CSV, JSON and table output.
func GetPlainLabel(status schema.VerdictStatus) string {
	return strings.ToUpper(string(status))
}

// GetColorLabel returns a colored label for console output.
func GetColorLabel(status schema.VerdictStatus) string {
	text := GetPlainLabel(status)
	switch status {
	case schema.FlaggedStatus:
		return FlaggedColor.Sprint(text)
	case schema.InconclusiveStatus:
		return InconclusiveColor.Sprint(text)
	case schema.PassStatus:
		return PassColor.Sprint(text)
	default:
		return SkippedColor.Sprint(text)
	}
}

// SelectOutputFile returns the file handle for output, or os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// GetHistoryDBFilePath returns the default path of the SQLite history database.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultHistoryDBName
	}
	return filepath.Join(homeDir, defaultHistoryDBName)
}

// TruncateName truncates a metric name to a maximum width with an ellipsis suffix.
// Widths of 3 or less leave the name untouched.
func TruncateName(name string, maxWidth int) string {
	runes := []rune(name)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return name
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// ValidateSuiteName rejects names that cannot key a history series.
func ValidateSuiteName(suite string) error {
	if strings.TrimSpace(suite) == "" {
		return schema.ErrEmptySuite
	}
	if strings.ContainsAny(suite, "\x00\n\r") {
		return fmt.Errorf("suite name %q contains control characters", suite)
	}
	return nil
}

package outwriter

import (
	"os"

	"github.com/huangsam/kernscore/internal/contract"
	"golang.org/x/term"
)

// getMaxSubjectWidth calculates the maximum width for commit subjects in table output
// based on terminal width and the fixed columns of the commits table.
func getMaxSubjectWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank + Commit + Score + Label + Category + Tier + Subsystem
	baseWidth := 75

	// Reserve space for table borders, separators, and padding
	baseWidth += 20

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}

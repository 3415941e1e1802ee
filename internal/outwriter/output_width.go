package outwriter

import (
	"os"

	"github.com/huangsam/repoharvest/internal/contract"
	"golang.org/x/term"
)

// Column budgets for the repository name in table output.
const (
	minNameWidth = 15
	maxNameWidth = 60
)

// getMaxTableNameWidth calculates the maximum width for repository names in table output
// based on terminal width and the width of the fixed columns.
func getMaxTableNameWidth(cfg *contract.Config, fixedWidth int) int {
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

	// Reserve space for table borders, separators, and padding
	available := termWidth - fixedWidth - 20
	if available < minNameWidth {
		return minNameWidth
	}
	if available > maxNameWidth {
		return maxNameWidth
	}
	return available
}

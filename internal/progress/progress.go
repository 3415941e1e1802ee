// Package progress renders terminal progress for long transfers.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Config determines if and how progress should be displayed.
type Config struct {
	// Enabled is false when progress was turned off or stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes.
	Writer io.Writer

	NoColor bool
}

// NewConfig enables progress only when requested and stderr is a terminal.
func NewConfig(requested, useColors bool) Config {
	return Config{
		Enabled: requested && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: !useColors,
	}
}

// NewDownloadBar creates a byte-counting bar. A negative total renders an indeterminate bar.
// Returns nil if progress is disabled.
func NewDownloadBar(cfg Config, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Tee returns w unchanged when bar is nil, otherwise a writer that also advances the bar.
func Tee(w io.Writer, bar *progressbar.ProgressBar) io.Writer {
	if bar == nil {
		return w
	}
	return io.MultiWriter(w, bar)
}

// Finish completes the bar if there is one.
func Finish(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}

package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressTracker draws a bar on interactive stderr and stays silent otherwise.
type progressTracker struct {
	bar *progressbar.ProgressBar
}

func newProgressTracker(w io.Writer, total int, description string) *progressTracker {
	if total <= 0 || !isTerminal(w) {
		return &progressTracker{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	return &progressTracker{bar: bar}
}

func (p *progressTracker) set(done int) {
	if p.bar != nil {
		_ = p.bar.Set(done)
	}
}

func (p *progressTracker) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

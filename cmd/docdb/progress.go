package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progress reports build progress in bytes read. A nil *progress is a no-op.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(enabled bool, total int64, desc string) *progress {
	if !enabled || total <= 0 {
		return nil
	}
	return &progress{
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

func (p *progress) Add(n int) {
	if p == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *progress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

func defaultProgressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// progress renders index build progress on stderr: a bar on terminals,
// plain lines under CI.
type progress struct {
	mu    sync.Mutex
	label string
	ci    bool
	bar   *progressbar.ProgressBar
}

func newProgress(label string) *progress {
	return &progress{
		label: label,
		ci:    os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "",
	}
}

// Report matches index.ProgressFunc.
func (p *progress) Report(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ci {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, total, p.label)
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
	if done >= total {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

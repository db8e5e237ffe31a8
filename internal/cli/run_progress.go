package cli

import (
	"fmt"
	"strings"
	"sync"

	"ytdlp-queue/internal/model"
)

// lineReporter prints queue progress for the non-interactive run. On a
// terminal the running job repaints one status line; otherwise only finished
// jobs are printed.
type lineReporter struct {
	enabled bool
	live    bool

	mu       sync.Mutex
	order    map[string]int
	finished map[string]bool
	total    int
}

func newLineReporter(enabled, live bool) *lineReporter {
	return &lineReporter{
		enabled:  enabled,
		live:     live,
		order:    make(map[string]int),
		finished: make(map[string]bool),
	}
}

func (r *lineReporter) update(job model.Job) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.order[job.ID]
	if !ok {
		r.total++
		idx = r.total
		r.order[job.ID] = idx
	}

	switch {
	case job.Status == model.StatusRunning && r.live:
		fmt.Printf("\r\033[2K%s", r.renderRunning(idx, job))
	case job.Status.IsTerminal():
		if r.finished[job.ID] {
			return
		}
		r.finished[job.ID] = true
		prefix := ""
		if r.live {
			prefix = "\r\033[2K"
		}
		fmt.Printf("%s%s\n", prefix, r.renderFinal(idx, job))
	}
}

func (r *lineReporter) renderRunning(idx int, job model.Job) string {
	last := ""
	if n := len(job.Log); n > 0 {
		last = strings.TrimSpace(job.Log[n-1])
	}
	return fmt.Sprintf("[%d/%d] %3d%% %s | %s",
		idx, r.total, job.Progress, truncateRunes(job.URL, 48), truncateRunes(last, 60))
}

func (r *lineReporter) renderFinal(idx int, job model.Job) string {
	line := fmt.Sprintf("[%d/%d] %s %s", idx, r.total, statusLabel(job.Status), job.URL)
	if job.Status == model.StatusFailed && len(job.Log) > 0 {
		line += mutedStyle.Render(" | " + truncateRunes(strings.TrimSpace(job.Log[len(job.Log)-1]), 80))
	}
	return line
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/queue"
)

type jobUpdateMsg struct {
	job model.Job
}

type queueDoneMsg struct {
	err error
}

type watchStatusMsg struct {
	message string
}

type watchTickMsg time.Time

// teaNotifier forwards scheduler updates once the program exists.
type teaNotifier struct {
	mu sync.Mutex
	p  *tea.Program
}

func (n *teaNotifier) set(p *tea.Program) {
	n.mu.Lock()
	n.p = p
	n.mu.Unlock()
}

func (n *teaNotifier) send(msg tea.Msg) {
	n.mu.Lock()
	p := n.p
	n.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type watchModel struct {
	sched *queue.Scheduler
	stop  context.CancelFunc

	jobs     []model.Job
	stats    queue.Stats
	cursor   int
	follow   bool
	width    int
	height   int
	bar      progress.Model
	status   string
	stopping bool
	done     bool
	runErr   error
}

func newWatchModel(sched *queue.Scheduler, stop context.CancelFunc) watchModel {
	return watchModel{
		sched:  sched,
		stop:   stop,
		jobs:   sched.Jobs(),
		stats:  sched.Stats(),
		follow: true,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// runWatch drives the scheduler under the live view and returns Run's error.
func runWatch(ctx context.Context, stop context.CancelFunc, sched *queue.Scheduler, notifier *teaNotifier) error {
	p := tea.NewProgram(newWatchModel(sched, stop), tea.WithAltScreen())
	notifier.set(p)
	defer notifier.set(nil)

	runDone := make(chan error, 1)
	go func() {
		err := sched.Run(ctx)
		runDone <- err
		p.Send(queueDoneMsg{err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		stop()
		<-runDone
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("--tui requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(watchModel); ok && fm.done {
		return fm.runErr
	}
	stop()
	return <-runDone
}

func watchTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func cancelRunningCmd(sched *queue.Scheduler) tea.Cmd {
	return func() tea.Msg {
		if err := sched.Cancel(); err != nil {
			return watchStatusMsg{message: err.Error()}
		}
		return watchStatusMsg{message: "cancel requested"}
	}
}

func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clampInt(m.width/4, 10, 40)
		return m, nil
	case jobUpdateMsg:
		m.refresh()
		if m.follow {
			m.cursor = m.activeIndex(msg.job.ID)
		}
		return m, nil
	case watchTickMsg:
		m.refresh()
		return m, watchTick()
	case watchStatusMsg:
		m.status = msg.message
		return m, nil
	case queueDoneMsg:
		m.refresh()
		m.done = true
		m.runErr = msg.err
		return m, tea.Quit
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "ctrl+c", "q":
		if m.stopping {
			return m, nil
		}
		m.stopping = true
		m.status = "stopping: canceling the running job..."
		m.stop()
		return m, nil
	case "up", "k":
		m.follow = false
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		m.follow = false
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
		return m, nil
	case "f":
		m.follow = true
		m.status = "following the running job"
		return m, nil
	case "c":
		return m, cancelRunningCmd(m.sched)
	case "d":
		if m.cursor >= len(m.jobs) {
			return m, nil
		}
		if err := m.sched.Remove(m.jobs[m.cursor].ID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "removed " + m.jobs[m.cursor].URL
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *watchModel) refresh() {
	m.jobs = m.sched.Jobs()
	m.stats = m.sched.Stats()
	if m.cursor >= len(m.jobs) {
		m.cursor = maxInt(len(m.jobs)-1, 0)
	}
}

func (m watchModel) activeIndex(fallbackID string) int {
	for i, job := range m.jobs {
		if job.Status == model.StatusRunning {
			return i
		}
	}
	for i, job := range m.jobs {
		if job.ID == fallbackID {
			return i
		}
	}
	return m.cursor
}

func (m watchModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}

	header := titleStyle.Render("ytdlp-queue") + "  " + mutedStyle.Render(fmt.Sprintf(
		"pending %d | running %d | done %d | failed %d | canceled %d",
		m.stats.Pending, m.stats.Running, m.stats.Done, m.stats.Failed, m.stats.Canceled,
	))
	keys := mutedStyle.Render("up/down: select | f: follow running | c: cancel running | d: remove | q: stop and quit")

	listRows := clampInt(height/2-4, 3, 20)
	list := m.renderJobList(width, listRows)
	logRows := clampInt(height-listRows-10, 3, 40)
	logPanel := m.renderLogPanel(width, logRows)

	status := ""
	if m.status != "" {
		status = mutedStyle.Render(truncateRunes(m.status, maxInt(width-2, 10)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, keys, list, logPanel, status)
}

func (m watchModel) renderJobList(width, maxRows int) string {
	if len(m.jobs) == 0 {
		return panelStyle.Width(width - 2).Render(mutedStyle.Render("queue is empty"))
	}
	start, end := listWindow(len(m.jobs), m.cursor, maxRows)
	lines := make([]string, 0, maxRows+2)
	if start > 0 {
		lines = append(lines, mutedStyle.Render("..."))
	}
	urlWidth := maxInt(width-m.bar.Width-20, 16)
	for i := start; i < end; i++ {
		job := m.jobs[i]
		url := truncateRunes(job.URL, urlWidth)
		if i == m.cursor {
			url = selectedStyle.Render(url)
		}
		line := statusLabel(job.Status) + " " + url
		switch job.Status {
		case model.StatusRunning, model.StatusDone:
			line += "  " + m.bar.ViewAs(float64(job.Progress)/100)
		case model.StatusFailed:
			line += "  " + mutedStyle.Render(job.Reason)
		}
		lines = append(lines, line)
	}
	if end < len(m.jobs) {
		lines = append(lines, mutedStyle.Render("..."))
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m watchModel) renderLogPanel(width, maxRows int) string {
	if m.cursor >= len(m.jobs) {
		return ""
	}
	job := m.jobs[m.cursor]
	lines := job.Log
	if len(lines) > maxRows {
		lines = lines[len(lines)-maxRows:]
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, titleStyle.Render("log")+" "+mutedStyle.Render(truncateRunes(job.URL, maxInt(width-10, 10))))
	for _, line := range lines {
		out = append(out, truncateRunes(line, maxInt(width-6, 10)))
	}
	if len(job.Log) == 0 {
		out = append(out, mutedStyle.Render("(no output yet)"))
	}
	return panelStyle.Width(width - 2).Render(strings.Join(out, "\n"))
}

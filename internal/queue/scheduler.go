// Package queue runs download jobs one at a time, in the order they were
// added. Each job is probed for its formats, gets one audio track chosen, and
// is then downloaded by a yt-dlp process whose output feeds the job's log and
// progress. A failing job never stops the jobs queued behind it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ytdlp-queue/internal/audiotrack"
	"ytdlp-queue/internal/config"
	"ytdlp-queue/internal/metrics"
	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/runner"
	"ytdlp-queue/internal/ytdlp"
)

// Toolchain is the external downloader as the scheduler sees it.
type Toolchain interface {
	Probe(ctx context.Context, opts ytdlp.ProbeOptions) (ytdlp.ProbeResult, error)
	Download(opts ytdlp.DownloadOptions) (runner.Handle, error)
}

// Recorder receives one entry per job that reaches a terminal state.
type Recorder interface {
	Record(entry model.HistoryEntry) error
}

type Options struct {
	Settings  config.Settings
	Toolchain Toolchain
	History   Recorder
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// OnUpdate receives a snapshot after every change to a job. It is called
	// without the scheduler lock held and may call back into the Scheduler.
	OnUpdate func(model.Job)
}

type Stats struct {
	Pending  int `json:"pending"`
	Running  int `json:"running"`
	Done     int `json:"done"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
}

func (s Stats) Total() int {
	return s.Pending + s.Running + s.Done + s.Failed + s.Canceled
}

type Scheduler struct {
	tools    Toolchain
	history  Recorder
	metrics  *metrics.Metrics
	log      *slog.Logger
	onUpdate func(model.Job)

	mu        sync.Mutex
	settings  config.Settings
	validated bool
	jobs      []*model.Job
	active    *activeJob
}

// activeJob is the running job plus whatever can stop it: the probe context
// until the download starts, the process handle after.
type activeJob struct {
	job         *model.Job
	cancelProbe context.CancelFunc
	handle      runner.Handle
}

func New(opts Options) *Scheduler {
	tools := opts.Toolchain
	if tools == nil {
		tools = ytdlp.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		tools:    tools,
		history:  opts.History,
		metrics:  opts.Metrics,
		log:      log,
		onUpdate: opts.OnUpdate,
		settings: opts.Settings,
	}
}

// SetSettings replaces the settings used for jobs added from now on and for
// the next download. They are validated again before the next job starts.
func (s *Scheduler) SetSettings(settings config.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.validated = false
	s.mu.Unlock()
}

func (s *Scheduler) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Validate checks the current settings. Run calls it before the first job.
func (s *Scheduler) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Scheduler) validateLocked() error {
	if s.validated {
		return nil
	}
	if err := config.Validate(s.settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	s.validated = true
	return nil
}

// Add queues one pending job per non-blank URL, using the current mode and
// output directory.
func (s *Scheduler) Add(urls ...string) []model.Job {
	s.mu.Lock()
	mode := s.settings.ModeValue()
	outputDir := s.settings.OutputDir
	added := make([]model.Job, 0, len(urls))
	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		job := model.NewJob(url, mode, outputDir)
		s.jobs = append(s.jobs, job)
		added = append(added, job.Clone())
	}
	depth := s.pendingLocked()
	s.mu.Unlock()

	s.setQueueDepth(depth)
	for _, job := range added {
		s.log.Debug("job queued", "job_id", job.ID, "url", job.URL, "mode", job.Mode)
		s.notify(job)
	}
	return added
}

// Remove drops a job that is not running.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, job := range s.jobs {
		if job.ID != id {
			continue
		}
		if job.Status == model.StatusRunning {
			return fmt.Errorf("remove %s: %w", id, ErrJobRunning)
		}
		s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
		s.setQueueDepth(s.pendingLocked())
		return nil
	}
	return fmt.Errorf("remove %s: %w", id, ErrJobNotFound)
}

// ClearFinished drops every job in a terminal state and returns how many were
// removed.
func (s *Scheduler) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.jobs[:0]
	removed := 0
	for _, job := range s.jobs {
		if job.Status.IsTerminal() {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(s.jobs); i++ {
		s.jobs[i] = nil
	}
	s.jobs = kept
	return removed
}

// Jobs returns snapshots of every job in queue order.
func (s *Scheduler) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out
}

func (s *Scheduler) Job(id string) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			return job.Clone(), true
		}
	}
	return model.Job{}, false
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, job := range s.jobs {
		switch job.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusRunning:
			st.Running++
		case model.StatusDone:
			st.Done++
		case model.StatusFailed:
			st.Failed++
		case model.StatusCanceled:
			st.Canceled++
		}
	}
	return st
}

// Cancel asks the running job to stop. The job ends canceled whatever the
// process exit code turns out to be.
func (s *Scheduler) Cancel() error {
	return s.cancelActive("cancel requested")
}

func (s *Scheduler) cancelActive(note string) error {
	s.mu.Lock()
	a := s.active
	if a == nil || a.job.Status != model.StatusRunning {
		s.mu.Unlock()
		return ErrNothingRunning
	}
	already := a.job.CancelRequested
	a.job.CancelRequested = true
	if !already {
		a.job.AppendLog(note)
	}
	handle := a.handle
	cancelProbe := a.cancelProbe
	snap := a.job.Clone()
	s.mu.Unlock()

	s.notify(snap)
	if handle == nil {
		cancelProbe()
		return nil
	}
	s.killActive(a, handle)
	return nil
}

func (s *Scheduler) killActive(a *activeJob, handle runner.Handle) {
	line := "sent kill signal to yt-dlp"
	if err := handle.Cancel(); err != nil {
		line = fmt.Sprintf("kill failed: %v", err)
	}
	s.update(a, func(job *model.Job) {
		job.AppendLog(line)
	})
}

// Run processes pending jobs until none is left. When ctx ends, the running
// job is canceled and ctx.Err() is returned once it has settled. Settings are
// validated first; a validation error leaves the queue untouched.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.RunNext(ctx) {
			return ctx.Err()
		}
	}
}

// RunNext drives the first pending job to a terminal state. It returns false
// without doing anything when a job is already running, nothing is pending,
// or the settings are invalid.
func (s *Scheduler) RunNext(ctx context.Context) bool {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return false
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		s.log.Error("not starting next job", "error", err)
		return false
	}
	var job *model.Job
	for _, j := range s.jobs {
		if j.Status == model.StatusPending {
			job = j
			break
		}
	}
	if job == nil {
		s.mu.Unlock()
		return false
	}
	if err := model.TransitionJobStatus(job, model.StatusRunning, ""); err != nil {
		s.mu.Unlock()
		s.log.Error("cannot start job", "job_id", job.ID, "error", err)
		return false
	}
	job.StartedAt = time.Now()
	job.Progress = 0
	job.AppendLog("probing " + job.URL)

	probeCtx, cancelProbe := context.WithCancel(ctx)
	a := &activeJob{job: job, cancelProbe: cancelProbe}
	s.active = a
	settings := s.settings
	snap := job.Clone()
	depth := s.pendingLocked()
	s.mu.Unlock()

	defer cancelProbe()
	if s.metrics != nil {
		s.metrics.RecordJobStarted()
	}
	s.setQueueDepth(depth)
	s.log.Info("job started", "job_id", snap.ID, "url", snap.URL, "mode", snap.Mode)
	s.notify(snap)

	stopWatch := context.AfterFunc(ctx, func() {
		_ = s.cancelActive("interrupted, canceling")
	})
	defer stopWatch()

	s.execute(probeCtx, a, snap, settings)
	return true
}

func (s *Scheduler) execute(ctx context.Context, a *activeJob, job model.Job, settings config.Settings) {
	tools := settings.Tools()
	res, err := s.tools.Probe(ctx, ytdlp.ProbeOptions{
		Tools:           tools,
		URL:             job.URL,
		PlaylistEnabled: settings.PlaylistEnabled,
	})
	if err != nil {
		if ctx.Err() != nil {
			// The AfterFunc may not have run yet.
			s.mu.Lock()
			a.job.CancelRequested = true
			s.mu.Unlock()
		}
		s.finishProbeFailure(a, err)
		return
	}

	track, ok := audiotrack.Select(res.Formats, res.Language)
	s.update(a, func(j *model.Job) {
		for _, w := range res.Warnings {
			j.AppendLog("warning: " + w)
		}
		if ok {
			j.AppendLog("using audio track " + track.Describe())
		}
	})
	if !ok {
		s.finish(a, model.StatusFailed, model.ReasonNoSuitableAudioTrack, ErrNoSuitableAudioTrack)
		return
	}

	if s.cancelRequested(a) {
		s.finish(a, model.StatusCanceled, model.ReasonCanceled, ErrCanceled)
		return
	}

	handle, err := s.tools.Download(ytdlp.DownloadOptions{
		Tools:           tools,
		URL:             job.URL,
		OutputDir:       job.OutputDir,
		Mode:            job.Mode,
		AudioFormat:     settings.AudioFormat,
		PlaylistEnabled: settings.PlaylistEnabled,
		Track:           track,
	})
	if err != nil {
		s.finishSpawnFailure(a, err)
		return
	}

	s.mu.Lock()
	a.handle = handle
	canceled := a.job.CancelRequested
	s.mu.Unlock()
	if canceled {
		s.killActive(a, handle)
	}

	s.consume(a, handle)
}

// consume applies process events to the job until the terminal one.
func (s *Scheduler) consume(a *activeJob, handle runner.Handle) {
	for ev := range handle.Events() {
		switch ev.Kind {
		case runner.EventLine:
			line := ev.Line
			s.update(a, func(j *model.Job) {
				j.AppendLog(line)
				if pct, ok := ytdlp.ParseProgress(line); ok {
					j.SetProgress(pct)
				}
			})
		case runner.EventExit:
			s.finishExit(a, ev.Code, nil)
			return
		case runner.EventError:
			s.finishExit(a, -1, ev.Err)
			return
		}
	}
	s.finishExit(a, -1, errors.New("yt-dlp output ended without an exit status"))
}

func (s *Scheduler) finishExit(a *activeJob, code int, procErr error) {
	switch {
	case s.cancelRequested(a):
		s.finish(a, model.StatusCanceled, model.ReasonCanceled, ErrCanceled)
	case procErr != nil:
		s.finish(a, model.StatusFailed, model.ReasonSpawnFailed, fmt.Errorf("yt-dlp process error: %w", procErr))
	case code == 0:
		s.finish(a, model.StatusDone, "", nil)
	default:
		s.finish(a, model.StatusFailed, model.ReasonNonZeroExit, &ExitError{Code: code})
	}
}

func (s *Scheduler) finishProbeFailure(a *activeJob, err error) {
	if s.cancelRequested(a) {
		s.finish(a, model.StatusCanceled, model.ReasonCanceled, ErrCanceled)
		return
	}
	if errors.Is(err, ytdlp.ErrExecutableNotFound) {
		s.finish(a, model.StatusFailed, model.ReasonExecutableNotFound, err)
		return
	}
	var probeErr *ytdlp.ProbeError
	if errors.As(err, &probeErr) && probeErr.Output != "" {
		s.update(a, func(j *model.Job) {
			for _, line := range strings.Split(probeErr.Output, "\n") {
				j.AppendLog(strings.TrimRight(line, "\r"))
			}
		})
	}
	s.finish(a, model.StatusFailed, model.ReasonProbeFailed, err)
}

func (s *Scheduler) finishSpawnFailure(a *activeJob, err error) {
	if s.cancelRequested(a) {
		s.finish(a, model.StatusCanceled, model.ReasonCanceled, ErrCanceled)
		return
	}
	if errors.Is(err, ytdlp.ErrExecutableNotFound) || runner.IsNotFound(err) {
		s.finish(a, model.StatusFailed, model.ReasonExecutableNotFound, err)
		return
	}
	s.finish(a, model.StatusFailed, model.ReasonSpawnFailed, err)
}

func (s *Scheduler) finish(a *activeJob, status model.Status, reason string, cause error) {
	s.mu.Lock()
	job := a.job
	if cause != nil {
		job.AppendLog(cause.Error())
	}
	if status == model.StatusDone {
		job.Progress = 100
	}
	job.EndedAt = time.Now()
	if err := model.TransitionJobStatus(job, status, reason); err != nil {
		s.log.Error("terminal transition rejected", "job_id", job.ID, "error", err)
	}
	if s.active == a {
		s.active = nil
	}
	snap := job.Clone()
	entry := job.HistoryEntry()
	depth := s.pendingLocked()
	s.mu.Unlock()

	s.notify(snap)
	if s.history != nil {
		if err := s.history.Record(entry); err != nil {
			s.log.Warn("record history failed", "job_id", snap.ID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordJobFinished(string(snap.Status), snap.Reason, snap.Duration().Seconds())
	}
	s.setQueueDepth(depth)

	attrs := []any{
		"job_id", snap.ID,
		"url", snap.URL,
		"status", snap.Status,
		"duration", snap.Duration().Round(time.Millisecond).String(),
	}
	if snap.Reason != "" {
		attrs = append(attrs, "reason", snap.Reason)
	}
	if cause != nil && status == model.StatusFailed {
		attrs = append(attrs, "error", cause)
		s.log.Warn("job finished", attrs...)
		return
	}
	s.log.Info("job finished", attrs...)
}

func (s *Scheduler) cancelRequested(a *activeJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.job.CancelRequested
}

// update mutates the active job under the lock and publishes a snapshot.
func (s *Scheduler) update(a *activeJob, fn func(*model.Job)) {
	s.mu.Lock()
	fn(a.job)
	snap := a.job.Clone()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Scheduler) notify(job model.Job) {
	if s.onUpdate != nil {
		s.onUpdate(job)
	}
}

func (s *Scheduler) pendingLocked() int {
	n := 0
	for _, job := range s.jobs {
		if job.Status == model.StatusPending {
			n++
		}
	}
	return n
}

func (s *Scheduler) setQueueDepth(depth int) {
	if s.metrics != nil {
		s.metrics.SetQueueDepth(depth)
	}
}

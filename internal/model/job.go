package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxLogLines bounds Job.Log; older lines are dropped first.
const MaxLogLines = 500

type Mode string

const (
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
)

func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeVideo):
		return ModeVideo, true
	case string(ModeAudio), "audio-only":
		return ModeAudio, true
	default:
		return "", false
	}
}

const (
	ReasonProbeFailed          = "probe_failed"
	ReasonExecutableNotFound   = "executable_not_found"
	ReasonNoSuitableAudioTrack = "no_suitable_audio_track"
	ReasonSpawnFailed          = "spawn_failed"
	ReasonNonZeroExit          = "non_zero_exit"
	ReasonCanceled             = "canceled"
)

type Job struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Mode            Mode      `json:"mode"`
	OutputDir       string    `json:"output_dir"`
	Status          Status    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	Progress        int       `json:"progress"`
	Log             []string  `json:"log,omitempty"`
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	EndedAt         time.Time `json:"ended_at,omitzero"`
}

func NewJob(url string, mode Mode, outputDir string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Mode:      mode,
		OutputDir: outputDir,
		Log:       make([]string, 0, 16),
		CreatedAt: time.Now(),
	}
	_ = TransitionJobStatus(job, StatusPending, "")
	return job
}

// AppendLog adds a line, dropping the oldest entries beyond MaxLogLines.
func (j *Job) AppendLog(line string) {
	if line == "" {
		return
	}
	j.Log = append(j.Log, line)
	if over := len(j.Log) - MaxLogLines; over > 0 {
		copy(j.Log, j.Log[over:])
		j.Log = j.Log[:MaxLogLines]
	}
}

func (j *Job) SetProgress(pct float64) {
	switch {
	case pct < 0:
		j.Progress = 0
	case pct > 100:
		j.Progress = 100
	default:
		j.Progress = int(pct)
	}
}

// Clone returns a copy that shares no memory with j.
func (j *Job) Clone() Job {
	out := *j
	out.Log = append([]string(nil), j.Log...)
	return out
}

func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.EndedAt.IsZero() {
		return 0
	}
	return j.EndedAt.Sub(j.StartedAt)
}

// HistoryEntry is the durable summary of a job that reached a terminal state.
type HistoryEntry struct {
	URL       string    `json:"url"`
	Mode      Mode      `json:"mode"`
	OutputDir string    `json:"output_dir"`
	Status    Status    `json:"status"`
	EndedAt   time.Time `json:"ended_at"`
	Summary   string    `json:"summary,omitempty"`
}

func (j *Job) HistoryEntry() HistoryEntry {
	status := StatusFailed
	switch j.Status {
	case StatusDone, StatusCanceled:
		status = j.Status
	}
	ended := j.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	tail := j.Log
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	return HistoryEntry{
		URL:       j.URL,
		Mode:      j.Mode,
		OutputDir: j.OutputDir,
		Status:    status,
		EndedAt:   ended,
		Summary:   strings.Join(tail, " "),
	}
}

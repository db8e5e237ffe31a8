package model

import "fmt"

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

var allowedTransitions = map[Status]map[Status]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusDone:     true,
		StatusFailed:   true,
		StatusCanceled: true,
	},
	StatusDone:     {},
	StatusFailed:   {},
	StatusCanceled: {},
}

func IsKnownStatus(status Status) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsTerminal reports whether no further transition can leave status.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *Job, toStatus Status, reason string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s url=%s)", from, toStatus, job.ID, job.URL)
	}
	job.Status = toStatus
	job.Reason = reason
	return nil
}

package queue

import (
	"errors"
	"fmt"
)

var (
	ErrJobRunning     = errors.New("job is running")
	ErrJobNotFound    = errors.New("job not found")
	ErrNothingRunning = errors.New("no job is running")

	ErrNoSuitableAudioTrack = errors.New("no suitable audio track: several languages offered and none marked original or matching the video language")
	ErrCanceled             = errors.New("canceled by user")
)

// ExitError is a download that ended with a non-zero exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("yt-dlp exited with code %d", e.Code)
}

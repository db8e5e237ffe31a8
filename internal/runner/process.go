// Package runner spawns an external process and reports its output and exit
// as an ordered stream of events.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

type EventKind int

const (
	EventLine EventKind = iota
	EventExit
	EventError
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Event is one message from a running process. A Process emits any number of
// EventLine values followed by exactly one EventExit or EventError.
type Event struct {
	Kind   EventKind
	Stream OutputStream
	Line   string
	Code   int
	Err    error
}

func Line(stream OutputStream, text string) Event {
	return Event{Kind: EventLine, Stream: stream, Line: text}
}

func Exit(code int) Event {
	return Event{Kind: EventExit, Code: code}
}

func Failure(err error) Event {
	return Event{Kind: EventError, Err: err}
}

// Handle is what callers need from a started process.
type Handle interface {
	Events() <-chan Event
	Cancel() error
}

type Spec struct {
	Path string
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides applied on top of the inherited environment.
	Env []string
}

type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the executable does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

type Process struct {
	cmd    *exec.Cmd
	events chan Event

	mu       sync.Mutex
	finished bool
}

func Start(spec Spec) (*Process, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, &SpawnError{Path: spec.Path, Err: exec.ErrNotFound}
	}
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	configureCommand(cmd)
	if len(spec.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), spec.Env)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: fmt.Errorf("setup stdout pipe: %w", err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: fmt.Errorf("setup stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}

	p := &Process{
		cmd:    cmd,
		events: make(chan Event, 64),
	}

	var wg sync.WaitGroup
	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			p.events <- Line(stream, scanner.Text())
		}
		if scanner.Err() != nil {
			_, _ = io.Copy(io.Discard, r)
		}
	}
	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)

	go func() {
		wg.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.finished = true
		p.mu.Unlock()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.events <- Exit(0)
		case errors.As(err, &exitErr):
			p.events <- Exit(exitErr.ExitCode())
		default:
			p.events <- Failure(err)
		}
		close(p.events)
	}()

	return p, nil
}

func (p *Process) Events() <-chan Event {
	return p.events
}

func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Cancel kills the process. Calling it after the process ended, or more than
// once, returns an error describing why nothing was killed.
func (p *Process) Cancel() error {
	p.mu.Lock()
	finished := p.finished
	p.mu.Unlock()
	if finished {
		return os.ErrProcessDone
	}
	if err := killProcess(p.cmd.Process); err != nil {
		return fmt.Errorf("kill pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// MergeEnv returns base with every KEY=VALUE in overrides replacing the same
// key; keys missing from base are appended.
func MergeEnv(base, overrides []string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, kv := range base {
		key := envKey(kv)
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	for _, kv := range overrides {
		key := envKey(kv)
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	return out
}

func envKey(kv string) string {
	key, _, _ := strings.Cut(kv, "=")
	if isWindows {
		return strings.ToUpper(key)
	}
	return key
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

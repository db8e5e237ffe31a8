package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, p *Process) ([]Event, Event) {
	t.Helper()
	var lines []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				t.Fatalf("events closed without terminal event")
			}
			if ev.Kind == EventLine {
				lines = append(lines, ev)
				continue
			}
			if _, more := <-p.Events(); more {
				t.Fatalf("expected channel to close after terminal event")
			}
			return lines, ev
		case <-timeout:
			t.Fatalf("timed out waiting for process events")
		}
	}
}

func TestStartStreamsLinesThenExit(t *testing.T) {
	path := writeScript(t, `
echo "first"
printf 'progress 1\rprogress 2\r'
echo "to stderr" >&2
echo "last"
exit 3
`)
	p, err := Start(Spec{Path: path})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	lines, term := collect(t, p)
	if term.Kind != EventExit || term.Code != 3 {
		t.Fatalf("unexpected terminal event: %+v", term)
	}

	var stdout []string
	sawStderr := false
	for _, ev := range lines {
		if ev.Stream == StreamStderr {
			sawStderr = ev.Line == "to stderr"
			continue
		}
		stdout = append(stdout, ev.Line)
	}
	want := []string{"first", "progress 1", "progress 2", "last"}
	if strings.Join(stdout, "|") != strings.Join(want, "|") {
		t.Fatalf("stdout order mismatch: got %q want %q", stdout, want)
	}
	if !sawStderr {
		t.Fatalf("expected stderr line in events: %+v", lines)
	}
}

func TestStartAppliesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, `
echo "dir=$(pwd)"
echo "val=$RUNNER_TEST_VALUE"
`)
	p, err := Start(Spec{Path: path, Dir: dir, Env: []string{"RUNNER_TEST_VALUE=42"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	lines, term := collect(t, p)
	if term.Kind != EventExit || term.Code != 0 {
		t.Fatalf("unexpected terminal event: %+v", term)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	got := map[string]bool{}
	for _, ev := range lines {
		got[ev.Line] = true
	}
	if !got["dir="+dir] && !got["dir="+resolved] {
		t.Fatalf("working directory not applied: %+v", lines)
	}
	if !got["val=42"] {
		t.Fatalf("env override not applied: %+v", lines)
	}
}

func TestStartMissingExecutable(t *testing.T) {
	_, err := Start(Spec{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	if err == nil {
		t.Fatalf("expected spawn error")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %T", err)
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
}

func TestCancelKillsRunningProcess(t *testing.T) {
	path := writeScript(t, `
echo "started"
sleep 30
echo "never"
`)
	p, err := Start(Spec{Path: path})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first := <-p.Events()
	if first.Line != "started" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if err := p.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	lines, term := collect(t, p)
	for _, ev := range lines {
		if ev.Line == "never" {
			t.Fatalf("process kept running after cancel")
		}
	}
	if term.Kind != EventExit || term.Code == 0 {
		t.Fatalf("expected non-zero exit after kill, got %+v", term)
	}
	if err := p.Cancel(); err == nil {
		t.Fatalf("expected cancel after exit to report an error")
	}
}

func TestMergeEnvReplacesAndAppends(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root"}
	got := MergeEnv(base, []string{"PATH=/opt/bin:/usr/bin", "EXTRA=1"})
	want := []string{"PATH=/opt/bin:/usr/bin", "HOME=/root", "EXTRA=1"}
	if strings.Join(got, ";") != strings.Join(want, ";") {
		t.Fatalf("merge mismatch: got %q want %q", got, want)
	}
}

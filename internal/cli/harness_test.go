package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ytdlp-queue/internal/config"
	"ytdlp-queue/internal/history"
	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/store"
)

const fakeYtdlpScript = `#!/usr/bin/env bash
set -euo pipefail
out=""
url=""
probe=0
prev=""
for a in "$@"; do
  if [ "$a" = "-J" ]; then probe=1; fi
  if [ "$prev" = "-P" ]; then out="$a"; fi
  prev="$a"
  url="$a"
done
if [ "$probe" = 1 ]; then
  echo '{"title":"Clip","language":"en","formats":[{"format_id":"140","acodec":"mp4a.40.2","vcodec":"none","abr":128,"language":"en"},{"format_id":"137","acodec":"none","vcodec":"avc1","height":1080}]}'
  exit 0
fi
case "$url" in
  *broken*) echo "ERROR: fragment 1 not found" >&2; exit 1 ;;
esac
echo "[download]  50.0% of 1.00MiB"
echo "[download] 100% of 1.00MiB"
touch "$out/video.mp4"
`

type harness struct {
	configPath string
	outputDir  string
	stateDir   string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(fakeYtdlpScript), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))

	h := harness{
		configPath: filepath.Join(tmp, "config", "config.yaml"),
		outputDir:  filepath.Join(tmp, "out"),
		stateDir:   filepath.Join(tmp, "state"),
	}
	if err := os.MkdirAll(h.outputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	settings := config.Default()
	settings.OutputDir = h.outputDir
	settings.StateDir = h.stateDir
	settings.JSRuntime = "auto"
	settings.LogLevel = "error"
	if err := config.Save(h.configPath, settings); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestHarnessRunRecordsHistoryAndSurvivesFailure(t *testing.T) {
	h := newHarness(t)
	urlFile := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(urlFile, []byte("https://example.com/broken\n\nhttps://example.com/ok\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Run([]string{"run", "--config", h.configPath, "--file", urlFile, "https://example.com/ok"})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 jobs failed") {
		t.Fatalf("expected one failed job, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(h.outputDir, "video.mp4")); err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}

	hs, err := history.Open(filepath.Join(h.stateDir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = hs.Close()
	}()
	entries, err := hs.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	byURL := map[string]model.HistoryEntry{}
	for _, e := range entries {
		byURL[e.URL] = e
	}
	if byURL["https://example.com/ok"].Status != model.StatusDone {
		t.Fatalf("ok job not recorded as done: %+v", byURL["https://example.com/ok"])
	}
	broken := byURL["https://example.com/broken"]
	if broken.Status != model.StatusFailed || !strings.Contains(broken.Summary, "fragment 1 not found") {
		t.Fatalf("broken job not recorded as failed with its output: %+v", broken)
	}

	if _, err := os.Stat(filepath.Join(h.stateDir, ".queue.lock")); !os.IsNotExist(err) {
		t.Fatalf("queue lock should be released after run, stat err=%v", err)
	}
}

func TestHarnessRunRefusesWhileLocked(t *testing.T) {
	h := newHarness(t)
	lock, err := store.AcquireQueueLock(h.stateDir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = lock.Release()
	}()

	err = Run([]string{"run", "--config", h.configPath, "https://example.com/ok"})
	if !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestHarnessRunRequiresURLs(t *testing.T) {
	h := newHarness(t)
	if err := Run([]string{"run", "--config", h.configPath}); err == nil {
		t.Fatalf("expected error without URLs")
	}
	if err := Run([]string{"run", "--config", h.configPath, "--mode", "karaoke", "https://a"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestHarnessSettingsSet(t *testing.T) {
	h := newHarness(t)
	if err := Run([]string{"settings", "--config", h.configPath, "--set", "mode=audio", "--set", "audio_format=opus"}); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	s, err := config.Load(h.configPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode != "audio" || s.AudioFormat != "opus" || s.OutputDir != h.outputDir {
		t.Fatalf("unexpected settings after update: %+v", s)
	}

	if err := Run([]string{"settings", "--config", h.configPath, "--set", "audio_format=wma"}); err == nil {
		t.Fatalf("expected invalid audio format to be rejected")
	}
	if err := Run([]string{"settings", "--config", h.configPath, "--set", "colour=blue"}); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	s, err = config.Load(h.configPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.AudioFormat != "opus" {
		t.Fatalf("rejected update must not be saved, got %q", s.AudioFormat)
	}
}

func TestHarnessProbeAndHistory(t *testing.T) {
	h := newHarness(t)
	if err := Run([]string{"probe", "--config", h.configPath, "--json", "https://example.com/ok"}); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := Run([]string{"probe", "--config", h.configPath}); err == nil {
		t.Fatalf("expected probe without URL to fail")
	}
	if err := Run([]string{"history", "--config", h.configPath}); err != nil {
		t.Fatalf("history: %v", err)
	}
}

func TestCollectURLs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(file, []byte("https://b\nhttps://c\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := collectURLs([]string{"https://a", "-", "https://b"}, file, strings.NewReader("https://d\n\nhttps://a\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := "https://a,https://d,https://b,https://c"
	if strings.Join(got, ",") != want {
		t.Fatalf("collectURLs() = %v, want %s", got, want)
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := Run([]string{"bogus"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

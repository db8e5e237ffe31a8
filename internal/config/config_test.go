package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", "")

	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.OutputDir != filepath.Join(home, "Downloads") {
		t.Errorf("OutputDir = %q, want Downloads under home", s.OutputDir)
	}
	if s.JSRuntime != "node" || s.ExtractorArgs != DefaultExtractorArgs || s.AudioFormat != "mp3" || s.Mode != "video" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.StateDir != filepath.Join(home, ".local", "state", "ytdlp-queue") {
		t.Errorf("StateDir = %q", s.StateDir)
	}
	if got := s.HistoryDBPath(); got != filepath.Join(s.StateDir, "history.db") {
		t.Errorf("HistoryDBPath() = %q", got)
	}
}

func TestLoad_FromFileNormalizes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output_dir: ~/Media
mode: Audio-Only
audio_format: " FLAC "
js_runtime: ""
playlist_enabled: true
history_path: /var/lib/q/history.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.OutputDir != filepath.Join(home, "Media") {
		t.Errorf("OutputDir = %q", s.OutputDir)
	}
	if s.Mode != "audio" || s.AudioFormat != "flac" || s.JSRuntime != "node" || !s.PlaylistEnabled {
		t.Errorf("unexpected normalized settings: %+v", s)
	}
	if s.HistoryDBPath() != "/var/lib/q/history.db" {
		t.Errorf("HistoryDBPath() = %q", s.HistoryDBPath())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	s := Default()
	s.OutputDir = "/data/out"
	if err := s.Set("playlist_enabled", "yes"); err == nil {
		t.Fatalf("expected invalid bool to fail")
	}
	if err := s.Set("playlist_enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("mode", "audio"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("colour", "blue"); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
	if err := Save(path, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/data/out" || !got.PlaylistEnabled || got.ModeValue() != "audio" {
		t.Errorf("unexpected loaded settings: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	bin := t.TempDir()
	exe := filepath.Join(bin, "yt-dlp")
	if err := os.WriteFile(exe, []byte("#!/usr/bin/env bash\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	ok := Default()
	ok.YtdlpPath = exe
	ok.OutputDir = t.TempDir()
	if err := Validate(ok); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := ok
	bad.OutputDir = ""
	bad.Mode = "karaoke"
	bad.AudioFormat = "wma"
	bad.JSRuntime = "python"
	bad.YtdlpPath = filepath.Join(bin, "missing", "yt-dlp")
	err := Validate(bad)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"output_dir", "karaoke", "wma", "python", "not found"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error %q does not mention %q", err, want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/xdg", "ytdlp-queue", "config.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestDoctorReportsMissingTools(t *testing.T) {
	tmp := t.TempDir()
	s := Default()
	s.YtdlpPath = filepath.Join(tmp, "missing", "yt-dlp")
	s.FFmpegLocation = filepath.Join(tmp, "no-ffmpeg")
	s.JSRuntime = "auto"
	s.OutputDir = filepath.Join(tmp, "out")
	s.StateDir = filepath.Join(tmp, "state")

	res := Doctor(s, filepath.Join(tmp, "cfg", "config.yaml"))
	if res.OK {
		t.Fatalf("expected doctor to fail")
	}
	byName := map[string]DoctorCheck{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	if byName["dependency:yt-dlp"].OK || !strings.Contains(byName["dependency:yt-dlp"].Message, "not found at") {
		t.Errorf("unexpected yt-dlp check: %+v", byName["dependency:yt-dlp"])
	}
	if byName["dependency:ffmpeg"].OK {
		t.Errorf("ffmpeg check should fail: %+v", byName["dependency:ffmpeg"])
	}
	if !byName["dependency:js-runtime"].OK {
		t.Errorf("auto js runtime should pass: %+v", byName["dependency:js-runtime"])
	}
	for _, name := range []string{"directory:output", "directory:state", "directory:config"} {
		if !byName[name].OK {
			t.Errorf("%s should be writable: %+v", name, byName[name])
		}
	}
	if byName["queue-lock"].Message != "free" {
		t.Errorf("unexpected lock check: %+v", byName["queue-lock"])
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ytdlp-queue/internal/store"
	"ytdlp-queue/internal/ytdlp"
)

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor checks the external tools and directories the queue depends on.
func Doctor(s Settings, configPath string) DoctorResult {
	checks := make([]DoctorCheck, 0, 7)
	dep := ytdlp.DependencyStatus(s.Tools())
	checks = append(checks, DoctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp", s.YtdlpPath),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg", s.FFmpegLocation),
	})

	jsCheck := DoctorCheck{Name: "dependency:js-runtime", OK: true}
	if runtime, err := ytdlp.CheckJSRuntime(s.JSRuntime); err != nil {
		jsCheck.OK = false
		jsCheck.Message = err.Error()
	} else {
		jsCheck.Message = "using " + runtime
	}
	checks = append(checks, jsCheck)

	settingsCheck := DoctorCheck{Name: "settings", OK: true, Message: "valid"}
	if err := Validate(s); err != nil {
		settingsCheck.OK = false
		settingsCheck.Message = strings.ReplaceAll(err.Error(), "\n", "; ")
	}
	checks = append(checks, settingsCheck)

	for _, dir := range []struct{ name, path string }{
		{"directory:output", s.OutputDir},
		{"directory:state", s.StateDir},
		{"directory:config", filepath.Dir(configPath)},
	} {
		ok, msg := ensureWritableDir(dir.path)
		checks = append(checks, DoctorCheck{Name: dir.name, OK: ok, Message: msg})
	}

	lockCheck := DoctorCheck{Name: "queue-lock", OK: true, Message: "free"}
	if owner, err := store.ReadLockOwner(s.StateDir); err == nil {
		lockCheck.Message = fmt.Sprintf("held by pid %d on %s since %s", owner.PID, owner.Hostname, owner.CreatedAt)
	}
	checks = append(checks, lockCheck)

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name, configured string) string {
	if ok {
		return name + " found at " + path
	}
	if strings.TrimSpace(configured) != "" {
		return name + " not found at " + configured
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := store.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "ytdlp-queue-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}

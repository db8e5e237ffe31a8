package ytdlp

import (
	"os"
	"path/filepath"
	"strings"
)

// SearchPath builds the PATH handed to yt-dlp so it can find ffmpeg and any
// helper installed next to it: the yt-dlp directory, the ffmpeg location, then
// the inherited system path. Entries are trimmed and deduplicated in order.
// It returns "" when there is nothing to set.
func SearchPath(ytdlpPath, ffmpegLocation, systemPath string) string {
	segments := make([]string, 0, 3)
	if dir := toolDir(ytdlpPath); dir != "" && dir != "." {
		segments = append(segments, dir)
	}
	if loc := strings.TrimSpace(ffmpegLocation); loc != "" {
		segments = append(segments, loc)
	}
	if sp := strings.TrimSpace(systemPath); sp != "" {
		segments = append(segments, sp)
	}

	sep := string(os.PathListSeparator)
	out := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, segment := range segments {
		for _, part := range strings.Split(segment, sep) {
			v := strings.TrimSpace(part)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}

// SystemPath is the PATH inherited by this process.
func SystemPath() string {
	return os.Getenv("PATH")
}

func toolDir(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	if !strings.ContainsAny(p, `/\`) {
		return "."
	}
	return filepath.Dir(filepath.FromSlash(p))
}

package ytdlp

import (
	"os"
	"strings"
	"testing"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05", 42.3, true},
		{"[download] 100% of 10.00MiB", 100, true},
		{"[download]\t7% of ~3MiB", 7, true},
		{"[download] Destination: file.mp4", 0, false},
		{"[ffmpeg] 50% done", 0, false},
		{"[download]42%", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseProgress(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseProgress(%q) = %v,%v want %v,%v", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSearchPath(t *testing.T) {
	sep := string(os.PathListSeparator)
	got := SearchPath("/opt/yt/yt-dlp", " /opt/ffmpeg/bin ", strings.Join([]string{"/usr/bin", "", "/opt/yt", " /bin "}, sep))
	want := strings.Join([]string{"/opt/yt", "/opt/ffmpeg/bin", "/usr/bin", "/bin"}, sep)
	if got != want {
		t.Fatalf("search path mismatch: got %q want %q", got, want)
	}

	if got := SearchPath("yt-dlp", "", ""); got != "" {
		t.Fatalf("expected empty search path, got %q", got)
	}
	if got := SearchPath("", "/ff", ""); got != "/ff" {
		t.Fatalf("unexpected search path: %q", got)
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"ytdlp-queue/internal/config"
	"ytdlp-queue/internal/queue"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdoutIsTTY() bool {
	return isTTY(os.Stdout)
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// resolveConfigPath returns the --config value, or the default location.
func resolveConfigPath(flagValue string) (string, error) {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

func loadSettings(flagValue string) (config.Settings, string, error) {
	path, err := resolveConfigPath(flagValue)
	if err != nil {
		return config.Settings{}, "", err
	}
	s, err := config.Load(path)
	if err != nil {
		return config.Settings{}, "", err
	}
	return s, path, nil
}

// collectURLs merges positional URLs, a URL file and stdin ("-") into one
// deduplicated list.
func collectURLs(positional []string, file string, stdin io.Reader) ([]string, error) {
	var b strings.Builder
	for _, arg := range positional {
		if strings.TrimSpace(arg) == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("read URLs from stdin: %w", err)
			}
			b.Write(data)
			b.WriteByte('\n')
			continue
		}
		b.WriteString(arg)
		b.WriteByte('\n')
	}
	if f := strings.TrimSpace(file); f != "" {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read URL file: %w", err)
		}
		b.Write(data)
	}
	return queue.ParseURLs(b.String()), nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func listWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	half := maxRows / 2
	start := cursor - half
	if start < 0 {
		start = 0
	}
	end := start + maxRows
	if end > total {
		end = total
		start = end - maxRows
	}
	return start, end
}

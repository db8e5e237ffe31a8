package queue

import "strings"

// ParseURLs splits batch input into one URL per line. Lines are trimmed,
// blanks dropped, and duplicates removed keeping the first occurrence.
func ParseURLs(input string) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		v := strings.TrimSpace(line)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

package ytdlp

import (
	"regexp"
	"strconv"
)

var reDownloadPct = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a "[download]  42.3%" line.
func ParseProgress(line string) (float64, bool) {
	m := reDownloadPct.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/fedihealth/internal/probe"
)

const notAvailable = "N/A"

// formatNumber formats an integer with comma separators.
// Example: 12345678 → "12,345,678".
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + insertCommas(s[1:])
	}
	return insertCommas(s)
}

// insertCommas inserts a comma every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}

// formatMS renders a latency as whole milliseconds, e.g. "123ms".
func formatMS(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// truncate cuts s to at most n runes, marking a cut with "...".
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// latencyOf returns the measured latency of a check, if it has one.
func latencyOf(res probe.Result, found bool) (time.Duration, bool) {
	if !found || res.Status == probe.StatusError {
		return 0, false
	}
	return res.Latency, true
}

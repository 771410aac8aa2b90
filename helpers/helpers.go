package helpers

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"
)

// FormatFloat renders f the way the host runtime prints floats: integral
// values keep a trailing ".0", very small or large values use an exponent.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// HumanDuration formats d as e.g. "1 hour 30 minutes".
func HumanDuration(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	return durafmt.Parse(d).String()
}

// IsBlank reports whether s has no non-space characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SplitKeyValue splits "key=value" at the first '='.
func SplitKeyValue(s string) (string, string, bool) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || IsBlank(key) {
		return "", "", false
	}
	return strings.TrimSpace(key), value, true
}

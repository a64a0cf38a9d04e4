package source

import (
	"math"
	"strconv"
	"strings"
)

// ParseCount parses the abbreviated counts third-party pages display, such as
// "+1.2K", "-300", "1,234,567 views", "2.5m" and "1B". Only the first word is
// read. Placeholders ("--", "N/A", ""), words, and values that are not finite
// or do not fit an int64 parse as 0 with ok=false.
func ParseCount(s string) (int64, bool) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", ""))
	if len(fields) == 0 {
		return 0, false
	}
	s = fields[0]
	if strings.Trim(s, "-") == "" || strings.EqualFold(s, "n/a") {
		return 0, false
	}

	sign := 1.0
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}

	multiplier := 1.0
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K', 'k':
			multiplier = 1e3
			s = s[:n-1]
		case 'M', 'm':
			multiplier = 1e6
			s = s[:n-1]
		case 'B', 'b':
			multiplier = 1e9
			s = s[:n-1]
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	v = math.Round(sign * v * multiplier)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, false
	}
	return int64(v), true
}

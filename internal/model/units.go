package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecondsToMicros converts seconds to microseconds.
func SecondsToMicros(s float64) float64 {
	return s * 1e6
}

// DurationToMicros converts a time.Duration to microseconds.
func DurationToMicros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// ParseCount parses an integer counter that may contain thousands
// separators, such as "1,024".
func ParseCount(s string) (int64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return 0, fmt.Errorf("empty count")
	}
	return strconv.ParseInt(clean, 10, 64)
}

// ParseFloat parses a decimal number that may contain thousands separators
// or a trailing percent sign.
func ParseFloat(s string) (float64, error) {
	clean := strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), "%")
	if clean == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(clean, 64)
}

// ParseMicros parses a duration such as "1.5ms", "250us", "2s" or a bare
// number (already microseconds) and returns microseconds.
func ParseMicros(s string) (float64, error) {
	s = strings.TrimSpace(s)
	units := []struct {
		suffix string
		scale  float64
	}{
		{"ns", 1e-3},
		{"us", 1},
		{"µs", 1},
		{"ms", 1e3},
		{"s", 1e6},
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			return v * u.scale, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return v, nil
}

// Package formatting converts byte sizes between counts and the human-readable
// strings used in configuration (e.g. "4MB").
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const unitBase = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// ParseBytes parses a size such as "512", "64KB", or "1.5 mb" into a byte
// count. Units are base-1024 and case-insensitive; a bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	exp := 0
	if unit := strings.ToUpper(m[2]); unit != "" {
		exp = slices.Index(units, unit)
		if exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
		}
	}

	size := value * math.Pow(unitBase, float64(exp))
	if size > math.MaxInt64 {
		return 0, fmt.Errorf("byte size out of range: %q", s)
	}
	return int64(size), nil
}

// FormatBytes renders n with the largest unit that keeps the value at or above
// one, using precision decimal places.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	value := float64(n)
	exp := 0
	for math.Abs(value) >= unitBase && exp < len(units)-1 {
		value /= unitBase
		exp++
	}

	return strconv.FormatFloat(value, 'f', precision, 64) + " " + units[exp]
}

package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize converts a size string such as "64KiB", "1.5MB" or "512" to
// bytes. SI and IEC suffixes are both accepted; a bare number is raw bytes.
// Empty string and "0" mean zero.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(n), nil
}

// ParseRate parses "5MB/s", "100KiB/s" or "0" into bytes per second. The
// "/s" suffix is optional.
func ParseRate(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(trimmed), "/s") {
		trimmed = trimmed[:len(trimmed)-2]
	}

	n, err := ParseSize(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}

	return n, nil
}

package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses one Go-duration-string config field. Empty means
// "not set" and yields zero; negatives are rejected so a typo'd "-10s" cannot
// turn a retry delay or poll tick into a busy loop.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback: every timing
// knob in this config has a documented default, and an omitted (or explicit
// zero) field takes it.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	switch {
	case err != nil:
		return 0, err
	case d <= 0:
		return def, nil
	default:
		return d, nil
	}
}

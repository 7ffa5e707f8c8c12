package store

import (
	"fmt"
	"strconv"
	"time"
)

// TTL bounds for persisted runs.
const (
	// DefaultTTLSeconds keeps an untouched run for one week.
	DefaultTTLSeconds = 7 * 24 * 60 * 60

	// MinTTLSeconds is the shortest accepted TTL. Zero disables expiry.
	MinTTLSeconds = 60

	// MaxTTLSeconds is the longest accepted TTL (90 days).
	MaxTTLSeconds = 90 * 24 * 60 * 60

	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrInvalidTTL is returned for TTLs outside the accepted range.
var ErrInvalidTTL = fmt.Errorf("TTL must be 0 or between %d and %d seconds", MinTTLSeconds, MaxTTLSeconds)

// ValidateTTL checks seconds against the accepted range.
func ValidateTTL(seconds int) error {
	if seconds == 0 {
		return nil
	}
	if seconds < MinTTLSeconds || seconds > MaxTTLSeconds {
		return fmt.Errorf("%w: got %d", ErrInvalidTTL, seconds)
	}
	return nil
}

// ParseTTL accepts integer seconds ("3600") or a duration ("36h").
func ParseTTL(s string) (int, error) {
	seconds, err := strconv.Atoi(s)
	if err != nil {
		d, durErr := time.ParseDuration(s)
		if durErr != nil {
			return 0, fmt.Errorf("invalid TTL format: %w", durErr)
		}
		seconds = int(d.Seconds())
	}
	if vErr := ValidateTTL(seconds); vErr != nil {
		return 0, vErr
	}
	return seconds, nil
}

// FormatDuration renders d compactly, e.g. "45s", "5m", "2h30m", "3d2h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}

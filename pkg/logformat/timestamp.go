package logformat

import (
	"regexp"
	"time"
)

// TimestampResolver detects and parses timestamps from log lines,
// returning the core's (seconds, millis) shape instead of a *time.Time
// so a LogFormat can pack the result straight into a LogLine.
type TimestampResolver struct {
	patterns []timestampPattern
	baseTime int64 // used for time-only formats lacking a date component
}

type timestampPattern struct {
	regex  *regexp.Regexp
	layout string
}

// NewTimestampResolver creates a resolver with common timestamp formats.
func NewTimestampResolver() *TimestampResolver {
	return &TimestampResolver{
		patterns: []timestampPattern{
			// ISO 8601 / RFC 3339 variants
			// 2024-01-15T10:30:45.123Z
			// 2024-01-15T10:30:45.123+00:00
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{3})?(?:Z|[+-]\d{2}:\d{2})?)`),
				layout: time.RFC3339,
			},
			// Common log format with milliseconds
			// 2024-01-15 10:30:45.123
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`),
				layout: "2006-01-02 15:04:05.000",
			},
			// Common log format without milliseconds
			// 2024-01-15 10:30:45
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
				layout: "2006-01-02 15:04:05",
			},
			// Syslog format
			// Jan 15 10:30:45
			{
				regex:  regexp.MustCompile(`([A-Z][a-z]{2} \d{1,2} \d{2}:\d{2}:\d{2})`),
				layout: "Jan 2 15:04:05",
			},
			// Apache/nginx common log format
			// 15/Jan/2024:10:30:45 +0000
			{
				regex:  regexp.MustCompile(`(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})`),
				layout: "02/Jan/2006:15:04:05 -0700",
			},
			// Unix timestamp (seconds)
			// 1705315845
			{
				regex:  regexp.MustCompile(`^(\d{10})(?:\D|$)`),
				layout: "unix",
			},
			// Unix timestamp with milliseconds
			// 1705315845123
			{
				regex:  regexp.MustCompile(`^(\d{13})(?:\D|$)`),
				layout: "unix_ms",
			},
			// Bracket format common in many loggers
			// [2024-01-15 10:30:45.123]
			{
				regex:  regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{3})?)\]`),
				layout: "2006-01-02 15:04:05.000",
			},
			// Time only (assume the format's base time's date)
			// 10:30:45.123
			{
				regex:  regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d{3})?)`),
				layout: "15:04:05.000",
			},
		},
	}
}

// SetBaseTime records the anchor date used to complete time-only or
// year-only timestamps.
func (p *TimestampResolver) SetBaseTime(seconds int64) {
	p.baseTime = seconds
}

// Resolve attempts to extract a timestamp from a log line, returning
// its Unix seconds and millisecond remainder. ok is false when no
// pattern in the table matched.
func (p *TimestampResolver) Resolve(content []byte) (sec int64, millis int16, ok bool) {
	line := string(content)
	base := time.Unix(p.baseTime, 0)
	if p.baseTime == 0 {
		base = time.Now()
	}

	for _, pattern := range p.patterns {
		matches := pattern.regex.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}

		timeStr := matches[1]

		if pattern.layout == "unix" {
			if ts, ok2 := parseUnixTimestamp(timeStr); ok2 {
				return ts, 0, true
			}
			continue
		}

		if pattern.layout == "unix_ms" {
			if ts, ok2 := parseUnixTimestamp(timeStr); ok2 {
				return ts / 1000, int16(ts % 1000), true
			}
			continue
		}

		layouts := []string{pattern.layout}
		if pattern.layout == "2006-01-02 15:04:05.000" {
			layouts = append(layouts, "2006-01-02 15:04:05")
		}
		if pattern.layout == "15:04:05.000" {
			layouts = append(layouts, "15:04:05")
		}

		for _, layout := range layouts {
			t, err := time.Parse(layout, timeStr)
			if err != nil {
				continue
			}
			switch layout {
			case "15:04:05", "15:04:05.000":
				t = time.Date(base.Year(), base.Month(), base.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			case "Jan 2 15:04:05":
				t = time.Date(base.Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			}
			return t.Unix(), int16(t.Nanosecond() / 1_000_000), true
		}
	}

	return 0, 0, false
}

// parseUnixTimestamp parses a string of decimal digits as an integer.
func parseUnixTimestamp(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

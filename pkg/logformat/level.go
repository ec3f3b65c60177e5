package logformat

import (
	"strings"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
)

// LevelClassifier detects a logfile.Level from line content by substring
// matching against configured patterns, returning the core's packed
// Level type so formats can OR it straight into a LogLine.
type LevelClassifier struct {
	patterns map[logfile.Level][]string
}

// NewLevelClassifier builds a classifier from configured patterns.
func NewLevelClassifier(cfg *config.LogLevelConfig) *LevelClassifier {
	return &LevelClassifier{
		patterns: map[logfile.Level][]string{
			logfile.LevelTrace: cfg.TracePatterns,
			logfile.LevelDebug: cfg.DebugPatterns,
			logfile.LevelInfo:  cfg.InfoPatterns,
			logfile.LevelWarn:  cfg.WarnPatterns,
			logfile.LevelError: cfg.ErrorPatterns,
			logfile.LevelFatal: cfg.FatalPatterns,
		},
	}
}

// Detect returns the most severe level whose pattern appears in content.
func (c *LevelClassifier) Detect(content []byte) logfile.Level {
	line := string(content)

	order := []logfile.Level{
		logfile.LevelFatal, logfile.LevelError, logfile.LevelWarn,
		logfile.LevelInfo, logfile.LevelDebug, logfile.LevelTrace,
	}
	for _, lvl := range order {
		for _, pattern := range c.patterns[lvl] {
			if strings.Contains(line, pattern) {
				return lvl
			}
		}
	}
	return logfile.LevelUnknown
}

// classifyLevelWord maps a bare level token (as captured by
// BracketFormat) to a logfile.Level without needing the full pattern
// table.
func classifyLevelWord(word string) logfile.Level {
	switch strings.ToUpper(word) {
	case "TRACE", "TRC":
		return logfile.LevelTrace
	case "DEBUG", "DBG":
		return logfile.LevelDebug
	case "INFO", "INF":
		return logfile.LevelInfo
	case "WARN", "WARNING", "WRN":
		return logfile.LevelWarn
	case "ERROR", "ERR":
		return logfile.LevelError
	case "FATAL", "CRITICAL", "FTL":
		return logfile.LevelFatal
	default:
		return logfile.LevelUnknown
	}
}

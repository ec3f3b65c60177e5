package logformat

import (
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
)

// BracketFormat recognizes lines of the shape "[10:30:45.123] [INFO] ..."
// It is deliberately NOT time-ordered: this bracketed style is also used
// by interleaved multi-threaded loggers where two threads can each hold
// a slightly stale clock reading, so on out-of-order input the driver
// flags the index for a re-sort rather than clamping timestamps. It's
// implemented with
// github.com/dlclark/regexp2 rather than stdlib regexp because the
// anchor needs a negative lookahead — "[INFO]" but not "[INFO]]" —
// that Go's RE2-based regexp cannot express.
type BracketFormat struct {
	pattern string
	re      *regexp2.Regexp
}

// NewBracketFormat compiles the bracket pattern from cfg.
func NewBracketFormat(cfg *config.FormatsConfig) *BracketFormat {
	re := regexp2.MustCompile(cfg.BracketPattern, regexp2.None)
	return &BracketFormat{pattern: cfg.BracketPattern, re: re}
}

func (f *BracketFormat) Name() string { return "bracket" }

func (f *BracketFormat) MatchName(string) bool { return true }

func (f *BracketFormat) Clear() {}

func (f *BracketFormat) Specialized() logfile.LogFormat {
	return &BracketFormat{pattern: f.pattern, re: regexp2.MustCompile(f.pattern, regexp2.None)}
}

func (f *BracketFormat) SetBaseTime(int64) {
	// The bracket format's timestamps are wall-clock time-of-day only
	// and unrelated to any base date; nothing to anchor here.
}

// TimeOrdered is false: see the type doc comment.
func (f *BracketFormat) TimeOrdered() bool { return false }

// Scan matches the "[time] [LEVEL] " prefix and appends an anchor line
// carrying that time-of-day and level, seconds resolved against the
// Unix epoch day boundary so distinct lines with the same time-of-day
// sort together.
func (f *BracketFormat) Scan(lf *logfile.LogFile, idx *logfile.Index, li logfile.LineInfo, data []byte) logfile.ScanResult {
	m, err := f.re.FindStringMatch(string(data))
	if err != nil || m == nil {
		return logfile.ScanNoMatch
	}

	timeGroup := m.GroupByName("time")
	levelGroup := m.GroupByName("level")
	if timeGroup == nil {
		return logfile.ScanNoMatch
	}

	sec, millis, ok := parseClockTime(timeGroup.String())
	if !ok {
		return logfile.ScanNoMatch
	}

	lvl := logfile.LevelUnknown
	if levelGroup != nil {
		lvl = classifyLevelWord(levelGroup.String())
	}

	ll := logfile.NewLogLine(li.FileRange.Offset, sec, millis, lvl, 0, 0)
	ll.SetValidUTF(li.ValidUTF)
	idx.Push(ll)
	return logfile.ScanMatch
}

// GetSubline strips the recognized "[time] [LEVEL] " prefix from the
// displayed message.
func (f *BracketFormat) GetSubline(ll logfile.LogLine, data []byte, expandContinues bool) []byte {
	m, err := f.re.FindStringMatch(string(data))
	if err != nil || m == nil {
		return data
	}
	end := m.Index + m.Length
	if end < 0 || end > len(data) {
		return data
	}
	return data[end:]
}

// parseClockTime parses "HH:MM:SS" or "HH:MM:SS.mmm" into seconds since
// the day's start plus a millisecond remainder.
func parseClockTime(s string) (sec int64, millis int16, ok bool) {
	var h, m, sc, ms int
	if n, err := fmt.Sscanf(s, "%d:%d:%d.%d", &h, &m, &sc, &ms); err == nil && n == 4 {
		return int64(h*3600+m*60+sc), int16(ms), true
	}
	if n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sc); err == nil && n == 3 {
		return int64(h*3600+m*60+sc), 0, true
	}
	return 0, 0, false
}

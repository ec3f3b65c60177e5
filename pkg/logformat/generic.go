package logformat

import (
	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
)

// GenericFormat is the catch-all, time-ordered format: any line carrying
// a timestamp the TimestampResolver recognizes anchors a new record;
// everything else is left for the driver's continuation fallback. It
// pairs a TimestampResolver with a LevelClassifier and wires both
// directly into the logfile.LogFormat contract.
type GenericFormat struct {
	ts    *TimestampResolver
	level *LevelClassifier
}

// NewGenericFormat builds the generic format from configured level
// patterns.
func NewGenericFormat(cfg *config.LogLevelConfig) *GenericFormat {
	return &GenericFormat{
		ts:    NewTimestampResolver(),
		level: NewLevelClassifier(cfg),
	}
}

func (f *GenericFormat) Name() string { return "generic" }

// MatchName accepts any filename: it is always registered last.
func (f *GenericFormat) MatchName(string) bool { return true }

func (f *GenericFormat) Clear() {}

func (f *GenericFormat) Specialized() logfile.LogFormat {
	return &GenericFormat{ts: NewTimestampResolver(), level: f.level}
}

func (f *GenericFormat) SetBaseTime(seconds int64) { f.ts.SetBaseTime(seconds) }

func (f *GenericFormat) TimeOrdered() bool { return true }

// Scan recognizes a timestamp anywhere in the line's leading bytes and,
// on a match, appends a new anchor record.
func (f *GenericFormat) Scan(lf *logfile.LogFile, idx *logfile.Index, li logfile.LineInfo, data []byte) logfile.ScanResult {
	sec, millis, ok := f.ts.Resolve(data)
	if !ok {
		return logfile.ScanNoMatch
	}

	lvl := f.level.Detect(data)
	ll := logfile.NewLogLine(li.FileRange.Offset, sec, millis, lvl, 0, 0)
	ll.SetValidUTF(li.ValidUTF)
	idx.Push(ll)
	return logfile.ScanMatch
}

// GetSubline returns the message unchanged; the generic format carries
// no structured prefix worth stripping.
func (f *GenericFormat) GetSubline(ll logfile.LogLine, data []byte, expandContinues bool) []byte {
	return data
}

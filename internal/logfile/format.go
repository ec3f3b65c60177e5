package logfile

// ScanResult is the outcome of a LogFormat.Scan call.
type ScanResult int

const (
	ScanMatch ScanResult = iota
	ScanNoMatch
	ScanIncomplete
)

// LogFormat recognizes and parses one log format. It is an external
// collaborator: the format registry supplies candidates, the core
// drives them.
type LogFormat interface {
	Name() string
	MatchName(filename string) bool
	Clear()
	// Specialized returns a clone dedicated to a single file, taken when
	// the format locks in for that file.
	Specialized() LogFormat
	// Scan inspects one physical line's bytes and either appends to idx,
	// extends the previous entry, or defers.
	Scan(lf *LogFile, idx *Index, li LineInfo, data []byte) ScanResult
	// GetSubline extracts the displayable message for a line, optionally
	// expanding continuation lines into the full record.
	GetSubline(ll LogLine, data []byte, expandContinues bool) []byte
	// TimeOrdered reports whether this format promises non-decreasing
	// timestamps within a file.
	TimeOrdered() bool
	// SetBaseTime supplies the time base used to resolve relative or
	// partial timestamps.
	SetBaseTime(seconds int64)
}

// FormatRegistry supplies candidate formats in a fixed, declared order
// for auto-detection.
type FormatRegistry interface {
	Formats() []LogFormat
}

// Package logfile turns an append-only byte stream into a time-ordered,
// continuation-aware sequence of LogLine records, driven by pluggable
// LineBuffer and LogFormat collaborators.
package logfile

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// maxUnrecognizedLines caps how many lines auto-detection will inspect
// before giving up on a file.
const maxUnrecognizedLines = 1000

// initialIndexRusageThreshold gates the rusage-delta bookkeeping in
// RebuildIndex to bulk initial indexing passes.
const initialIndexRusageThreshold = 512 * 1024

// RebuildResult is the outcome of a RebuildIndex call.
type RebuildResult int

const (
	NoNewLines RebuildResult = iota
	NewLines
	NewOrder
	Invalid
)

func (r RebuildResult) String() string {
	switch r {
	case NoNewLines:
		return "no-new-lines"
	case NewLines:
		return "new-lines"
	case NewOrder:
		return "new-order"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// OpenOptions configures LogFile construction.
type OpenOptions struct {
	// Path is the file to open. Required unless FD is supplied.
	Path string
	// FD is a pre-opened, read-only descriptor. If nil, Open resolves
	// Path, stats it, and opens it itself.
	FD *os.File
	// DetectFormat enables the auto-detection loop in the format driver.
	DetectFormat bool
	// Registry supplies candidate formats for auto-detection.
	Registry FormatRegistry
}

// lineLengthCache is a single-slot cache mapping the last-queried
// anchor offset to its computed length.
type lineLengthCache struct {
	offset int64
	length int64
}

// LogFile owns one LineBuffer, an optional locked LogFormat, and the
// index built from it.
type LogFile struct {
	path    string
	hasPath bool
	file    *os.File

	lineBuffer LineBuffer
	registry   FormatRegistry
	format     LogFormat
	detect     bool

	index                *Index
	indexSize            int64
	stat                 StatSnapshot
	contentID            uint64
	longestLine          int64
	partialLine          bool
	outOfTimeOrderCount  int
	sortNeeded           bool
	indexTime            int64
	textFormat           TextFormat
	nextLineCache        *lineLengthCache

	loglineObserver LoglineObserver
	logfileObserver LogfileObserver

	pollCount  int
	readCount  int
	closed     bool

	log *slog.Logger
}

// Open constructs a LogFile: resolve the path, stat it, require a
// regular file, open read-only, seed the content id, and reserve index
// capacity.
func Open(buf LineBuffer, opts OpenOptions) (*LogFile, error) {
	lf := &LogFile{
		lineBuffer: buf,
		registry:   opts.Registry,
		detect:     opts.DetectFormat,
		index:      NewIndex(),
		log:        slog.Default().With("component", "logfile"),
	}

	if opts.FD == nil {
		if opts.Path == "" {
			return nil, &Error{Kind: ErrKindPathResolution, Path: opts.Path, Err: errors.New("empty path")}
		}
		resolved, err := filepath.EvalSymlinks(opts.Path)
		if err != nil {
			return nil, &Error{Kind: ErrKindPathResolution, Path: opts.Path, Err: err}
		}
		fi, err := os.Stat(resolved)
		if err != nil {
			return nil, &Error{Kind: ErrKindStat, Path: opts.Path, Err: err}
		}
		if !fi.Mode().IsRegular() {
			return nil, &Error{Kind: ErrKindNotRegularFile, Path: opts.Path, Err: syscall.EINVAL}
		}
		f, err := os.OpenFile(resolved, os.O_RDONLY, 0)
		if err != nil {
			return nil, &Error{Kind: ErrKindOpen, Path: opts.Path, Err: err}
		}
		lf.file = f
		lf.path = opts.Path
		lf.hasPath = true
		lf.stat = snapshotStat(fi)
		lf.log.Debug("opened logfile", "path", opts.Path, "size", lf.stat.Size)
	} else {
		fi, err := opts.FD.Stat()
		if err != nil {
			return nil, &Error{Kind: ErrKindStat, Path: opts.Path, Err: err}
		}
		lf.file = opts.FD
		lf.path = opts.Path
		lf.hasPath = opts.Path != ""
		lf.stat = snapshotStat(fi)
	}

	lf.contentID = hashString(lf.path)
	lf.lineBuffer.SetFd(lf.file.Fd())

	return lf, nil
}

func hashString(s string) uint64 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}

func hashBytes(b []byte) uint64 {
	sum := md5.Sum(b)
	return binary.BigEndian.Uint64(sum[:8])
}

// Close releases the file descriptor. Safe to call multiple times.
func (lf *LogFile) Close() error {
	if lf.file == nil {
		return nil
	}
	err := lf.file.Close()
	lf.file = nil
	lf.closed = true
	return err
}

func (lf *LogFile) Path() string           { return lf.path }
func (lf *LogFile) Len() int               { return lf.index.Len() }
func (lf *LogFile) At(i int) LogLine       { return lf.index.At(i) }
func (lf *LogFile) IndexSize() int64       { return lf.indexSize }
func (lf *LogFile) ContentID() uint64      { return lf.contentID }
func (lf *LogFile) LongestLine() int64     { return lf.longestLine }
func (lf *LogFile) PartialLine() bool      { return lf.partialLine }
func (lf *LogFile) Format() LogFormat      { return lf.format }
func (lf *LogFile) TextFormat() TextFormat { return lf.textFormat }
func (lf *LogFile) StatSnapshot() StatSnapshot { return lf.stat }
func (lf *LogFile) Closed() bool           { return lf.closed }

func (lf *LogFile) SetLoglineObserver(o LoglineObserver) { lf.loglineObserver = o }
func (lf *LogFile) SetLogfileObserver(o LogfileObserver) { lf.logfileObserver = o }

// Exists reports whether the underlying file is still there. A file
// opened by descriptor only always exists; otherwise it must still
// resolve to the same (device, inode) and be at least as large as it
// was.
func (lf *LogFile) Exists() bool {
	if !lf.hasPath {
		return true
	}
	fi, err := os.Stat(lf.path)
	if err != nil {
		return false
	}
	st := snapshotStat(fi)
	return st.Dev == lf.stat.Dev && st.Ino == lf.stat.Ino && lf.stat.Size <= st.Size
}

// setFormatBaseTime seeds f's base date from the line buffer's file-time
// hint, or from the file's mtime when the buffer reports none, for
// formats whose timestamps carry no year (or no date at all).
func (lf *LogFile) setFormatBaseTime(f LogFormat) {
	ft := lf.lineBuffer.GetFileTime()
	if ft == 0 {
		ft = lf.stat.ModTime.Unix()
	}
	f.SetBaseTime(ft)
}

// RebuildIndex is the incremental rebuild engine: it rolls back the
// last anchor, re-scans from there, and appends whatever is new.
func (lf *LogFile) RebuildIndex() (RebuildResult, error) {
	if lf.file == nil {
		return NoNewLines, nil
	}

	lf.pollCount++

	fi, err := lf.file.Stat()
	if err != nil {
		return NoNewLines, &Error{Kind: ErrKindStat, Path: lf.path, Err: err}
	}
	st := snapshotStat(fi)

	if st.Size < lf.stat.Size || (lf.stat.Size == st.Size && !lf.stat.ModTime.Equal(st.ModTime)) {
		lf.log.Debug("overwritten file detected, closing", "path", lf.path)
		lf.Close()
		return NoNewLines, nil
	}

	if !lf.lineBuffer.IsDataAvailable(lf.indexSize, st.Size) {
		lf.updateIndexTime(st)
		return NoNewLines, nil
	}

	lf.readCount++

	hasFormat := lf.format != nil
	recordRusage := lf.index.Len() == 1
	beginIndexSize := lf.indexSize
	var beginRusage rusageSnapshot
	if recordRusage {
		beginRusage = getrusageSelf()
	}

	var off int64
	rollback := 0
	if lf.index.Len() > 0 {
		off = lf.index.Back().Offset
		rollback = lf.index.TruncateTailAnchor()

		lf.lineBuffer.Clear()
		if lf.index.Len() > 0 {
			checkOff := lf.index.Back().Offset
			if _, err := lf.lineBuffer.ReadRange(FileRange{Offset: checkOff, Length: lf.indexSize - checkOff}); err != nil {
				lf.log.Debug("overwritten file detected during verification read, closing", "path", lf.path, "err", err)
				lf.Close()
				return Invalid, nil
			}
		}
	}

	if lf.loglineObserver != nil {
		lf.loglineObserver.LoglineRestart(lf, rollback)
	}

	sortNeeded := lf.sortNeeded
	lf.sortNeeded = false

	prevRange := FileRange{Offset: off}
	for {
		li, err := lf.lineBuffer.LoadNextLine(prevRange)
		if err != nil {
			lf.Close()
			return Invalid, nil
		}
		if li.FileRange.Empty() {
			break
		}
		prevRange = li.FileRange

		oldSize := lf.index.Len()
		// Update index_size before scanning so LineLength() works for
		// the recognizer.
		lf.indexSize = li.FileRange.NextOffset()

		if oldSize == 0 {
			avail := lf.lineBuffer.GetAvailable()
			if data, err := lf.lineBuffer.ReadRange(avail); err == nil {
				lf.textFormat = detectTextFormat(data)
			} else {
				lf.textFormat = TextFormatUnknown
			}
		}

		data, err := lf.lineBuffer.ReadRange(li.FileRange)
		if err != nil {
			lf.Close()
			return Invalid, nil
		}
		data = rtrimLineEndings(data)
		if int64(len(data)) > lf.longestLine {
			lf.longestLine = int64(len(data))
		}
		lf.partialLine = li.Partial

		if lf.processPrefix(li, data) {
			sortNeeded = true
		}

		if oldSize > lf.index.Len() {
			oldSize = 0
		}
		if lf.loglineObserver != nil {
			for i := oldSize; i < lf.index.Len(); i++ {
				lf.loglineObserver.LoglineNewLine(lf, i, data)
			}
		}
		if lf.logfileObserver != nil {
			lf.logfileObserver.LogfileIndexing(lf, lf.lineBuffer.GetReadOffset(li.FileRange.NextOffset()), st.Size)
		}

		if !hasFormat && lf.format != nil {
			// Format lock-in yield: let the caller observe the schema
			// transition before consuming more bytes.
			break
		}
	}

	if lf.loglineObserver != nil {
		lf.loglineObserver.LoglineEOF(lf)
	}

	if recordRusage && (prevRange.Offset-beginIndexSize) > initialIndexRusageThreshold {
		delta := getrusageSelf().sub(beginRusage)
		lf.log.Debug("initial index resource usage", "path", lf.path, "utime_us", delta.utime, "stime_us", delta.stime, "maxrss_kb", delta.maxrss)
	}

	lf.indexSize = prevRange.NextOffset()
	lf.stat = st

	result := NewLines
	if sortNeeded {
		result = NewOrder
	}

	lf.updateIndexTime(st)

	if lf.outOfTimeOrderCount > 0 {
		lf.log.Debug("out-of-time-order lines detected", "path", lf.path, "count", lf.outOfTimeOrderCount)
		lf.outOfTimeOrderCount = 0
	}

	return result, nil
}

func (lf *LogFile) updateIndexTime(st StatSnapshot) {
	lf.indexTime = lf.lineBuffer.GetFileTime()
	if lf.indexTime == 0 {
		lf.indexTime = st.ModTime.Unix()
	}
}

// processPrefix is the format-detection driver. It returns true when
// the caller should flag sort_needed.
func (lf *LogFile) processPrefix(li LineInfo, data []byte) bool {
	found := ScanNoMatch
	prescanSize := lf.index.Len()
	var prescanTime int64
	retval := false

	switch {
	case lf.format != nil:
		if lf.index.Len() > 0 {
			prescanTime = lf.index.At(0).Time
		}
		found = lf.format.Scan(lf, lf.index, li, data)

	case lf.detect && lf.registry != nil && lf.index.Len() < maxUnrecognizedLines:
		for _, cand := range lf.registry.Formats() {
			if !cand.MatchName(lf.path) {
				continue
			}
			cand.Clear()
			lf.setFormatBaseTime(cand)
			found = cand.Scan(lf, lf.index, li, data)
			if found == ScanMatch {
				lf.log.Debug("log format found", "path", lf.path, "format", cand.Name(), "at_line", lf.index.Len())
				lf.format = cand.Specialized()
				lf.setFormatBaseTime(lf.format)
				lf.contentID = hashBytes(data)

				last := lf.index.Back()
				for i := 0; i < lf.index.Len()-1; i++ {
					ll := lf.index.At(i)
					ll.SetTime(last.Time)
					ll.SetMillis(last.Millis)
					lf.index.Set(i, ll)
				}
				break
			}
		}
	}

	switch found {
	case ScanMatch:
		if lf.index.Len() > 0 {
			last := lf.index.Back()
			last.SetValidUTF(li.ValidUTF)
			lf.index.SetBack(last)
		}
		if prescanSize > 0 && lf.index.Len() > 0 && prescanTime != lf.index.At(0).Time {
			retval = true
		}
		if prescanSize > 0 && prescanSize < lf.index.Len() {
			secondToLast := lf.index.At(prescanSize - 1)
			latest := lf.index.At(prescanSize)
			if latest.Less(secondToLast) {
				if lf.format != nil && lf.format.TimeOrdered() {
					lf.outOfTimeOrderCount++
					for i := prescanSize; i < lf.index.Len(); i++ {
						l := lf.index.At(i)
						l.SetTimeSkew(true)
						l.SetTime(secondToLast.Time)
						l.SetMillis(secondToLast.Millis)
						lf.index.Set(i, l)
					}
				} else {
					retval = true
				}
			}
		}

	case ScanNoMatch:
		var lastFlags LevelAndFlags
		lastTime := lf.indexTime
		var lastMillis int16
		var lastMod, lastOp uint8

		if lf.index.Len() > 0 {
			ll := lf.index.Back()
			lastTime = ll.Time
			lastMillis = ll.Millis
			lastMod = ll.ModuleID
			lastOp = ll.OpID
			if lf.format != nil {
				lastFlags = ll.LevelAndFlags | FlagContinued
			} else {
				lastFlags = packLevel(LevelUnknown)
			}
		} else {
			lastFlags = packLevel(LevelUnknown)
		}

		newLine := LogLine{
			Offset:        li.FileRange.Offset,
			Time:          lastTime,
			Millis:        lastMillis,
			LevelAndFlags: lastFlags,
			ModuleID:      lastMod,
			OpID:          lastOp,
		}
		newLine.SetValidUTF(li.ValidUTF)
		lf.index.Push(newLine)

	case ScanIncomplete:
		// Defer; no append.
	}

	return retval
}

// LineLength returns the byte length of the line at pos, optionally
// including any continuation lines that follow it.
func (lf *LogFile) LineLength(pos int, includeContinues bool) int64 {
	ll := lf.index.At(pos)

	if !includeContinues && lf.nextLineCache != nil && lf.nextLineCache.offset == ll.Offset {
		return lf.nextLineCache.length
	}

	next := pos
	for {
		next++
		if next >= lf.index.Len() {
			break
		}
		nl := lf.index.At(next)
		if nl.Offset == ll.Offset || (includeContinues && nl.IsContinued()) {
			continue
		}
		break
	}

	var length int64
	if next >= lf.index.Len() {
		length = lf.indexSize - ll.Offset
		if length > 0 && !lf.partialLine {
			length--
		}
	} else {
		nl := lf.index.At(next)
		length = nl.Offset - ll.Offset - 1
		if !includeContinues {
			lf.nextLineCache = &lineLengthCache{offset: ll.Offset, length: length}
		}
	}
	return length
}

// ReadLine returns the printable message bytes for a single indexed
// line.
func (lf *LogFile) ReadLine(pos int) ([]byte, error) {
	ll := lf.index.At(pos)
	fr := FileRange{Offset: ll.Offset, Length: lf.LineLength(pos, false)}
	data, err := lf.lineBuffer.ReadRange(fr)
	if err != nil {
		return nil, err
	}
	data = rtrimLineEndings(data)
	if !ll.IsValidUTF() {
		data = scrubUTF8(data)
	}
	if lf.format != nil {
		data = lf.format.GetSubline(ll, data, false)
	}
	return data, nil
}

// ReadFullMessage returns the full multi-line record starting at pos,
// expanding continuation lines. It is best-effort: on failure it
// returns nil rather than an error.
func (lf *LogFile) ReadFullMessage(pos int, maxLines int) []byte {
	ll := lf.index.At(pos)
	if ll.SubOffset != 0 {
		return nil
	}
	length := lf.LineLength(pos, true)
	data, err := lf.lineBuffer.ReadRange(FileRange{Offset: ll.Offset, Length: length})
	if err != nil {
		return nil
	}
	if lf.format != nil {
		data = lf.format.GetSubline(ll, data, true)
	}
	return data
}

func rtrimLineEndings(data []byte) []byte {
	end := len(data)
	for end > 0 && (data[end-1] == '\n' || data[end-1] == '\r') {
		end--
	}
	return data[:end]
}

// scrubUTF8 replaces ill-formed UTF-8 sequences with the replacement
// character so a corrupted line still renders.
func scrubUTF8(data []byte) []byte {
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), data)
	if err != nil {
		return data
	}
	return out
}

package logfile

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// fakeBuffer is an in-memory LineBuffer over a byte slice, used to test
// the core indexer without touching the filesystem or a real format.
type fakeBuffer struct {
	data []byte
}

func newFakeBuffer(data string) *fakeBuffer {
	return &fakeBuffer{data: []byte(data)}
}

func (b *fakeBuffer) SetFd(fd uintptr) {}
func (b *fakeBuffer) GetFd() uintptr   { return 0 }

func (b *fakeBuffer) IsDataAvailable(fromOffset, fileSize int64) bool {
	return fromOffset < int64(len(b.data))
}

func (b *fakeBuffer) LoadNextLine(prev FileRange) (LineInfo, error) {
	start := prev.NextOffset()
	if start >= int64(len(b.data)) {
		return LineInfo{}, nil
	}
	for i := start; i < int64(len(b.data)); i++ {
		if b.data[i] == '\n' {
			return LineInfo{FileRange: FileRange{Offset: start, Length: i - start + 1}, ValidUTF: true}, nil
		}
	}
	return LineInfo{FileRange: FileRange{Offset: start, Length: int64(len(b.data)) - start}, Partial: true, ValidUTF: true}, nil
}

func (b *fakeBuffer) ReadRange(fr FileRange) ([]byte, error) {
	end := fr.Offset + fr.Length
	if end > int64(len(b.data)) {
		end = int64(len(b.data))
	}
	return b.data[fr.Offset:end], nil
}

func (b *fakeBuffer) GetAvailable() FileRange       { return FileRange{Offset: 0, Length: int64(len(b.data))} }
func (b *fakeBuffer) GetReadOffset(off int64) int64 { return off }
func (b *fakeBuffer) GetFileTime() int64            { return 0 }
func (b *fakeBuffer) Clear()                        {}
func (b *fakeBuffer) Close() error                  { return nil }

// stubFormat recognizes lines starting with "L" followed by a decimal
// second count, e.g. "L1 hello". Enough to exercise Scan/push/lock-in
// without pulling in pkg/logformat's regex machinery.
type stubFormat struct {
	name        string
	timeOrdered bool
	base        int64
}

func (f *stubFormat) Name() string               { return f.name }
func (f *stubFormat) MatchName(string) bool      { return true }
func (f *stubFormat) Clear()                     {}
func (f *stubFormat) Specialized() LogFormat     { c := *f; return &c }
func (f *stubFormat) TimeOrdered() bool          { return f.timeOrdered }
func (f *stubFormat) SetBaseTime(seconds int64)  { f.base = seconds }
func (f *stubFormat) GetSubline(ll LogLine, data []byte, expand bool) []byte { return data }

func (f *stubFormat) Scan(lf *LogFile, idx *Index, li LineInfo, data []byte) ScanResult {
	if len(data) < 2 || data[0] != 'L' {
		return ScanNoMatch
	}
	var sec int64
	i := 1
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		sec = sec*10 + int64(data[i]-'0')
		i++
	}
	idx.Push(NewLogLine(li.FileRange.Offset, sec, 0, LevelInfo, 7, 3))
	return ScanMatch
}

type stubRegistry struct{ formats []LogFormat }

func (r *stubRegistry) Formats() []LogFormat { return r.formats }

// newTestLogFile builds a LogFile around an in-memory fakeBuffer, backed
// by a real (empty) temp file purely so RebuildIndex's os.File.Stat
// calls have something to stat; all line content comes from buf.
func newTestLogFile(t *testing.T, buf *fakeBuffer, reg FormatRegistry) *LogFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "backing.log")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write backing file: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backing file: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	return &LogFile{
		file:       f,
		lineBuffer: buf,
		registry:   reg,
		detect:     true,
		index:      NewIndex(),
		log:        slog.Default(),
	}
}

func TestRebuildIndexBasicAppend(t *testing.T) {
	buf := newFakeBuffer("L1 first\nL2 second\n")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	// The first rebuild locks the format in on the anchor line and
	// yields immediately, per the format-detection driver's contract.
	res, err := lf.RebuildIndex()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res != NewLines {
		t.Fatalf("want NewLines, got %v", res)
	}
	if lf.Len() != 1 {
		t.Fatalf("want 1 line after lock-in yield, got %d", lf.Len())
	}
	if lf.Format() == nil {
		t.Fatalf("expected format to lock in")
	}

	line, err := lf.ReadLine(0)
	if err != nil {
		t.Fatalf("read line 0: %v", err)
	}
	if string(line) != "L1 first" {
		t.Fatalf("unexpected content: %q", line)
	}

	// A second rebuild with no new bytes drains the rest of the already
	// buffered data, now that the format is locked in.
	res, err = lf.RebuildIndex()
	if err != nil {
		t.Fatalf("rebuild 2: %v", err)
	}
	if res != NewLines {
		t.Fatalf("want NewLines draining buffered data, got %v", res)
	}
	if lf.Len() != 2 {
		t.Fatalf("want 2 lines, got %d", lf.Len())
	}

	// Append more data and rebuild incrementally.
	buf.data = append(buf.data, []byte("L3 third\n")...)
	res, err = lf.RebuildIndex()
	if err != nil {
		t.Fatalf("rebuild 3: %v", err)
	}
	if res != NewLines {
		t.Fatalf("want NewLines on third rebuild, got %v", res)
	}
	if lf.Len() != 3 {
		t.Fatalf("want 3 lines after append, got %d", lf.Len())
	}
}

func TestRebuildIndexContinuationLine(t *testing.T) {
	// Before format lock-in, unrecognized lines are still pushed, each
	// with LevelUnknown.
	buf := newFakeBuffer("stack trace line one\nstack trace line two\nL5 recognized\n")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if lf.Len() != 3 {
		t.Fatalf("want 3 lines, got %d", lf.Len())
	}
	if lf.At(0).Level() != LevelUnknown {
		t.Fatalf("expected first unrecognized line to be flagged unknown, got %v", lf.At(0).Level())
	}
}

func TestOutOfOrderClamping(t *testing.T) {
	// A time-ordered format that goes backwards mid-stream should have
	// its out-of-order lines clamped to the previous timestamp and
	// flagged with the skew bit, not resorted.
	buf := newFakeBuffer("L10 a\nL5 b\n")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	// First rebuild locks the format in on "L10 a" and yields.
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	// Second rebuild processes the already-buffered "L5 b" now that the
	// format is locked, triggering the clamp.
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild 2: %v", err)
	}
	if lf.Len() != 2 {
		t.Fatalf("want 2 lines, got %d", lf.Len())
	}
	if lf.At(1).Time != lf.At(0).Time {
		t.Fatalf("expected second line clamped to first line's time, got %d vs %d", lf.At(1).Time, lf.At(0).Time)
	}
	if !lf.At(1).IsTimeSkew() {
		t.Fatalf("expected time-skew flag on clamped line")
	}
}

func TestOpenRejectsMissingPath(t *testing.T) {
	buf := newFakeBuffer("")
	_, err := Open(buf, OpenOptions{})
	if err == nil {
		t.Fatalf("expected error opening with empty path and no FD")
	}
}

func TestRebuildIndexEmptyFile(t *testing.T) {
	buf := newFakeBuffer("")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	res, err := lf.RebuildIndex()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res != NoNewLines {
		t.Fatalf("want NoNewLines on an empty file, got %v", res)
	}
	if lf.Len() != 0 {
		t.Fatalf("want empty index, got %d lines", lf.Len())
	}
	if lf.IndexSize() != 0 {
		t.Fatalf("want index_size 0, got %d", lf.IndexSize())
	}
}

func TestRebuildIndexContinuationInheritsAnchorMetadata(t *testing.T) {
	buf := newFakeBuffer("L1 first\n")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if lf.Len() != 1 || lf.Format() == nil {
		t.Fatalf("expected format to lock in on the anchor line")
	}

	// Append a continuation line (doesn't match the format) followed by
	// a fresh anchor, now that the format is already locked in.
	buf.data = append(buf.data, []byte("  stack frame\nL2 second\n")...)
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild 2: %v", err)
	}
	if lf.Len() != 3 {
		t.Fatalf("want 3 lines, got %d", lf.Len())
	}

	anchor := lf.At(0)
	cont := lf.At(1)
	if anchor.ModuleID != 7 || anchor.OpID != 3 {
		t.Fatalf("unexpected anchor module/opid: %d/%d", anchor.ModuleID, anchor.OpID)
	}
	if !cont.IsContinued() {
		t.Fatalf("expected continuation flag set on the unmatched line")
	}
	if cont.Time != anchor.Time || cont.Millis != anchor.Millis {
		t.Fatalf("continuation did not inherit time/millis from the anchor: %+v vs %+v", cont, anchor)
	}
	if cont.ModuleID != anchor.ModuleID || cont.OpID != anchor.OpID {
		t.Fatalf("continuation did not inherit module/opid from the anchor: %+v vs %+v", cont, anchor)
	}
}

func TestRebuildIndexPartialLineReindexedWithoutDuplication(t *testing.T) {
	buf := newFakeBuffer("L1 first\nL2 seco")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	// Lock-in yield on the first line.
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	// Drain the buffered partial second line.
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild 2: %v", err)
	}
	if lf.Len() != 2 {
		t.Fatalf("want 2 lines after draining the partial line, got %d", lf.Len())
	}
	if !lf.PartialLine() {
		t.Fatalf("expected partial_line to be true for an unterminated last line")
	}

	// More bytes complete the line.
	buf.data = append(buf.data, []byte("nd more\n")...)
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild 3: %v", err)
	}
	if lf.Len() != 2 {
		t.Fatalf("want line count to stay at 2 (no duplication), got %d", lf.Len())
	}
	if lf.PartialLine() {
		t.Fatalf("expected partial_line to clear once the line is terminated")
	}
	line, err := lf.ReadLine(1)
	if err != nil {
		t.Fatalf("read line 1: %v", err)
	}
	if string(line) != "L2 second more" {
		t.Fatalf("unexpected completed line content: %q", line)
	}
}

func TestRebuildIndexRotationClosesAndReportsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	initial := "L1 first\nL2 second\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("write initial: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	fi, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	buf := newFakeBuffer(initial)
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := &LogFile{
		file:       f,
		path:       path,
		hasPath:    true,
		lineBuffer: buf,
		registry:   reg,
		detect:     true,
		index:      NewIndex(),
		stat:       snapshotStat(fi),
		log:        slog.Default(),
	}

	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild 2: %v", err)
	}
	if lf.Len() != 2 {
		t.Fatalf("want 2 lines before rotation, got %d", lf.Len())
	}

	// Rotation: the file is truncated and rewritten with fresh, shorter
	// content. The real backing file's stat is what RebuildIndex checks,
	// independent of the in-memory buf.
	if err := os.WriteFile(path, []byte("L1 new\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	res, err := lf.RebuildIndex()
	if err != nil {
		t.Fatalf("rebuild after rotation: %v", err)
	}
	if res != NoNewLines {
		t.Fatalf("want NoNewLines on a detected rotation, got %v", res)
	}
	if !lf.Closed() {
		t.Fatalf("expected the file to be closed once rotation is detected")
	}
	if lf.Exists() {
		t.Fatalf("expected Exists() to report false after rotation")
	}
}

func TestLateFormatLockInBackfillsTimeAndContentID(t *testing.T) {
	buf := newFakeBuffer("header one\nheader two\nheader three\nL42 recognized\n")
	reg := &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}
	lf := newTestLogFile(t, buf, reg)

	if _, err := lf.RebuildIndex(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if lf.Len() != 4 {
		t.Fatalf("want 4 lines, got %d", lf.Len())
	}
	if lf.Format() == nil {
		t.Fatalf("expected format to lock in on the 4th line")
	}

	anchor := lf.At(3)
	want := hashBytes([]byte("L42 recognized"))
	if lf.ContentID() != want {
		t.Fatalf("ContentID() = %d, want hash of the locking line (%d)", lf.ContentID(), want)
	}
	for i := 0; i < 3; i++ {
		if lf.At(i).Time != anchor.Time {
			t.Fatalf("header line %d time = %d, want backfilled to anchor time %d", i, lf.At(i).Time, anchor.Time)
		}
	}
}

func TestOpenAndRebuildRealFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("L1 hello\nL2 world\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	buf := newFakeBuffer("")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	lf, err := Open(buf, OpenOptions{Path: path, FD: f, DetectFormat: true, Registry: &stubRegistry{formats: []LogFormat{&stubFormat{name: "stub", timeOrdered: true}}}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !lf.Exists() {
		t.Fatalf("expected freshly opened file to exist")
	}
}

package source

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/linebuffer"
	"github.com/dvirtanen/logdex/internal/logfile"
	"github.com/dvirtanen/logdex/pkg/logformat"
)

// FileSource adapts a logfile.LogFile to the LineProvider interface the
// viewport consumes, with the mmap/gzip choice and format registry
// resolved at construction time.
type FileSource struct {
	lf   *logfile.LogFile
	buf  logfile.LineBuffer
	path string
}

// NewFileSource opens path, memory-mapping plain files and streaming
// gzip-compressed ones based on its extension.
func NewFileSource(path string, cfg *config.Config) (*FileSource, error) {
	var buf logfile.LineBuffer
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		buf, err = linebuffer.NewGzipBuffer(path)
	} else {
		buf, err = linebuffer.NewPlainBuffer(path)
	}
	if err != nil {
		return nil, err
	}

	registry := logformat.NewRegistry(cfg)
	lf, err := logfile.Open(buf, logfile.OpenOptions{
		Path:         path,
		DetectFormat: true,
		Registry:     registry,
	})
	if err != nil {
		buf.Close()
		return nil, err
	}

	// The first call only indexes as far as the line that locks in the
	// format; keep rebuilding until a pass reports nothing new so a
	// freshly opened multi-line file is fully indexed before it's
	// handed to a caller.
	for {
		result, err := lf.RebuildIndex()
		if err != nil {
			lf.Close()
			return nil, err
		}
		if result == logfile.NoNewLines {
			break
		}
	}

	return &FileSource{lf: lf, buf: buf, path: path}, nil
}

// LineCount returns total number of lines.
func (s *FileSource) LineCount() int {
	return s.lf.Len()
}

// GetLine returns line at index.
func (s *FileSource) GetLine(idx int) (*Line, error) {
	if idx < 0 || idx >= s.lf.Len() {
		return nil, nil
	}
	content, err := s.lf.ReadLine(idx)
	if err != nil {
		return nil, err
	}

	ll := s.lf.At(idx)
	return &Line{
		Content:       content,
		Level:         fromCoreLevel(ll.Level()),
		OriginalIndex: idx,
	}, nil
}

// GetLines returns a range of lines.
func (s *FileSource) GetLines(start, count int) ([]*Line, error) {
	total := s.lf.Len()
	if start >= total {
		return nil, nil
	}
	end := start + count
	if end > total {
		end = total
	}

	lines := make([]*Line, 0, end-start)
	for i := start; i < end; i++ {
		line, err := s.GetLine(i)
		if err != nil {
			return lines, err
		}
		if line != nil {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Close closes the file source.
func (s *FileSource) Close() error {
	err := s.lf.Close()
	if cerr := s.buf.Close(); err == nil {
		err = cerr
	}
	return err
}

// Path returns the file path.
func (s *FileSource) Path() string {
	return s.path
}

// Name returns the file's base name, for status bars and merged views.
func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

// Refresh re-indexes the file if it has grown, reporting how many new
// lines were appended. If the path no longer refers to the opened file
// (rotated or removed) it reports 0 and does not reopen the path.
func (s *FileSource) Refresh() (int, error) {
	before := s.lf.Len()

	if !s.lf.Exists() {
		return 0, nil
	}

	result, err := s.lf.RebuildIndex()
	if err != nil {
		return 0, err
	}
	if result == logfile.Invalid {
		return 0, nil
	}

	return s.lf.Len() - before, nil
}

// ReadFullMessage returns the full multi-line record starting at idx,
// expanding continuation lines. Returns nil when idx does not start a
// record.
func (s *FileSource) ReadFullMessage(idx, maxLines int) []byte {
	return s.lf.ReadFullMessage(idx, maxLines)
}

// SetLoglineObserver forwards to the underlying LogFile, letting a
// caller observe RebuildIndex's per-line notifications without reaching
// past the LineProvider boundary.
func (s *FileSource) SetLoglineObserver(o logfile.LoglineObserver) {
	s.lf.SetLoglineObserver(o)
}

// SetLogfileObserver forwards to the underlying LogFile, letting a
// caller observe RebuildIndex's coarse indexing progress.
func (s *FileSource) SetLogfileObserver(o logfile.LogfileObserver) {
	s.lf.SetLogfileObserver(o)
}

// Format exposes the underlying LogFile's locked-in format, if any.
func (s *FileSource) Format() logfile.LogFormat {
	return s.lf.Format()
}

// TextFormat exposes the content-sniffed structured-text classification
// (JSON/XML/Markdown/plain) used to pick a syntax lexer for extracted
// message bodies.
func (s *FileSource) TextFormat() logfile.TextFormat {
	return s.lf.TextFormat()
}

// FindLineAtTime returns the index of the first line at or after t,
// via binary search over the index's (clamped, non-decreasing) times.
func (s *FileSource) FindLineAtTime(t time.Time) int {
	target := t.Unix()
	lo, hi := 0, s.lf.Len()
	for lo < hi {
		mid := (lo + hi) / 2
		if s.lf.At(mid).Time < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= s.lf.Len() {
		return -1
	}
	return lo
}

// GetTimestamp returns the wall-clock time recorded for line idx.
func (s *FileSource) GetTimestamp(idx int) *time.Time {
	if idx < 0 || idx >= s.lf.Len() {
		return nil
	}
	t := time.Unix(s.lf.At(idx).Time, 0).UTC()
	return &t
}

// NewLevelFilteredProvider wraps src in a FilteredProvider whose level
// detector falls back to cfg's substring patterns when a line's packed
// Level is unknown (e.g. it precedes format lock-in).
func NewLevelFilteredProvider(src LineProvider, cfg *config.LogLevelConfig) *FilteredProvider {
	classifier := logformat.NewLevelClassifier(cfg)
	return NewFilteredProvider(src, func(content []byte) LogLevel {
		return fromCoreLevel(classifier.Detect(content))
	})
}

func fromCoreLevel(l logfile.Level) LogLevel {
	switch l {
	case logfile.LevelTrace:
		return LevelTrace
	case logfile.LevelDebug:
		return LevelDebug
	case logfile.LevelInfo:
		return LevelInfo
	case logfile.LevelWarn:
		return LevelWarn
	case logfile.LevelError:
		return LevelError
	case logfile.LevelFatal:
		return LevelFatal
	default:
		return LevelUnknown
	}
}

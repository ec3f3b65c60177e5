// Package linebuffer provides concrete logfile.LineBuffer
// implementations: a memory-mapped reader for plain files and a
// forward-only reader for gzip-transported ones.
package linebuffer

import (
	"bytes"
	"os"
	"unicode/utf8"

	"golang.org/x/exp/mmap"

	"github.com/dvirtanen/logdex/internal/logfile"
)

const scanChunkSize = 64 * 1024

// PlainBuffer memory-maps a regular file and scans it for newlines on
// demand, growing the mapping as the file grows. It produces one
// LineInfo at a time rather than indexing everything up front, so it
// fits the logfile.LineBuffer contract.
type PlainBuffer struct {
	path   string
	fd     uintptr
	reader *mmap.ReaderAt
	size   int64
}

// NewPlainBuffer opens a memory-mapped view of path. Call SetFd
// afterward (LogFile.Open does this) purely for identity bookkeeping;
// the mapping itself is keyed by path, not descriptor, since
// golang.org/x/exp/mmap has no fd-based constructor.
func NewPlainBuffer(path string) (*PlainBuffer, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &PlainBuffer{path: path, reader: r, size: fi.Size()}, nil
}

func (b *PlainBuffer) SetFd(fd uintptr) { b.fd = fd }
func (b *PlainBuffer) GetFd() uintptr   { return b.fd }

func (b *PlainBuffer) IsDataAvailable(fromOffset, fileSize int64) bool {
	if fileSize > b.size {
		b.refresh(fileSize)
	}
	return fromOffset < b.size
}

func (b *PlainBuffer) refresh(newSize int64) {
	if newSize <= b.size {
		return
	}
	r, err := mmap.Open(b.path)
	if err != nil {
		return
	}
	b.reader.Close()
	b.reader = r
	b.size = newSize
}

// LoadNextLine scans forward from prev's end for the next newline,
// returning an empty FileRange at EOF. A trailing, unterminated line is
// reported once with Partial set.
func (b *PlainBuffer) LoadNextLine(prev logfile.FileRange) (logfile.LineInfo, error) {
	start := prev.NextOffset()
	if start >= b.size {
		return logfile.LineInfo{}, nil
	}

	buf := make([]byte, scanChunkSize)
	pos := start
	for pos < b.size {
		readLen := int64(len(buf))
		if pos+readLen > b.size {
			readLen = b.size - pos
		}
		n, err := b.reader.ReadAt(buf[:readLen], pos)
		if n == 0 && err != nil {
			return logfile.LineInfo{}, err
		}
		if idx := bytes.IndexByte(buf[:n], '\n'); idx >= 0 {
			length := (pos + int64(idx) + 1) - start
			return logfile.LineInfo{
				FileRange: logfile.FileRange{Offset: start, Length: length},
				Partial:   false,
				ValidUTF:  validUTFRange(buf[:idx]),
			}, nil
		}
		pos += int64(n)
	}

	// Reached the current end of file without a newline: a partial tail
	// line, reported so the caller can display it, and re-indexed
	// without duplication once the newline arrives.
	length := b.size - start
	data, err := b.ReadRange(logfile.FileRange{Offset: start, Length: length})
	valid := err == nil && validUTFRange(data)
	return logfile.LineInfo{
		FileRange: logfile.FileRange{Offset: start, Length: length},
		Partial:   true,
		ValidUTF:  valid,
	}, nil
}

func (b *PlainBuffer) ReadRange(fr logfile.FileRange) ([]byte, error) {
	if fr.Length <= 0 {
		return nil, nil
	}
	end := fr.Offset + fr.Length
	if end > b.size {
		end = b.size
	}
	if fr.Offset >= end {
		return nil, nil
	}
	out := make([]byte, end-fr.Offset)
	_, err := b.reader.ReadAt(out, fr.Offset)
	return out, err
}

func (b *PlainBuffer) GetAvailable() logfile.FileRange {
	return logfile.FileRange{Offset: 0, Length: b.size}
}

func (b *PlainBuffer) GetReadOffset(logicalOffset int64) int64 { return logicalOffset }

// GetFileTime returns zero: a plain file carries no wall-clock hint
// beyond its mtime, which LogFile falls back to itself.
func (b *PlainBuffer) GetFileTime() int64 { return 0 }

func (b *PlainBuffer) Clear() {}

func (b *PlainBuffer) Close() error { return b.reader.Close() }

func validUTFRange(b []byte) bool {
	return utf8.Valid(b)
}

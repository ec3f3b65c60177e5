package logformat

import (
	"testing"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
)

func testLogLevelConfigForFormats() *config.LogLevelConfig {
	cfg := config.DefaultConfig()
	return &cfg.LogLevels
}

func TestGenericFormatScanMatch(t *testing.T) {
	f := NewGenericFormat(testLogLevelConfigForFormats())
	idx := logfile.NewIndex()
	data := []byte("2024-01-15 10:30:45.123 ERROR connection refused")

	li := logfile.LineInfo{FileRange: logfile.FileRange{Offset: 42, Length: int64(len(data))}, ValidUTF: true}
	if res := f.Scan(nil, idx, li, data); res != logfile.ScanMatch {
		t.Fatalf("want ScanMatch, got %v", res)
	}
	if idx.Len() != 1 {
		t.Fatalf("want 1 pushed line, got %d", idx.Len())
	}
	ll := idx.At(0)
	if ll.Level() != logfile.LevelError {
		t.Fatalf("want LevelError, got %v", ll.Level())
	}
	if ll.Offset != 42 {
		t.Fatalf("want offset 42, got %d", ll.Offset)
	}
}

func TestGenericFormatScanNoMatch(t *testing.T) {
	f := NewGenericFormat(testLogLevelConfigForFormats())
	idx := logfile.NewIndex()
	data := []byte("no timestamp on this continuation line")

	li := logfile.LineInfo{FileRange: logfile.FileRange{Offset: 0, Length: int64(len(data))}, ValidUTF: true}
	if res := f.Scan(nil, idx, li, data); res != logfile.ScanNoMatch {
		t.Fatalf("want ScanNoMatch, got %v", res)
	}
	if idx.Len() != 0 {
		t.Fatalf("ScanNoMatch must not push, got %d entries", idx.Len())
	}
}

func TestGenericFormatTimeOrderedAndName(t *testing.T) {
	f := NewGenericFormat(testLogLevelConfigForFormats())
	if !f.TimeOrdered() {
		t.Fatalf("expected generic format to be time ordered")
	}
	if f.Name() != "generic" {
		t.Fatalf("unexpected name %q", f.Name())
	}
	if !f.MatchName("anything.log") {
		t.Fatalf("expected generic format to match any filename")
	}
}

func TestGenericFormatGetSublineUnchanged(t *testing.T) {
	f := NewGenericFormat(testLogLevelConfigForFormats())
	data := []byte("2024-01-15 10:30:45.123 INFO hello")
	got := f.GetSubline(logfile.LogLine{}, data, false)
	if string(got) != string(data) {
		t.Fatalf("expected GetSubline to return data unchanged, got %q", got)
	}
}

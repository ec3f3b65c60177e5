package slice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/source"
)

func newTestSource(t *testing.T) *source.FileSource {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := "" +
		"2024-01-15 10:00:00.000 INFO one\n" +
		"2024-01-15 10:00:01.000 INFO two\n" +
		"2024-01-15 10:00:02.000 INFO three\n" +
		"2024-01-15 10:00:03.000 ERROR four\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	cfg := config.DefaultConfig()
	src, err := source.NewFileSource(path, cfg)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestSlicerSliceRangeWritesExpectedLines(t *testing.T) {
	src := newTestSource(t)
	s := NewSlicer()

	info, cachePath, err := s.SliceRange(src, 1, 3)
	if err != nil {
		t.Fatalf("SliceRange: %v", err)
	}
	defer s.Cleanup(info)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	want := "2024-01-15 10:00:01.000 INFO two\n2024-01-15 10:00:02.000 INFO three\n"
	if string(data) != want {
		t.Fatalf("want %q, got %q", want, string(data))
	}
	if info.StartLine != 1 || info.EndLine != 3 {
		t.Fatalf("unexpected info range: %+v", info)
	}
}

func TestSlicerSliceRangeInvalidRange(t *testing.T) {
	src := newTestSource(t)
	s := NewSlicer()

	if _, _, err := s.SliceRange(src, 3, 1); err == nil {
		t.Fatalf("expected error for a backwards range")
	}
}

func TestSlicerSliceToEnd(t *testing.T) {
	src := newTestSource(t)
	s := NewSlicer()

	info, cachePath, err := s.SliceToEnd(src, 2)
	if err != nil {
		t.Fatalf("SliceToEnd: %v", err)
	}
	defer s.Cleanup(info)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	want := "2024-01-15 10:00:02.000 INFO three\n2024-01-15 10:00:03.000 ERROR four\n"
	if string(data) != want {
		t.Fatalf("want %q, got %q", want, string(data))
	}
}

func TestSlicerSliceFilteredWithNoFilterSlicesEverything(t *testing.T) {
	src := newTestSource(t)
	filtered := source.NewFilteredProvider(src, nil)
	s := NewSlicer()

	info, cachePath, err := s.SliceFiltered(src, filtered)
	if err != nil {
		t.Fatalf("SliceFiltered: %v", err)
	}
	defer s.Cleanup(info)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	if info.EndLine != 4 {
		t.Fatalf("want all 4 lines sliced, got EndLine=%d", info.EndLine)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty slice output")
	}
}

func TestSlicerSliceFilteredHonorsActiveFilter(t *testing.T) {
	src := newTestSource(t)
	filtered := source.NewFilteredProvider(src, nil)
	filtered.SetOnlyLevel(source.LevelError)
	s := NewSlicer()

	info, cachePath, err := s.SliceFiltered(src, filtered)
	if err != nil {
		t.Fatalf("SliceFiltered: %v", err)
	}
	defer s.Cleanup(info)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	want := "2024-01-15 10:00:03.000 ERROR four\n"
	if string(data) != want {
		t.Fatalf("want %q, got %q", want, string(data))
	}
}

func TestSlicerCleanupRemovesFile(t *testing.T) {
	src := newTestSource(t)
	s := NewSlicer()

	info, cachePath, err := s.SliceRange(src, 0, 1)
	if err != nil {
		t.Fatalf("SliceRange: %v", err)
	}
	if err := s.Cleanup(info); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Fatalf("expected cache file to be removed")
	}
}

func TestSlicerCleanupNilInfoIsNoop(t *testing.T) {
	s := NewSlicer()
	if err := s.Cleanup(nil); err != nil {
		t.Fatalf("Cleanup(nil) should be a no-op, got %v", err)
	}
}

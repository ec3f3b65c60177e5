package consolidate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvirtanen/logdex/internal/config"
)

func writeConsolidateSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewWriterPrimesFromEachSource(t *testing.T) {
	dir := t.TempDir()
	a := writeConsolidateSource(t, dir, "a.log", ""+
		"2024-01-15 10:00:00.000 INFO service a up\n"+
		"2024-01-15 10:00:01.000 INFO service a ready\n")
	b := writeConsolidateSource(t, dir, "b.log", ""+
		"2024-01-15 10:00:02.000 INFO service b up\n")

	cfg := config.DefaultConfig()
	w, err := NewWriter([]string{a, b}, cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if w.SourceCount() != 2 {
		t.Fatalf("want 2 sources, got %d", w.SourceCount())
	}

	data, err := os.ReadFile(w.OutputPath())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected priming to write some content")
	}
}

func TestNewWriterRejectsEmptyPaths(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := NewWriter(nil, cfg); err == nil {
		t.Fatalf("expected error for no source files")
	}
}

func TestWriterPollPicksUpAppendedLines(t *testing.T) {
	dir := t.TempDir()
	a := writeConsolidateSource(t, dir, "a.log", "2024-01-15 10:00:00.000 INFO service a up\n")

	cfg := config.DefaultConfig()
	w, err := NewWriterWithPrime([]string{a}, cfg, 0)
	if err != nil {
		t.Fatalf("NewWriterWithPrime: %v", err)
	}
	defer w.Close()
	w.SetPollInterval(10)

	go w.Run()

	f, err := os.OpenFile(a, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("2024-01-15 10:00:05.000 ERROR service a crashed\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(w.OutputPath())
		if err == nil && len(data) > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for polled append to reach the consolidated output")
}

func TestWriterSetEnabledSkipsSource(t *testing.T) {
	dir := t.TempDir()
	a := writeConsolidateSource(t, dir, "a.log", "2024-01-15 10:00:00.000 INFO up\n")

	cfg := config.DefaultConfig()
	w, err := NewWriter([]string{a}, cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	w.SetEnabled("a.log", false)
	// A disabled source stays tracked, and lines appended to it after
	// priming are not copied to the output by poll().
	if w.SourceCount() != 1 {
		t.Fatalf("want 1 source, got %d", w.SourceCount())
	}

	before, err := os.ReadFile(w.OutputPath())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	f, err := os.OpenFile(a, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("2024-01-15 10:00:05.000 INFO later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	w.poll()

	after, err := os.ReadFile(w.OutputPath())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(after) != string(before) {
		t.Fatalf("disabled source's appended line reached the output: %q", after)
	}
}

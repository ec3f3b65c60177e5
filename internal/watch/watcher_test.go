package watch

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRefresher reports newLines (or err, when set) each time Refresh is
// called, without touching any real file.
type fakeRefresher struct {
	path     string
	newLines int32
	err      error
	calls    int32
}

func (f *fakeRefresher) Path() string { return f.path }

func (f *fakeRefresher) Refresh() (int, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return 0, f.err
	}
	return int(atomic.LoadInt32(&f.newLines)), nil
}

func TestWatcherTickerFallbackReportsNewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	w, err := New(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	r := &fakeRefresher{path: path, newLines: 3}
	if err := w.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := make(chan int, 1)
	w.OnNewLines(func(p string, n int) {
		if p != path {
			t.Errorf("unexpected path %q", p)
		}
		select {
		case got <- n:
		default:
		}
	})

	go w.Run()

	select {
	case n := <-got:
		if n != 3 {
			t.Fatalf("want 3 new lines, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for ticker-driven refresh callback")
	}
}

func TestWatcherReportsRefreshErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.log")

	w, err := New(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	wantErr := errors.New("boom")
	r := &fakeRefresher{path: path, err: wantErr}
	if err := w.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := make(chan error, 1)
	w.OnError(func(p string, err error) {
		select {
		case got <- err:
		default:
		}
	})

	go w.Run()

	select {
	case err := <-got:
		if err != wantErr {
			t.Fatalf("want %v, got %v", wantErr, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error callback")
	}
}

func TestWatcherRemoveStopsCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	w, err := New(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	r := &fakeRefresher{path: path, newLines: 1}
	if err := w.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	w.Remove(r)

	var calls int32
	w.OnNewLines(func(p string, n int) { atomic.AddInt32(&calls, 1) })

	go w.Run()
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no callbacks after Remove, got %d", calls)
	}
}

package logformat

import "testing"

func TestTimestampResolverISO8601(t *testing.T) {
	r := NewTimestampResolver()
	sec, millis, ok := r.Resolve([]byte("2024-01-15T10:30:45.123Z connection accepted"))
	if !ok {
		t.Fatalf("expected match")
	}
	if millis != 123 {
		t.Fatalf("want millis 123, got %d", millis)
	}
	if sec == 0 {
		t.Fatalf("expected non-zero seconds")
	}
}

func TestTimestampResolverCommonLogWithMillis(t *testing.T) {
	r := NewTimestampResolver()
	sec, millis, ok := r.Resolve([]byte("2024-01-15 10:30:45.123 INFO starting up"))
	if !ok {
		t.Fatalf("expected match")
	}
	if millis != 123 {
		t.Fatalf("want millis 123, got %d", millis)
	}
	if sec == 0 {
		t.Fatalf("expected non-zero seconds")
	}
}

func TestTimestampResolverUnixSeconds(t *testing.T) {
	r := NewTimestampResolver()
	sec, _, ok := r.Resolve([]byte("1705315845 something happened"))
	if !ok {
		t.Fatalf("expected match")
	}
	if sec != 1705315845 {
		t.Fatalf("want 1705315845, got %d", sec)
	}
}

func TestTimestampResolverUnixMillis(t *testing.T) {
	r := NewTimestampResolver()
	sec, millis, ok := r.Resolve([]byte("1705315845123 something happened"))
	if !ok {
		t.Fatalf("expected match")
	}
	if sec != 1705315845 {
		t.Fatalf("want 1705315845, got %d", sec)
	}
	if millis != 123 {
		t.Fatalf("want millis 123, got %d", millis)
	}
}

func TestTimestampResolverTimeOnlyUsesBaseDate(t *testing.T) {
	r := NewTimestampResolver()
	r.SetBaseTime(1705315845) // 2024-01-15 10:50:45 UTC

	sec, _, ok := r.Resolve([]byte("11:00:00 next event"))
	if !ok {
		t.Fatalf("expected match")
	}
	// The resolved time should fall on the same UTC calendar day as the
	// base time, not the day the test runs.
	baseDaySec := int64(1705276800) // 2024-01-15 00:00:00 UTC
	if sec < baseDaySec || sec >= baseDaySec+86400 {
		t.Fatalf("expected resolved time on base date, got unix %d", sec)
	}
}

func TestTimestampResolverNoMatch(t *testing.T) {
	r := NewTimestampResolver()
	_, _, ok := r.Resolve([]byte("no timestamp here at all"))
	if ok {
		t.Fatalf("expected no match")
	}
}

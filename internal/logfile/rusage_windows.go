//go:build windows

package logfile

// rusageSnapshot has no cheap equivalent on Windows; the initial-index
// resource accounting is best-effort and simply reports zero there.
type rusageSnapshot struct {
	utime, stime int64
	maxrss       int64
}

func getrusageSelf() rusageSnapshot { return rusageSnapshot{} }

func (r rusageSnapshot) sub(begin rusageSnapshot) rusageSnapshot {
	return rusageSnapshot{}
}

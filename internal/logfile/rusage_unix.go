//go:build !windows

package logfile

import "syscall"

// rusageSnapshot is genuinely OS-facing bookkeeping: no ecosystem
// library wraps getrusage, so this stays on the standard library by
// necessity, not preference.
type rusageSnapshot struct {
	utime, stime int64 // microseconds
	maxrss       int64
}

func getrusageSelf() rusageSnapshot {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return rusageSnapshot{}
	}
	return rusageSnapshot{
		utime:  ru.Utime.Sec*1_000_000 + int64(ru.Utime.Usec),
		stime:  ru.Stime.Sec*1_000_000 + int64(ru.Stime.Usec),
		maxrss: ru.Maxrss,
	}
}

func (r rusageSnapshot) sub(begin rusageSnapshot) rusageSnapshot {
	return rusageSnapshot{
		utime:  r.utime - begin.utime,
		stime:  r.stime - begin.stime,
		maxrss: r.maxrss - begin.maxrss,
	}
}

package logfile

import (
	"os"
	"syscall"
	"time"
)

// StatSnapshot is the subset of file identity/metadata the rebuild
// engine and Exists() compare against.
type StatSnapshot struct {
	Dev     uint64
	Ino     uint64
	Size    int64
	ModTime time.Time
}

func snapshotStat(fi os.FileInfo) StatSnapshot {
	snap := StatSnapshot{Size: fi.Size(), ModTime: fi.ModTime()}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		snap.Dev = uint64(st.Dev)
		snap.Ino = st.Ino
	}
	return snap
}

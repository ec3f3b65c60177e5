package logfile

// LoglineObserver receives line-level notifications during a rebuild.
// Callbacks are delivered synchronously and in strict index order within
// a single RebuildIndex call. Implementations must not call back into
// the LogFile that is notifying them.
type LoglineObserver interface {
	LoglineRestart(lf *LogFile, rollbackCount int)
	LoglineNewLine(lf *LogFile, pos int, data []byte)
	LoglineEOF(lf *LogFile)
}

// LogfileObserver receives coarse-grained indexing progress.
type LogfileObserver interface {
	LogfileIndexing(lf *LogFile, bytesDone, bytesTotal int64)
}

// NullObserver implements both observer interfaces as no-ops. Useful for
// callers (headless slicing, consolidation) that only need the index.
type NullObserver struct{}

func (NullObserver) LoglineRestart(*LogFile, int)     {}
func (NullObserver) LoglineNewLine(*LogFile, int, []byte) {}
func (NullObserver) LoglineEOF(*LogFile)              {}
func (NullObserver) LogfileIndexing(*LogFile, int64, int64) {}

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dvirtanen/logdex/internal/logfile"
)

// indexEventMsg reports the outcome of one RebuildIndex call, delivered
// by a ChanObserver into the bubbletea event loop.
type indexEventMsg struct {
	path      string
	restarted bool
	newLines  int
}

// ChanObserver implements logfile.LoglineObserver and
// logfile.LogfileObserver by funneling their synchronous, in-rebuild
// callbacks into a buffered channel of tea.Msg values. It never calls
// back into bubbletea or the LogFile directly; the Model pulls events
// out of the channel via a self-rearming tea.Cmd, the same way
// internal/watch's events are consumed.
type ChanObserver struct {
	path     string
	ch       chan tea.Msg
	newLines int
}

// NewChanObserver builds an observer that tags every event with path,
// so a Model with several panes can route it to the right one.
func NewChanObserver(path string, ch chan tea.Msg) *ChanObserver {
	return &ChanObserver{path: path, ch: ch}
}

func (o *ChanObserver) LoglineRestart(lf *logfile.LogFile, rollbackCount int) {
	o.newLines = 0
	if rollbackCount > 0 {
		o.ch <- indexEventMsg{path: o.path, restarted: true}
	}
}

func (o *ChanObserver) LoglineNewLine(lf *logfile.LogFile, pos int, data []byte) {
	o.newLines++
}

func (o *ChanObserver) LoglineEOF(lf *logfile.LogFile) {
	if o.newLines > 0 {
		o.ch <- indexEventMsg{path: o.path, newLines: o.newLines}
		o.newLines = 0
	}
}

func (o *ChanObserver) LogfileIndexing(lf *logfile.LogFile, bytesDone, bytesTotal int64) {}

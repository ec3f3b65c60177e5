package logfile

// indexReserveIncrement is the initial capacity reserved for a fresh
// index, avoiding reallocations for the first 1024 lines.
const indexReserveIncrement = 1024

// Index is an appendable, ordered sequence of LogLine records. Its only
// job is amortized O(1) push/pop-back and random access; the ordering
// invariants themselves are the rebuild engine's responsibility.
type Index struct {
	lines []LogLine
}

// NewIndex returns an empty index with capacity pre-reserved.
func NewIndex() *Index {
	return &Index{lines: make([]LogLine, 0, indexReserveIncrement)}
}

// Len returns the number of indexed lines.
func (idx *Index) Len() int { return len(idx.lines) }

// At returns the line at position i.
func (idx *Index) At(i int) LogLine { return idx.lines[i] }

// Set overwrites the line at position i.
func (idx *Index) Set(i int, ll LogLine) { idx.lines[i] = ll }

// Back returns the last line in the index. Callers must check Len() > 0.
func (idx *Index) Back() LogLine { return idx.lines[len(idx.lines)-1] }

// SetBack overwrites the last line in the index.
func (idx *Index) SetBack(ll LogLine) { idx.lines[len(idx.lines)-1] = ll }

// Push appends a new line.
func (idx *Index) Push(ll LogLine) { idx.lines = append(idx.lines, ll) }

// PopBack removes the last line, if any.
func (idx *Index) PopBack() {
	if len(idx.lines) == 0 {
		return
	}
	idx.lines = idx.lines[:len(idx.lines)-1]
}

// TruncateTailAnchor pops every continuation entry of the final anchor
// (any trailing entries with a non-zero sub-offset) and then that anchor
// itself, returning the count of entries removed. Used by the rebuild
// engine's tail-rollback step.
func (idx *Index) TruncateTailAnchor() int {
	removed := 0
	for len(idx.lines) > 0 && idx.Back().SubOffset != 0 {
		idx.PopBack()
		removed++
	}
	if len(idx.lines) > 0 {
		idx.PopBack()
		removed++
	}
	return removed
}

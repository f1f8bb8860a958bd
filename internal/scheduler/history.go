package scheduler

// AddToHistory truncates everything after index, appends a deep copy of g and
// returns the new list with the index of the appended entry. Any redo branch
// beyond index is discarded.
func AddToHistory(history []*Grid, index int, g *Grid) ([]*Grid, int) {
	if index < -1 {
		index = -1
	}
	if index >= len(history) {
		index = len(history) - 1
	}
	next := make([]*Grid, index+1, index+2)
	copy(next, history[:index+1])
	next = append(next, g.Clone())
	return next, len(next) - 1
}

// Undo returns a copy of the snapshot before index and its position. At the
// first entry it is a no-op returning the current snapshot.
func Undo(history []*Grid, index int) (*Grid, int) {
	if len(history) == 0 {
		return nil, index
	}
	if index > 0 && index < len(history) {
		index--
	}
	return history[clampIndex(index, len(history))].Clone(), clampIndex(index, len(history))
}

// Redo returns a copy of the snapshot after index and its position. At the
// last entry it is a no-op returning the current snapshot.
func Redo(history []*Grid, index int) (*Grid, int) {
	if len(history) == 0 {
		return nil, index
	}
	if index >= 0 && index < len(history)-1 {
		index++
	}
	return history[clampIndex(index, len(history))].Clone(), clampIndex(index, len(history))
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}

// History is a session-owned undo/redo stack of grid snapshots.
// Not safe for concurrent use; the owning session serializes access.
type History struct {
	entries []*Grid
	index   int
	limit   int
}

// NewHistory starts a history whose only entry is a copy of initial. limit
// caps the number of retained entries (oldest dropped); zero means unbounded.
func NewHistory(initial *Grid, limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{entries: []*Grid{initial.Clone()}, index: 0, limit: limit}
}

// Push records g as the newest state.
func (h *History) Push(g *Grid) {
	h.entries, h.index = AddToHistory(h.entries, h.index, g)
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = append([]*Grid(nil), h.entries[drop:]...)
		h.index -= drop
	}
}

// Undo steps back one entry. ok is false at the boundary.
func (h *History) Undo() (*Grid, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	var g *Grid
	g, h.index = Undo(h.entries, h.index)
	return g, true
}

// Redo steps forward one entry. ok is false at the boundary.
func (h *History) Redo() (*Grid, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	var g *Grid
	g, h.index = Redo(h.entries, h.index)
	return g, true
}

// CanUndo reports whether an earlier entry exists.
func (h *History) CanUndo() bool { return h.index > 0 }

// CanRedo reports whether a later entry exists.
func (h *History) CanRedo() bool { return h.index < len(h.entries)-1 }

// Index returns the current position.
func (h *History) Index() int { return h.index }

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// Current returns a copy of the snapshot at the current position.
func (h *History) Current() *Grid {
	return h.entries[h.index].Clone()
}

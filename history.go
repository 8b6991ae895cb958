package reflex

// DefaultHistoryLimit bounds the undo stack.
const DefaultHistoryLimit = 50

// History is an undo/redo stack of graph snapshots. Every snapshot crossing
// its boundary is deep-copied, so callers may keep mutating what they pass
// in or get back. It is not safe for concurrent use.
type History struct {
	limit   int
	past    []Snapshot
	present *Snapshot
	future  []Snapshot
}

// NewHistory returns an empty history keeping at most limit undo entries.
// A limit below 1 uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// PushState records s as the present state. The previous present moves onto
// the undo stack and any redo entries are discarded.
func (h *History) PushState(s Snapshot) {
	if h.present != nil {
		h.past = append(h.past, *h.present)
	}
	c := s.Clone()
	h.present = &c
	h.future = nil
	if over := len(h.past) - h.limit; over > 0 {
		h.past = append([]Snapshot(nil), h.past[over:]...)
	}
}

// Undo steps back one state and returns a copy of it. It reports false when
// there is nothing to undo.
func (h *History) Undo() (Snapshot, bool) {
	if len(h.past) == 0 || h.present == nil {
		return Snapshot{}, false
	}
	h.future = append([]Snapshot{*h.present}, h.future...)
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.present = &prev
	return prev.Clone(), true
}

// Redo steps forward one state and returns a copy of it. It reports false
// when there is nothing to redo.
func (h *History) Redo() (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	if h.present != nil {
		h.past = append(h.past, *h.present)
	}
	next := h.future[0]
	h.future = h.future[1:]
	h.present = &next
	return next.Clone(), true
}

// Clear drops every state, present included.
func (h *History) Clear() {
	h.past, h.present, h.future = nil, nil, nil
}

// Initialize resets the history with s as the only state.
func (h *History) Initialize(s Snapshot) {
	h.Clear()
	c := s.Clone()
	h.present = &c
}

// Present returns a copy of the current state.
func (h *History) Present() (Snapshot, bool) {
	if h.present == nil {
		return Snapshot{}, false
	}
	return h.present.Clone(), true
}

// MapNodes replaces every node of every state with fn applied to it.
// Timestamps and stack positions are unchanged.
func (h *History) MapNodes(fn func(Node) Node) {
	mapSnap := func(s *Snapshot) {
		for i := range s.Nodes {
			s.Nodes[i] = fn(s.Nodes[i])
		}
	}
	for i := range h.past {
		mapSnap(&h.past[i])
	}
	if h.present != nil {
		mapSnap(h.present)
	}
	for i := range h.future {
		mapSnap(&h.future[i])
	}
}

// CanUndo reports whether Undo has a state to return.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo has a state to return.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// PastLen and FutureLen report the stack depths.
func (h *History) PastLen() int   { return len(h.past) }
func (h *History) FutureLen() int { return len(h.future) }

// HistoryAction is what a key combination asks the history to do.
type HistoryAction int

const (
	HistoryNone HistoryAction = iota
	HistoryUndo
	HistoryRedo
)

// KeyEvent is a key press with its modifiers.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
	Alt   bool
}

// ResolveShortcut maps a key press to an undo or redo request.
// Ctrl/Cmd+Z undoes; Ctrl/Cmd+Shift+Z and Ctrl/Cmd+Y redo. Redo is matched
// first so Shift+Z never also resolves to undo.
func ResolveShortcut(ev KeyEvent) HistoryAction {
	if !(ev.Ctrl || ev.Meta) || ev.Alt {
		return HistoryNone
	}
	switch ev.Key {
	case "z", "Z":
		if ev.Shift {
			return HistoryRedo
		}
		return HistoryUndo
	case "y", "Y":
		if ev.Shift {
			return HistoryNone
		}
		return HistoryRedo
	}
	return HistoryNone
}

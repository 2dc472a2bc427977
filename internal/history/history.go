package history

// DefaultMaxSize bounds the log when no capacity is configured.
const DefaultMaxSize = 100

// History is a linear undo/redo log with a cursor. CurrentIndex points at
// the item the next Undo returns; -1 means nothing to undo. Adding an item
// after an undo drops the undone items. It is not safe for concurrent use.
type History struct {
	items        []*Item
	currentIndex int
	maxSize      int
}

func New(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &History{
		items:        make([]*Item, 0, min(maxSize, 64)),
		currentIndex: -1,
		maxSize:      maxSize,
	}
}

// Add records a new item, truncating any redo branch and evicting the
// oldest item when over capacity.
func (h *History) Add(item *Item) {
	if item == nil {
		return
	}
	if h.currentIndex < len(h.items)-1 {
		clear(h.items[h.currentIndex+1:])
		h.items = h.items[:h.currentIndex+1]
	}
	h.items = append(h.items, item)
	h.currentIndex = len(h.items) - 1

	if over := len(h.items) - h.maxSize; over > 0 {
		clear(h.items[:over])
		h.items = append(h.items[:0], h.items[over:]...)
		h.currentIndex -= over
	}
}

// Undo steps the cursor back and returns the item to invert, or nil.
func (h *History) Undo() *Item {
	if h.currentIndex < 0 {
		return nil
	}
	item := h.items[h.currentIndex]
	h.currentIndex--
	return item
}

// Redo steps the cursor forward and returns the item to replay, or nil.
func (h *History) Redo() *Item {
	if h.currentIndex >= len(h.items)-1 {
		return nil
	}
	h.currentIndex++
	return h.items[h.currentIndex]
}

func (h *History) CanUndo() bool {
	return h.currentIndex >= 0
}

func (h *History) CanRedo() bool {
	return h.currentIndex < len(h.items)-1
}

func (h *History) CurrentIndex() int {
	return h.currentIndex
}

func (h *History) Len() int {
	return len(h.items)
}

func (h *History) MaxSize() int {
	return h.maxSize
}

// Items returns the log in order, oldest first.
func (h *History) Items() []*Item {
	out := make([]*Item, len(h.items))
	copy(out, h.items)
	return out
}

// Clear empties the log.
func (h *History) Clear() {
	clear(h.items)
	h.items = h.items[:0]
	h.currentIndex = -1
}

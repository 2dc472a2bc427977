package collab

// seenSet remembers the most recent keys up to a fixed capacity, forgetting
// the oldest first.
type seenSet struct {
	keys  map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &seenSet{
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// Add records key and reports whether it was new.
func (s *seenSet) Add(key string) bool {
	if key == "" {
		return true
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	if len(s.order) < cap(s.order) {
		s.order = append(s.order, key)
	} else {
		delete(s.keys, s.order[s.next])
		s.order[s.next] = key
		s.next = (s.next + 1) % len(s.order)
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *seenSet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *seenSet) Len() int {
	return len(s.keys)
}

func strokeKey(strokeID, authorID string) string {
	return strokeID + "|" + authorID
}

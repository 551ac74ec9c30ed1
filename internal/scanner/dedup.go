package scanner

// dedupSet is a bounded insertion-ordered set. When the window is full the
// oldest entry is evicted; the overlap re-scan makes a duplicate slipping
// past the window unlikely rather than impossible.
type dedupSet struct {
	limit  int
	order  []string
	hashes map[string]struct{}
}

func newDedupSet(limit int) *dedupSet {
	return &dedupSet{
		limit:  limit,
		hashes: make(map[string]struct{}),
	}
}

// Add inserts the key and reports whether it was new.
func (d *dedupSet) Add(key string) bool {
	if _, seen := d.hashes[key]; seen {
		return false
	}

	if len(d.order) >= d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.hashes, oldest)
	}

	d.order = append(d.order, key)
	d.hashes[key] = struct{}{}
	return true
}

func (d *dedupSet) Len() int {
	return len(d.order)
}

func (d *dedupSet) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func (d *dedupSet) Reset() {
	d.order = nil
	d.hashes = make(map[string]struct{})
}

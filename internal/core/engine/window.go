package engine

import "time"

// entry is one admitted batch.
type entry struct {
	at      time.Time
	permits int
}

// window is a ring-buffer deque of admitted batches ordered by issuance.
// It tracks the running permit total so usage is O(1) and pruning only
// touches expired entries.
type window struct {
	buf   []entry
	head  int
	size  int
	total int
}

func (w *window) len() int { return w.size }

func (w *window) at(i int) entry {
	return w.buf[(w.head+i)%len(w.buf)]
}

func (w *window) front() entry {
	return w.buf[w.head]
}

func (w *window) push(e entry) {
	if w.size == len(w.buf) {
		w.grow()
	}
	w.buf[(w.head+w.size)%len(w.buf)] = e
	w.size++
	w.total += e.permits
}

func (w *window) popFront() {
	e := w.buf[w.head]
	w.buf[w.head] = entry{}
	w.head = (w.head + 1) % len(w.buf)
	w.size--
	w.total -= e.permits
	if w.size == 0 {
		w.head = 0
	}
}

func (w *window) grow() {
	capacity := len(w.buf) * 2
	if capacity == 0 {
		capacity = 8
	}
	next := make([]entry, capacity)
	for i := 0; i < w.size; i++ {
		next[i] = w.at(i)
	}
	w.buf = next
	w.head = 0
}

// prune drops entries that are at least span old. An entry exactly span old
// is expired.
func (w *window) prune(now time.Time, span time.Duration) {
	for w.size > 0 && !w.front().at.Add(span).After(now) {
		w.popFront()
	}
}

// releaseAt returns the issuance time of the entry holding the k-th oldest
// permit. Once that entry expires at least k permits are free.
func (w *window) releaseAt(k int) (time.Time, bool) {
	if k <= 0 {
		return time.Time{}, false
	}
	seen := 0
	for i := 0; i < w.size; i++ {
		e := w.at(i)
		seen += e.permits
		if seen >= k {
			return e.at, true
		}
	}
	return time.Time{}, false
}

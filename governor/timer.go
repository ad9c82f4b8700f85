package governor

import "container/heap"

// wakeEntry is one scheduled single-shot wake-up.
type wakeEntry struct {
	due int64 // absolute clock time (ms)
	seq int64 // insertion order, deterministic tie-breaker
	key string
	fn  func(now int64)
}

// wakeHeap orders wake entries by due time, then insertion order.
type wakeHeap []*wakeEntry

func (h wakeHeap) Len() int { return len(h) }
func (h wakeHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h wakeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *wakeHeap) Push(x any) {
	*h = append(*h, x.(*wakeEntry))
}

func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// wakeScheduler is a tick-driven single-shot timer keyed by name. There are
// no goroutines and no time.Timer behind it: the owner calls Fire from its
// tick and due entries run synchronously there.
//
// Schedule is idempotent per key (a second schedule while one is pending is
// a no-op) and Cancel is safe for unknown keys. A wake that fires after its
// key was cancelled is a no-op.
type wakeScheduler struct {
	clock   Clock
	heap    wakeHeap
	pending map[string]*wakeEntry
	seq     int64
}

func newWakeScheduler(clock Clock) *wakeScheduler {
	return &wakeScheduler{
		clock:   clock,
		pending: make(map[string]*wakeEntry),
	}
}

// Schedule arms a wake for key after delayMs. Returns false if the key
// already has a pending wake.
func (ws *wakeScheduler) Schedule(key string, delayMs int64, fn func(now int64)) bool {
	if _, ok := ws.pending[key]; ok {
		return false
	}
	if delayMs < 0 {
		delayMs = 0
	}
	ws.seq++
	e := &wakeEntry{due: ws.clock.Now() + delayMs, seq: ws.seq, key: key, fn: fn}
	ws.pending[key] = e
	heap.Push(&ws.heap, e)
	return true
}

// Cancel disarms the pending wake for key, if any. The heap entry stays
// until it pops; Fire discards entries whose key no longer points at them.
func (ws *wakeScheduler) Cancel(key string) {
	delete(ws.pending, key)
}

// Pending reports whether key has an armed wake.
func (ws *wakeScheduler) Pending(key string) bool {
	_, ok := ws.pending[key]
	return ok
}

// Fire runs every due, still-armed wake. Entries disarm before their fn
// runs, so a callback may immediately re-schedule its own key.
func (ws *wakeScheduler) Fire() {
	now := ws.clock.Now()
	for len(ws.heap) > 0 && ws.heap[0].due <= now {
		e := heap.Pop(&ws.heap).(*wakeEntry)
		if cur, ok := ws.pending[e.key]; !ok || cur != e {
			continue // cancelled or superseded after cancel
		}
		delete(ws.pending, e.key)
		e.fn(now)
	}
}

// NextDue returns the earliest armed due time, or ok=false when idle.
func (ws *wakeScheduler) NextDue() (int64, bool) {
	for len(ws.heap) > 0 {
		e := ws.heap[0]
		if cur, ok := ws.pending[e.key]; ok && cur == e {
			return e.due, true
		}
		heap.Pop(&ws.heap)
	}
	return 0, false
}

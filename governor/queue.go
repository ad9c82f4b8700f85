package governor

// Compaction thresholds for workQueue: repack once the dead prefix exceeds
// both an absolute floor and half the backing array.
const (
	compactMinHead = 32
)

// workQueue is a FIFO of update targets backed by an append-only slice plus
// a head index. Popping advances the head instead of re-slicing the front,
// giving amortized O(1) pop-front; the backing array is compacted once the
// dead prefix grows past the thresholds above.
//
// Membership is a set (Contains drives idempotent marking) while order is
// FIFO. Not thread-safe; owned exclusively by the BatchScheduler.
type workQueue struct {
	items []Target
	head  int
}

// Len returns the number of live entries.
func (q *workQueue) Len() int {
	return len(q.items) - q.head
}

// Contains scans the live entries (head forward) for t. O(queue length),
// acceptable because queues are drained frequently and stay small.
func (q *workQueue) Contains(t Target) bool {
	for i := q.head; i < len(q.items); i++ {
		if q.items[i] == t {
			return true
		}
	}
	return false
}

// Push appends a target to the back of the queue.
func (q *workQueue) Push(t Target) {
	q.items = append(q.items, t)
}

// Pop removes and returns the front target, or nil when empty.
func (q *workQueue) Pop() Target {
	if q.head >= len(q.items) {
		return nil
	}
	t := q.items[q.head]
	q.items[q.head] = nil // release the reference
	q.head++
	q.maybeCompact()
	return t
}

// DrainTo moves every live entry into dst, preserving FIFO order, and
// empties the receiver. Used by priority decay to promote whole queues.
func (q *workQueue) DrainTo(dst *workQueue) {
	for i := q.head; i < len(q.items); i++ {
		dst.Push(q.items[i])
	}
	q.items = q.items[:0]
	q.head = 0
}

func (q *workQueue) maybeCompact() {
	if q.head < compactMinHead || q.head*2 < len(q.items) {
		return
	}
	n := copy(q.items, q.items[q.head:])
	for i := n; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:n]
	q.head = 0
}

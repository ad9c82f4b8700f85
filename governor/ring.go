package governor

import "sort"

// sampleRing is a fixed-capacity ring buffer of cycle durations (ms).
// A running sum is kept in sync with insertions and evictions so the mean
// is O(1) per sample; min/max and percentiles are recomputed from snapshots.
// Not thread-safe; owned exclusively by the BudgetTracker.
type sampleRing struct {
	samples []float64
	head    int // next write position
	size    int // current number of valid entries (0..cap)
	sum     float64
}

func newSampleRing(capacity int) *sampleRing {
	if capacity <= 0 {
		capacity = DefaultSampleWindow
	}
	return &sampleRing{samples: make([]float64, capacity)}
}

// Push inserts a sample, evicting the oldest once the ring is full, and
// returns the updated running mean.
func (r *sampleRing) Push(v float64) float64 {
	if r.size == len(r.samples) {
		r.sum -= r.samples[r.head]
	} else {
		r.size++
	}
	r.samples[r.head] = v
	r.sum += v
	r.head = (r.head + 1) % len(r.samples)
	return r.Mean()
}

func (r *sampleRing) Len() int {
	return r.size
}

func (r *sampleRing) Mean() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sum / float64(r.size)
}

// Snapshot copies the valid samples into a fresh slice, oldest first.
func (r *sampleRing) Snapshot() []float64 {
	out := make([]float64, 0, r.size)
	start := r.head - r.size
	for i := 0; i < r.size; i++ {
		idx := start + i
		if idx < 0 {
			idx += len(r.samples)
		}
		out = append(out, r.samples[idx%len(r.samples)])
	}
	return out
}

// Percentiles sorts a snapshot and returns the p50/p95/p99 values.
// O(n log n); callers amortize it over many cycles (see BudgetTracker).
func (r *sampleRing) Percentiles() (p50, p95, p99 float64) {
	if r.size == 0 {
		return 0, 0, 0
	}
	snap := r.Snapshot()
	sort.Float64s(snap)
	return percentile(snap, 50), percentile(snap, 95), percentile(snap, 99)
}

// percentile reads the p-th percentile from an already-sorted slice using
// nearest-rank on the upper side, so P99 of a short window is its max.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(p / 100.0 * float64(n-1))
	if rank < 0 {
		rank = 0
	}
	if rank >= n-1 {
		return sorted[n-1]
	}
	// Round the fractional rank up: a small over-read is the safe bias for
	// latency percentiles.
	frac := p/100.0*float64(n-1) - float64(rank)
	if frac > 0 {
		rank++
	}
	return sorted[rank]
}

func (r *sampleRing) Reset() {
	r.head = 0
	r.size = 0
	r.sum = 0
}

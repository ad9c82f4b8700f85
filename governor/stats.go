package governor

import "fmt"

// histogramBounds are the upper bounds (ms, exclusive) of the latency
// buckets; the final bucket is unbounded (>= 30 ms).
var histogramBounds = [...]float64{5, 10, 15, 20, 30}

// NumHistogramBuckets counts the latency buckets, including the overflow
// bucket.
const NumHistogramBuckets = len(histogramBounds) + 1

// bucketIndex returns the histogram bucket for a cycle duration.
func bucketIndex(ms float64) int {
	for i, bound := range histogramBounds {
		if ms < bound {
			return i
		}
	}
	return NumHistogramBuckets - 1
}

// BucketLabel describes histogram bucket i for reporting ("<5ms" .. ">=30ms").
func BucketLabel(i int) string {
	if i < 0 || i >= NumHistogramBuckets {
		return "?"
	}
	if i == NumHistogramBuckets-1 {
		return fmt.Sprintf(">=%gms", histogramBounds[len(histogramBounds)-1])
	}
	return fmt.Sprintf("<%gms", histogramBounds[i])
}

// Statistics is a by-value snapshot of the BudgetTracker's view of recent
// cycles. P50/P95/P99 are recomputed every percentileInterval cycles and are
// stale in between; that staleness is bounded and deliberate (the sort is
// amortized), so consumers must not assume per-cycle freshness.
type Statistics struct {
	Cycles int     // total cycles recorded since construction/Reset
	Window int     // samples currently in the ring
	Mean   float64 // running mean over the window (ms)
	Min    float64 // minimum over all recorded cycles (ms)
	Max    float64 // maximum over all recorded cycles (ms)
	P50    float64
	P95    float64
	P99    float64
	Histogram [NumHistogramBuckets]int

	TargetCycleTime float64 // current admission target (ms)

	DeferredRan     int // callbacks executed from the deferred queues
	DeferredQueued  int // callbacks that could not run inline and were queued
	DeferredDropped int // low-urgency callbacks dropped at queue capacity
	CallbackFaults  int // callback panics caught and reported
}

// SchedulerStats is a by-value snapshot of BatchScheduler counters.
type SchedulerStats struct {
	Processed      int // targets validated and invoked
	InvalidSkipped int // dead or capability-less targets skipped
	DuplicateMarks int // MarkPending calls that found the target already queued
	BatchesRun     int // RunCycle passes that processed at least one target
	ThrottledRuns  int // RunCycle passes skipped by the min-interval gate
	BlockedRuns    int // re-entrant RunCycle attempts
	DecayEvents    int // priority-decay promotions (whole-queue moves)
	TargetFaults   int // update panics caught and reported
	BatchSize      int // current adaptive batch size
	MinIntervalMs  int64
	Pending        int // targets currently queued across all levels
}

// EventStats is the per-event breakdown reported by the EventCoalescer.
type EventStats struct {
	Coalesced  int // submissions accepted for this event
	Dispatched int // dispatches delivered to subscribers
	Deferred   int // budget-driven postponements
	Emergency  int // forced dispatches after defer/window exhaustion
	MinBatch   int // smallest accumulated count observed at dispatch
	MaxBatch   int // largest accumulated count observed at dispatch
}

// CoalescerStats is a by-value snapshot of EventCoalescer counters.
type CoalescerStats struct {
	Coalesced        int     // total submissions accepted
	Dispatched       int     // total dispatches delivered
	Deferred         int     // total budget-driven postponements
	EmergencyFlushes int     // total forced dispatches
	SubscriberFaults int     // subscriber panics caught and reported
	SavingsPercent   float64 // (coalesced-dispatched)/coalesced*100
	AvgBatch         float64 // mean accumulated count per dispatch
	PerEvent         map[string]EventStats
}

package governor

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// percentileInterval is how many cycles pass between percentile
	// recomputations. Percentiles are stale in between (bounded staleness,
	// amortizing the O(n log n) sort).
	percentileInterval = 30

	// drainCap bounds how many deferred callbacks one DrainDeferred pass may
	// execute, across all urgencies, so draining itself has bounded cost.
	drainCap = 5

	// probeCost is the fixed cost estimate (ms) DeferOrRun uses when asking
	// whether a callback may run inline.
	probeCost = 0.5
)

// affordFraction maps each non-critical Urgency to its share of the target
// cycle time. Critical bypasses the gate entirely.
var affordFraction = map[Urgency]float64{
	UrgencyHigh:   0.75,
	UrgencyNormal: 0.60,
	UrgencyLow:    0.40,
}

// DeferOutcome reports what DeferOrRun did with a callback.
type DeferOutcome int

const (
	RanImmediately DeferOutcome = iota
	Deferred
	Dropped
)

func (o DeferOutcome) String() string {
	switch o {
	case RanImmediately:
		return "ran"
	case Deferred:
		return "deferred"
	default:
		return "dropped"
	}
}

// DeferredFunc is a callback queued by DeferOrRun. ctx is the opaque context
// captured at queue time and handed back on execution.
type DeferredFunc func(ctx any)

type deferredCallback struct {
	fn  DeferredFunc
	ctx any
}

// BudgetTracker measures cycle durations, maintains rolling statistics, and
// answers admission-control queries. It also owns the per-urgency deferred
// callback queues fed by DeferOrRun.
//
// The admission gate is mean-based on purpose: switching to P95/P99 gating
// would change observable throttling behavior even though percentiles are
// tracked. Keep the gate and the percentiles independent.
//
// Not thread-safe; all calls must come from the single tick thread.
type BudgetTracker struct {
	clock Clock
	diag  DiagnosticSink

	ring   *sampleRing
	cycles int
	min    float64
	max    float64
	p50    float64
	p95    float64
	p99    float64
	histogram [NumHistogramBuckets]int

	targetCycleTime float64

	deferred    [NumUrgencies][]deferredCallback
	deferredCap int

	ranCount     int
	queuedCount  int
	droppedCount int
	faultCount   int
}

// NewBudgetTracker constructs a tracker from a validated Config.
func NewBudgetTracker(cfg Config, clock Clock, diag DiagnosticSink) *BudgetTracker {
	cfg.Validate()
	if clock == nil {
		clock = NewClock()
	}
	if diag == nil {
		diag = NewLogDiagnostics()
	}
	return &BudgetTracker{
		clock:           clock,
		diag:            diag,
		ring:            newSampleRing(cfg.SampleWindow),
		targetCycleTime: cfg.TargetCycleTimeMs,
		deferredCap:     cfg.DeferredQueueCap,
	}
}

// RecordCycle appends one cycle's elapsed duration (ms) to the sample window
// and updates the running statistics. Every percentileInterval-th call
// recomputes P50/P95/P99 from a sorted snapshot. It finishes by draining up
// to drainCap ready deferred callbacks.
func (bt *BudgetTracker) RecordCycle(elapsedMs float64) {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	bt.ring.Push(elapsedMs)
	bt.cycles++
	if bt.cycles == 1 || elapsedMs < bt.min {
		bt.min = elapsedMs
	}
	if elapsedMs > bt.max {
		bt.max = elapsedMs
	}
	bt.histogram[bucketIndex(elapsedMs)]++

	if bt.cycles%percentileInterval == 0 {
		bt.p50, bt.p95, bt.p99 = bt.ring.Percentiles()
		logrus.Tracef("budget: percentiles refreshed p50=%.2f p95=%.2f p99=%.2f", bt.p50, bt.p95, bt.p99)
	}

	bt.DrainDeferred()
}

// CanAfford reports whether work of the given urgency and estimated cost
// (ms) is admissible right now. Critical is always admitted. For the rest,
// the gate is a soft, mean-based check against a fraction of the target
// cycle time, not a hard guarantee.
func (bt *BudgetTracker) CanAfford(u Urgency, estCost float64) bool {
	u = ClampUrgency(u)
	if u == UrgencyCritical {
		return true
	}
	threshold := bt.targetCycleTime * affordFraction[u]
	return bt.ring.Mean()+estCost <= threshold
}

// DeferOrRun runs fn inline when the urgency can afford a small fixed cost,
// otherwise queues it for a later DrainDeferred. A low-urgency queue at
// capacity drops the callback (counted and reported); higher urgencies are
// never dropped and may grow past the soft cap, so sustained overload shows
// up as queue growth, not silent loss.
func (bt *BudgetTracker) DeferOrRun(fn DeferredFunc, u Urgency, ctx any) DeferOutcome {
	if fn == nil {
		return Dropped
	}
	u = ClampUrgency(u)
	if bt.CanAfford(u, probeCost) {
		bt.runIsolated(fn, ctx)
		bt.ranCount++
		return RanImmediately
	}
	qi := int(u) - 1
	if u == UrgencyLow && len(bt.deferred[qi]) >= bt.deferredCap {
		bt.droppedCount++
		bt.diag.Report("budget", fmt.Sprintf("deferred queue full, dropping low-urgency callback (cap=%d)", bt.deferredCap), SeverityWarning)
		return Dropped
	}
	bt.deferred[qi] = append(bt.deferred[qi], deferredCallback{fn: fn, ctx: ctx})
	bt.queuedCount++
	return Deferred
}

// DrainDeferred executes queued callbacks most-urgent-first, stopping at the
// first urgency that is not currently affordable and after at most drainCap
// executions in total. Callback faults are isolated and reported; draining
// continues past them.
func (bt *BudgetTracker) DrainDeferred() {
	executed := 0
	for u := UrgencyCritical; u <= UrgencyLow; u++ {
		qi := int(u) - 1
		if len(bt.deferred[qi]) == 0 {
			continue
		}
		if !bt.CanAfford(u, probeCost) {
			// Lower urgencies are gated even harder; nothing past this
			// point can run this cycle.
			break
		}
		for len(bt.deferred[qi]) > 0 && executed < drainCap {
			cb := bt.deferred[qi][0]
			bt.deferred[qi] = bt.deferred[qi][1:]
			bt.runIsolated(cb.fn, cb.ctx)
			bt.ranCount++
			executed++
		}
		if executed >= drainCap {
			return
		}
	}
}

func (bt *BudgetTracker) runIsolated(fn DeferredFunc, ctx any) {
	defer func() {
		if r := recover(); r != nil {
			bt.faultCount++
			bt.diag.Report("budget", fmt.Sprintf("deferred callback panic: %v", r), SeverityError)
		}
	}()
	fn(ctx)
}

// SetTargetCycleTime changes the admission target (ms). Non-positive values
// are ignored.
func (bt *BudgetTracker) SetTargetCycleTime(ms float64) {
	if ms > 0 {
		bt.targetCycleTime = ms
	}
}

// TargetCycleTime returns the current admission target (ms).
func (bt *BudgetTracker) TargetCycleTime() float64 {
	return bt.targetCycleTime
}

// PendingDeferred returns the number of queued deferred callbacks across all
// urgencies.
func (bt *BudgetTracker) PendingDeferred() int {
	n := 0
	for i := range bt.deferred {
		n += len(bt.deferred[i])
	}
	return n
}

// Statistics returns a by-value snapshot of the tracker's state.
func (bt *BudgetTracker) Statistics() Statistics {
	return Statistics{
		Cycles:          bt.cycles,
		Window:          bt.ring.Len(),
		Mean:            bt.ring.Mean(),
		Min:             bt.min,
		Max:             bt.max,
		P50:             bt.p50,
		P95:             bt.p95,
		P99:             bt.p99,
		Histogram:       bt.histogram,
		TargetCycleTime: bt.targetCycleTime,
		DeferredRan:     bt.ranCount,
		DeferredQueued:  bt.queuedCount,
		DeferredDropped: bt.droppedCount,
		CallbackFaults:  bt.faultCount,
	}
}

// Reset clears samples, statistics, and deferred queues. The target cycle
// time is preserved.
func (bt *BudgetTracker) Reset() {
	bt.ring.Reset()
	bt.cycles = 0
	bt.min = 0
	bt.max = 0
	bt.p50, bt.p95, bt.p99 = 0, 0, 0
	bt.histogram = [NumHistogramBuckets]int{}
	for i := range bt.deferred {
		bt.deferred[i] = nil
	}
	bt.ranCount = 0
	bt.queuedCount = 0
	bt.droppedCount = 0
	bt.faultCount = 0
}

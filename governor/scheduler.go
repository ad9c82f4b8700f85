package governor

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// decayIntervalMs is how long work may sit before the whole-queue
	// promotion pass runs (starvation prevention).
	decayIntervalMs = 5000

	// perItemCost is the cost estimate (ms) used when asking the tracker
	// whether one more target can be processed at a level.
	perItemCost = 1.0

	// batchSizeCeiling bounds the adaptive batch size on calm cycles.
	batchSizeCeiling = 16
)

// BatchScheduler owns per-level FIFO queues of update targets and drains
// them in adaptively-sized, budget-gated batches. Marking is idempotent:
// a target queued N times at a level before a drain is invoked once.
//
// The scheduler is work-conserving: it activates on the first mark and
// deactivates once every queue is empty, so an idle host tick does no
// queue work.
//
// Not thread-safe; all calls must come from the single tick thread.
type BatchScheduler struct {
	clock   Clock
	tracker *BudgetTracker
	diag    DiagnosticSink

	queues [NumQueueLevels]workQueue // index = level-1

	enabled bool
	active  bool
	running bool // transient re-entrancy guard, always cleared on exit

	baseBatchSize int
	batchSize     int
	minIntervalMs int64
	lastRun       int64
	lastDecay     int64

	processed      int
	invalidSkipped int
	duplicateMarks int
	batchesRun     int
	throttledRuns  int
	blockedRuns    int
	decayEvents    int
	targetFaults   int
}

// NewBatchScheduler constructs a scheduler gated by the given tracker.
func NewBatchScheduler(cfg Config, clock Clock, tracker *BudgetTracker, diag DiagnosticSink) *BatchScheduler {
	cfg.Validate()
	if clock == nil {
		clock = NewClock()
	}
	if diag == nil {
		diag = NewLogDiagnostics()
	}
	return &BatchScheduler{
		clock:         clock,
		tracker:       tracker,
		diag:          diag,
		enabled:       true,
		baseBatchSize: cfg.BaseBatchSize,
		batchSize:     cfg.BaseBatchSize,
		lastDecay:     clock.Now(),
	}
}

// MarkPending queues a target for processing at the given level. Duplicate
// marks of a target already queued at that level are no-ops (counted).
// Out-of-range levels are clamped. Marking activates the scheduler.
func (bs *BatchScheduler) MarkPending(t Target, level QueueLevel) {
	if t == nil || !bs.enabled {
		return
	}
	level = ClampLevel(level)
	q := &bs.queues[int(level)-1]
	if q.Contains(t) {
		bs.duplicateMarks++
		return
	}
	q.Push(t)
	bs.active = true
	logrus.Tracef("scheduler: marked target at level %s (pending=%d)", level, bs.PendingCount())
}

// Active reports whether the scheduler has pending work and wants RunCycle
// calls from the host tick loop.
func (bs *BatchScheduler) Active() bool {
	return bs.enabled && bs.active
}

// RunCycle drains one budget-gated batch, most-urgent level first. With
// force set it drains everything, bypassing the min-interval gate and the
// per-level affordability checks. Re-entrant calls are counted and return
// without side effects.
func (bs *BatchScheduler) RunCycle(force bool) {
	if !bs.enabled || !bs.active {
		return
	}
	if bs.running {
		bs.blockedRuns++
		return
	}
	bs.running = true
	defer func() { bs.running = false }()

	now := bs.clock.Now()
	bs.adapt()

	if !force && bs.minIntervalMs > 0 && now-bs.lastRun < bs.minIntervalMs {
		bs.throttledRuns++
		return
	}
	bs.lastRun = now

	if now-bs.lastDecay >= decayIntervalMs {
		bs.decay()
		bs.lastDecay = now
	}

	processedThisRun := 0
drain:
	for level := LevelImmediate; level >= LevelBackground; level-- {
		q := &bs.queues[int(level)-1]
		taken := 0
		for q.Len() > 0 {
			if !force && taken >= bs.batchSize {
				break
			}
			if !force && !bs.tracker.CanAfford(level.Urgency(), perItemCost) {
				// Budget exhausted at this level; every lower level is
				// gated harder, so stop the whole drain.
				break drain
			}
			t := q.Pop()
			taken++
			update, ok := resolveUpdate(t)
			if !ok {
				bs.invalidSkipped++
				continue
			}
			bs.invoke(update)
			bs.processed++
			processedThisRun++
		}
	}

	if processedThisRun > 0 {
		bs.batchesRun++
	}
	if bs.PendingCount() == 0 {
		// Work-conserving: stop asking for ticks until the next mark.
		bs.active = false
	}
}

// adapt recomputes the batch size and minimum inter-run interval from the
// tracker's current mean and P95. In the middle band both keep their
// previous values (hysteresis).
func (bs *BatchScheduler) adapt() {
	stats := bs.tracker.Statistics()
	mean, p95 := stats.Mean, stats.P95
	switch {
	case mean > 18 || p95 > 28:
		bs.batchSize = max(2, bs.baseBatchSize/4)
		bs.minIntervalMs = 30
	case mean > 16 || p95 > 24:
		bs.batchSize = max(2, bs.baseBatchSize/3)
		bs.minIntervalMs = 24
	case mean > 14 || p95 > 20:
		bs.batchSize = max(2, bs.baseBatchSize/2)
		bs.minIntervalMs = 18
	case mean < 11 && p95 < 16:
		bs.batchSize = min(2*bs.baseBatchSize, batchSizeCeiling)
		bs.minIntervalMs = 0
	}
}

// decay promotes every queue one level toward higher urgency
// (1 -> 2 -> 3 -> 4), so no target starves indefinitely. Order within the
// receiving queue keeps existing entries ahead of promoted ones.
func (bs *BatchScheduler) decay() {
	for level := LevelStandard; level >= LevelBackground; level-- {
		bs.queues[int(level)-1].DrainTo(&bs.queues[int(level)])
	}
	bs.decayEvents++
	logrus.Debugf("scheduler: priority decay (event %d, pending=%d)", bs.decayEvents, bs.PendingCount())
}

func (bs *BatchScheduler) invoke(update func()) {
	defer func() {
		if r := recover(); r != nil {
			bs.targetFaults++
			bs.diag.Report("scheduler", fmt.Sprintf("update target panic: %v", r), SeverityError)
		}
	}()
	update()
}

// SetEnabled turns the scheduler on or off. Disabling does not clear queued
// work; re-enabling resumes where it left off.
func (bs *BatchScheduler) SetEnabled(enabled bool) {
	bs.enabled = enabled
}

// SetBatchSize replaces the base batch size the adaptive table scales from.
// Values below 1 are clamped.
func (bs *BatchScheduler) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	bs.baseBatchSize = n
	bs.batchSize = n
}

// PendingAt returns the number of targets queued at one level.
func (bs *BatchScheduler) PendingAt(level QueueLevel) int {
	return bs.queues[int(ClampLevel(level))-1].Len()
}

// PendingCount returns the number of queued targets across all levels.
func (bs *BatchScheduler) PendingCount() int {
	n := 0
	for i := range bs.queues {
		n += bs.queues[i].Len()
	}
	return n
}

// Statistics returns a by-value snapshot of the scheduler's counters.
func (bs *BatchScheduler) Statistics() SchedulerStats {
	return SchedulerStats{
		Processed:      bs.processed,
		InvalidSkipped: bs.invalidSkipped,
		DuplicateMarks: bs.duplicateMarks,
		BatchesRun:     bs.batchesRun,
		ThrottledRuns:  bs.throttledRuns,
		BlockedRuns:    bs.blockedRuns,
		DecayEvents:    bs.decayEvents,
		TargetFaults:   bs.targetFaults,
		BatchSize:      bs.batchSize,
		MinIntervalMs:  bs.minIntervalMs,
		Pending:        bs.PendingCount(),
	}
}

// Package governor provides a cooperative, tick-driven performance governor:
// a budget tracker, a priority batch scheduler, and an event coalescer that
// together bound how much deferred work runs per frame.
//
// # Reading Guide
//
// Start with these three files to understand the governor kernel:
//   - budget.go: cycle-time statistics, admission control, deferred callbacks
//   - scheduler.go: dirty-work queues, adaptive batch sizing, priority decay
//   - coalescer.go: trailing-edge event coalescing and emergency flushing
//
// # Architecture
//
// The host owns a Governor instance and calls Tick(elapsedMs) once per
// frame/cycle. Tick feeds the elapsed duration to the BudgetTracker, lets
// the BatchScheduler drain a bounded batch of pending update targets, and
// lets the EventCoalescer fire any due dispatches. Everything is
// single-threaded and cooperative: "suspension" always means "deferred to a
// later tick", never blocking.
//
// Supporting pieces:
//   - clock.go: monotonic millisecond clock (ManualClock for tests)
//   - priority.go: the two per-subsystem priority orderings (see below)
//   - ring.go, stats.go: O(1) rolling statistics over recent cycle times
//   - queue.go: FIFO work queue with head-index compaction
//   - target.go: duck-typed update capabilities behind one interface
//   - timer.go: single-shot tick-driven wake scheduler
//   - bus/: default dispatch sink with per-handler fault isolation
//
// # Priority Orderings
//
// The subsystems deliberately use opposite ordinal conventions, inherited
// from their callers: the BudgetTracker and EventCoalescer use Urgency
// (1 = most urgent), the BatchScheduler uses QueueLevel (4 = most urgent).
// They are distinct types and must not be mixed; QueueLevel.Urgency() is
// the only conversion, applied at the scheduler/tracker boundary.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Clock: monotonic time source
//   - Target + one of FullUpdater/PartialUpdater/HealthUpdater/PowerUpdater
//   - DispatchSink: receives finalized coalesced events
//   - DiagnosticSink: receives caught faults, drops, and emergency flushes
package governor

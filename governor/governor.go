package governor

// Governor owns the three subsystems and exposes the host-facing tick
// entry point. There is no implicit global state: the host constructs one
// Governor and drives it from its update loop.
//
// Single-threaded by contract: Tick, MarkPending, Submit, and every other
// method must be called from the same logical thread. A multi-threaded host
// must synchronize at the tick boundary, not inside these algorithms.
type Governor struct {
	clock     Clock
	tracker   *BudgetTracker
	scheduler *BatchScheduler
	coalescer *EventCoalescer
}

// New wires a Governor from a config, a clock, the dispatch sink for
// coalesced events, and a diagnostic sink. Nil clock, sink, and diag fall
// back to the monotonic clock, a discarding sink, and logrus diagnostics.
func New(cfg Config, clock Clock, sink DispatchSink, diag DiagnosticSink) *Governor {
	cfg.Validate()
	if clock == nil {
		clock = NewClock()
	}
	if sink == nil {
		sink = discardSink{}
	}
	if diag == nil {
		diag = NewLogDiagnostics()
	}
	tracker := NewBudgetTracker(cfg, clock, diag)
	return &Governor{
		clock:     clock,
		tracker:   tracker,
		scheduler: NewBatchScheduler(cfg, clock, tracker, diag),
		coalescer: NewEventCoalescer(cfg, clock, tracker, sink, diag),
	}
}

// Tick advances the governor by one host cycle: record the elapsed cycle
// duration, drain a budget-gated scheduler batch (only while the scheduler
// has work), then fire due coalescer dispatches.
func (g *Governor) Tick(elapsedMs float64) {
	g.tracker.RecordCycle(elapsedMs)
	if g.scheduler.Active() {
		g.scheduler.RunCycle(false)
	}
	g.coalescer.Tick()
}

// Tracker returns the budget tracker.
func (g *Governor) Tracker() *BudgetTracker {
	return g.tracker
}

// Scheduler returns the batch scheduler.
func (g *Governor) Scheduler() *BatchScheduler {
	return g.scheduler
}

// Coalescer returns the event coalescer.
func (g *Governor) Coalescer() *EventCoalescer {
	return g.coalescer
}

// discardSink drops dispatches; the fallback when no sink is wired.
type discardSink struct{}

func (discardSink) Dispatch(string, ...any) {}

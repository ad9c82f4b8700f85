package governor

import (
	"testing"
)

type recorded struct {
	name string
	args []any
}

// recordingSub captures coalesced dispatches it subscribed for.
type recordingSub struct {
	events []recorded
}

func (r *recordingSub) HandleEvent(name string, args ...any) {
	r.events = append(r.events, recorded{name: name, args: args})
}

// captureSink captures ad-hoc and passthrough deliveries.
type captureSink struct {
	events []recorded
}

func (c *captureSink) Dispatch(name string, args ...any) {
	c.events = append(c.events, recorded{name: name, args: args})
}

func newTestCoalescer() (*EventCoalescer, *BudgetTracker, *ManualClock, *captureSink) {
	clock := NewManualClock(0)
	cfg := Config{SampleWindow: 5}
	tracker := NewBudgetTracker(cfg, clock, NewLogDiagnostics())
	sink := &captureSink{}
	return NewEventCoalescer(cfg, clock, tracker, sink, NewLogDiagnostics()), tracker, clock, sink
}

func TestCoalescer_BurstYieldsSingleTrailingDispatchWithLatestArgs(t *testing.T) {
	// GIVEN an event registered with a 50ms delay window
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 50, sub, UrgencyNormal)

	// WHEN three submissions land within one window
	clock.Advance(10)
	ec.Submit("health", UrgencyNormal, "a1")
	clock.Advance(10)
	ec.Submit("health", UrgencyNormal, "a2")
	clock.Advance(10)
	ec.Submit("health", UrgencyNormal, "a3")

	// THEN nothing dispatches until the window closes
	ec.Tick()
	if len(sub.events) != 0 {
		t.Fatalf("dispatched before delay elapsed: %v", sub.events)
	}

	clock.Advance(20) // t=50, wake due
	ec.Tick()

	// and exactly one dispatch carries the latest args
	if len(sub.events) != 1 {
		t.Fatalf("dispatches: got %d, want 1", len(sub.events))
	}
	if len(sub.events[0].args) != 1 || sub.events[0].args[0] != "a3" {
		t.Errorf("dispatched args: got %v, want [a3]", sub.events[0].args)
	}

	stats := ec.Statistics()
	if stats.Coalesced != 3 || stats.Dispatched != 1 {
		t.Errorf("counters: coalesced=%d dispatched=%d, want 3/1", stats.Coalesced, stats.Dispatched)
	}
}

func TestCoalescer_CriticalEventsDispatchImmediately(t *testing.T) {
	ec, _, _, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("alert", 100, sub, UrgencyCritical)

	ec.Submit("alert", UrgencyCritical, 1)
	ec.Submit("alert", UrgencyCritical, 2)

	if len(sub.events) != 2 {
		t.Fatalf("critical dispatches: got %d, want 2 (one per submit)", len(sub.events))
	}
	if sub.events[1].args[0] != 2 {
		t.Errorf("second dispatch args: got %v, want [2]", sub.events[1].args)
	}
}

func TestCoalescer_ElapsedDelayDispatchesWithoutWaiting(t *testing.T) {
	// GIVEN a registered event whose last dispatch is older than its delay
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("mana", 20, sub, UrgencyNormal)

	// WHEN a submission arrives after the delay has already elapsed
	clock.Advance(25)
	ec.Submit("mana", UrgencyNormal, "fresh")

	// THEN it dispatches on the spot, no wake needed
	if len(sub.events) != 1 {
		t.Fatalf("dispatches: got %d, want 1", len(sub.events))
	}
}

func TestCoalescer_SavingsAccounting(t *testing.T) {
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("power", 10, sub, UrgencyNormal)

	// Two bursts of five submissions, each collapsing to one dispatch
	for burst := 0; burst < 2; burst++ {
		clock.Advance(1)
		for i := 0; i < 5; i++ {
			ec.Submit("power", UrgencyNormal, i)
		}
		clock.Advance(10)
		ec.Tick()
	}

	stats := ec.Statistics()
	if stats.Coalesced != 10 || stats.Dispatched != 2 {
		t.Fatalf("counters: coalesced=%d dispatched=%d, want 10/2", stats.Coalesced, stats.Dispatched)
	}
	saved := stats.Coalesced - stats.Dispatched
	if saved != 8 {
		t.Errorf("saved: got %d, want 8", saved)
	}
	if stats.SavingsPercent < 0 || stats.SavingsPercent > 100 {
		t.Errorf("savings percent out of range: %f", stats.SavingsPercent)
	}
	if stats.SavingsPercent != 80 {
		t.Errorf("savings percent: got %f, want 80", stats.SavingsPercent)
	}

	per := stats.PerEvent["power"]
	if per.MinBatch != 5 || per.MaxBatch != 5 {
		t.Errorf("per-event batch bounds: got min=%d max=%d, want 5/5", per.MinBatch, per.MaxBatch)
	}
	if stats.AvgBatch != 5 {
		t.Errorf("avg batch: got %f, want 5", stats.AvgBatch)
	}
}

func TestCoalescer_EmergencyFlushAfterDeferBudget(t *testing.T) {
	// GIVEN a loaded tracker that never admits normal-urgency dispatches
	ec, tracker, clock, _ := newTestCoalescer()
	feedCycles(tracker, 5, 20)
	sub := &recordingSub{}
	ec.RegisterCoalesced("combat", 10, sub, UrgencyNormal)

	// WHEN an event is submitted and the budget never recovers
	clock.Advance(5)
	ec.Submit("combat", UrgencyNormal, "state")

	// THEN each due wake defers, until the defer budget (4 for normal)
	// is exhausted and the dispatch is forced
	for i := 0; i < 6 && len(sub.events) == 0; i++ {
		clock.Advance(10)
		ec.Tick()
	}

	if len(sub.events) != 1 {
		t.Fatalf("event was never force-dispatched: %d deliveries", len(sub.events))
	}
	stats := ec.Statistics()
	if stats.EmergencyFlushes != 1 {
		t.Errorf("emergency flushes: got %d, want 1", stats.EmergencyFlushes)
	}
	if stats.Deferred == 0 {
		t.Error("deferred count: got 0, want > 0")
	}
}

func TestCoalescer_AdHocEventsFlushOnInterval(t *testing.T) {
	// GIVEN unregistered events at normal urgency (30ms interval)
	ec, _, clock, sink := newTestCoalescer()
	ec.Submit("loot", UrgencyNormal, 1)
	ec.Submit("loot", UrgencyNormal, 2)
	ec.Submit("loot", UrgencyNormal, 3)

	// THEN nothing flushes before the interval
	clock.Advance(10)
	ec.Tick()
	if len(sink.events) != 0 {
		t.Fatalf("ad-hoc flushed early: %v", sink.events)
	}

	// and the whole bucket flushes in order once it elapses
	clock.Advance(20)
	ec.Tick()
	if len(sink.events) != 3 {
		t.Fatalf("ad-hoc deliveries: got %d, want 3 (wholesale)", len(sink.events))
	}
	for i, ev := range sink.events {
		if ev.args[0] != i+1 {
			t.Errorf("delivery %d: got args %v, want [%d]", i, ev.args, i+1)
		}
	}
}

func TestCoalescer_AdHocCriticalFlushesNextTick(t *testing.T) {
	ec, _, _, sink := newTestCoalescer()
	ec.Submit("urgent", UrgencyCritical, "now")
	ec.Tick()
	if len(sink.events) != 1 {
		t.Errorf("critical ad-hoc deliveries after tick: got %d, want 1", len(sink.events))
	}
}

func TestCoalescer_DisabledForwardsStraightToSink(t *testing.T) {
	ec, _, _, sink := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 50, sub, UrgencyNormal)

	ec.SetEnabled(false)
	ec.Submit("health", UrgencyNormal, "raw")

	if len(sink.events) != 1 || sink.events[0].name != "health" {
		t.Fatalf("disabled submit: sink got %v, want direct delivery", sink.events)
	}
	if len(sub.events) != 0 {
		t.Error("disabled submit still went through the coalescing slot")
	}
}

func TestCoalescer_DisableFlushesPendingState(t *testing.T) {
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 50, sub, UrgencyNormal)
	clock.Advance(1)
	ec.Submit("health", UrgencyNormal, "pending")

	ec.SetEnabled(false)

	if len(sub.events) != 1 || sub.events[0].args[0] != "pending" {
		t.Errorf("pending dispatch not flushed on disable: %v", sub.events)
	}
}

func TestCoalescer_LateWakeAfterUnregisterIsNoOp(t *testing.T) {
	// GIVEN a queued dispatch whose only subscriber unregisters in time
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 50, sub, UrgencyNormal)
	clock.Advance(1)
	ec.Submit("health", UrgencyNormal, "x")
	ec.Unregister("health", sub)

	// WHEN the wake fires
	clock.Advance(60)
	ec.Tick()

	// THEN nothing is delivered and nothing is counted as dispatched
	if len(sub.events) != 0 {
		t.Errorf("unregistered subscriber received: %v", sub.events)
	}
	if got := ec.Statistics().Dispatched; got != 0 {
		t.Errorf("dispatched count: got %d, want 0", got)
	}
}

func TestCoalescer_FlushBypassesDelayAndBudget(t *testing.T) {
	// GIVEN pending registered and ad-hoc events under heavy load
	ec, tracker, clock, sink := newTestCoalescer()
	feedCycles(tracker, 5, 50)
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 1000, sub, UrgencyLow)
	clock.Advance(1)
	ec.Submit("health", UrgencyLow, "latest")
	ec.Submit("adhoc", UrgencyLow, "queued")

	// WHEN Flush is called
	ec.Flush()

	// THEN everything is delivered immediately
	if len(sub.events) != 1 || sub.events[0].args[0] != "latest" {
		t.Errorf("registered flush: got %v, want [latest]", sub.events)
	}
	if len(sink.events) != 1 || sink.events[0].name != "adhoc" {
		t.Errorf("ad-hoc flush: got %v, want adhoc delivery", sink.events)
	}
}

func TestCoalescer_SubscriberPanicIsIsolated(t *testing.T) {
	ec, _, clock, _ := newTestCoalescer()
	bad := &panickingSub{}
	good := &recordingSub{}
	ec.RegisterCoalesced("health", 10, bad, UrgencyNormal)
	ec.RegisterCoalesced("health", 10, good, UrgencyNormal)

	clock.Advance(1)
	ec.Submit("health", UrgencyNormal, "x")
	clock.Advance(10)
	ec.Tick()

	if len(good.events) != 1 {
		t.Error("healthy subscriber missed the dispatch after a peer panicked")
	}
	if got := ec.Statistics().SubscriberFaults; got != 1 {
		t.Errorf("subscriber faults: got %d, want 1", got)
	}
}

type panickingSub struct{}

func (*panickingSub) HandleEvent(string, ...any) { panic("subscriber bug") }

func TestRegisterCoalesced_IsIdempotentAndUpdatesSlot(t *testing.T) {
	// GIVEN a subscriber registered twice with different parameters
	ec, _, clock, _ := newTestCoalescer()
	sub := &recordingSub{}
	ec.RegisterCoalesced("health", 50, sub, UrgencyNormal)
	ec.RegisterCoalesced("health", 5, sub, UrgencyNormal) // updates delay only

	// WHEN a burst dispatches
	clock.Advance(1)
	ec.Submit("health", UrgencyNormal, "x")
	clock.Advance(5)
	ec.Tick()

	// THEN the shorter delay applied and the subscriber fired exactly once
	if len(sub.events) != 1 {
		t.Errorf("dispatches to twice-registered subscriber: got %d, want 1", len(sub.events))
	}
}

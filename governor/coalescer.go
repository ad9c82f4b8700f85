package governor

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// coalesceCost is the cost estimate (ms) used when asking the tracker
// whether a coalesced dispatch is admissible.
const coalesceCost = 0.5

// DispatchSink receives finalized event deliveries for events with no
// coalescing slot (ad-hoc mode) and for all events while the coalescer is
// disabled. It must isolate subscriber failures on its side; bus.Bus does.
type DispatchSink interface {
	Dispatch(name string, args ...any)
}

// EventSubscriber receives coalesced dispatches for events it registered
// for. Implementations must be comparable (use pointer receivers):
// Unregister matches subscribers by interface equality.
type EventSubscriber interface {
	HandleEvent(name string, args ...any)
}

// coalesceSlot is the per-event state for registered (coalesced) events.
// Invariant: at most one pending wake per event name, enforced by the
// wakeScheduler's per-key idempotence.
type coalesceSlot struct {
	subs          []EventSubscriber
	delayMs       int64
	urgency       Urgency
	pendingArgs   []any
	accumulated   int
	firstQueuedAt int64
	lastDispatch  int64
	deferCount    int
	totals        EventStats
}

// eventBucket is the per-event state for unregistered (ad-hoc) events:
// every occurrence is kept, in order, and flushed wholesale at the fixed
// per-urgency interval.
type eventBucket struct {
	urgency Urgency
	args    [][]any
}

// EventCoalescer collapses bursts of the same named event into a single
// trailing-edge dispatch carrying the latest arguments. Registered events
// get a per-event delay window and subscriber list; unregistered events are
// bucketed per urgency and flushed wholesale on a fixed interval.
//
// The correctness contract is "eventually deliver the latest payload for
// this event name within the delay/emergency window": intermediate
// payloads may be dropped, the most recent one never is.
//
// Not thread-safe; all calls must come from the single tick thread.
type EventCoalescer struct {
	clock   Clock
	tracker *BudgetTracker
	sink    DispatchSink
	diag    DiagnosticSink
	wakes   *wakeScheduler

	enabled bool
	slots   map[string]*coalesceSlot
	buckets map[string]*eventBucket

	adhocIntervals [NumUrgencies]int64
	lastAdhocFlush [NumUrgencies]int64

	coalesced        int
	dispatched       int
	deferredTotal    int
	emergencyFlushes int
	subscriberFaults int
	slotDispatches   int
	batchSum         int
}

// NewEventCoalescer constructs a coalescer gated by the given tracker and
// delivering ad-hoc events to sink.
func NewEventCoalescer(cfg Config, clock Clock, tracker *BudgetTracker, sink DispatchSink, diag DiagnosticSink) *EventCoalescer {
	cfg.Validate()
	if clock == nil {
		clock = NewClock()
	}
	if diag == nil {
		diag = NewLogDiagnostics()
	}
	ec := &EventCoalescer{
		clock:          clock,
		tracker:        tracker,
		sink:           sink,
		diag:           diag,
		wakes:          newWakeScheduler(clock),
		enabled:        true,
		slots:          make(map[string]*coalesceSlot),
		buckets:        make(map[string]*eventBucket),
		adhocIntervals: cfg.coalesceIntervals(),
	}
	now := clock.Now()
	for i := range ec.lastAdhocFlush {
		ec.lastAdhocFlush[i] = now
	}
	return ec
}

// RegisterCoalesced subscribes sub to name and establishes (or updates) the
// event's coalescing slot with the given delay window and urgency.
// Re-registering an existing subscriber only updates the slot parameters.
func (ec *EventCoalescer) RegisterCoalesced(name string, delayMs int64, sub EventSubscriber, u Urgency) {
	if name == "" || sub == nil {
		return
	}
	if delayMs < 0 {
		delayMs = 0
	}
	u = ClampUrgency(u)
	slot, ok := ec.slots[name]
	if !ok {
		slot = &coalesceSlot{lastDispatch: ec.clock.Now(), totals: EventStats{MinBatch: -1}}
		ec.slots[name] = slot
	}
	slot.delayMs = delayMs
	slot.urgency = u
	for _, s := range slot.subs {
		if s == sub {
			return
		}
	}
	slot.subs = append(slot.subs, sub)
}

// Unregister removes sub from name's subscriber list. The slot itself (and
// any armed wake) survives: a wake firing with no subscribers left is a
// safe no-op.
func (ec *EventCoalescer) Unregister(name string, sub EventSubscriber) {
	slot, ok := ec.slots[name]
	if !ok {
		return
	}
	for i, s := range slot.subs {
		if s == sub {
			slot.subs = append(slot.subs[:i:i], slot.subs[i+1:]...)
			return
		}
	}
}

// Submit accepts one occurrence of an event. For registered events the
// urgency argument is ignored (the slot's urgency applies) and the latest
// args overwrite any pending ones. Unregistered events are bucketed by
// urgency for wholesale interval flushing. While disabled, everything goes
// straight to the sink.
func (ec *EventCoalescer) Submit(name string, u Urgency, args ...any) {
	if name == "" {
		return
	}
	if !ec.enabled {
		ec.sink.Dispatch(name, args...)
		return
	}

	if slot, ok := ec.slots[name]; ok {
		ec.submitCoalesced(name, slot, args)
		return
	}

	u = ClampUrgency(u)
	b, ok := ec.buckets[name]
	if !ok {
		b = &eventBucket{urgency: u}
		ec.buckets[name] = b
	}
	b.urgency = u
	b.args = append(b.args, args)
	ec.coalesced++
}

func (ec *EventCoalescer) submitCoalesced(name string, slot *coalesceSlot, args []any) {
	now := ec.clock.Now()
	slot.pendingArgs = args // last write wins
	slot.accumulated++
	slot.totals.Coalesced++
	ec.coalesced++
	if slot.accumulated == 1 {
		slot.firstQueuedAt = now
	}

	if slot.urgency == UrgencyCritical {
		ec.dispatchSlot(name, slot, true)
		return
	}
	if now-slot.lastDispatch >= slot.delayMs {
		ec.dispatchSlot(name, slot, false)
		return
	}
	remaining := slot.delayMs - (now - slot.lastDispatch)
	// Idempotent per key: a wake already armed for this slot stays as-is.
	ec.wakes.Schedule(name, remaining, func(int64) {
		if s, ok := ec.slots[name]; ok {
			ec.dispatchSlot(name, s, false)
		}
	})
}

// dispatchSlot finalizes a registered event. Unless forced it consults the
// tracker first and may postpone (defer) the dispatch, but never
// indefinitely: exhausting the urgency-scaled defer budget or wait window
// forces an emergency flush.
func (ec *EventCoalescer) dispatchSlot(name string, slot *coalesceSlot, force bool) {
	if slot.accumulated == 0 {
		return // stale wake, nothing pending
	}
	now := ec.clock.Now()

	if !force && slot.urgency != UrgencyCritical && !ec.tracker.CanAfford(slot.urgency, coalesceCost) {
		slot.deferCount++
		slot.totals.Deferred++
		ec.deferredTotal++
		if slot.deferCount <= maxDefers(slot.urgency) && now-slot.firstQueuedAt <= maxWaitWindow(slot.urgency, slot.delayMs) {
			retry := slot.delayMs
			if retry < 1 {
				retry = 1
			}
			ec.wakes.Schedule(name, retry, func(int64) {
				if s, ok := ec.slots[name]; ok {
					ec.dispatchSlot(name, s, false)
				}
			})
			return
		}
		slot.totals.Emergency++
		ec.emergencyFlushes++
		ec.diag.Report("coalescer", fmt.Sprintf("emergency flush of %q after %d defers (%dms queued)", name, slot.deferCount, now-slot.firstQueuedAt), SeverityWarning)
	}

	args := slot.pendingArgs
	batch := slot.accumulated

	// Reset accumulation before invoking subscribers so a subscriber
	// submitting the same event starts a fresh window.
	slot.pendingArgs = nil
	slot.accumulated = 0
	slot.deferCount = 0
	slot.lastDispatch = now
	ec.wakes.Cancel(name)

	if len(slot.subs) == 0 {
		return // everyone unregistered while queued; deliberate no-op
	}

	for _, sub := range slot.subs {
		ec.deliver(sub, name, args)
	}
	slot.totals.Dispatched++
	ec.dispatched++
	ec.slotDispatches++
	ec.batchSum += batch
	if slot.totals.MinBatch < 0 || batch < slot.totals.MinBatch {
		slot.totals.MinBatch = batch
	}
	if batch > slot.totals.MaxBatch {
		slot.totals.MaxBatch = batch
	}
	logrus.Tracef("coalescer: dispatched %q batch=%d subs=%d", name, batch, len(slot.subs))
}

func (ec *EventCoalescer) deliver(sub EventSubscriber, name string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			ec.subscriberFaults++
			ec.diag.Report("coalescer", fmt.Sprintf("subscriber panic for %q: %v", name, r), SeverityError)
		}
	}()
	sub.HandleEvent(name, args...)
}

// maxDefers is the urgency-scaled postponement budget: two defers per
// urgency step below critical.
func maxDefers(u Urgency) int {
	n := 2 * (int(u) - 1)
	if n < 1 {
		n = 1
	}
	return n
}

// maxWaitWindow is the urgency-scaled total queue window (ms) before a
// dispatch is forced regardless of budget.
func maxWaitWindow(u Urgency, delayMs int64) int64 {
	if delayMs < 1 {
		delayMs = 1
	}
	w := 3 * delayMs * int64(int(u)-1)
	if w < delayMs {
		w = delayMs
	}
	return w
}

// Tick fires due wakes and flushes ad-hoc buckets whose per-urgency
// interval has elapsed. The host calls this once per cycle.
func (ec *EventCoalescer) Tick() {
	if !ec.enabled {
		return
	}
	ec.wakes.Fire()

	now := ec.clock.Now()
	for u := UrgencyCritical; u <= UrgencyLow; u++ {
		i := int(u) - 1
		if now-ec.lastAdhocFlush[i] < ec.adhocIntervals[i] {
			continue
		}
		ec.lastAdhocFlush[i] = now
		ec.flushBuckets(u)
	}
}

// flushBuckets delivers every queued occurrence for buckets of urgency u to
// the sink, wholesale and in order.
func (ec *EventCoalescer) flushBuckets(u Urgency) {
	for name, b := range ec.buckets {
		if b.urgency != u || len(b.args) == 0 {
			continue
		}
		for _, args := range b.args {
			ec.sink.Dispatch(name, args...)
			ec.dispatched++
		}
		b.args = b.args[:0]
	}
}

// Flush force-dispatches everything immediately: all pending registered
// slots (bypassing delay and budget checks) and all ad-hoc buckets. Used on
// mode transitions.
func (ec *EventCoalescer) Flush() {
	for name, slot := range ec.slots {
		if slot.accumulated > 0 {
			ec.dispatchSlot(name, slot, true)
		}
	}
	for u := UrgencyCritical; u <= UrgencyLow; u++ {
		ec.flushBuckets(u)
	}
}

// SetEnabled turns coalescing on or off. Disabling flushes pending state
// first so nothing is stranded; subsequent submits bypass coalescing
// entirely.
func (ec *EventCoalescer) SetEnabled(enabled bool) {
	if ec.enabled && !enabled {
		ec.Flush()
	}
	ec.enabled = enabled
}

// Statistics returns totals, the per-event breakdown, and the derived
// savings percentage.
func (ec *EventCoalescer) Statistics() CoalescerStats {
	stats := CoalescerStats{
		Coalesced:        ec.coalesced,
		Dispatched:       ec.dispatched,
		Deferred:         ec.deferredTotal,
		EmergencyFlushes: ec.emergencyFlushes,
		SubscriberFaults: ec.subscriberFaults,
		PerEvent:         make(map[string]EventStats, len(ec.slots)),
	}
	if ec.coalesced > 0 {
		stats.SavingsPercent = float64(ec.coalesced-ec.dispatched) / float64(ec.coalesced) * 100
	}
	if ec.slotDispatches > 0 {
		stats.AvgBatch = float64(ec.batchSum) / float64(ec.slotDispatches)
	}
	for name, slot := range ec.slots {
		per := slot.totals
		if per.MinBatch < 0 {
			per.MinBatch = 0
		}
		stats.PerEvent[name] = per
	}
	return stats
}

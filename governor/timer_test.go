package governor

import "testing"

func TestWakeScheduler_FiresAtDueTime(t *testing.T) {
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)

	fired := 0
	ws.Schedule("a", 10, func(int64) { fired++ })

	ws.Fire() // t=0: not due
	if fired != 0 {
		t.Fatalf("fired before due: %d", fired)
	}

	clock.Advance(9)
	ws.Fire() // t=9: still not due
	if fired != 0 {
		t.Fatalf("fired at t=9: %d", fired)
	}

	clock.Advance(1)
	ws.Fire() // t=10: due
	if fired != 1 {
		t.Errorf("fired at t=10: got %d, want 1", fired)
	}
	if ws.Pending("a") {
		t.Error("key still pending after firing")
	}
}

func TestWakeScheduler_ScheduleIsIdempotentPerKey(t *testing.T) {
	// GIVEN a key with an armed wake at t=5
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)
	fired := 0
	if !ws.Schedule("a", 5, func(int64) { fired++ }) {
		t.Fatal("first Schedule returned false")
	}

	// WHEN the same key is scheduled again
	if ws.Schedule("a", 100, func(int64) { fired += 100 }) {
		t.Fatal("second Schedule returned true, want no-op")
	}

	// THEN only the original wake fires
	clock.Advance(5)
	ws.Fire()
	if fired != 1 {
		t.Errorf("after fire: got %d, want 1", fired)
	}
}

func TestWakeScheduler_CancelledWakeIsNoOp(t *testing.T) {
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)
	fired := 0
	ws.Schedule("a", 5, func(int64) { fired++ })
	ws.Cancel("a")

	clock.Advance(10)
	ws.Fire()
	if fired != 0 {
		t.Errorf("cancelled wake fired: %d", fired)
	}

	// Cancel of an unknown key is safe
	ws.Cancel("never-scheduled")
}

func TestWakeScheduler_RescheduleAfterCancelUsesNewEntry(t *testing.T) {
	// GIVEN a wake that was cancelled and re-armed with a later due time
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)
	var order []string
	ws.Schedule("a", 5, func(int64) { order = append(order, "old") })
	ws.Cancel("a")
	ws.Schedule("a", 20, func(int64) { order = append(order, "new") })

	// WHEN time passes the old due time
	clock.Advance(10)
	ws.Fire()
	if len(order) != 0 {
		t.Fatalf("superseded entry fired: %v", order)
	}

	// THEN only the new entry fires, at its own due time
	clock.Advance(10)
	ws.Fire()
	if len(order) != 1 || order[0] != "new" {
		t.Errorf("after re-arm: got %v, want [new]", order)
	}
}

func TestWakeScheduler_CallbackMayRearmOwnKey(t *testing.T) {
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)
	fired := 0
	var fn func(int64)
	fn = func(int64) {
		fired++
		if fired < 3 {
			ws.Schedule("a", 5, fn)
		}
	}
	ws.Schedule("a", 5, fn)

	for i := 0; i < 5; i++ {
		clock.Advance(5)
		ws.Fire()
	}
	if fired != 3 {
		t.Errorf("chained wakes: got %d fires, want 3", fired)
	}
}

func TestWakeScheduler_NextDueSkipsCancelled(t *testing.T) {
	clock := NewManualClock(0)
	ws := newWakeScheduler(clock)
	ws.Schedule("early", 5, func(int64) {})
	ws.Schedule("late", 50, func(int64) {})
	ws.Cancel("early")

	due, ok := ws.NextDue()
	if !ok || due != 50 {
		t.Errorf("NextDue: got (%d,%v), want (50,true)", due, ok)
	}
}

package governor

import "fmt"

// Urgency is the priority ordinal used by the BudgetTracker and the
// EventCoalescer: 1 is the MOST urgent level, 4 the least. This matches the
// convention of the event-side callers (critical events dispatch first).
//
// Urgency and QueueLevel are deliberately separate types with opposite
// orderings; do not merge them. See doc.go, "Priority Orderings".
type Urgency int

const (
	UrgencyCritical Urgency = 1 // never throttled, never deferred
	UrgencyHigh     Urgency = 2
	UrgencyNormal   Urgency = 3
	UrgencyLow      Urgency = 4 // only level whose deferred work may be dropped
)

// NumUrgencies is the size of the closed urgency set.
const NumUrgencies = 4

// ClampUrgency maps out-of-range ordinals to the nearest valid Urgency.
// Configuration errors are never fatal (unknown priorities are clamped).
func ClampUrgency(u Urgency) Urgency {
	if u < UrgencyCritical {
		return UrgencyCritical
	}
	if u > UrgencyLow {
		return UrgencyLow
	}
	return u
}

func (u Urgency) String() string {
	switch u {
	case UrgencyCritical:
		return "critical"
	case UrgencyHigh:
		return "high"
	case UrgencyNormal:
		return "normal"
	case UrgencyLow:
		return "low"
	default:
		return fmt.Sprintf("urgency(%d)", int(u))
	}
}

// QueueLevel is the priority ordinal used by the BatchScheduler: 4 is the
// MOST urgent level, 1 the least. This matches the convention of the
// update-marking callers, where priority decay promotes work upward
// (1 -> 2 -> 3 -> 4) so nothing starves.
type QueueLevel int

const (
	LevelBackground QueueLevel = 1 // least urgent; decayed upward over time
	LevelDeferred   QueueLevel = 2
	LevelStandard   QueueLevel = 3
	LevelImmediate  QueueLevel = 4 // most urgent; drained first
)

// NumQueueLevels is the size of the closed queue-level set.
const NumQueueLevels = 4

// ClampLevel maps out-of-range ordinals to the nearest valid QueueLevel.
func ClampLevel(l QueueLevel) QueueLevel {
	if l < LevelBackground {
		return LevelBackground
	}
	if l > LevelImmediate {
		return LevelImmediate
	}
	return l
}

func (l QueueLevel) String() string {
	switch l {
	case LevelBackground:
		return "background"
	case LevelDeferred:
		return "deferred"
	case LevelStandard:
		return "standard"
	case LevelImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Urgency converts a QueueLevel into the tracker-side Urgency with the same
// relative position: LevelImmediate -> UrgencyCritical, LevelBackground ->
// UrgencyLow. This is the only sanctioned conversion between the two
// orderings and is used solely where the scheduler consults the tracker.
func (l QueueLevel) Urgency() Urgency {
	return ClampUrgency(Urgency(NumQueueLevels + 1 - int(ClampLevel(l))))
}

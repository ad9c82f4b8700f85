package governor

// Target is an opaque handle to a consumer-owned object awaiting an update.
// Alive reports whether the underlying object still exists and has not
// expired; dead targets are skipped and counted, never invoked.
//
// A usable target additionally implements exactly one of the legacy update
// capabilities below. The scheduler never assumes which one: resolveUpdate
// adapts whichever is present into a single abstract invocation.
type Target interface {
	Alive() bool
}

// FullUpdater is the legacy "refresh everything" capability.
type FullUpdater interface {
	UpdateAll()
}

// PartialUpdater is the legacy "refresh changed portions" capability.
type PartialUpdater interface {
	UpdateChanged()
}

// HealthUpdater is the legacy typed health-refresh capability.
type HealthUpdater interface {
	UpdateHealth()
}

// PowerUpdater is the legacy typed power-refresh capability.
type PowerUpdater interface {
	UpdatePower()
}

// resolveUpdate validates t and adapts its capability into one abstract
// update operation. Returns ok=false for nil, dead, or capability-less
// targets. Capability precedence (full, partial, health, power) only
// matters for misbehaving targets that expose more than one.
func resolveUpdate(t Target) (func(), bool) {
	if t == nil || !t.Alive() {
		return nil, false
	}
	switch u := t.(type) {
	case FullUpdater:
		return u.UpdateAll, true
	case PartialUpdater:
		return u.UpdateChanged, true
	case HealthUpdater:
		return u.UpdateHealth, true
	case PowerUpdater:
		return u.UpdatePower, true
	default:
		return nil, false
	}
}

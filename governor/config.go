package governor

// Defaults for the governor configuration. The target cycle time defaults to
// one 60 Hz frame.
const (
	DefaultTargetCycleTime = 16.67 // ms
	DefaultSampleWindow    = 100   // ring buffer capacity (cycles)
	DefaultBaseBatchSize   = 8     // scheduler base batch size
	DefaultDeferredCap     = 200   // soft cap per deferred-callback queue
)

// defaultCoalesceIntervals are the ad-hoc flush intervals (ms) per Urgency,
// indexed critical..low. Critical flushes on the next tick.
var defaultCoalesceIntervals = [NumUrgencies]int64{0, 10, 30, 50}

// Config groups the tunable surface of the governor. Zero values are
// replaced by defaults in Validate; out-of-range values are clamped, never
// fatal.
type Config struct {
	TargetCycleTimeMs float64 `yaml:"target_cycle_time_ms"`
	SampleWindow      int     `yaml:"sample_window"`
	BaseBatchSize     int     `yaml:"base_batch_size"`
	DeferredQueueCap  int     `yaml:"deferred_queue_cap"`

	// CoalesceIntervalsMs sets the ad-hoc event flush interval per urgency,
	// most urgent first. Missing trailing entries keep their defaults.
	CoalesceIntervalsMs []int64 `yaml:"coalesce_intervals_ms"`
}

// Validate fills defaults and clamps out-of-range values in place.
func (c *Config) Validate() {
	if c.TargetCycleTimeMs <= 0 {
		c.TargetCycleTimeMs = DefaultTargetCycleTime
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = DefaultSampleWindow
	}
	if c.BaseBatchSize < 1 {
		c.BaseBatchSize = DefaultBaseBatchSize
	}
	if c.DeferredQueueCap < 1 {
		c.DeferredQueueCap = DefaultDeferredCap
	}
	if len(c.CoalesceIntervalsMs) > NumUrgencies {
		c.CoalesceIntervalsMs = c.CoalesceIntervalsMs[:NumUrgencies]
	}
	for i, v := range c.CoalesceIntervalsMs {
		if v < 0 {
			c.CoalesceIntervalsMs[i] = defaultCoalesceIntervals[i]
		}
	}
}

// coalesceIntervals expands the configured intervals to the full per-urgency
// table.
func (c *Config) coalesceIntervals() [NumUrgencies]int64 {
	out := defaultCoalesceIntervals
	for i, v := range c.CoalesceIntervalsMs {
		if i >= NumUrgencies {
			break
		}
		out[i] = v
	}
	return out
}

package cmd

import (
	"math/rand"
)

// loadPhase is one segment of the synthetic workload: a number of cycles
// drawn from a normal distribution around a mean cycle time, plus per-cycle
// activity rates for the scheduler and coalescer.
type loadPhase struct {
	Name       string
	Cycles     int
	MeanMs     float64
	StdevMs    float64
	MarksPer   int // update targets marked per cycle
	SubmitsPer int // event submissions per cycle
}

// defaultPhases cycles the governor through calm, busy, and spike load so a
// single run exercises admission, adaptive batching, deferral, and
// emergency flushing.
var defaultPhases = []loadPhase{
	{Name: "calm", Cycles: 120, MeanMs: 6, StdevMs: 1.5, MarksPer: 3, SubmitsPer: 6},
	{Name: "busy", Cycles: 120, MeanMs: 18, StdevMs: 2.5, MarksPer: 5, SubmitsPer: 10},
	{Name: "spike", Cycles: 60, MeanMs: 30, StdevMs: 5, MarksPer: 8, SubmitsPer: 16},
	{Name: "recovery", Cycles: 120, MeanMs: 8, StdevMs: 2, MarksPer: 3, SubmitsPer: 6},
}

// workloadGen produces deterministic synthetic cycle durations. The same
// seed always produces the same run.
type workloadGen struct {
	rng    *rand.Rand
	phases []loadPhase
	phase  int
	cycle  int
}

func newWorkloadGen(seed int64, phases []loadPhase) *workloadGen {
	if len(phases) == 0 {
		phases = defaultPhases
	}
	return &workloadGen{rng: rand.New(rand.NewSource(seed)), phases: phases}
}

// Next returns the current phase and a sampled cycle duration (ms), then
// advances. ok is false once all phases are exhausted.
func (w *workloadGen) Next() (phase loadPhase, elapsedMs float64, ok bool) {
	for w.phase < len(w.phases) && w.cycle >= w.phases[w.phase].Cycles {
		w.phase++
		w.cycle = 0
	}
	if w.phase >= len(w.phases) {
		return loadPhase{}, 0, false
	}
	p := w.phases[w.phase]
	w.cycle++
	ms := p.MeanMs + w.rng.NormFloat64()*p.StdevMs
	if ms < 0.1 {
		ms = 0.1
	}
	return p, ms, true
}

// TotalCycles sums the cycle counts of all phases.
func (w *workloadGen) TotalCycles() int {
	n := 0
	for _, p := range w.phases {
		n += p.Cycles
	}
	return n
}

package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pfchrono/PerformanceLib/governor"
	"github.com/pfchrono/PerformanceLib/governor/bus"
)

var (
	// CLI flags for the synthetic governor run
	seed            int64   // Seed for random cycle-time generation
	logLevel        string  // Log verbosity level
	presetName      string  // Name of the governor tuning preset
	presetFile      string  // Optional YAML file replacing the built-in presets
	maxCycles       int     // Cap on generated cycles, 0 runs every phase to completion
	targetCycleTime float64 // Override for the admission target (ms), 0 keeps the preset value
	baseBatchSize   int     // Override for the scheduler base batch size, 0 keeps the preset value
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "perfgov",
	Short: "Cooperative tick-driven performance governor",
}

// demoTarget is a synthetic update target used by the run subcommand. Each
// capability variant exercises a different branch of the scheduler's
// duck-typed update resolution.
type demoTarget struct {
	updates int
}

func (t *demoTarget) Alive() bool { return true }
func (t *demoTarget) UpdateAll()  { t.updates++ }

type demoPartialTarget struct {
	updates int
}

func (t *demoPartialTarget) Alive() bool    { return true }
func (t *demoPartialTarget) UpdateChanged() { t.updates++ }

// demoSubscriber counts coalesced event deliveries.
type demoSubscriber struct {
	handled int
}

func (s *demoSubscriber) HandleEvent(name string, args ...any) { s.handled++ }

// runCmd drives the governor through the synthetic workload phases and
// prints a statistics report.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governor against a synthetic workload",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		presets, err := loadPresets(presetFile)
		if err != nil {
			logrus.Fatalf("unable to load presets: %v", err)
		}
		cfg, err := resolvePreset(presets, presetName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if targetCycleTime > 0 {
			cfg.TargetCycleTimeMs = targetCycleTime
		}
		if baseBatchSize > 0 {
			cfg.BaseBatchSize = baseBatchSize
		}

		logrus.Infof("Starting run with preset=%s, target=%.2fms, baseBatch=%d, seed=%d",
			presetName, cfg.TargetCycleTimeMs, cfg.BaseBatchSize, seed)

		startTime := time.Now()

		clock := governor.NewManualClock(0)
		events := bus.New(nil)
		g := governor.New(cfg, clock, events, nil)

		// Register a few coalesced channels at different urgencies; ad-hoc
		// events go through the per-urgency interval buckets instead.
		status := &demoSubscriber{}
		telemetry := &demoSubscriber{}
		g.Coalescer().RegisterCoalesced("status", 50, status, governor.UrgencyNormal)
		g.Coalescer().RegisterCoalesced("telemetry", 100, telemetry, governor.UrgencyLow)

		targets := make([]governor.Target, 0, 16)
		for i := 0; i < 8; i++ {
			targets = append(targets, &demoTarget{})
			targets = append(targets, &demoPartialTarget{})
		}

		gen := newWorkloadGen(seed, nil)
		n := 0
		for {
			if maxCycles > 0 && n >= maxCycles {
				break
			}
			phase, elapsed, ok := gen.Next()
			if !ok {
				break
			}
			for i := 0; i < phase.MarksPer; i++ {
				level := governor.ClampLevel(governor.QueueLevel(1 + (n+i)%governor.NumQueueLevels))
				g.Scheduler().MarkPending(targets[(n+i)%len(targets)], level)
			}
			for i := 0; i < phase.SubmitsPer; i++ {
				switch (n + i) % 3 {
				case 0:
					g.Coalescer().Submit("status", governor.UrgencyNormal, n)
				case 1:
					g.Coalescer().Submit("telemetry", governor.UrgencyLow, n)
				default:
					g.Coalescer().Submit("adhoc", governor.UrgencyHigh, n)
				}
			}
			clock.Advance(int64(elapsed + 0.5))
			g.Tick(elapsed)
			n++
		}

		printReport(g, gen.TotalCycles(), startTime)

		logrus.Info("Run complete.")
	},
}

// printReport writes the final statistics of all three subsystems.
func printReport(g *governor.Governor, cycles int, startTime time.Time) {
	b := g.Tracker().Statistics()
	s := g.Scheduler().Statistics()
	c := g.Coalescer().Statistics()

	fmt.Println("=== Budget Tracker ===")
	fmt.Printf("Cycles               : %d (of %d generated)\n", b.Cycles, cycles)
	fmt.Printf("Mean Cycle Time      : %.2f ms (target %.2f ms)\n", b.Mean, b.TargetCycleTime)
	fmt.Printf("Min / Max            : %.2f / %.2f ms\n", b.Min, b.Max)
	fmt.Printf("P50 / P95 / P99      : %.2f / %.2f / %.2f ms\n", b.P50, b.P95, b.P99)
	for i, count := range b.Histogram {
		fmt.Printf("  %-8s           : %d\n", governor.BucketLabel(i), count)
	}
	fmt.Printf("Deferred Ran/Queued  : %d / %d (dropped %d)\n", b.DeferredRan, b.DeferredQueued, b.DeferredDropped)

	fmt.Println("=== Batch Scheduler ===")
	fmt.Printf("Targets Processed    : %d (skipped %d, duplicate marks %d)\n", s.Processed, s.InvalidSkipped, s.DuplicateMarks)
	fmt.Printf("Batches Run          : %d (throttled %d)\n", s.BatchesRun, s.ThrottledRuns)
	fmt.Printf("Batch Size / Interval: %d / %d ms\n", s.BatchSize, s.MinIntervalMs)
	fmt.Printf("Decay Promotions     : %d, still pending %d\n", s.DecayEvents, s.Pending)

	fmt.Println("=== Event Coalescer ===")
	fmt.Printf("Coalesced/Dispatched : %d / %d (%.1f%% saved)\n", c.Coalesced, c.Dispatched, c.SavingsPercent)
	fmt.Printf("Deferred / Emergency : %d / %d\n", c.Deferred, c.EmergencyFlushes)
	fmt.Printf("Average Batch        : %.2f\n", c.AvgBatch)
	names := make([]string, 0, len(c.PerEvent))
	for name := range c.PerEvent {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ev := c.PerEvent[name]
		fmt.Printf("  %-18s : coalesced=%d dispatched=%d batch=[%d..%d]\n",
			name, ev.Coalesced, ev.Dispatched, ev.MinBatch, ev.MaxBatch)
	}

	fmt.Printf("Wall Time            : %v\n", time.Since(startTime))
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for synthetic workload generation")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&presetName, "preset", "balanced", "Governor tuning preset (responsive, balanced, conservative)")
	runCmd.Flags().StringVar(&presetFile, "preset-file", "", "YAML file with custom presets, replaces the built-in table")
	runCmd.Flags().IntVar(&maxCycles, "cycles", 0, "Cap on generated cycles (0 runs every phase to completion)")
	runCmd.Flags().Float64Var(&targetCycleTime, "target-cycle-time", 0, "Admission target in ms (overrides the preset when > 0)")
	runCmd.Flags().IntVar(&baseBatchSize, "base-batch-size", 0, "Scheduler base batch size (overrides the preset when > 0)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}

package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pfchrono/PerformanceLib/governor"
)

// builtinPresets are the shipped governor tunings. A preset file given via
// --preset-file replaces this table entirely.
var builtinPresets = map[string]governor.Config{
	"responsive": {
		TargetCycleTimeMs:   16.67, // 60 Hz
		BaseBatchSize:       4,
		CoalesceIntervalsMs: []int64{0, 5, 15, 25},
	},
	"balanced": {
		TargetCycleTimeMs:   16.67,
		BaseBatchSize:       8,
		CoalesceIntervalsMs: []int64{0, 10, 30, 50},
	},
	"conservative": {
		TargetCycleTimeMs:   33.33, // 30 Hz
		BaseBatchSize:       12,
		CoalesceIntervalsMs: []int64{0, 20, 50, 80},
	},
}

// presetFileSchema is the on-disk shape of a preset file: a flat map of
// preset name to governor config.
type presetFileSchema struct {
	Presets map[string]governor.Config `yaml:"presets"`
}

// loadPresets returns the preset table, either built-in or parsed strictly
// from the given YAML file (unknown fields are errors, so typos surface).
func loadPresets(path string) (map[string]governor.Config, error) {
	if path == "" {
		return builtinPresets, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	var parsed presetFileSchema
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse preset file %s: %w", path, err)
	}
	if len(parsed.Presets) == 0 {
		return nil, fmt.Errorf("preset file %s defines no presets", path)
	}
	return parsed.Presets, nil
}

// resolvePreset picks the named preset from the table and validates it.
func resolvePreset(presets map[string]governor.Config, name string) (governor.Config, error) {
	cfg, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		return governor.Config{}, fmt.Errorf("unknown preset %q (available: %v)", name, names)
	}
	cfg.Validate()
	return cfg, nil
}

/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package timing implements C2, the Timing Oracle: classification, a
// history-backed expected/max timeout lookup, and post-execution
// recording, per spec.md §4.2.
package timing

import (
	"context"
	"sort"

	"github.com/nabbar/cc-executor/logger"
)

// Estimate is the {expected_seconds, max_seconds, reason} triple C2
// returns for every accepted command.
type Estimate struct {
	ExpectedSeconds float64
	MaxSeconds      float64
	Reason          string // "history" | "default"
	Confidence      float64
}

// MultiplierMode selects how C1's load multiplier composes with C2's
// baseline multiplier - spec.md §9's explicitly-resolved Open Question.
type MultiplierMode string

const (
	ModeCompound MultiplierMode = "compound"
	ModeMax      MultiplierMode = "max"
)

// LoadSampler is C1's contract as seen by C2: a synchronous, uncached
// multiplier sample.
type LoadSampler interface {
	Multiplier(ctx context.Context, thresholdPct float64) int
}

// Options configures an Oracle from the subset of spec.md §6 fields that
// bear on timing.
type Options struct {
	BaselineMultiplier  int
	MultiplierMode      MultiplierMode
	UnknownFloorSeconds float64
	LoadThresholdPct    float64
	MaxSecondsCeiling   float64 // clamp for 3x-expected cap; 0 = no clamp
}

// defaultSeconds is the per-(class,complexity) default expected duration,
// before the baseline and load multipliers are applied.
var defaultSeconds = map[Class]map[Complexity]float64{
	ClassCalculation: {ComplexityTrivial: 5, ComplexityLow: 15, ComplexityMedium: 45, ComplexityHigh: 120, ComplexityExtreme: 300},
	ClassCode:        {ComplexityTrivial: 20, ComplexityLow: 60, ComplexityMedium: 180, ComplexityHigh: 420, ComplexityExtreme: 900},
	ClassData:        {ComplexityTrivial: 10, ComplexityLow: 30, ComplexityMedium: 90, ComplexityHigh: 240, ComplexityExtreme: 600},
	ClassFile:        {ComplexityTrivial: 3, ComplexityLow: 10, ComplexityMedium: 30, ComplexityHigh: 90, ComplexityExtreme: 240},
	ClassGeneral:     {ComplexityTrivial: 15, ComplexityLow: 45, ComplexityMedium: 120, ComplexityHigh: 300, ComplexityExtreme: 600},
}

// Oracle is C2. It is safe for concurrent use; the store it wraps
// tolerates concurrent appends.
type Oracle struct {
	log   logger.Logger
	store *Store
	load  LoadSampler
	opt   Options
}

func New(log logger.Logger, store *Store, load LoadSampler, opt Options) *Oracle {
	return &Oracle{log: log.WithField("component", "timing.oracle"), store: store, load: load, opt: opt}
}

// Estimate implements spec.md §4.2's Lookup algorithm exactly: classify,
// load history, 90th-percentile-or-defaults, multiply by the load
// multiplier, then enforce the unknown-command floor.
func (o *Oracle) Estimate(ctx context.Context, executable, fullCommand string) Estimate {
	class, complexity := Classify(executable, fullCommand)

	recs := o.store.History(class, complexity)

	var est Estimate

	if len(recs) >= 3 {
		durations := make([]float64, len(recs))
		for i, r := range recs {
			durations[i] = r.Seconds
		}

		p90 := percentile(durations, 90)
		max := 3 * p90
		if o.opt.MaxSecondsCeiling > 0 && max > o.opt.MaxSecondsCeiling {
			max = o.opt.MaxSecondsCeiling
		}

		est = Estimate{
			ExpectedSeconds: p90,
			MaxSeconds:      max,
			Reason:          "history",
			Confidence:      confidence(len(recs)),
		}
	} else {
		base := defaultSeconds[class][complexity]

		est = Estimate{
			ExpectedSeconds: base,
			MaxSeconds:      base * 3,
			Reason:          "default",
			Confidence:      0,
		}
	}

	lm := float64(o.load.Multiplier(ctx, o.opt.LoadThresholdPct))
	if lm <= 0 {
		lm = 1
	}

	// Step 5 (spec.md §4.2): multiply both expected and max by C1's
	// multiplier. The baseline multiplier only enters the "default" path
	// (step 4); whether it compounds with or is maxed against the load
	// multiplier is the resolved Open Question (SPEC_FULL.md §C).
	mult := lm
	if est.Reason == "default" {
		baseline := float64(o.opt.BaselineMultiplier)
		if baseline <= 0 {
			baseline = 1
		}
		mult = composeMultiplier(baseline, lm, o.opt.MultiplierMode)
	}

	est.ExpectedSeconds *= mult
	est.MaxSeconds *= mult

	if class == ClassGeneral && est.Reason == "default" && est.Confidence <= 0.1 {
		if est.ExpectedSeconds < o.opt.UnknownFloorSeconds {
			est.ExpectedSeconds = o.opt.UnknownFloorSeconds
		}
		if est.MaxSeconds < o.opt.UnknownFloorSeconds {
			est.MaxSeconds = o.opt.UnknownFloorSeconds
		}
	}

	return est
}

// composeMultiplier combines the baseline and load multipliers per the
// configured mode: compound (multiply, spec.md's mandated default) or max.
func composeMultiplier(baseline, load float64, mode MultiplierMode) float64 {
	if mode == ModeMax {
		if baseline > load {
			return baseline
		}
		return load
	}
	return baseline * load
}

// Record appends the observed duration of a terminal Child Process to its
// (class, complexity) history. Called exactly once per terminal
// transition, per spec.md §3's invariant.
func (o *Oracle) Record(executable, fullCommand string, seconds float64, outcome string) {
	class, complexity := Classify(executable, fullCommand)
	o.store.Record(class, complexity, seconds, outcome)
}

func percentile(vals []float64, p int) float64 {
	if len(vals) == 0 {
		return 0
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	idx := (p * (len(sorted) - 1)) / 100
	return sorted[idx]
}

// confidence grows with sample count, saturating at 1.0 once 20+ samples
// are on record; used only to gate the "unknown" floor.
func confidence(n int) float64 {
	c := float64(n) / 20.0
	if c > 1 {
		return 1
	}
	return c
}

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

// Package resource implements C1, the Resource Monitor: a single
// synchronous Multiplier(thresholdPct) call sampling host CPU (and,
// optionally, GPU) load with no caching between calls, grounded on the
// teacher's own go.mod dependency github.com/shirou/gopsutil.
package resource

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"

	"github.com/nabbar/cc-executor/logger"
)

const (
	// LoadMultiplier is returned when either sampled metric exceeds the
	// configured threshold.
	LoadMultiplier = 3
	// NoLoadMultiplier is returned otherwise, or on any sampling error.
	NoLoadMultiplier = 1

	sampleWindow = 50 * time.Millisecond
)

// Monitor samples CPU and, if configured, GPU utilization. It never caches
// a result across calls: every Multiplier call takes a fresh sample so
// that a timeout estimated at spawn time reflects the load at that instant.
type Monitor struct {
	log        logger.Logger
	gpuCommand string // side-channel program printing a numeric utilization; empty disables GPU sampling
}

// New constructs a Monitor. gpuCommand may be empty, in which case CPU
// alone decides the multiplier.
func New(log logger.Logger, gpuCommand string) *Monitor {
	return &Monitor{log: log.WithField("component", "resource"), gpuCommand: gpuCommand}
}

// Multiplier samples CPU (and GPU, if configured) utilization and returns
// LoadMultiplier if either exceeds thresholdPct, NoLoadMultiplier
// otherwise. The CPU sample takes about 50 ms; a configured GPU command
// can add up to 200 ms more, so a call with GPU sampling can take about
// 250 ms. Any sampling error is treated as "no load signal" and is never
// fatal.
func (m *Monitor) Multiplier(ctx context.Context, thresholdPct float64) int {
	if pct, ok := m.sampleCPU(); ok && pct > thresholdPct {
		return LoadMultiplier
	}

	if m.gpuCommand != "" {
		if pct, ok := m.sampleGPU(ctx); ok && pct > thresholdPct {
			return LoadMultiplier
		}
	}

	return NoLoadMultiplier
}

func (m *Monitor) sampleCPU() (pct float64, ok bool) {
	percents, err := cpu.Percent(sampleWindow, false)
	if err != nil || len(percents) == 0 {
		m.log.Debug("cpu sample failed", logger.Fields{"error": err})
		return 0, false
	}

	return percents[0], true
}

// sampleGPU shells out to a short-lived side-channel program that prints a
// bare numeric utilization percentage on stdout. Any failure (missing
// binary, non-numeric output, timeout) is swallowed.
func (m *Monitor) sampleGPU(ctx context.Context) (pct float64, ok bool) {
	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	out, err := exec.CommandContext(cctx, m.gpuCommand).Output()
	if err != nil {
		m.log.Debug("gpu sample failed", logger.Fields{"error": err})
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

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

// Package metrics exposes the supplemented observability surface
// SPEC_FULL.md §C adds on top of spec.md's WebSocket/JSON-RPC scope -
// spec.md §9 explicitly notes the source mixes health/metrics HTTP
// endpoints into the same service and leaves implementations "free to
// add health probes"; this package is that addition, built directly on
// the teacher's own github.com/prometheus/client_golang dependency
// rather than hand-rolled counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/gauge this service exports. It is created
// once at start and passed by reference to every component that needs to
// record an observation.
type Registry struct {
	reg *prometheus.Registry

	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	CommandsStarted  prometheus.Counter
	CommandsFailed   *prometheus.CounterVec // labeled by reason
	CommandDuration  prometheus.Histogram
	HookFailures     *prometheus.CounterVec // labeled by kind
	BackpressureTrip prometheus.Counter
}

// New builds a fresh Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		SessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "cc_executor",
			Name:      "sessions_active",
			Help:      "Number of currently connected WebSocket sessions.",
		}),
		SessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cc_executor",
			Name:      "sessions_total",
			Help:      "Total WebSocket sessions ever accepted.",
		}),
		CommandsStarted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cc_executor",
			Name:      "commands_started_total",
			Help:      "Total commands successfully spawned.",
		}),
		CommandsFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cc_executor",
			Name:      "commands_terminal_total",
			Help:      "Total commands reaching a terminal state, by reason.",
		}, []string{"reason"}),
		CommandDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cc_executor",
			Name:      "command_duration_seconds",
			Help:      "Observed command wall-clock duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 16),
		}),
		HookFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cc_executor",
			Name:      "hook_failures_total",
			Help:      "Total non-blocking hook failures, by kind.",
		}, []string{"kind"}),
		BackpressureTrip: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cc_executor",
			Name:      "backpressure_overflow_total",
			Help:      "Total sessions torn down due to writer back-pressure.",
		}),
	}

	return m
}

// Handler serves the Prometheus exposition format on the internal
// metrics listener, kept separate from the WebSocket listener per
// spec.md §9's note that the redesign treats the WebSocket/JSON-RPC
// surface as the only in-scope transport.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routecore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// define and register the metrics used in this package.
func init() {
	initTimerMetrics()
	initLoopMetrics()
}

var timerMetrics = struct {
	scheduled   prometheus.Counter
	unscheduled prometheus.Counter
}{}

func initTimerMetrics() {
	const ns = "routecore"
	const sub = "timers"
	timerMetrics.scheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "scheduled_total",
		Help:      "Counter of timer schedule operations.",
	})
	timerMetrics.unscheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "unscheduled_total",
		Help:      "Counter of timer unschedule operations, including expiries.",
	})
}

var loopMetrics = struct {
	dispatches *prometheus.CounterVec
}{}

func initLoopMetrics() {
	const ns = "routecore"
	const sub = "eventloop"
	loopMetrics.dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "dispatches_total",
		Help:      "Counter of event loop dispatches by kind.",
	}, []string{"kind"})
}

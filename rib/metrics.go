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

package rib

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// define and register the metrics used in this package.
func init() {
	initRedistMetrics()
}

var redistMetrics = struct {
	updates *prometheus.CounterVec
}{}

func initRedistMetrics() {
	redistMetrics.updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routecore",
		Subsystem: "rib",
		Name:      "redist_updates_total",
		Help:      "Counter of redistribution updates emitted to outputs.",
	}, []string{"kind"})
}

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

package bgp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// define and register the metrics used in this package.
func init() {
	initPeerMetrics()
}

var peerMetrics = struct {
	messages *prometheus.CounterVec
}{}

func initPeerMetrics() {
	peerMetrics.messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routecore",
		Subsystem: "bgp",
		Name:      "messages_total",
		Help:      "Counter of BGP messages processed, by type and direction.",
	}, []string{"type", "direction"})
}

var msgTypeNames = map[uint8]string{
	MsgOpen:         "open",
	MsgUpdate:       "update",
	MsgNotification: "notification",
	MsgKeepalive:    "keepalive",
	MsgRouteRefresh: "route_refresh",
}

func countMessage(t uint8, direction string) {
	name := msgTypeNames[t]
	if name == "" {
		name = "unknown"
	}
	peerMetrics.messages.WithLabelValues(name, direction).Inc()
}

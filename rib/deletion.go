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
	"net/netip"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// deletionBatch is how many synthesized deletes one background pass
// emits; the control plane keeps running between passes.
const deletionBatch = 32

// DeletionTable wraps a retired origin table after a generation bump
// and drains it asynchronously: a background-priority timer emits
// synthesized deletes for the old generation's routes until the table
// is empty, then the deletion table retires itself. The RIB converges
// without blocking control-plane work.
type DeletionTable struct {
	origin     *OriginTable
	downstream RouteSink
	timer      routecore.Timer
	skip       func(netip.Prefix) bool
	done       func()
	logger     *zap.Logger
}

// NewDeletionTable starts draining the retired origin into
// downstream. skip, if non-nil, suppresses the synthesized delete
// for prefixes the new generation has already re-announced. done, if
// non-nil, runs after the last delete.
func NewDeletionTable(timers *routecore.TimerList, origin *OriginTable, downstream RouteSink,
	skip func(netip.Prefix) bool, done func()) *DeletionTable {
	dt := &DeletionTable{
		origin:     origin,
		downstream: downstream,
		skip:       skip,
		done:       done,
		logger: routecore.Log().Named("rib").With(
			zap.String("protocol", origin.Protocol().Name),
			zap.Uint32("retired_generation", origin.Generation())),
	}
	// the origin must stop broadcasting through its old downstream;
	// the deletion table takes over delivery
	origin.SetDownstream(nil)
	dt.timer = timers.NewTimer(func(routecore.Timer) { dt.drainBatch() })
	dt.timer.ScheduleNow(routecore.PriorityBackground)
	dt.logger.Info("draining retired generation", zap.Int("routes", origin.Size()))
	return dt
}

// Pending returns the number of routes still awaiting deletion.
func (dt *DeletionTable) Pending() int { return dt.origin.Size() }

func (dt *DeletionTable) drainBatch() {
	var prefixes []netip.Prefix
	dt.origin.EachSorted(func(p netip.Prefix, _ *RouteEntry) bool {
		prefixes = append(prefixes, p)
		return len(prefixes) < deletionBatch
	})
	for _, p := range prefixes {
		if r, ok := dt.origin.Lookup(p); ok {
			dt.origin.DeleteRoute(p)
			if dt.skip != nil && dt.skip(p) {
				continue
			}
			dt.downstream.DeleteRoute(r)
			redistMetrics.updates.WithLabelValues("generation_delete").Inc()
		}
	}
	if dt.origin.Size() > 0 {
		dt.timer.ScheduleNow(routecore.PriorityBackground)
		return
	}
	dt.timer.Clear()
	dt.logger.Info("retired generation drained")
	if dt.done != nil {
		dt.done()
	}
}

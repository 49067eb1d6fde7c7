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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/policy"
)

// RedistOutput is one subscriber's consumer of a redistribution
// stream. Outputs buffer internally; Backlog and the water marks let
// the redistributor pace its dump without ever dropping an update.
type RedistOutput interface {
	AddRoute(*RouteEntry) error
	DeleteRoute(*RouteEntry) error

	// StartingRouteDump and FinishingRouteDump bracket the initial
	// dump so the output can tell replayed state from live updates.
	StartingRouteDump()
	FinishingRouteDump()

	Backlog() int
	HighWaterBacklog() bool
	LowWaterBacklog() bool
}

// RedistState is a redistributor's position in its lifecycle.
type RedistState uint8

const (
	StateReady RedistState = iota
	StateDumping
	StateDumpBlocked
	StateRunning
	StateRunBlocked
	StateShutdown
)

func (s RedistState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateDumping:
		return "DUMPING"
	case StateDumpBlocked:
		return "DUMP_BLOCKED"
	case StateRunning:
		return "RUNNING"
	case StateRunBlocked:
		return "RUN_BLOCKED"
	case StateShutdown:
		return "SHUTDOWN"
	}
	return "?"
}

// Redistributor binds one RedistTable to one RedistOutput and
// delivers exactly the stream of adds and deletes that materializes
// the table's current content at the output.
//
// The initial dump walks the route index in canonical prefix order
// at background priority, one route per event-loop pass, remembering
// the last prefix emitted as its cursor. Concurrent mutations
// interleave with the dump:
//
//   - an add ahead of the cursor only updates the index; the dump
//     will reach it
//   - an add behind the cursor is propagated immediately
//   - an add equal to the cursor is not propagated again; the dump
//     step already emitted that prefix
//   - a delete ahead of the cursor only updates the index, so the
//     dump will not emit it; behind or at the cursor it propagates
type Redistributor struct {
	id     uuid.UUID
	table  *RedistTable
	output RedistOutput
	state  RedistState

	cursor      netip.Prefix
	cursorValid bool

	// denyTags are redistribution tags whose presence on a route
	// means delivering it to this subscriber would hand the route
	// back to its own protocol.
	denyTags policy.U32Set

	timers    *routecore.TimerList
	dumpTimer routecore.Timer
	logger    *zap.Logger
}

// NewRedistributor attaches a subscriber to table. Call StartDump to
// begin delivery.
func NewRedistributor(timers *routecore.TimerList, table *RedistTable, output RedistOutput) *Redistributor {
	d := &Redistributor{
		id:     uuid.New(),
		table:  table,
		output: output,
		state:  StateReady,
		timers: timers,
	}
	d.logger = routecore.Log().Named("redist").With(
		zap.String("id", d.id.String()),
		zap.String("protocol", table.Origin().Protocol().Name))
	d.dumpTimer = timers.NewTimer(func(routecore.Timer) { d.dumpStep() })
	table.attach(d)
	return d
}

// ID returns the subscriber identity.
func (d *Redistributor) ID() uuid.UUID { return d.id }

// State returns the current lifecycle state.
func (d *Redistributor) State() RedistState { return d.state }

// SetDenyTags installs the loop-prevention tag set: routes carrying
// any of these tags are withheld from this output.
func (d *Redistributor) SetDenyTags(tags policy.U32Set) { d.denyTags = tags }

// StartDump begins replaying the table's current content to the
// output, then transitions to live RUNNING delivery.
func (d *Redistributor) StartDump() {
	if d.state != StateReady {
		return
	}
	d.state = StateDumping
	d.output.StartingRouteDump()
	d.scheduleStep()
}

// HighWater is invoked by the output when its backlog crosses the
// high-water mark; the dump suspends until LowWater.
func (d *Redistributor) HighWater() {
	if d.state == StateDumping {
		d.state = StateDumpBlocked
		d.dumpTimer.Unschedule()
	} else if d.state == StateRunning {
		d.state = StateRunBlocked
	}
}

// LowWater is invoked by the output when its backlog has drained
// below the low-water mark.
func (d *Redistributor) LowWater() {
	switch d.state {
	case StateDumpBlocked:
		d.state = StateDumping
		d.scheduleStep()
	case StateRunBlocked:
		d.state = StateRunning
	}
}

// OutputInvalid is invoked when the output's channel has failed. The
// redistributor synthesizes one delete per live prefix so downstream
// consumers converge, then shuts down; the subscriber must
// re-subscribe for further service.
func (d *Redistributor) OutputInvalid() {
	if d.state == StateShutdown {
		return
	}
	d.logger.Warn("output channel failed, synthesizing deletions",
		zap.Int("live_prefixes", d.table.IndexSize()))
	d.table.EachIndexSorted(func(p netip.Prefix) bool {
		if r, ok := d.table.Origin().Lookup(p); ok {
			// best effort into a failed channel; errors are expected
			_ = d.output.DeleteRoute(r)
		}
		return true
	})
	d.Close()
}

// Close detaches from the table and releases the dump timer.
func (d *Redistributor) Close() {
	if d.state == StateShutdown {
		return
	}
	d.state = StateShutdown
	d.dumpTimer.Unschedule()
	d.dumpTimer.Clear()
	d.table.detach(d)
}

func (d *Redistributor) scheduleStep() {
	d.dumpTimer.ScheduleNow(routecore.PriorityBackground)
}

// dumpStep emits the next indexed prefix after the cursor, or
// finishes the dump if the index is exhausted.
func (d *Redistributor) dumpStep() {
	if d.state != StateDumping {
		return
	}
	if d.output.HighWaterBacklog() {
		d.state = StateDumpBlocked
		return
	}
	p, ok := d.table.nextAfter(d.cursor, d.cursorValid)
	if !ok {
		d.state = StateRunning
		d.output.FinishingRouteDump()
		d.logger.Info("route dump complete", zap.Int("prefixes", d.table.IndexSize()))
		return
	}
	d.cursor, d.cursorValid = p, true
	if r, found := d.table.Origin().Lookup(p); found {
		d.emitAdd(r)
	}
	if d.state == StateDumping {
		d.scheduleStep()
	}
}

// addRoute receives a live add from the redist table.
func (d *Redistributor) addRoute(r *RouteEntry) {
	switch d.state {
	case StateDumping, StateDumpBlocked:
		if !d.cursorValid {
			return // nothing emitted yet; the dump starts from the top
		}
		if cmpPrefix(r.Net, d.cursor) < 0 {
			d.emitAdd(r)
		}
		// at or ahead of the cursor: the dump emitted it or will
	case StateRunning, StateRunBlocked:
		d.emitAdd(r)
	}
}

// deleteRoute receives a live delete from the redist table.
func (d *Redistributor) deleteRoute(r *RouteEntry) {
	switch d.state {
	case StateDumping, StateDumpBlocked:
		if !d.cursorValid {
			return
		}
		if cmpPrefix(r.Net, d.cursor) <= 0 {
			d.emitDelete(r)
		}
	case StateRunning, StateRunBlocked:
		d.emitDelete(r)
	}
}

func (d *Redistributor) emitAdd(r *RouteEntry) {
	if d.denied(r) {
		return
	}
	if err := d.output.AddRoute(r); err != nil {
		d.logger.Error("output add failed", zap.Stringer("net", r.Net), zap.Error(err))
		d.OutputInvalid()
		return
	}
	redistMetrics.updates.WithLabelValues("add").Inc()
	if d.state == StateRunning && d.output.HighWaterBacklog() {
		d.state = StateRunBlocked
	}
}

func (d *Redistributor) emitDelete(r *RouteEntry) {
	if d.denied(r) {
		return
	}
	if err := d.output.DeleteRoute(r); err != nil {
		d.logger.Error("output delete failed", zap.Stringer("net", r.Net), zap.Error(err))
		d.OutputInvalid()
		return
	}
	redistMetrics.updates.WithLabelValues("delete").Inc()
}

// denied applies the non-redist tag check: a route whose tag set
// intersects the deny set must not loop back to its own protocol.
func (d *Redistributor) denied(r *RouteEntry) bool {
	if len(d.denyTags) == 0 || len(r.PolicyTags) == 0 {
		return false
	}
	for tag := range r.PolicyTags {
		if d.denyTags.Contains(tag) {
			return true
		}
	}
	return false
}

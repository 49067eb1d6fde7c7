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
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/policy"
)

func pfx(s string) netip.Prefix { return netip.MustParsePrefix(s) }

func testRoute(proto *Protocol, s string) *RouteEntry {
	return &RouteEntry{
		Net:           pfx(s),
		NextHop:       netip.MustParseAddr("192.0.2.254"),
		AdminDistance: proto.AdminDistance,
		Metric:        10,
		Protocol:      proto,
		PolicyTags:    make(policy.U32Set),
	}
}

// recordingOutput is a RedistOutput with a one-update-deep buffer:
// every delivery raises the backlog past the high-water mark until
// the test drains it, which is how the dump gets paced.
type recordingOutput struct {
	events    []string
	pending   int
	highWater int
	addCount  map[netip.Prefix]int
	delCount  map[netip.Prefix]int
	index     map[netip.Prefix]bool
	dumping   bool
	dumpDone  bool
	fail      bool
}

func newRecordingOutput(highWater int) *recordingOutput {
	return &recordingOutput{
		highWater: highWater,
		addCount:  make(map[netip.Prefix]int),
		delCount:  make(map[netip.Prefix]int),
		index:     make(map[netip.Prefix]bool),
	}
}

func (o *recordingOutput) AddRoute(r *RouteEntry) error {
	if o.fail {
		return errors.New("connection dropped")
	}
	o.events = append(o.events, "add "+r.Net.String())
	o.addCount[r.Net]++
	o.index[r.Net] = true
	o.pending++
	return nil
}

func (o *recordingOutput) DeleteRoute(r *RouteEntry) error {
	o.events = append(o.events, "delete "+r.Net.String())
	o.delCount[r.Net]++
	delete(o.index, r.Net)
	o.pending++
	return nil
}

func (o *recordingOutput) StartingRouteDump()  { o.dumping = true }
func (o *recordingOutput) FinishingRouteDump() { o.dumping = false; o.dumpDone = true }

func (o *recordingOutput) Backlog() int           { return o.pending }
func (o *recordingOutput) HighWaterBacklog() bool { return o.pending >= o.highWater }
func (o *recordingOutput) LowWaterBacklog() bool  { return o.pending == 0 }

func (o *recordingOutput) drain() { o.pending = 0 }

func newTestStack(t *testing.T) (*routecore.TimerList, *routecore.ManualClock, *Protocol, *OriginTable, *RedistTable) {
	t.Helper()
	clock := routecore.NewManualClock(routecore.ZeroTime)
	pool := routecore.NewRefPool()
	timers := routecore.NewTimerList(clock, pool)
	proto := &Protocol{Name: "ospf", AdminDistance: 110}
	origin := NewOriginTable(proto, 1)
	redist := NewRedistTable(origin)
	return timers, clock, proto, origin, redist
}

func TestRedistTableMirrorsOrigin(t *testing.T) {
	_, _, proto, origin, redist := newTestStack(t)

	origin.AddRoute(testRoute(proto, "10.0.0.0/8"))
	origin.AddRoute(testRoute(proto, "10.3.0.0/16"))
	require.Equal(t, 2, redist.IndexSize())
	require.True(t, redist.IndexContains(pfx("10.0.0.0/8")))

	origin.DeleteRoute(pfx("10.0.0.0/8"))
	require.Equal(t, 1, redist.IndexSize())
	require.False(t, redist.IndexContains(pfx("10.0.0.0/8")))

	// invariant: index equals origin's prefix set
	origin.EachSorted(func(p netip.Prefix, _ *RouteEntry) bool {
		require.True(t, redist.IndexContains(p))
		return true
	})
}

// Dump with concurrent mutation: a blocking output paced at one
// update per second, with inserts at t=1250ms and t=1500ms and a
// delete at t=2250ms while the dump is in flight.
func TestDumpWithConcurrentMutation(t *testing.T) {
	timers, clock, proto, origin, redist := newTestStack(t)

	for _, s := range []string{
		"10.0.0.0/8", "10.3.0.0/16", "10.5.0.0/16",
		"10.6.0.0/16", "10.3.128.0/17", "10.3.192.0/18",
	} {
		origin.AddRoute(testRoute(proto, s))
	}

	out := newRecordingOutput(1)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run() // first dump step emits, then blocks on backlog

	quarter := routecore.MakeTimeVal(0, 250_000)
	for tms := 250; tms <= 10_000 && d.State() != StateRunning; tms += 250 {
		clock.Advance(quarter)
		switch tms {
		case 1250:
			origin.AddRoute(testRoute(proto, "10.4.0.0/16"))
		case 1500:
			origin.AddRoute(testRoute(proto, "10.1.0.0/16"))
		case 2250:
			origin.DeleteRoute(pfx("10.0.0.0/8"))
		}
		if tms%1000 == 0 {
			out.drain()
			d.LowWater()
		}
		timers.Run()
	}

	require.Equal(t, StateRunning, d.State(), "dump did not finish")
	require.True(t, out.dumpDone)

	// post-dump: the output's observed index equals the table's
	require.Equal(t, redist.IndexSize(), len(out.index))
	redist.EachIndexSorted(func(p netip.Prefix) bool {
		require.True(t, out.index[p], "output missing %v", p)
		return true
	})

	// the insert ahead of the cursor must not have been emitted twice
	require.Equal(t, 1, out.addCount[pfx("10.4.0.0/16")])
	// the insert behind the cursor was propagated immediately, once
	require.Equal(t, 1, out.addCount[pfx("10.1.0.0/16")])
	// the delete behind the cursor was forwarded
	require.Equal(t, 1, out.delCount[pfx("10.0.0.0/8")])
	// nothing was ever emitted twice
	for p, n := range out.addCount {
		require.LessOrEqual(t, n, 1, "prefix %v emitted %d times", p, n)
	}

	d.Close()
}

func TestDumpBlockedOnHighWater(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)
	origin.AddRoute(testRoute(proto, "10.0.0.0/8"))
	origin.AddRoute(testRoute(proto, "20.0.0.0/8"))

	out := newRecordingOutput(1)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run()

	require.Equal(t, StateDumpBlocked, d.State())
	require.Len(t, out.events, 1, "exactly one emit before blocking")

	out.drain()
	d.LowWater()
	timers.Run()
	out.drain()
	d.LowWater()
	timers.Run()

	require.Equal(t, StateRunning, d.State())
	require.Equal(t, 2, len(out.index))
	d.Close()
}

func TestRunningDeliversLive(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)

	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run() // empty table: dump finishes immediately
	require.Equal(t, StateRunning, d.State())

	origin.AddRoute(testRoute(proto, "10.0.0.0/8"))
	origin.DeleteRoute(pfx("10.0.0.0/8"))

	require.Equal(t, []string{"add 10.0.0.0/8", "delete 10.0.0.0/8"}, out.events)
	d.Close()
}

// A redistributor whose output drops its connection synthesizes
// exactly one delete per live prefix before declaring shutdown.
func TestShutdownSynthesizesDeletes(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)
	origin.AddRoute(testRoute(proto, "10.0.0.0/8"))
	origin.AddRoute(testRoute(proto, "20.0.0.0/8"))

	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run()
	require.Equal(t, StateRunning, d.State())

	d.OutputInvalid()

	require.Equal(t, StateShutdown, d.State())
	require.Equal(t, 1, out.delCount[pfx("10.0.0.0/8")])
	require.Equal(t, 1, out.delCount[pfx("20.0.0.0/8")])
	require.Empty(t, out.index)

	// a shut-down redistributor no longer receives updates
	before := len(out.events)
	origin.AddRoute(testRoute(proto, "30.0.0.0/8"))
	require.Equal(t, before, len(out.events))
}

func TestAddErrorTriggersShutdown(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)

	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run()
	require.Equal(t, StateRunning, d.State())

	out.fail = true
	origin.AddRoute(testRoute(proto, "10.0.0.0/8"))
	require.Equal(t, StateShutdown, d.State())
}

func TestDenyTagsPreventLoopback(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)

	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.SetDenyTags(policy.NewU32SetOf(7))
	d.StartDump()
	timers.Run()

	tagged := testRoute(proto, "10.0.0.0/8")
	tagged.PolicyTags.Insert(7)
	origin.AddRoute(tagged)

	clean := testRoute(proto, "20.0.0.0/8")
	origin.AddRoute(clean)

	require.Equal(t, 0, out.addCount[pfx("10.0.0.0/8")],
		"route with a non-redist tag must not reach the output")
	require.Equal(t, 1, out.addCount[pfx("20.0.0.0/8")])
	d.Close()
}

func TestDeletionTableDrains(t *testing.T) {
	timers, _, proto, origin, redist := newTestStack(t)

	for _, s := range []string{"10.0.0.0/8", "20.0.0.0/8", "30.0.0.0/8"} {
		origin.AddRoute(testRoute(proto, s))
	}

	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run()
	require.Equal(t, 3, len(out.index))

	done := false
	dt := NewDeletionTable(timers, origin, redist, nil, func() { done = true })
	timers.Run()

	require.True(t, done, "deletion table did not finish draining")
	require.Equal(t, 0, dt.Pending())
	require.Empty(t, out.index, "synthesized deletes must reach the output")
	require.Equal(t, 0, redist.IndexSize())
	d.Close()
}

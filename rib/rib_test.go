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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/policy"
)

func newTestRIB(t *testing.T) (*RIB, *routecore.TimerList, *policy.Manager) {
	t.Helper()
	clock := routecore.NewManualClock(routecore.ZeroTime)
	pool := routecore.NewRefPool()
	timers := routecore.NewTimerList(clock, pool)
	mgr := policy.NewManager(policy.NewVarMap(), policy.NewSetMap(), pool)
	r := New(timers, mgr)
	return r, timers, mgr
}

func exportOSPFToBGP() []*policy.PolicyStatement {
	return []*policy.PolicyStatement{{
		Name: "ospf-to-bgp",
		Terms: []*policy.Term{{
			Name: "t1",
			From: []policy.Node{
				{Kind: policy.NodeProtocol, Name: "ospf"},
			},
			To: []policy.Node{
				{Kind: policy.NodeProtocol, Name: "bgp"},
			},
			Then: []policy.Node{{Kind: policy.NodeAccept}},
		}},
	}}
}

func TestRIBAddRouteTagsViaSourceMatch(t *testing.T) {
	r, _, mgr := newTestRIB(t)
	proto := r.RegisterProtocol("ospf", 110)
	r.RegisterProtocol("bgp", 20)
	require.NoError(t, mgr.ConfigureExport("bgp", exportOSPFToBGP()))

	route := testRoute(proto, "10.0.0.0/8")
	require.NoError(t, r.AddRoute("ospf", route))

	universe := mgr.ProtocolTags("ospf")
	require.NotEmpty(t, universe)
	require.True(t, route.PolicyTags.SubsetOf(universe))
	require.NotEmpty(t, route.PolicyTags, "source match must have tagged the route")

	origin, ok := r.OriginTableOf("ospf")
	require.True(t, ok)
	_, found := origin.Lookup(pfx("10.0.0.0/8"))
	require.True(t, found)
}

func TestRIBRejectsRogueTags(t *testing.T) {
	r, _, mgr := newTestRIB(t)
	proto := r.RegisterProtocol("ospf", 110)
	r.RegisterProtocol("bgp", 20)
	require.NoError(t, mgr.ConfigureExport("bgp", exportOSPFToBGP()))

	route := testRoute(proto, "10.0.0.0/8")
	route.PolicyTags.Insert(999) // never allocated to ospf
	err := r.AddRoute("ospf", route)
	require.Error(t, err, "tags outside the protocol universe must be refused")
}

func TestRIBImportFilterRejects(t *testing.T) {
	r, _, mgr := newTestRIB(t)
	proto := r.RegisterProtocol("static", 1)
	rejectAll := []*policy.PolicyStatement{{
		Name: "deny",
		Terms: []*policy.Term{{
			Name: "t1",
			Then: []policy.Node{{Kind: policy.NodeReject}},
		}},
	}}
	require.NoError(t, mgr.ConfigureImport("static", rejectAll))

	route := testRoute(proto, "192.0.2.0/24")
	require.NoError(t, r.AddRoute("static", route))
	require.True(t, route.Filtered)

	origin, _ := r.OriginTableOf("static")
	require.Equal(t, 0, origin.Size(), "filtered route must not install")
}

func TestRIBGenerationBump(t *testing.T) {
	r, timers, _ := newTestRIB(t)
	proto := r.RegisterProtocol("bgp", 20)

	require.NoError(t, r.AddRoute("bgp", testRoute(proto, "10.0.0.0/8")))
	require.NoError(t, r.AddRoute("bgp", testRoute(proto, "20.0.0.0/8")))

	redist, _ := r.RedistTableOf("bgp")
	out := newRecordingOutput(100)
	d := NewRedistributor(timers, redist, out)
	d.StartDump()
	timers.Run()
	require.Equal(t, 2, len(out.index))

	gen, err := r.NewGeneration("bgp")
	require.NoError(t, err)
	require.Equal(t, uint32(2), gen)

	// re-announce one route into the new generation, then let the
	// deletion table drain the old one
	require.NoError(t, r.AddRoute("bgp", testRoute(proto, "10.0.0.0/8")))
	timers.Run()

	require.Equal(t, 1, len(out.index))
	require.True(t, out.index[pfx("10.0.0.0/8")])
	require.Equal(t, 1, redist.IndexSize())
	d.Close()
}

func TestRIBUnknownProtocol(t *testing.T) {
	r, _, _ := newTestRIB(t)
	err := r.AddRoute("nope", &RouteEntry{Net: pfx("10.0.0.0/8")})
	require.Error(t, err)
	_, err = r.NewGeneration("nope")
	require.Error(t, err)
}

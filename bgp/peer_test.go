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
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockPlumbing records the operations a peer hands to the RIB.
type mockPlumbing struct {
	ops    []string
	adds   map[Plane][]*SubnetRoute
	pushes map[Plane]int
}

func newMockPlumbing() *mockPlumbing {
	return &mockPlumbing{
		adds:   make(map[Plane][]*SubnetRoute),
		pushes: make(map[Plane]int),
	}
}

func (m *mockPlumbing) AddRoute(plane Plane, r *SubnetRoute) {
	m.ops = append(m.ops, fmt.Sprintf("add %s %s", plane, r.Net))
	m.adds[plane] = append(m.adds[plane], r)
}

func (m *mockPlumbing) DeleteRoute(plane Plane, net netip.Prefix) {
	m.ops = append(m.ops, fmt.Sprintf("delete %s %s", plane, net))
}

func (m *mockPlumbing) Push(plane Plane) { m.pushes[plane]++ }

func newTestPeer(t *testing.T, localAS, peerAS AsNum) (*PeerHandler, *mockPlumbing) {
	t.Helper()
	plumbing := newMockPlumbing()
	local := openWith(localAS.Legacy(),
		MultiprotocolCap{AFIIPv4, SAFIUnicast},
		MultiprotocolCap{AFIIPv4, SAFIMulticast},
		MultiprotocolCap{AFIIPv6, SAFIUnicast},
		MultiprotocolCap{AFIIPv6, SAFIMulticast},
		RouteRefreshCap{},
	)
	p := NewPeerHandler("peer1", localAS, peerAS, local, nil, plumbing, NewAttributeManager())
	return p, plumbing
}

func negotiate(t *testing.T, p *PeerHandler) {
	t.Helper()
	remote := openWith(65002,
		MultiprotocolCap{AFIIPv4, SAFIUnicast},
		MultiprotocolCap{AFIIPv4, SAFIMulticast},
		MultiprotocolCap{AFIIPv6, SAFIUnicast},
		MultiprotocolCap{AFIIPv6, SAFIMulticast},
		RouteRefreshCap{},
	)
	p.HandleMessage(Header{Type: MsgOpen, Length: uint16(HeaderLen + len(remote.Body()))}, remote.Body())
	require.NotNil(t, p.Negotiated())
}

func TestPeerProcessUpdateFansOut(t *testing.T) {
	p, plumbing := newTestPeer(t, 65001, 65002)
	negotiate(t, p)

	u := &UpdatePacket{
		Withdrawn: []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")},
		Attrs: baseAttrs("10.0.0.1").CloneWith(MPReachNLRIAttr{
			AFI:     AFIIPv6,
			SAFI:    SAFIUnicast,
			NextHop: netip.MustParseAddr("2001:db8::1"),
			NLRI:    []netip.Prefix{netip.MustParsePrefix("2001:db8:1::/48")},
		}).CloneWith(MPUnreachNLRIAttr{
			AFI:       AFIIPv6,
			SAFI:      SAFIMulticast,
			Withdrawn: []netip.Prefix{netip.MustParsePrefix("2001:db8:2::/48")},
		}),
		NLRI: []netip.Prefix{
			netip.MustParsePrefix("10.1.0.0/16"),
			netip.MustParsePrefix("10.2.0.0/16"),
		},
	}
	p.HandleMessage(Header{Type: MsgUpdate}, u.Body())

	v4u := Plane{AFIIPv4, SAFIUnicast}
	v6u := Plane{AFIIPv6, SAFIUnicast}

	// withdrawals land before announcements
	require.Equal(t, "delete ipv4/unicast 192.0.2.0/24", plumbing.ops[0])
	require.Equal(t, "delete ipv6/multicast 2001:db8:2::/48", plumbing.ops[1])

	require.Len(t, plumbing.adds[v4u], 2)
	require.Len(t, plumbing.adds[v6u], 1)

	// both IPv4 prefixes share one interned attribute list
	require.Same(t, plumbing.adds[v4u][0].Attrs, plumbing.adds[v4u][1].Attrs)

	// the v6 plane's next hop came from MP_REACH, and its list does
	// not carry the IPv4 NEXT_HOP
	v6route := plumbing.adds[v6u][0]
	require.Equal(t, netip.MustParseAddr("2001:db8::1"), v6route.NextHop)
	nh, ok := v6route.Attrs.Get(AttrNextHop).(NextHopAttr)
	require.True(t, ok)
	require.Equal(t, netip.MustParseAddr("2001:db8::1"), nh.NextHop)
	require.Nil(t, v6route.Attrs.Get(AttrMPReachNLRI))

	// all four plumbings are pushed after processing
	for _, plane := range AllPlanes {
		require.Equal(t, 1, plumbing.pushes[plane], "plane %s not pushed", plane)
	}
}

func TestPeerMalformedUpdateInvalidates(t *testing.T) {
	p, _ := newTestPeer(t, 65001, 65002)
	negotiate(t, p)

	var torn *MessageError
	p.OnTeardown = func(e *MessageError) { torn = e }

	p.HandleMessage(Header{Type: MsgUpdate}, []byte{0xFF})

	require.NotNil(t, torn, "malformed UPDATE must tear the peer down")
	require.Equal(t, ErrcodeUpdateMessage, torn.Code)

	// further messages are ignored
	before := torn
	p.HandleMessage(Header{Type: MsgUpdate}, []byte{0xFF})
	require.Same(t, before, torn)
}

func TestPeerUpdateBeforeOpen(t *testing.T) {
	p, _ := newTestPeer(t, 65001, 65002)
	var torn *MessageError
	p.OnTeardown = func(e *MessageError) { torn = e }

	p.HandleMessage(Header{Type: MsgUpdate}, (&UpdatePacket{}).Body())
	require.NotNil(t, torn)
	require.Equal(t, ErrcodeFSMError, torn.Code)
}

func TestPeerIBGPAssertion(t *testing.T) {
	p, _ := newTestPeer(t, 65001, 65001) // internal session
	require.True(t, p.IBGP())

	route := &SubnetRoute{
		Net:   netip.MustParsePrefix("10.0.0.0/8"),
		Attrs: baseAttrs("10.0.0.1"),
		IBGP:  true,
	}
	require.Panics(t, func() {
		p.AddRoute(Plane{AFIIPv4, SAFIUnicast}, route)
	}, "IBGP route to IBGP peer without route reflection must assert")

	p.RouteReflector = true
	require.NotPanics(t, func() {
		p.AddRoute(Plane{AFIIPv4, SAFIUnicast}, route)
	})
}

func TestPeerRouteRefresh(t *testing.T) {
	p, _ := newTestPeer(t, 65001, 65002)
	negotiate(t, p)

	var refreshed []Plane
	p.OnRouteRefresh = func(plane Plane) { refreshed = append(refreshed, plane) }

	rr := &RouteRefreshMessage{AFI: AFIIPv4, SAFI: SAFIUnicast}
	p.HandleMessage(Header{Type: MsgRouteRefresh}, rr.Body())

	require.Equal(t, []Plane{{AFIIPv4, SAFIUnicast}}, refreshed)
}

func TestPeerNotificationTearsDown(t *testing.T) {
	p, _ := newTestPeer(t, 65001, 65002)
	negotiate(t, p)

	torn := false
	p.OnTeardown = func(*MessageError) { torn = true }

	n := &NotificationMessage{Code: ErrcodeCease, Subcode: 0}
	p.HandleMessage(Header{Type: MsgNotification}, n.Body())
	require.True(t, torn)
}

func TestPeerUnnegotiatedPlaneRejected(t *testing.T) {
	plumbing := newMockPlumbing()
	// local only speaks IPv4 unicast
	local := openWith(65001, MultiprotocolCap{AFIIPv4, SAFIUnicast})
	p := NewPeerHandler("narrow", 65001, 65002, local, nil, plumbing, NewAttributeManager())

	remote := openWith(65002, MultiprotocolCap{AFIIPv4, SAFIUnicast})
	p.HandleMessage(Header{Type: MsgOpen}, remote.Body())
	require.NotNil(t, p.Negotiated())

	var torn *MessageError
	p.OnTeardown = func(e *MessageError) { torn = e }

	u := &UpdatePacket{
		Attrs: NewPathAttrList(
			OriginAttr{Origin: OriginIGP},
			ASPathAttr{Path: &ASPath{Segments: []ASSegment{{Type: ASSequence, ASes: []AsNum{65002}}}}},
			MPReachNLRIAttr{
				AFI: AFIIPv6, SAFI: SAFIUnicast,
				NextHop: netip.MustParseAddr("2001:db8::1"),
				NLRI:    []netip.Prefix{netip.MustParsePrefix("2001:db8::/32")},
			},
		),
	}
	p.HandleMessage(Header{Type: MsgUpdate}, u.Body())
	require.NotNil(t, torn, "UPDATE for an unnegotiated plane must invalidate")
}

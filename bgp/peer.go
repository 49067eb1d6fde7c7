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

	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// RoutePlumbing is the RIB-facing surface a peer feeds: one route
// stream per (AFI, SAFI) plane, with an explicit Push to drain
// buffered work downstream after a message has been fully applied.
type RoutePlumbing interface {
	AddRoute(plane Plane, r *SubnetRoute)
	DeleteRoute(plane Plane, net netip.Prefix)
	Push(plane Plane)
}

// PeerHandler translates between wire messages and RIB operations
// for one peer across the four (AFI, SAFI) planes.
type PeerHandler struct {
	name  string
	local *OpenMessage

	localAS AsNum
	peerAS  AsNum
	ibgp    bool

	// RouteReflector permits re-advertising IBGP routes to IBGP
	// peers.
	RouteReflector bool

	negotiated *Negotiated
	sock       *SocketClient
	plumbing   RoutePlumbing
	attrs      *AttributeManager
	builder    *UpdateBuilder

	// OnTeardown runs after the peer has been invalidated and its
	// connection closed; the daemon uses it to bump the peer's
	// origin-table generation and inform its redistributor, so
	// downstream consumers see synthetic deletions.
	OnTeardown func(*MessageError)

	// OnRouteRefresh runs when the peer asks for a replay of our
	// RIB-out for one plane.
	OnRouteRefresh func(Plane)

	invalidated bool
	logger      *zap.Logger
}

// NewPeerHandler builds a handler for one peer session.
func NewPeerHandler(name string, localAS, peerAS AsNum, local *OpenMessage,
	sock *SocketClient, plumbing RoutePlumbing, attrs *AttributeManager) *PeerHandler {

	return &PeerHandler{
		name:     name,
		local:    local,
		localAS:  localAS,
		peerAS:   peerAS,
		ibgp:     localAS == peerAS,
		sock:     sock,
		plumbing: plumbing,
		attrs:    attrs,
		builder:  NewUpdateBuilder(false),
		logger: routecore.Log().Named("bgp.peer").With(
			zap.String("peer", name)),
	}
}

// IBGP reports whether the session is internal.
func (p *PeerHandler) IBGP() bool { return p.ibgp }

// Negotiated returns the session state agreed by the OPEN exchange,
// or nil before it.
func (p *PeerHandler) Negotiated() *Negotiated { return p.negotiated }

// HandleMessage dispatches one assembled inbound message. Malformed
// input invalidates the peer: a NOTIFICATION goes out and the
// connection is torn down.
func (p *PeerHandler) HandleMessage(h Header, body []byte) {
	if p.invalidated {
		return
	}
	countMessage(h.Type, "in")
	var err error
	switch h.Type {
	case MsgOpen:
		err = p.handleOpen(body)
	case MsgUpdate:
		err = p.handleUpdate(body)
	case MsgKeepalive:
		// nothing to apply; liveness bookkeeping is the session
		// FSM's concern
	case MsgNotification:
		p.handleNotification(body)
	case MsgRouteRefresh:
		err = p.handleRouteRefresh(body)
	}
	if err != nil {
		if me, ok := err.(*MessageError); ok {
			p.Invalidate(me)
		} else {
			p.Invalidate(msgErrf(ErrcodeFSMError, SubcodeUnspecific, "%v", err))
		}
	}
}

func (p *PeerHandler) handleOpen(body []byte) error {
	remote, err := DecodeOpen(body)
	if err != nil {
		return err
	}
	neg, err := Negotiate(p.local, remote)
	if err != nil {
		return err
	}
	if !neg.AS.Extended() && neg.AS != p.peerAS && p.peerAS != 0 {
		return msgErrf(ErrcodeOpenMessage, SubcodeBadPeerAS,
			"peer claims AS %s, configured %s", neg.AS, p.peerAS)
	}
	p.negotiated = neg
	fourByte := false
	for _, cap := range remote.Capabilities {
		if _, ok := cap.(FourByteASCap); ok {
			fourByte = true
		}
	}
	p.builder = NewUpdateBuilder(fourByte)
	p.logger.Info("session negotiated",
		zap.Int("planes", len(neg.Planes)),
		zap.Bool("route_refresh", neg.RouteRefresh),
		zap.String("as", neg.AS.String()))

	p.sendMessage(KeepaliveMessage{})
	return nil
}

func (p *PeerHandler) handleUpdate(body []byte) error {
	if p.negotiated == nil {
		return msgErrf(ErrcodeFSMError, SubcodeUnspecific, "UPDATE before OPEN")
	}
	u, err := DecodeUpdate(body, p.builder.fourByteAS)
	if err != nil {
		return err
	}
	return p.processUpdate(u)
}

// processUpdate applies one UPDATE: withdrawals first (legacy for
// IPv4 unicast, MP_UNREACH for the other planes), then
// announcements, each plane getting a synthesized attribute list
// whose next hop comes from the corresponding MP_REACH. One interned
// list is shared by every prefix announced with the same attributes.
// Finally all four plumbings are pushed.
func (p *PeerHandler) processUpdate(u *UpdatePacket) error {
	v4u := Plane{AFIIPv4, SAFIUnicast}

	var reach []MPReachNLRIAttr
	var unreach []MPUnreachNLRIAttr
	base := u.Attrs
	if base != nil {
		for _, a := range base.Attrs() {
			switch mp := a.(type) {
			case MPReachNLRIAttr:
				reach = append(reach, mp)
			case MPUnreachNLRIAttr:
				unreach = append(unreach, mp)
			}
		}
		base = base.CloneExcept(AttrMPReachNLRI, AttrMPUnreachNLRI)
	}

	// withdrawals first
	for _, net := range u.Withdrawn {
		p.plumbing.DeleteRoute(v4u, net)
	}
	for _, mp := range unreach {
		plane := Plane{mp.AFI, mp.SAFI}
		if err := p.checkPlane(plane); err != nil {
			return err
		}
		for _, net := range mp.Withdrawn {
			p.plumbing.DeleteRoute(plane, net)
		}
	}

	// then announcements
	if len(u.NLRI) > 0 {
		if err := p.checkMandatory(base, true); err != nil {
			return err
		}
		shared := p.attrs.Intern(base)
		nh, _ := shared.NextHop()
		for _, net := range u.NLRI {
			p.plumbing.AddRoute(v4u, &SubnetRoute{
				Net: net, Attrs: shared, NextHop: nh, IBGP: p.ibgp,
			})
		}
	}
	for _, mp := range reach {
		plane := Plane{mp.AFI, mp.SAFI}
		if err := p.checkPlane(plane); err != nil {
			return err
		}
		if err := p.checkMandatory(base, false); err != nil {
			return err
		}
		// the MP next hop becomes the next hop of this plane's
		// synthesized list; NEXT_HOP itself is IPv4-unicast only
		synth := base.CloneExcept(AttrNextHop).CloneWith(NextHopAttr{NextHop: mp.NextHop})
		shared := p.attrs.Intern(synth)
		for _, net := range mp.NLRI {
			p.plumbing.AddRoute(plane, &SubnetRoute{
				Net: net, Attrs: shared, NextHop: mp.NextHop, IBGP: p.ibgp,
			})
		}
	}

	for _, plane := range AllPlanes {
		p.plumbing.Push(plane)
	}
	return nil
}

func (p *PeerHandler) checkPlane(plane Plane) error {
	if p.negotiated != nil && !p.negotiated.Planes[plane] {
		return msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"UPDATE for unnegotiated plane %s", plane)
	}
	return nil
}

// checkMandatory verifies the well-known mandatory attributes are
// present: ORIGIN and AS_PATH always, NEXT_HOP for IPv4 unicast.
func (p *PeerHandler) checkMandatory(attrs *PathAttrList, needNextHop bool) error {
	if attrs == nil {
		return msgErrf(ErrcodeUpdateMessage, SubcodeMissingWellKnownAttr,
			"announcement without attributes")
	}
	for _, code := range []uint8{AttrOrigin, AttrASPath} {
		if attrs.Get(code) == nil {
			return msgErrf(ErrcodeUpdateMessage, SubcodeMissingWellKnownAttr,
				"missing mandatory attribute %d", code)
		}
	}
	if needNextHop {
		if attrs.Get(AttrNextHop) == nil {
			return msgErrf(ErrcodeUpdateMessage, SubcodeMissingWellKnownAttr,
				"missing NEXT_HOP")
		}
	}
	return nil
}

func (p *PeerHandler) handleNotification(body []byte) {
	n, err := DecodeNotification(body)
	if err != nil {
		p.logger.Warn("undecodable NOTIFICATION", zap.Error(err))
	} else {
		p.logger.Warn("peer sent NOTIFICATION",
			zap.Uint8("code", n.Code), zap.Uint8("subcode", n.Subcode))
	}
	p.teardown(nil)
}

func (p *PeerHandler) handleRouteRefresh(body []byte) error {
	rr, err := DecodeRouteRefresh(body)
	if err != nil {
		return err
	}
	if p.negotiated == nil || !p.negotiated.RouteRefresh {
		return msgErrf(ErrcodeFSMError, SubcodeUnspecific,
			"ROUTE_REFRESH without negotiated capability")
	}
	plane := Plane{rr.AFI, rr.SAFI}
	if err := p.checkPlane(plane); err != nil {
		return err
	}
	p.logger.Info("route refresh requested", zap.String("plane", plane.String()))
	if p.OnRouteRefresh != nil {
		p.OnRouteRefresh(plane)
	}
	return nil
}

// AddRoute batches one outgoing announcement. IBGP-learned routes
// must not be re-advertised to an IBGP peer unless this speaker is a
// route reflector.
func (p *PeerHandler) AddRoute(plane Plane, r *SubnetRoute) {
	if p.ibgp && r.IBGP && !p.RouteReflector {
		panic(fmt.Sprintf("bgp: IBGP route %v re-advertised to IBGP peer %s", r.Net, p.name))
	}
	p.builder.AddRoute(r.Attrs, plane, r.Net, r.NextHop)
}

// WithdrawRoute batches one outgoing withdrawal.
func (p *PeerHandler) WithdrawRoute(plane Plane, net netip.Prefix) {
	p.builder.WithdrawRoute(plane, net)
}

// PushPacket flushes the batched packets to the wire.
func (p *PeerHandler) PushPacket() {
	for _, u := range p.builder.Flush() {
		p.sendMessage(u)
	}
}

// OutputQueueBusy reports whether the socket's write queue is over
// its busy threshold.
func (p *PeerHandler) OutputQueueBusy() bool {
	return p.sock != nil && p.sock.OutputQueueBusy()
}

// Invalidate reports err to the peer as a NOTIFICATION and tears the
// session down.
func (p *PeerHandler) Invalidate(err *MessageError) {
	if p.invalidated {
		return
	}
	p.logger.Error("peer invalidated", zap.Error(err))
	if p.sock != nil {
		p.sock.SendMessage(EncodeMessage(NotificationFor(err)), nil)
	}
	p.teardown(err)
}

func (p *PeerHandler) teardown(err *MessageError) {
	if p.invalidated {
		return
	}
	p.invalidated = true
	if p.sock != nil {
		p.sock.Close()
	}
	if p.OnTeardown != nil {
		p.OnTeardown(err)
	}
}

func (p *PeerHandler) sendMessage(m Message) {
	if p.sock == nil {
		return
	}
	countMessage(m.Type(), "out")
	p.sock.SendMessage(EncodeMessage(m), nil)
}

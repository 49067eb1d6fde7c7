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
	"encoding/binary"
	"net/netip"
)

// UpdatePacket is a decoded UPDATE: the legacy IPv4-unicast
// withdrawn-routes and NLRI lists, plus the path-attribute list,
// which may carry MP_REACH/MP_UNREACH extensions for the other
// planes.
type UpdatePacket struct {
	Withdrawn []netip.Prefix
	Attrs     *PathAttrList
	NLRI      []netip.Prefix

	// FourByteAS selects the AS_PATH encoding on emission.
	FourByteAS bool
}

func (*UpdatePacket) Type() uint8 { return MsgUpdate }

func (u *UpdatePacket) Body() []byte {
	var wd []byte
	for _, p := range u.Withdrawn {
		wd = encodePrefix(wd, p)
	}
	var attrs []byte
	if u.Attrs != nil {
		attrs = u.Attrs.Encode(u.FourByteAS)
	}

	out := binary.BigEndian.AppendUint16(nil, uint16(len(wd)))
	out = append(out, wd...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(attrs)))
	out = append(out, attrs...)
	for _, p := range u.NLRI {
		out = encodePrefix(out, p)
	}
	return out
}

// WireLen returns the total message length, header included.
func (u *UpdatePacket) WireLen() int { return HeaderLen + len(u.Body()) }

// BigEnough reports whether the packet is close enough to the
// 4096-octet ceiling that no further route should be batched into it.
// Space is reserved for one worst-case prefix on top of the header.
const updateSlack = 64

func (u *UpdatePacket) BigEnough() bool {
	return u.WireLen() >= MaxMsgLen-updateSlack
}

// DecodeUpdate parses an UPDATE body.
func DecodeUpdate(body []byte, fourByteAS bool) (*UpdatePacket, error) {
	if len(body) < 4 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
			"UPDATE body is %d bytes", len(body))
	}
	u := &UpdatePacket{FourByteAS: fourByteAS}

	wdLen := int(binary.BigEndian.Uint16(body))
	rest := body[2:]
	if len(rest) < wdLen {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
			"withdrawn routes overrun message")
	}
	wd := rest[:wdLen]
	rest = rest[wdLen:]
	for len(wd) > 0 {
		p, remaining, err := decodePrefix(wd, AFIIPv4)
		if err != nil {
			return nil, err
		}
		u.Withdrawn = append(u.Withdrawn, p)
		wd = remaining
	}

	if len(rest) < 2 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
			"missing path attribute length")
	}
	attrLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < attrLen {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
			"path attributes overrun message")
	}
	if attrLen > 0 {
		attrs, err := DecodePathAttributes(rest[:attrLen], fourByteAS)
		if err != nil {
			return nil, err
		}
		u.Attrs = attrs
	}
	rest = rest[attrLen:]

	for len(rest) > 0 {
		p, remaining, err := decodePrefix(rest, AFIIPv4)
		if err != nil {
			return nil, err
		}
		u.NLRI = append(u.NLRI, p)
		rest = remaining
	}

	if u.Attrs == nil && len(u.NLRI) > 0 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMissingWellKnownAttr,
			"NLRI without path attributes")
	}
	return u, nil
}

// UpdateBuilder batches outgoing routes into UPDATE packets. Routes
// sharing one path-attribute list accumulate into the same packet:
// the attributes are installed on the first add, later adds only
// append to the NLRI list or to the appropriate MP_REACH attribute,
// and withdrawals reuse one MP_UNREACH per plane. A packet is closed
// out when the attribute list changes or the packet is big enough.
type UpdateBuilder struct {
	fourByteAS bool

	attrs     *PathAttrList
	adds      map[Plane][]netip.Prefix
	mpNextHop map[Plane]netip.Addr
	withdraws map[Plane][]netip.Prefix

	packets []*UpdatePacket
}

// NewUpdateBuilder returns an empty builder.
func NewUpdateBuilder(fourByteAS bool) *UpdateBuilder {
	return &UpdateBuilder{
		fourByteAS: fourByteAS,
		adds:       make(map[Plane][]netip.Prefix),
		mpNextHop:  make(map[Plane]netip.Addr),
		withdraws:  make(map[Plane][]netip.Prefix),
	}
}

// AddRoute batches one announcement. nextHop is consulted only for
// non-IPv4-unicast planes, where it lands in MP_REACH.
func (b *UpdateBuilder) AddRoute(attrs *PathAttrList, plane Plane, p netip.Prefix, nextHop netip.Addr) {
	if b.attrs != nil && !b.attrs.Equal(attrs) {
		b.closePacket()
	}
	if b.attrs == nil {
		b.attrs = attrs
	}
	b.adds[plane] = append(b.adds[plane], p)
	if plane != (Plane{AFIIPv4, SAFIUnicast}) {
		b.mpNextHop[plane] = nextHop
	}
	if b.currentBigEnough() {
		b.closePacket()
	}
}

// WithdrawRoute batches one withdrawal.
func (b *UpdateBuilder) WithdrawRoute(plane Plane, p netip.Prefix) {
	b.withdraws[plane] = append(b.withdraws[plane], p)
	if b.currentBigEnough() {
		b.closePacket()
	}
}

// Flush closes the pending packet, if any, and returns everything
// batched so far.
func (b *UpdateBuilder) Flush() []*UpdatePacket {
	b.closePacket()
	out := b.packets
	b.packets = nil
	return out
}

func (b *UpdateBuilder) pending() bool {
	if b.attrs != nil {
		return true
	}
	for _, w := range b.withdraws {
		if len(w) > 0 {
			return true
		}
	}
	return false
}

func (b *UpdateBuilder) currentBigEnough() bool {
	if !b.pending() {
		return false
	}
	return b.assemble().BigEnough()
}

func (b *UpdateBuilder) closePacket() {
	if !b.pending() {
		return
	}
	b.packets = append(b.packets, b.assemble())
	b.attrs = nil
	b.adds = make(map[Plane][]netip.Prefix)
	b.mpNextHop = make(map[Plane]netip.Addr)
	b.withdraws = make(map[Plane][]netip.Prefix)
}

// assemble renders the pending state into one packet: legacy fields
// for IPv4 unicast, one MP_REACH per announcing plane, one
// MP_UNREACH per withdrawing plane.
func (b *UpdateBuilder) assemble() *UpdatePacket {
	v4u := Plane{AFIIPv4, SAFIUnicast}
	u := &UpdatePacket{FourByteAS: b.fourByteAS}
	u.Withdrawn = append(u.Withdrawn, b.withdraws[v4u]...)
	u.NLRI = append(u.NLRI, b.adds[v4u]...)

	attrs := b.attrs
	if attrs == nil {
		attrs = NewPathAttrList()
	}
	// NEXT_HOP applies to IPv4 unicast only; strip it when this
	// packet announces nothing there
	if len(u.NLRI) == 0 {
		attrs = attrs.CloneExcept(AttrNextHop)
	}
	for _, plane := range AllPlanes {
		if plane == v4u {
			continue
		}
		if adds := b.adds[plane]; len(adds) > 0 {
			attrs = attrs.CloneWith(MPReachNLRIAttr{
				AFI:     plane.AFI,
				SAFI:    plane.SAFI,
				NextHop: b.mpNextHop[plane],
				NLRI:    adds,
			})
		}
		if wds := b.withdraws[plane]; len(wds) > 0 {
			attrs = attrs.CloneWith(MPUnreachNLRIAttr{
				AFI:       plane.AFI,
				SAFI:      plane.SAFI,
				Withdrawn: wds,
			})
		}
	}
	if len(attrs.Attrs()) > 0 {
		u.Attrs = attrs
	}
	return u
}

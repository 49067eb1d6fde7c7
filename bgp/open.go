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

// Capability is one capability advertised in an OPEN optional
// parameter of type 2.
type Capability interface {
	Code() uint8
	Value() []byte
}

// MultiprotocolCap announces support for one (AFI, SAFI) plane.
type MultiprotocolCap struct {
	AFI  AFI
	SAFI SAFI
}

func (MultiprotocolCap) Code() uint8 { return CapMultiprotocol }

func (c MultiprotocolCap) Value() []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out, uint16(c.AFI))
	// out[2] is reserved, zero
	out[3] = uint8(c.SAFI)
	return out
}

// RouteRefreshCap announces route refresh support. OldCode preserves
// whether the peer used the pre-standard code 128 so replies mirror
// it.
type RouteRefreshCap struct {
	OldCode bool
}

func (c RouteRefreshCap) Code() uint8 {
	if c.OldCode {
		return CapRouteRefreshOld
	}
	return CapRouteRefresh
}

func (RouteRefreshCap) Value() []byte { return nil }

// FourByteASCap carries the speaker's full 32-bit AS number.
type FourByteASCap struct {
	AS AsNum
}

func (FourByteASCap) Code() uint8 { return CapFourByteAS }

func (c FourByteASCap) Value() []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(c.AS))
	return out
}

// UnknownCap preserves a capability we do not recognize, verbatim,
// for potential proxying. It is never acted upon.
type UnknownCap struct {
	CapCode uint8
	Data    []byte
}

func (c UnknownCap) Code() uint8   { return c.CapCode }
func (c UnknownCap) Value() []byte { return c.Data }

// OpenMessage is a decoded OPEN.
type OpenMessage struct {
	Version      uint8
	AS           uint16 // legacy 2-byte field; AS_TRANS when extended
	HoldTime     uint16
	BGPID        netip.Addr
	Capabilities []Capability
}

func (*OpenMessage) Type() uint8 { return MsgOpen }

func (o *OpenMessage) Body() []byte {
	id := o.BGPID.As4()
	out := []byte{o.Version}
	out = binary.BigEndian.AppendUint16(out, o.AS)
	out = binary.BigEndian.AppendUint16(out, o.HoldTime)
	out = append(out, id[:]...)

	var params []byte
	for _, cap := range o.Capabilities {
		val := cap.Value()
		// parameter header, then the (code, len, value) triple
		params = append(params, ParamCapability, uint8(2+len(val)), cap.Code(), uint8(len(val)))
		params = append(params, val...)
	}
	out = append(out, uint8(len(params)))
	return append(out, params...)
}

// DecodeOpen parses an OPEN body, including its optional parameter
// list. The deprecated Authentication parameter and any unrecognized
// parameter type are rejected with UNSUPPORTED_OPTIONAL_PARAMETER,
// as are multiprotocol capabilities naming an AFI or SAFI we do not
// implement. Unknown capability codes are preserved verbatim.
func DecodeOpen(body []byte) (*OpenMessage, error) {
	if len(body) < 10 {
		return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
			"OPEN body is %d bytes, want at least 10", len(body))
	}
	o := &OpenMessage{
		Version:  body[0],
		AS:       binary.BigEndian.Uint16(body[1:]),
		HoldTime: binary.BigEndian.Uint16(body[3:]),
		BGPID:    netip.AddrFrom4([4]byte(body[5:9])),
	}
	if o.Version != 4 {
		return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedVersion,
			"version %d", o.Version)
	}
	optLen := int(body[9])
	params := body[10:]
	if len(params) != optLen {
		return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
			"optional parameter length %d does not match %d remaining bytes",
			optLen, len(params))
	}

	for len(params) > 0 {
		if len(params) < 2 {
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
				"truncated optional parameter header")
		}
		ptype, plen := params[0], int(params[1])
		if len(params) < 2+plen {
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
				"optional parameter overruns message")
		}
		value := params[2 : 2+plen]
		params = params[2+plen:]

		switch ptype {
		case ParamAuth:
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedOptParam,
				"deprecated Authentication parameter")
		case ParamCapability:
			caps, err := decodeCapabilities(value)
			if err != nil {
				return nil, err
			}
			o.Capabilities = append(o.Capabilities, caps...)
		default:
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedOptParam,
				"unrecognized optional parameter %d", ptype)
		}
	}
	return o, nil
}

// decodeCapabilities walks the (code, len, value) triples inside one
// capability parameter.
func decodeCapabilities(data []byte) ([]Capability, error) {
	var out []Capability
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
				"truncated capability header")
		}
		code, clen := data[0], int(data[1])
		if len(data) < 2+clen {
			return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
				"capability %d overruns parameter", code)
		}
		value := data[2 : 2+clen]
		data = data[2+clen:]

		switch code {
		case CapMultiprotocol:
			if clen != 4 {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
					"multiprotocol capability length %d, want 4", clen)
			}
			afi := AFI(binary.BigEndian.Uint16(value))
			safi := SAFI(value[3])
			if afi != AFIIPv4 && afi != AFIIPv6 {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedOptParam,
					"multiprotocol capability with unrecognized AFI %d", afi)
			}
			if safi != SAFIUnicast && safi != SAFIMulticast {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedOptParam,
					"multiprotocol capability with unrecognized SAFI %d", safi)
			}
			out = append(out, MultiprotocolCap{AFI: afi, SAFI: safi})
		case CapRouteRefresh, CapRouteRefreshOld:
			if clen != 0 {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
					"route refresh capability length %d, want 0", clen)
			}
			out = append(out, RouteRefreshCap{OldCode: code == CapRouteRefreshOld})
		case CapFourByteAS:
			if clen != 4 {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnspecific,
					"4-byte AS capability length %d, want 4", clen)
			}
			out = append(out, FourByteASCap{AS: AsNum(binary.BigEndian.Uint32(value))})
		default:
			out = append(out, UnknownCap{CapCode: code, Data: append([]byte(nil), value...)})
		}
	}
	return out, nil
}

// Negotiated is the session state agreed by a pair of OPENs.
type Negotiated struct {
	// Planes holds the (AFI, SAFI) planes both sides advertised.
	// With no multiprotocol capability on either side, IPv4 unicast
	// is implied.
	Planes map[Plane]bool

	// AS is the remote speaker's effective AS number: the 4-byte
	// capability value when present, else the legacy field.
	AS AsNum

	// RouteRefresh is set when both sides support refresh.
	RouteRefresh bool

	// HoldTime is the smaller of the two offers.
	HoldTime uint16
}

// Negotiate combines a local and a remote OPEN. When the remote
// advertises a 4-byte AS, its legacy field must carry AS_TRANS or the
// true AS; a contradiction is a Bad Peer AS error.
func Negotiate(local, remote *OpenMessage) (*Negotiated, error) {
	n := &Negotiated{
		Planes:   make(map[Plane]bool),
		HoldTime: local.HoldTime,
	}
	if remote.HoldTime < n.HoldTime {
		n.HoldTime = remote.HoldTime
	}
	if n.HoldTime != 0 && n.HoldTime < 3 {
		return nil, msgErrf(ErrcodeOpenMessage, SubcodeUnacceptableHoldTime,
			"hold time %d", n.HoldTime)
	}

	n.AS = AsNum(remote.AS)
	var remoteRefresh, localRefresh bool
	remoteMP := make(map[Plane]bool)
	localMP := make(map[Plane]bool)

	for _, cap := range remote.Capabilities {
		switch c := cap.(type) {
		case MultiprotocolCap:
			remoteMP[Plane{c.AFI, c.SAFI}] = true
		case RouteRefreshCap:
			remoteRefresh = true
		case FourByteASCap:
			if remote.AS != ASTrans && remote.AS != c.AS.Legacy() {
				return nil, msgErrf(ErrcodeOpenMessage, SubcodeBadPeerAS,
					"4-byte AS %s but legacy field %d is not AS_TRANS", c.AS, remote.AS)
			}
			n.AS = c.AS
		}
	}
	for _, cap := range local.Capabilities {
		switch c := cap.(type) {
		case MultiprotocolCap:
			localMP[Plane{c.AFI, c.SAFI}] = true
		case RouteRefreshCap:
			localRefresh = true
		}
	}

	n.RouteRefresh = remoteRefresh && localRefresh
	if len(remoteMP) == 0 && len(localMP) == 0 {
		n.Planes[Plane{AFIIPv4, SAFIUnicast}] = true
		return n, nil
	}
	for p := range localMP {
		if remoteMP[p] {
			n.Planes[p] = true
		}
	}
	return n, nil
}

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

// Message is anything that can travel in a BGP envelope.
type Message interface {
	Type() uint8
	Body() []byte
}

// EncodeMessage wraps a message body in the standard header:
// marker[16 × 0xFF] | length[u16] | type[u8].
func EncodeMessage(m Message) []byte {
	body := m.Body()
	out := make([]byte, HeaderLen+len(body))
	for i := 0; i < MarkerLen; i++ {
		out[i] = 0xFF
	}
	binary.BigEndian.PutUint16(out[MarkerLen:], uint16(HeaderLen+len(body)))
	out[MarkerLen+2] = m.Type()
	copy(out[HeaderLen:], body)
	return out
}

// Header is a decoded message header.
type Header struct {
	Length uint16
	Type   uint8
}

// DecodeHeader validates the 19-byte header: all-ones marker, sane
// length, known type.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, msgErrf(ErrcodeMessageHeader, SubcodeBadMessageLength,
			"short header: %d bytes", len(buf))
	}
	for i := 0; i < MarkerLen; i++ {
		if buf[i] != 0xFF {
			return Header{}, msgErrf(ErrcodeMessageHeader, SubcodeConnNotSynchronized,
				"marker byte %d is %#x", i, buf[i])
		}
	}
	h := Header{
		Length: binary.BigEndian.Uint16(buf[MarkerLen:]),
		Type:   buf[MarkerLen+2],
	}
	if h.Length < MinMsgLen || h.Length > MaxMsgLen {
		return Header{}, msgErrf(ErrcodeMessageHeader, SubcodeBadMessageLength,
			"length %d out of range", h.Length)
	}
	if h.Type < MsgOpen || h.Type > MsgRouteRefresh {
		return Header{}, msgErrf(ErrcodeMessageHeader, SubcodeBadMessageType,
			"unknown message type %d", h.Type)
	}
	return h, nil
}

// KeepaliveMessage is the empty-bodied keepalive.
type KeepaliveMessage struct{}

func (KeepaliveMessage) Type() uint8  { return MsgKeepalive }
func (KeepaliveMessage) Body() []byte { return nil }

// NotificationMessage closes a session with a reason.
type NotificationMessage struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

func (n *NotificationMessage) Type() uint8 { return MsgNotification }

func (n *NotificationMessage) Body() []byte {
	return append([]byte{n.Code, n.Subcode}, n.Data...)
}

// DecodeNotification parses a NOTIFICATION body.
func DecodeNotification(body []byte) (*NotificationMessage, error) {
	if len(body) < 2 {
		return nil, msgErrf(ErrcodeMessageHeader, SubcodeBadMessageLength,
			"notification body too short")
	}
	return &NotificationMessage{Code: body[0], Subcode: body[1], Data: body[2:]}, nil
}

// NotificationFor converts a MessageError into the NOTIFICATION that
// reports it.
func NotificationFor(e *MessageError) *NotificationMessage {
	return &NotificationMessage{Code: e.Code, Subcode: e.Subcode, Data: e.Data}
}

// RouteRefreshMessage asks the peer to replay its RIB-out for one
// (AFI, SAFI).
type RouteRefreshMessage struct {
	AFI  AFI
	SAFI SAFI
}

func (*RouteRefreshMessage) Type() uint8 { return MsgRouteRefresh }

func (m *RouteRefreshMessage) Body() []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out, uint16(m.AFI))
	out[3] = uint8(m.SAFI)
	return out
}

// DecodeRouteRefresh parses a ROUTE_REFRESH body.
func DecodeRouteRefresh(body []byte) (*RouteRefreshMessage, error) {
	if len(body) != 4 {
		return nil, msgErrf(ErrcodeMessageHeader, SubcodeBadMessageLength,
			"route refresh body is %d bytes, want 4", len(body))
	}
	return &RouteRefreshMessage{
		AFI:  AFI(binary.BigEndian.Uint16(body)),
		SAFI: SAFI(body[3]),
	}, nil
}

// encodePrefix appends the NLRI wire form of p: length-in-bits
// followed by just enough address bytes.
func encodePrefix(out []byte, p netip.Prefix) []byte {
	bits := p.Bits()
	out = append(out, uint8(bits))
	nbytes := (bits + 7) / 8
	if p.Addr().Is4() {
		a := p.Addr().As4()
		return append(out, a[:nbytes]...)
	}
	a := p.Addr().As16()
	return append(out, a[:nbytes]...)
}

// decodePrefix reads one NLRI prefix of the given family, returning
// the remaining data.
func decodePrefix(data []byte, afi AFI) (netip.Prefix, []byte, error) {
	if len(data) < 1 {
		return netip.Prefix{}, nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidNetworkField,
			"empty NLRI field")
	}
	bits := int(data[0])
	maxBits, addrLen := 32, 4
	if afi == AFIIPv6 {
		maxBits, addrLen = 128, 16
	}
	if bits > maxBits {
		return netip.Prefix{}, nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidNetworkField,
			"prefix length %d exceeds %d", bits, maxBits)
	}
	nbytes := (bits + 7) / 8
	if len(data) < 1+nbytes {
		return netip.Prefix{}, nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidNetworkField,
			"truncated NLRI prefix")
	}
	raw := make([]byte, addrLen)
	copy(raw, data[1:1+nbytes])
	var addr netip.Addr
	if afi == AFIIPv4 {
		addr = netip.AddrFrom4([4]byte(raw))
	} else {
		addr = netip.AddrFrom16([16]byte(raw))
	}
	p, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidNetworkField,
			"bad prefix: %v", err)
	}
	return p, data[1+nbytes:], nil
}

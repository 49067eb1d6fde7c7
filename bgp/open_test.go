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
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func openWith(as uint16, caps ...Capability) *OpenMessage {
	return &OpenMessage{
		Version:      4,
		AS:           as,
		HoldTime:     90,
		BGPID:        netip.MustParseAddr("192.0.2.1"),
		Capabilities: caps,
	}
}

func TestOpenRoundTrip(t *testing.T) {
	o := openWith(65001,
		MultiprotocolCap{AFIIPv4, SAFIUnicast},
		MultiprotocolCap{AFIIPv6, SAFIUnicast},
		RouteRefreshCap{},
		FourByteASCap{AS: 65001},
	)
	decoded, err := DecodeOpen(o.Body())
	require.NoError(t, err)
	require.Equal(t, uint8(4), decoded.Version)
	require.Equal(t, uint16(65001), decoded.AS)
	require.Equal(t, uint16(90), decoded.HoldTime)
	require.Equal(t, netip.MustParseAddr("192.0.2.1"), decoded.BGPID)
	require.Len(t, decoded.Capabilities, 4)
}

// Peer A offers {MP(IPv4, unicast), MP(IPv6, unicast), 4-byte-AS
// 65537}; peer B offers {MP(IPv4, unicast), Route-Refresh}. Only
// IPv4 unicast is mutually enabled, and A's legacy AS field must
// have been downgraded to AS_TRANS (23456).
func TestOpenCapabilityHandshake(t *testing.T) {
	asA := AsNum(65537)
	require.True(t, asA.Extended())
	require.Equal(t, ASTrans, asA.Legacy(), "extended AS downgrades to AS_TRANS")

	openA := openWith(asA.Legacy(),
		MultiprotocolCap{AFIIPv4, SAFIUnicast},
		MultiprotocolCap{AFIIPv6, SAFIUnicast},
		FourByteASCap{AS: asA},
	)
	openB := openWith(65010,
		MultiprotocolCap{AFIIPv4, SAFIUnicast},
		RouteRefreshCap{},
	)

	// B's view of the session with A
	neg, err := Negotiate(openB, openA)
	require.NoError(t, err)
	require.Equal(t, asA, neg.AS, "4-byte capability carries the true AS")
	require.True(t, neg.Planes[Plane{AFIIPv4, SAFIUnicast}])
	require.False(t, neg.Planes[Plane{AFIIPv6, SAFIUnicast}],
		"IPv6 unicast was not offered by both sides")
	require.Len(t, neg.Planes, 1)
	require.False(t, neg.RouteRefresh, "A did not offer route refresh")
}

func TestNegotiateLegacyOnlyImpliesIPv4Unicast(t *testing.T) {
	neg, err := Negotiate(openWith(65001), openWith(65002))
	require.NoError(t, err)
	require.True(t, neg.Planes[Plane{AFIIPv4, SAFIUnicast}])
	require.Equal(t, AsNum(65002), neg.AS)
}

func TestNegotiateBadLegacyField(t *testing.T) {
	// extended AS but legacy field not AS_TRANS: Bad Peer AS
	remote := openWith(65001, FourByteASCap{AS: 65537})
	_, err := Negotiate(openWith(65010), remote)
	var me *MessageError
	require.ErrorAs(t, err, &me)
	require.Equal(t, ErrcodeOpenMessage, me.Code)
	require.Equal(t, SubcodeBadPeerAS, me.Subcode)
}

func TestDecodeOpenRejectsAuthParameter(t *testing.T) {
	o := openWith(65001)
	body := o.Body()
	// splice in a deprecated Authentication parameter (type 1)
	body[9] = 3 // optional parameter length
	body = append(body, ParamAuth, 1, 0)

	_, err := DecodeOpen(body)
	var me *MessageError
	require.ErrorAs(t, err, &me)
	require.Equal(t, ErrcodeOpenMessage, me.Code)
	require.Equal(t, SubcodeUnsupportedOptParam, me.Subcode)
}

func TestDecodeOpenUnknownAFIRejected(t *testing.T) {
	// hand-build a multiprotocol capability with AFI 99
	o := openWith(65001)
	body := o.Body()
	capVal := []byte{0, 99, 0, 1}
	param := append([]byte{ParamCapability, uint8(2 + len(capVal)), CapMultiprotocol, uint8(len(capVal))}, capVal...)
	body[9] = uint8(len(param))
	body = append(body, param...)

	_, err := DecodeOpen(body)
	var me *MessageError
	require.ErrorAs(t, err, &me)
	require.Equal(t, SubcodeUnsupportedOptParam, me.Subcode)
}

func TestDecodeOpenPreservesUnknownCapability(t *testing.T) {
	o := openWith(65001)
	body := o.Body()
	capVal := []byte{0xDE, 0xAD}
	param := append([]byte{ParamCapability, uint8(2 + len(capVal)), 200, uint8(len(capVal))}, capVal...)
	body[9] = uint8(len(param))
	body = append(body, param...)

	decoded, err := DecodeOpen(body)
	require.NoError(t, err)
	require.Len(t, decoded.Capabilities, 1)
	unknown, ok := decoded.Capabilities[0].(UnknownCap)
	require.True(t, ok)
	require.Equal(t, uint8(200), unknown.CapCode)
	require.Equal(t, capVal, unknown.Data, "unknown capability must be preserved verbatim")
}

func TestDecodeOpenOldRouteRefreshCode(t *testing.T) {
	o := openWith(65001, RouteRefreshCap{OldCode: true})
	decoded, err := DecodeOpen(o.Body())
	require.NoError(t, err)
	rr, ok := decoded.Capabilities[0].(RouteRefreshCap)
	require.True(t, ok)
	require.True(t, rr.OldCode)
}

func TestHeaderValidation(t *testing.T) {
	buf := EncodeMessage(KeepaliveMessage{})
	h, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, MsgKeepalive, h.Type)
	require.Equal(t, uint16(HeaderLen), h.Length)

	// broken marker
	bad := append([]byte(nil), buf...)
	bad[3] = 0
	_, err = DecodeHeader(bad)
	var me *MessageError
	require.ErrorAs(t, err, &me)
	require.Equal(t, SubcodeConnNotSynchronized, me.Subcode)

	// absurd length
	bad = append([]byte(nil), buf...)
	bad[16], bad[17] = 0xFF, 0xFF
	_, err = DecodeHeader(bad)
	require.ErrorAs(t, err, &me)
	require.Equal(t, SubcodeBadMessageLength, me.Subcode)

	// unknown type
	bad = append([]byte(nil), buf...)
	bad[18] = 9
	_, err = DecodeHeader(bad)
	require.ErrorAs(t, err, &me)
	require.Equal(t, SubcodeBadMessageType, me.Subcode)
}

func TestMessageErrorString(t *testing.T) {
	err := msgErrf(ErrcodeOpenMessage, SubcodeUnsupportedOptParam, "nope")
	require.Contains(t, err.Error(), "OPEN message error")
	require.False(t, errors.Is(err, errors.New("nope")))
}

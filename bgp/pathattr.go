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
	"sort"

	"github.com/cespare/xxhash/v2"
)

// PathAttribute is one typed attribute of a route.
type PathAttribute interface {
	TypeCode() uint8
	AttrFlags() uint8
	// WireValue renders the attribute value; fourByteAS selects the
	// AS_PATH encoding width.
	WireValue(fourByteAS bool) []byte
}

// OriginAttr is the mandatory ORIGIN attribute.
type OriginAttr struct {
	Origin uint8
}

func (OriginAttr) TypeCode() uint8  { return AttrOrigin }
func (OriginAttr) AttrFlags() uint8 { return FlagTransitive }
func (a OriginAttr) WireValue(bool) []byte {
	return []byte{a.Origin}
}

// ASPathAttr is the mandatory AS_PATH attribute.
type ASPathAttr struct {
	Path *ASPath
}

func (ASPathAttr) TypeCode() uint8  { return AttrASPath }
func (ASPathAttr) AttrFlags() uint8 { return FlagTransitive }
func (a ASPathAttr) WireValue(fourByteAS bool) []byte {
	return a.Path.Encode(fourByteAS)
}

// NextHopAttr carries the route's next hop. On the wire NEXT_HOP is
// IPv4-unicast only; for the other planes the same attribute rides
// inside MP_REACH_NLRI at emission.
type NextHopAttr struct {
	NextHop netip.Addr
}

func (NextHopAttr) TypeCode() uint8  { return AttrNextHop }
func (NextHopAttr) AttrFlags() uint8 { return FlagTransitive }
func (a NextHopAttr) WireValue(bool) []byte {
	if a.NextHop.Is4() {
		v := a.NextHop.As4()
		return v[:]
	}
	v := a.NextHop.As16()
	return v[:]
}

// MEDAttr is the optional MULTI_EXIT_DISC attribute.
type MEDAttr struct {
	MED uint32
}

func (MEDAttr) TypeCode() uint8  { return AttrMED }
func (MEDAttr) AttrFlags() uint8 { return FlagOptional }
func (a MEDAttr) WireValue(bool) []byte {
	return binary.BigEndian.AppendUint32(nil, a.MED)
}

// LocalPrefAttr is the LOCAL_PREF attribute, mandatory on IBGP
// sessions.
type LocalPrefAttr struct {
	LocalPref uint32
}

func (LocalPrefAttr) TypeCode() uint8  { return AttrLocalPref }
func (LocalPrefAttr) AttrFlags() uint8 { return FlagTransitive }
func (a LocalPrefAttr) WireValue(bool) []byte {
	return binary.BigEndian.AppendUint32(nil, a.LocalPref)
}

// AtomicAggregateAttr flags a route that lost specifics to
// aggregation.
type AtomicAggregateAttr struct{}

func (AtomicAggregateAttr) TypeCode() uint8       { return AttrAtomicAggregate }
func (AtomicAggregateAttr) AttrFlags() uint8      { return FlagTransitive }
func (AtomicAggregateAttr) WireValue(bool) []byte { return nil }

// AggregatorAttr names the speaker that aggregated the route.
type AggregatorAttr struct {
	AS   AsNum
	Addr netip.Addr
}

func (AggregatorAttr) TypeCode() uint8  { return AttrAggregator }
func (AggregatorAttr) AttrFlags() uint8 { return FlagOptional | FlagTransitive }
func (a AggregatorAttr) WireValue(fourByteAS bool) []byte {
	var out []byte
	if fourByteAS {
		out = binary.BigEndian.AppendUint32(out, uint32(a.AS))
	} else {
		out = binary.BigEndian.AppendUint16(out, a.AS.Legacy())
	}
	v := a.Addr.As4()
	return append(out, v[:]...)
}

// CommunitiesAttr is the COMMUNITIES attribute.
type CommunitiesAttr struct {
	Communities []uint32
}

func (CommunitiesAttr) TypeCode() uint8  { return AttrCommunities }
func (CommunitiesAttr) AttrFlags() uint8 { return FlagOptional | FlagTransitive }
func (a CommunitiesAttr) WireValue(bool) []byte {
	var out []byte
	for _, c := range a.Communities {
		out = binary.BigEndian.AppendUint32(out, c)
	}
	return out
}

// MPReachNLRIAttr announces prefixes of a non-IPv4-unicast plane
// along with their next hop.
type MPReachNLRIAttr struct {
	AFI     AFI
	SAFI    SAFI
	NextHop netip.Addr
	NLRI    []netip.Prefix
}

func (MPReachNLRIAttr) TypeCode() uint8  { return AttrMPReachNLRI }
func (MPReachNLRIAttr) AttrFlags() uint8 { return FlagOptional }
func (a MPReachNLRIAttr) WireValue(bool) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, uint16(a.AFI))
	out = append(out, uint8(a.SAFI))
	var nh []byte
	if a.NextHop.Is4() {
		v := a.NextHop.As4()
		nh = v[:]
	} else {
		v := a.NextHop.As16()
		nh = v[:]
	}
	out = append(out, uint8(len(nh)))
	out = append(out, nh...)
	out = append(out, 0) // SNPA count
	for _, p := range a.NLRI {
		out = encodePrefix(out, p)
	}
	return out
}

// MPUnreachNLRIAttr withdraws prefixes of a non-IPv4-unicast plane.
type MPUnreachNLRIAttr struct {
	AFI       AFI
	SAFI      SAFI
	Withdrawn []netip.Prefix
}

func (MPUnreachNLRIAttr) TypeCode() uint8  { return AttrMPUnreachNLRI }
func (MPUnreachNLRIAttr) AttrFlags() uint8 { return FlagOptional }
func (a MPUnreachNLRIAttr) WireValue(bool) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, uint16(a.AFI))
	out = append(out, uint8(a.SAFI))
	for _, p := range a.Withdrawn {
		out = encodePrefix(out, p)
	}
	return out
}

// UnknownAttr preserves an attribute we do not interpret. The flags
// byte is kept as received except for the extended-length bit, which
// Encode recomputes; the partial bit is not added.
type UnknownAttr struct {
	Flags uint8
	Type  uint8
	Data  []byte
}

func (a UnknownAttr) TypeCode() uint8       { return a.Type }
func (a UnknownAttr) AttrFlags() uint8      { return a.Flags &^ FlagExtLen }
func (a UnknownAttr) WireValue(bool) []byte { return a.Data }

// PathAttrList is the ordered, canonicalized attribute collection of
// an announced route. Canonical order is ascending type code, fixed
// at construction, so identical attribute sets encode identically
// and intern to one shared copy.
type PathAttrList struct {
	attrs []PathAttribute
}

// NewPathAttrList canonicalizes attrs into a list.
func NewPathAttrList(attrs ...PathAttribute) *PathAttrList {
	l := &PathAttrList{attrs: append([]PathAttribute(nil), attrs...)}
	sort.SliceStable(l.attrs, func(i, j int) bool {
		return l.attrs[i].TypeCode() < l.attrs[j].TypeCode()
	})
	return l
}

// Attrs returns the attributes in canonical order. Callers must not
// mutate the slice; lists are shared across routes and peers.
func (l *PathAttrList) Attrs() []PathAttribute { return l.attrs }

// Get returns the attribute with the given type code, or nil.
func (l *PathAttrList) Get(typeCode uint8) PathAttribute {
	for _, a := range l.attrs {
		if a.TypeCode() == typeCode {
			return a
		}
	}
	return nil
}

// NextHop returns the NEXT_HOP attribute's address, if present.
func (l *PathAttrList) NextHop() (netip.Addr, bool) {
	if a, ok := l.Get(AttrNextHop).(NextHopAttr); ok {
		return a.NextHop, true
	}
	return netip.Addr{}, false
}

// CloneExcept returns a new list without the attributes whose type
// codes appear in drop; used to synthesize the per-plane lists of a
// multiprotocol UPDATE.
func (l *PathAttrList) CloneExcept(drop ...uint8) *PathAttrList {
	out := make([]PathAttribute, 0, len(l.attrs))
	for _, a := range l.attrs {
		skip := false
		for _, d := range drop {
			if a.TypeCode() == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, a)
		}
	}
	return NewPathAttrList(out...)
}

// CloneWith returns a new list with extra appended (replacing any
// attribute of the same type code).
func (l *PathAttrList) CloneWith(extra PathAttribute) *PathAttrList {
	out := make([]PathAttribute, 0, len(l.attrs)+1)
	for _, a := range l.attrs {
		if a.TypeCode() != extra.TypeCode() {
			out = append(out, a)
		}
	}
	return NewPathAttrList(append(out, extra)...)
}

// Encode renders the whole list in wire form. Values longer than 255
// bytes get the extended-length flag.
func (l *PathAttrList) Encode(fourByteAS bool) []byte {
	var out []byte
	for _, a := range l.attrs {
		val := a.WireValue(fourByteAS)
		flags := a.AttrFlags()
		if len(val) > 255 {
			flags |= FlagExtLen
			out = append(out, flags, a.TypeCode())
			out = binary.BigEndian.AppendUint16(out, uint16(len(val)))
		} else {
			out = append(out, flags, a.TypeCode(), uint8(len(val)))
		}
		out = append(out, val...)
	}
	return out
}

// Hash is the interning key: identical canonical encodings hash
// equal.
func (l *PathAttrList) Hash() uint64 {
	return xxhash.Sum64(l.Encode(true))
}

// Equal compares canonical encodings.
func (l *PathAttrList) Equal(o *PathAttrList) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil {
		return false
	}
	a, b := l.Encode(true), o.Encode(true)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DecodePathAttributes walks a wire-form attribute block.
func DecodePathAttributes(data []byte, fourByteAS bool) (*PathAttrList, error) {
	var attrs []PathAttribute
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
				"truncated attribute header")
		}
		flags, typeCode := data[0], data[1]
		var alen int
		var hdr int
		if flags&FlagExtLen != 0 {
			if len(data) < 4 {
				return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedAttributeList,
					"truncated extended-length attribute")
			}
			alen = int(binary.BigEndian.Uint16(data[2:]))
			hdr = 4
		} else {
			alen = int(data[2])
			hdr = 3
		}
		if len(data) < hdr+alen {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"attribute %d overruns message", typeCode)
		}
		value := data[hdr : hdr+alen]
		data = data[hdr+alen:]

		attr, err := decodeAttribute(flags, typeCode, value, fourByteAS)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return NewPathAttrList(attrs...), nil
}

func decodeAttribute(flags, typeCode uint8, value []byte, fourByteAS bool) (PathAttribute, error) {
	switch typeCode {
	case AttrOrigin:
		if len(value) != 1 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"ORIGIN length %d", len(value))
		}
		if value[0] > OriginIncomplete {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidOriginAttribute,
				"ORIGIN value %d", value[0])
		}
		return OriginAttr{Origin: value[0]}, nil
	case AttrASPath:
		p, err := DecodeASPath(value, fourByteAS)
		if err != nil {
			return nil, err
		}
		return ASPathAttr{Path: p}, nil
	case AttrNextHop:
		if len(value) != 4 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeInvalidNextHopAttribute,
				"NEXT_HOP length %d", len(value))
		}
		return NextHopAttr{NextHop: netip.AddrFrom4([4]byte(value))}, nil
	case AttrMED:
		if len(value) != 4 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"MED length %d", len(value))
		}
		return MEDAttr{MED: binary.BigEndian.Uint32(value)}, nil
	case AttrLocalPref:
		if len(value) != 4 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"LOCAL_PREF length %d", len(value))
		}
		return LocalPrefAttr{LocalPref: binary.BigEndian.Uint32(value)}, nil
	case AttrAtomicAggregate:
		if len(value) != 0 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"ATOMIC_AGGREGATE length %d", len(value))
		}
		return AtomicAggregateAttr{}, nil
	case AttrAggregator:
		switch len(value) {
		case 6:
			return AggregatorAttr{
				AS:   AsNum(binary.BigEndian.Uint16(value)),
				Addr: netip.AddrFrom4([4]byte(value[2:])),
			}, nil
		case 8:
			return AggregatorAttr{
				AS:   AsNum(binary.BigEndian.Uint32(value)),
				Addr: netip.AddrFrom4([4]byte(value[4:])),
			}, nil
		}
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
			"AGGREGATOR length %d", len(value))
	case AttrCommunities:
		if len(value)%4 != 0 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeAttributeLengthError,
				"COMMUNITIES length %d", len(value))
		}
		a := CommunitiesAttr{}
		for i := 0; i < len(value); i += 4 {
			a.Communities = append(a.Communities, binary.BigEndian.Uint32(value[i:]))
		}
		return a, nil
	case AttrMPReachNLRI:
		return decodeMPReach(value)
	case AttrMPUnreachNLRI:
		return decodeMPUnreach(value)
	}
	if flags&FlagOptional == 0 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeUnrecognizedWellKnownAttr,
			"well-known attribute %d unrecognized", typeCode)
	}
	return UnknownAttr{Flags: flags, Type: typeCode, Data: append([]byte(nil), value...)}, nil
}

func decodeMPReach(value []byte) (PathAttribute, error) {
	if len(value) < 5 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"MP_REACH_NLRI too short")
	}
	a := MPReachNLRIAttr{
		AFI:  AFI(binary.BigEndian.Uint16(value)),
		SAFI: SAFI(value[2]),
	}
	nhLen := int(value[3])
	rest := value[4:]
	if len(rest) < nhLen+1 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"MP_REACH_NLRI next hop overruns attribute")
	}
	switch nhLen {
	case 4:
		a.NextHop = netip.AddrFrom4([4]byte(rest[:4]))
	case 16, 32:
		// a 32-byte next hop is a global plus link-local pair; the
		// global address is what routes on
		a.NextHop = netip.AddrFrom16([16]byte(rest[:16]))
	default:
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"MP_REACH_NLRI next hop length %d", nhLen)
	}
	rest = rest[nhLen:]
	snpa := int(rest[0])
	if snpa != 0 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"MP_REACH_NLRI with %d SNPAs", snpa)
	}
	rest = rest[1:]
	for len(rest) > 0 {
		p, remaining, err := decodePrefix(rest, a.AFI)
		if err != nil {
			return nil, err
		}
		a.NLRI = append(a.NLRI, p)
		rest = remaining
	}
	return a, nil
}

func decodeMPUnreach(value []byte) (PathAttribute, error) {
	if len(value) < 3 {
		return nil, msgErrf(ErrcodeUpdateMessage, SubcodeOptionalAttributeError,
			"MP_UNREACH_NLRI too short")
	}
	a := MPUnreachNLRIAttr{
		AFI:  AFI(binary.BigEndian.Uint16(value)),
		SAFI: SAFI(value[2]),
	}
	rest := value[3:]
	for len(rest) > 0 {
		p, remaining, err := decodePrefix(rest, a.AFI)
		if err != nil {
			return nil, err
		}
		a.Withdrawn = append(a.Withdrawn, p)
		rest = remaining
	}
	return a, nil
}

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
	"strconv"
	"strings"

	"github.com/routecore/routecore/policy"
)

// AsNum is an autonomous system number, 16-bit legacy or 32-bit
// extended. The legacy wire form of an extended number is AS_TRANS.
type AsNum uint32

// Extended reports whether the number needs four bytes on the wire.
func (a AsNum) Extended() bool { return a > 0xFFFF }

// Legacy returns the 2-byte wire form: the number itself if it fits,
// AS_TRANS otherwise.
func (a AsNum) Legacy() uint16 {
	if a.Extended() {
		return ASTrans
	}
	return uint16(a)
}

func (a AsNum) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ASSegment is one segment of an AS path: an ordered AS_SEQUENCE or
// an unordered AS_SET.
type ASSegment struct {
	Type uint8 // ASSet or ASSequence
	ASes []AsNum
}

// ASPath is the ordered list of segments carried in the AS_PATH
// attribute.
type ASPath struct {
	Segments []ASSegment
}

// Prepend adds as to the front of the path, extending the leading
// AS_SEQUENCE or creating one.
func (p *ASPath) Prepend(as AsNum) {
	if len(p.Segments) > 0 && p.Segments[0].Type == ASSequence {
		seg := &p.Segments[0]
		seg.ASes = append([]AsNum{as}, seg.ASes...)
		return
	}
	p.Segments = append([]ASSegment{{Type: ASSequence, ASes: []AsNum{as}}}, p.Segments...)
}

// Contains reports whether as appears anywhere in the path; a peer
// seeing its own AS in a received path has found a loop.
func (p *ASPath) Contains(as AsNum) bool {
	for _, seg := range p.Segments {
		for _, a := range seg.ASes {
			if a == as {
				return true
			}
		}
	}
	return false
}

// Length returns the path length for route selection: each sequence
// member counts one, each set counts one in total.
func (p *ASPath) Length() int {
	n := 0
	for _, seg := range p.Segments {
		if seg.Type == ASSet {
			n++
		} else {
			n += len(seg.ASes)
		}
	}
	return n
}

// NeedsExtended reports whether any member requires 4-byte encoding.
func (p *ASPath) NeedsExtended() bool {
	for _, seg := range p.Segments {
		for _, a := range seg.ASes {
			if a.Extended() {
				return true
			}
		}
	}
	return false
}

// Encode renders the path in wire form, four bytes per AS if
// fourByte.
func (p *ASPath) Encode(fourByte bool) []byte {
	var out []byte
	for _, seg := range p.Segments {
		out = append(out, seg.Type, uint8(len(seg.ASes)))
		for _, a := range seg.ASes {
			if fourByte {
				out = binary.BigEndian.AppendUint32(out, uint32(a))
			} else {
				out = binary.BigEndian.AppendUint16(out, a.Legacy())
			}
		}
	}
	return out
}

// DecodeASPath parses wire-form path data.
func DecodeASPath(data []byte, fourByte bool) (*ASPath, error) {
	width := 2
	if fourByte {
		width = 4
	}
	p := new(ASPath)
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedASPath,
				"truncated AS path segment header")
		}
		segType, count := data[0], int(data[1])
		if segType != ASSet && segType != ASSequence {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedASPath,
				"unknown AS path segment type %d", segType)
		}
		data = data[2:]
		if len(data) < count*width {
			return nil, msgErrf(ErrcodeUpdateMessage, SubcodeMalformedASPath,
				"truncated AS path segment")
		}
		seg := ASSegment{Type: segType}
		for i := 0; i < count; i++ {
			var as AsNum
			if fourByte {
				as = AsNum(binary.BigEndian.Uint32(data[i*4:]))
			} else {
				as = AsNum(binary.BigEndian.Uint16(data[i*2:]))
			}
			seg.ASes = append(seg.ASes, as)
		}
		data = data[count*width:]
		p.Segments = append(p.Segments, seg)
	}
	return p, nil
}

// Expr flattens the path into the policy engine's representation.
func (p *ASPath) Expr() policy.ASPathExpr {
	var out policy.ASPathExpr
	for _, seg := range p.Segments {
		for _, a := range seg.ASes {
			out = append(out, uint32(a))
		}
	}
	return out
}

func (p *ASPath) String() string {
	var parts []string
	for _, seg := range p.Segments {
		var nums []string
		for _, a := range seg.ASes {
			nums = append(nums, a.String())
		}
		s := strings.Join(nums, " ")
		if seg.Type == ASSet {
			s = "{" + s + "}"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// Equal reports deep equality.
func (p *ASPath) Equal(o *ASPath) bool {
	if len(p.Segments) != len(o.Segments) {
		return false
	}
	for i := range p.Segments {
		a, b := p.Segments[i], o.Segments[i]
		if a.Type != b.Type || len(a.ASes) != len(b.ASes) {
			return false
		}
		for j := range a.ASes {
			if a.ASes[j] != b.ASes[j] {
				return false
			}
		}
	}
	return true
}

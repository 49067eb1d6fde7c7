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

// Package policy implements the route policy engine: a small stack VM
// with per-protocol variable maps, set and element algebra, and
// tagged inter-protocol route redistribution. Policies are written in
// the policy source language (package policyfile), compiled to flat
// instruction streams, and evaluated against routes presented through
// the VarRW interface.
package policy

import (
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// ElemType tags the variant held by an Element.
type ElemType uint8

const (
	TypeNone ElemType = iota
	TypeBool
	TypeU32
	TypeI32
	TypeU64
	TypeIPv4
	TypeIPv6
	TypeIPv4Net
	TypeIPv6Net
	TypeMac
	TypeStr
	TypeU32Set
	TypeIPv4NetSet
	TypeIPv6NetSet
	TypeASPath
)

var elemTypeNames = map[ElemType]string{
	TypeBool:       "bool",
	TypeU32:        "u32",
	TypeI32:        "i32",
	TypeU64:        "u64",
	TypeIPv4:       "ipv4",
	TypeIPv6:       "ipv6",
	TypeIPv4Net:    "ipv4net",
	TypeIPv6Net:    "ipv6net",
	TypeMac:        "mac",
	TypeStr:        "str",
	TypeU32Set:     "u32set",
	TypeIPv4NetSet: "ipv4netset",
	TypeIPv6NetSet: "ipv6netset",
	TypeASPath:     "aspath",
}

func (t ElemType) String() string {
	if s, ok := elemTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("elemtype(%d)", t)
}

// ElemTypeByName resolves the textual type tag used in instruction
// streams and variable maps.
func ElemTypeByName(name string) (ElemType, bool) {
	for t, s := range elemTypeNames {
		if s == name {
			return t, true
		}
	}
	return TypeNone, false
}

// Element is one tagged policy value. The zero Element has TypeNone
// and is what a VarRW returns for a variable it does not carry.
type Element struct {
	typ  ElemType
	b    bool
	u64  uint64
	i32  int32
	addr netip.Addr
	pfx  netip.Prefix
	mac  net.HardwareAddr
	str  string
	uset U32Set
	nset NetSet
	path ASPathExpr
}

// Constructors.

func NewBool(v bool) Element            { return Element{typ: TypeBool, b: v} }
func NewU32(v uint32) Element           { return Element{typ: TypeU32, u64: uint64(v)} }
func NewI32(v int32) Element            { return Element{typ: TypeI32, i32: v} }
func NewU64(v uint64) Element           { return Element{typ: TypeU64, u64: v} }
func NewStr(v string) Element           { return Element{typ: TypeStr, str: v} }
func NewMac(v net.HardwareAddr) Element { return Element{typ: TypeMac, mac: v} }

// NewAddr wraps an address, choosing TypeIPv4 or TypeIPv6.
func NewAddr(a netip.Addr) Element {
	t := TypeIPv6
	if a.Is4() {
		t = TypeIPv4
	}
	return Element{typ: t, addr: a}
}

// NewNet wraps a prefix, choosing TypeIPv4Net or TypeIPv6Net.
func NewNet(p netip.Prefix) Element {
	t := TypeIPv6Net
	if p.Addr().Is4() {
		t = TypeIPv4Net
	}
	return Element{typ: t, pfx: p}
}

func NewU32Set(s U32Set) Element { return Element{typ: TypeU32Set, uset: s} }

// NewNetSet wraps a prefix set with the explicit family type t, which
// must be TypeIPv4NetSet or TypeIPv6NetSet.
func NewNetSet(t ElemType, s NetSet) Element { return Element{typ: t, nset: s} }

func NewASPath(p ASPathExpr) Element { return Element{typ: TypeASPath, path: p} }

// Accessors. Each typed accessor panics if the element holds a
// different type; Addr, Net and NetSet serve both address families
// and do not check. Callers check Type first or go through the ops
// table, which type-checks.

func (e Element) Type() ElemType { return e.typ }
func (e Element) IsNone() bool   { return e.typ == TypeNone }

func (e Element) Bool() bool            { e.check(TypeBool); return e.b }
func (e Element) U32() uint32           { e.check(TypeU32); return uint32(e.u64) }
func (e Element) I32() int32            { e.check(TypeI32); return e.i32 }
func (e Element) U64() uint64           { e.check(TypeU64); return e.u64 }
func (e Element) Str() string           { e.check(TypeStr); return e.str }
func (e Element) Mac() net.HardwareAddr { e.check(TypeMac); return e.mac }
func (e Element) Addr() netip.Addr      { return e.addr }
func (e Element) Net() netip.Prefix     { return e.pfx }
func (e Element) U32Set() U32Set        { e.check(TypeU32Set); return e.uset }
func (e Element) NetSet() NetSet        { return e.nset }
func (e Element) ASPath() ASPathExpr    { e.check(TypeASPath); return e.path }

func (e Element) check(want ElemType) {
	if e.typ != want {
		panic(fmt.Sprintf("policy: element is %v, not %v", e.typ, want))
	}
}

// String renders the element as the literal form ParseElement accepts.
func (e Element) String() string {
	switch e.typ {
	case TypeNone:
		return "(none)"
	case TypeBool:
		return strconv.FormatBool(e.b)
	case TypeU32, TypeU64:
		return strconv.FormatUint(e.u64, 10)
	case TypeI32:
		return strconv.FormatInt(int64(e.i32), 10)
	case TypeIPv4, TypeIPv6:
		return e.addr.String()
	case TypeIPv4Net, TypeIPv6Net:
		return e.pfx.String()
	case TypeMac:
		return e.mac.String()
	case TypeStr:
		return e.str
	case TypeU32Set:
		return e.uset.String()
	case TypeIPv4NetSet, TypeIPv6NetSet:
		return e.nset.String()
	case TypeASPath:
		return e.path.String()
	}
	return "(invalid)"
}

// ParseElement constructs an element of type t from its literal form.
func ParseElement(t ElemType, literal string) (Element, error) {
	switch t {
	case TypeBool:
		v, err := strconv.ParseBool(literal)
		if err != nil {
			return Element{}, fmt.Errorf("bad bool literal %q: %v", literal, err)
		}
		return NewBool(v), nil
	case TypeU32:
		v, err := strconv.ParseUint(literal, 10, 32)
		if err != nil {
			return Element{}, fmt.Errorf("bad u32 literal %q: %v", literal, err)
		}
		return NewU32(uint32(v)), nil
	case TypeI32:
		v, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return Element{}, fmt.Errorf("bad i32 literal %q: %v", literal, err)
		}
		return NewI32(int32(v)), nil
	case TypeU64:
		v, err := strconv.ParseUint(literal, 10, 64)
		if err != nil {
			return Element{}, fmt.Errorf("bad u64 literal %q: %v", literal, err)
		}
		return NewU64(v), nil
	case TypeIPv4, TypeIPv6:
		a, err := netip.ParseAddr(literal)
		if err != nil {
			return Element{}, fmt.Errorf("bad address literal %q: %v", literal, err)
		}
		if (t == TypeIPv4) != a.Is4() {
			return Element{}, fmt.Errorf("address literal %q has wrong family for %v", literal, t)
		}
		return NewAddr(a), nil
	case TypeIPv4Net, TypeIPv6Net:
		p, err := netip.ParsePrefix(literal)
		if err != nil {
			return Element{}, fmt.Errorf("bad prefix literal %q: %v", literal, err)
		}
		if (t == TypeIPv4Net) != p.Addr().Is4() {
			return Element{}, fmt.Errorf("prefix literal %q has wrong family for %v", literal, t)
		}
		return NewNet(p), nil
	case TypeMac:
		m, err := net.ParseMAC(literal)
		if err != nil {
			return Element{}, fmt.Errorf("bad mac literal %q: %v", literal, err)
		}
		return NewMac(m), nil
	case TypeStr:
		return NewStr(literal), nil
	case TypeU32Set:
		s, err := ParseU32Set(literal)
		if err != nil {
			return Element{}, err
		}
		return NewU32Set(s), nil
	case TypeIPv4NetSet, TypeIPv6NetSet:
		s, err := ParseNetSet(literal)
		if err != nil {
			return Element{}, err
		}
		return NewNetSet(t, s), nil
	case TypeASPath:
		p, err := ParseASPathExpr(literal)
		if err != nil {
			return Element{}, err
		}
		return NewASPath(p), nil
	}
	return Element{}, fmt.Errorf("unparseable element type %v", t)
}

// U32Set is a set of 32-bit values; policy tags travel in one.
type U32Set map[uint32]struct{}

func NewU32SetOf(vals ...uint32) U32Set {
	s := make(U32Set, len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func ParseU32Set(literal string) (U32Set, error) {
	s := make(U32Set)
	if literal == "" {
		return s, nil
	}
	for _, f := range strings.Split(literal, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad u32set literal %q: %v", literal, err)
		}
		s[uint32(v)] = struct{}{}
	}
	return s, nil
}

func (s U32Set) Contains(v uint32) bool { _, ok := s[v]; return ok }

func (s U32Set) Insert(v uint32) { s[v] = struct{}{} }

// Clone returns an independent copy.
func (s U32Set) Clone() U32Set {
	out := make(U32Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// SubsetOf reports whether every member of s is in o.
func (s U32Set) SubsetOf(o U32Set) bool {
	for v := range s {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

func (s U32Set) Equal(o U32Set) bool {
	return len(s) == len(o) && s.SubsetOf(o)
}

func (s U32Set) String() string {
	vals := make([]uint32, 0, len(s))
	for v := range s {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

// NetSet is a set of prefixes of one address family.
type NetSet map[netip.Prefix]struct{}

func NewNetSetOf(pfxs ...netip.Prefix) NetSet {
	s := make(NetSet, len(pfxs))
	for _, p := range pfxs {
		s[p] = struct{}{}
	}
	return s
}

func ParseNetSet(literal string) (NetSet, error) {
	s := make(NetSet)
	if literal == "" {
		return s, nil
	}
	for _, f := range strings.Split(literal, ",") {
		p, err := netip.ParsePrefix(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("bad netset literal %q: %v", literal, err)
		}
		s[p] = struct{}{}
	}
	return s, nil
}

func (s NetSet) Contains(p netip.Prefix) bool { _, ok := s[p]; return ok }

// ContainsSubnetOf reports whether p falls inside any member of s.
func (s NetSet) ContainsSubnetOf(p netip.Prefix) bool {
	for m := range s {
		if m.Bits() <= p.Bits() && m.Contains(p.Addr()) {
			return true
		}
	}
	return false
}

func (s NetSet) SubsetOf(o NetSet) bool {
	for p := range s {
		if !o.Contains(p) {
			return false
		}
	}
	return true
}

func (s NetSet) String() string {
	parts := make([]string, 0, len(s))
	for p := range s {
		parts = append(parts, p.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// ASPathExpr is the policy-level view of a BGP AS path: the sequence
// of AS numbers, most recent first. The BGP package converts its
// segment representation to and from this form at the VarRW boundary.
type ASPathExpr []uint32

func ParseASPathExpr(literal string) (ASPathExpr, error) {
	if literal == "" {
		return nil, nil
	}
	fields := strings.Fields(literal)
	p := make(ASPathExpr, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad aspath literal %q: %v", literal, err)
		}
		p = append(p, uint32(v))
	}
	return p, nil
}

// Contains reports whether as appears anywhere in the path.
func (p ASPathExpr) Contains(as uint32) bool {
	for _, v := range p {
		if v == as {
			return true
		}
	}
	return false
}

// Prepend returns a new path with as at the front.
func (p ASPathExpr) Prepend(as uint32) ASPathExpr {
	out := make(ASPathExpr, 0, len(p)+1)
	out = append(out, as)
	return append(out, p...)
}

func (p ASPathExpr) Equal(o ASPathExpr) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p ASPathExpr) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, " ")
}

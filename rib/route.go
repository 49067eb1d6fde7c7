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

// Package rib implements the routing information base's
// redistribution pipeline: per-protocol origin tables, redist tables
// mirroring their live prefixes, redistributors delivering exactly
// the stream of adds and deletes that materializes an origin table's
// content at each subscriber, and deletion tables draining retired
// generations in the background.
package rib

import (
	"net/netip"
	"strings"

	"github.com/routecore/routecore/policy"
)

// Protocol identifies one route source and its default admin
// distance.
type Protocol struct {
	Name          string
	AdminDistance uint8
}

// PathType carries the OSPF path classification on routes that have
// one.
type PathType uint8

const (
	PathNone PathType = iota
	PathIntraArea
	PathInterArea
	PathExternal1
	PathExternal2
)

// RouteEntry is one route as it travels the pipeline. Entries are
// owned by their origin table; every table above holds only prefixes.
type RouteEntry struct {
	Net           netip.Prefix
	NextHop       netip.Addr
	Vif           string
	AdminDistance uint8
	Metric        uint32
	Protocol      *Protocol
	PolicyTags    policy.U32Set
	Filtered      bool
	PathType      PathType
	Type2Cost     uint32
}

// Clone returns an independent copy, including the tag set.
func (r *RouteEntry) Clone() *RouteEntry {
	out := *r
	if r.PolicyTags != nil {
		out.PolicyTags = r.PolicyTags.Clone()
	}
	return &out
}

// Compare orders routes for best-route selection: lower admin
// distance wins, then lower metric, with protocol name and next hop
// as deterministic tie-breakers. Negative means r is preferred.
func (r *RouteEntry) Compare(o *RouteEntry) int {
	if r.AdminDistance != o.AdminDistance {
		if r.AdminDistance < o.AdminDistance {
			return -1
		}
		return 1
	}
	if r.Metric != o.Metric {
		if r.Metric < o.Metric {
			return -1
		}
		return 1
	}
	if r.Protocol != nil && o.Protocol != nil {
		if c := strings.Compare(r.Protocol.Name, o.Protocol.Name); c != 0 {
			return c
		}
	}
	return r.NextHop.Compare(o.NextHop)
}

// cmpPrefix defines the pipeline's canonical prefix order, the order
// route dumps iterate in: IPv4 before IPv6, then address, then
// prefix length. The dump cursor is compared with this.
func cmpPrefix(a, b netip.Prefix) int {
	a4, b4 := a.Addr().Is4(), b.Addr().Is4()
	if a4 != b4 {
		if a4 {
			return -1
		}
		return 1
	}
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	switch {
	case a.Bits() < b.Bits():
		return -1
	case a.Bits() > b.Bits():
		return 1
	}
	return 0
}

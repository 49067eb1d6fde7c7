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

import "net/netip"

// SubnetRoute pairs one announced prefix with its path-attribute
// list. The list is immutable and shared: every prefix announced
// with the same attributes in one UPDATE points at one interned
// copy.
type SubnetRoute struct {
	Net   netip.Prefix
	Attrs *PathAttrList

	// NextHop is the effective next hop for the route's plane: the
	// NEXT_HOP attribute for IPv4 unicast, the MP_REACH next hop
	// otherwise.
	NextHop netip.Addr

	// IBGP records whether the route was learned from an internal
	// peer; such routes must not be re-advertised to other internal
	// peers unless the speaker is a route reflector.
	IBGP bool
}

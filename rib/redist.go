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

package rib

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// RedistTable sits on top of one origin table and maintains the
// RouteIndex: the set of prefixes currently live below. It owns no
// routes, only prefixes, which is why destroying one when its last
// subscriber leaves is cheap. Redistributors fan out from it.
type RedistTable struct {
	origin         *OriginTable
	index          bart.Table[struct{}]
	redistributors []*Redistributor
}

// NewRedistTable subscribes a fresh table to origin. Any routes
// already present are indexed immediately.
func NewRedistTable(origin *OriginTable) *RedistTable {
	rt := &RedistTable{origin: origin}
	origin.EachSorted(func(p netip.Prefix, _ *RouteEntry) bool {
		rt.index.Insert(p, struct{}{})
		return true
	})
	origin.SetDownstream(rt)
	return rt
}

// Origin returns the table this one mirrors.
func (rt *RedistTable) Origin() *OriginTable { return rt.origin }

// AddRoute indexes the prefix and broadcasts to every redistributor.
func (rt *RedistTable) AddRoute(r *RouteEntry) {
	rt.index.Insert(r.Net, struct{}{})
	// a failing redistributor detaches itself mid-broadcast, so walk
	// a snapshot
	for _, d := range append([]*Redistributor(nil), rt.redistributors...) {
		d.addRoute(r)
	}
}

// DeleteRoute unindexes the prefix and broadcasts.
func (rt *RedistTable) DeleteRoute(r *RouteEntry) {
	rt.index.Delete(r.Net)
	for _, d := range append([]*Redistributor(nil), rt.redistributors...) {
		d.deleteRoute(r)
	}
}

// IndexContains reports whether prefix is live.
func (rt *RedistTable) IndexContains(prefix netip.Prefix) bool {
	_, ok := rt.index.Get(prefix)
	return ok
}

// IndexSize returns the number of live prefixes.
func (rt *RedistTable) IndexSize() int { return rt.index.Size() }

// EachIndexSorted visits the route index in canonical prefix order;
// return false to stop.
func (rt *RedistTable) EachIndexSorted(f func(netip.Prefix) bool) {
	for p := range rt.index.AllSorted4() {
		if !f(p) {
			return
		}
	}
	for p := range rt.index.AllSorted6() {
		if !f(p) {
			return
		}
	}
}

// nextAfter returns the first indexed prefix strictly after cursor in
// canonical order, or the first prefix overall if cursor is invalid.
func (rt *RedistTable) nextAfter(cursor netip.Prefix, cursorValid bool) (netip.Prefix, bool) {
	var out netip.Prefix
	found := false
	rt.EachIndexSorted(func(p netip.Prefix) bool {
		if cursorValid && cmpPrefix(p, cursor) <= 0 {
			return true
		}
		out = p
		found = true
		return false
	})
	return out, found
}

func (rt *RedistTable) attach(d *Redistributor) {
	rt.redistributors = append(rt.redistributors, d)
}

func (rt *RedistTable) detach(d *Redistributor) {
	for i, x := range rt.redistributors {
		if x == d {
			rt.redistributors = append(rt.redistributors[:i], rt.redistributors[i+1:]...)
			return
		}
	}
}

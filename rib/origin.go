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
	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// RouteSink consumes a stream of route adds and deletes. Tables in
// the pipeline chain through it.
type RouteSink interface {
	AddRoute(*RouteEntry)
	DeleteRoute(*RouteEntry)
}

// OriginTable owns every route injected by one protocol for one
// generation. Best-route selection across protocols happens above it;
// the origin table is purely this protocol's contribution.
type OriginTable struct {
	proto      *Protocol
	generation uint32
	routes     bart.Table[*RouteEntry]
	downstream RouteSink
	logger     *zap.Logger
}

// NewOriginTable returns an empty table for (proto, generation).
func NewOriginTable(proto *Protocol, generation uint32) *OriginTable {
	return &OriginTable{
		proto:      proto,
		generation: generation,
		logger: routecore.Log().Named("rib").With(
			zap.String("protocol", proto.Name),
			zap.Uint32("generation", generation)),
	}
}

// Protocol returns the owning protocol.
func (o *OriginTable) Protocol() *Protocol { return o.proto }

// Generation returns the table's generation number.
func (o *OriginTable) Generation() uint32 { return o.generation }

// SetDownstream attaches the sink notified of every change.
func (o *OriginTable) SetDownstream(sink RouteSink) { o.downstream = sink }

// AddRoute inserts or replaces the route for its prefix and
// broadcasts downstream. A replacement broadcasts as an add; the
// pipeline treats a same-prefix add as an update.
func (o *OriginTable) AddRoute(r *RouteEntry) {
	o.routes.Insert(r.Net, r)
	if o.downstream != nil {
		o.downstream.AddRoute(r)
	}
}

// DeleteRoute removes the route for prefix, if any, and broadcasts
// downstream. It reports whether a route was removed.
func (o *OriginTable) DeleteRoute(prefix netip.Prefix) bool {
	r, ok := o.routes.GetAndDelete(prefix)
	if !ok {
		return false
	}
	if o.downstream != nil {
		o.downstream.DeleteRoute(r)
	}
	return true
}

// Lookup returns the route for an exact prefix.
func (o *OriginTable) Lookup(prefix netip.Prefix) (*RouteEntry, bool) {
	return o.routes.Get(prefix)
}

// Size returns the number of routes in the table.
func (o *OriginTable) Size() int { return o.routes.Size() }

// EachSorted visits every route in canonical prefix order (IPv4
// first); return false to stop.
func (o *OriginTable) EachSorted(f func(netip.Prefix, *RouteEntry) bool) {
	for p, r := range o.routes.AllSorted4() {
		if !f(p, r) {
			return
		}
	}
	for p, r := range o.routes.AllSorted6() {
		if !f(p, r) {
			return
		}
	}
}

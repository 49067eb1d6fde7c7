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
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/policy"
)

// RIB coordinates the per-protocol table stacks: one origin table and
// redist table per protocol, policy filtering on the way in, and
// generation bumps that retire old origin tables into deletion
// tables.
type RIB struct {
	timers   *routecore.TimerList
	policies *policy.Manager

	protocols map[string]*protocolState
	logger    *zap.Logger
}

type protocolState struct {
	proto      *Protocol
	generation uint32
	origin     *OriginTable
	redist     *RedistTable
	draining   []*DeletionTable
}

// New builds a RIB scheduling its background work on timers and
// filtering through policies.
func New(timers *routecore.TimerList, policies *policy.Manager) *RIB {
	return &RIB{
		timers:    timers,
		policies:  policies,
		protocols: make(map[string]*protocolState),
		logger:    routecore.Log().Named("rib"),
	}
}

// RegisterProtocol announces a route source and builds its table
// stack. Generation numbers start at 1 and are monotonic within the
// process lifetime.
func (r *RIB) RegisterProtocol(name string, adminDistance uint8) *Protocol {
	if ps, ok := r.protocols[name]; ok {
		return ps.proto
	}
	proto := &Protocol{Name: name, AdminDistance: adminDistance}
	origin := NewOriginTable(proto, 1)
	ps := &protocolState{
		proto:      proto,
		generation: 1,
		origin:     origin,
		redist:     NewRedistTable(origin),
	}
	r.protocols[name] = ps
	r.policies.VarMap().RegisterProtocol(name)
	r.logger.Info("protocol registered",
		zap.String("protocol", name),
		zap.Uint8("admin_distance", adminDistance))
	return proto
}

// AddRoute runs protocol's import filter and the source-match pass
// over the route, verifies its tag set stays within the protocol's
// tag universe, and installs it into the protocol's origin table.
// A route the import filter rejects is marked filtered and not
// installed.
func (r *RIB) AddRoute(protocol string, route *RouteEntry) error {
	ps, ok := r.protocols[protocol]
	if !ok {
		return fmt.Errorf("protocol %q not registered", protocol)
	}
	route.Protocol = ps.proto
	if route.AdminDistance == 0 {
		route.AdminDistance = ps.proto.AdminDistance
	}
	if route.PolicyTags == nil {
		route.PolicyTags = make(policy.U32Set)
	}

	adapter := newRouteVarRW(route)
	if code := r.policies.CodeFor(policy.Target{Protocol: protocol, Stage: policy.FilterImport}); code != nil {
		accepted, err := r.policies.VM().Run(code, adapter)
		if err != nil {
			return fmt.Errorf("import filter for %q: %w", protocol, err)
		}
		if !accepted {
			route.Filtered = true
			r.logger.Debug("route rejected by import filter",
				zap.String("protocol", protocol), zap.Stringer("net", route.Net))
			return nil
		}
	}
	if code := r.policies.CodeFor(policy.Target{Protocol: protocol, Stage: policy.FilterSourceMatch}); code != nil {
		if _, err := r.policies.VM().Run(code, adapter); err != nil {
			return fmt.Errorf("source-match filter for %q: %w", protocol, err)
		}
	}

	// runtime invariant: a route's tags stay inside its protocol's
	// allocated universe
	if universe := r.policies.ProtocolTags(protocol); len(route.PolicyTags) > 0 {
		if !route.PolicyTags.SubsetOf(universe) {
			return fmt.Errorf("route %v carries tags %v outside the %q tag universe",
				route.Net, route.PolicyTags.String(), protocol)
		}
	}

	ps.origin.AddRoute(route)
	return nil
}

// DeleteRoute removes the route for prefix from protocol's origin
// table.
func (r *RIB) DeleteRoute(protocol string, prefix netip.Prefix) error {
	ps, ok := r.protocols[protocol]
	if !ok {
		return fmt.Errorf("protocol %q not registered", protocol)
	}
	ps.origin.DeleteRoute(prefix)
	return nil
}

// NewGeneration retires protocol's origin table into a deletion
// table, which drains synthesized deletes at background priority,
// and installs a fresh origin table under the same redist table. It
// returns the new generation number.
func (r *RIB) NewGeneration(protocol string) (uint32, error) {
	ps, ok := r.protocols[protocol]
	if !ok {
		return 0, fmt.Errorf("protocol %q not registered", protocol)
	}
	retired := ps.origin
	ps.generation++
	ps.origin = NewOriginTable(ps.proto, ps.generation)
	ps.origin.SetDownstream(ps.redist)
	ps.redist.origin = ps.origin

	var dt *DeletionTable
	dt = NewDeletionTable(r.timers, retired, ps.redist, func(p netip.Prefix) bool {
		_, live := ps.origin.Lookup(p)
		return live
	}, func() {
		for i, x := range ps.draining {
			if x == dt {
				ps.draining = append(ps.draining[:i], ps.draining[i+1:]...)
				return
			}
		}
	})
	ps.draining = append(ps.draining, dt)
	r.logger.Info("generation bumped",
		zap.String("protocol", protocol), zap.Uint32("generation", ps.generation))
	return ps.generation, nil
}

// Redistribute subscribes output to protocol's route stream. The
// returned redistributor has begun its dump; loop-prevention deny
// tags for the consumer protocol are installed when consumerProtocol
// is non-empty.
func (r *RIB) Redistribute(protocol, consumerProtocol string, output RedistOutput) (*Redistributor, error) {
	ps, ok := r.protocols[protocol]
	if !ok {
		return nil, fmt.Errorf("protocol %q not registered", protocol)
	}
	d := NewRedistributor(r.timers, ps.redist, output)
	if consumerProtocol != "" {
		d.SetDenyTags(r.policies.NonRedistTags(consumerProtocol))
	}
	d.StartDump()
	return d, nil
}

// OriginTableOf returns protocol's live origin table.
func (r *RIB) OriginTableOf(protocol string) (*OriginTable, bool) {
	ps, ok := r.protocols[protocol]
	if !ok {
		return nil, false
	}
	return ps.origin, true
}

// RedistTableOf returns protocol's redist table.
func (r *RIB) RedistTableOf(protocol string) (*RedistTable, bool) {
	ps, ok := r.protocols[protocol]
	if !ok {
		return nil, false
	}
	return ps.redist, true
}

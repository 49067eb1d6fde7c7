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
	"github.com/routecore/routecore/policy"
)

// routeVarRW presents a RouteEntry to the policy VM. The RIB wraps
// every route in one of these before evaluation; writes land back in
// the entry.
type routeVarRW struct {
	route *RouteEntry
}

func newRouteVarRW(r *RouteEntry) *routeVarRW { return &routeVarRW{route: r} }

func (v *routeVarRW) ReadVar(id policy.VarID) policy.Element {
	r := v.route
	switch id {
	case policy.VarPolicyTags:
		if r.PolicyTags == nil {
			r.PolicyTags = make(policy.U32Set)
		}
		return policy.NewU32Set(r.PolicyTags)
	case policy.VarProtocol:
		if r.Protocol == nil {
			return policy.Element{}
		}
		return policy.NewStr(r.Protocol.Name)
	case policy.VarNetwork4:
		if !r.Net.Addr().Is4() {
			return policy.Element{}
		}
		return policy.NewNet(r.Net)
	case policy.VarNetwork6:
		if r.Net.Addr().Is4() {
			return policy.Element{}
		}
		return policy.NewNet(r.Net)
	case policy.VarNexthop4:
		if !r.NextHop.Is4() {
			return policy.Element{}
		}
		return policy.NewAddr(r.NextHop)
	case policy.VarNexthop6:
		if r.NextHop.Is4() || !r.NextHop.IsValid() {
			return policy.Element{}
		}
		return policy.NewAddr(r.NextHop)
	case policy.VarMetric:
		return policy.NewU32(r.Metric)
	}
	return policy.Element{}
}

func (v *routeVarRW) WriteVar(id policy.VarID, e policy.Element) error {
	r := v.route
	switch id {
	case policy.VarPolicyTags:
		r.PolicyTags = e.U32Set()
		return nil
	case policy.VarNexthop4, policy.VarNexthop6:
		r.NextHop = e.Addr()
		return nil
	case policy.VarMetric:
		r.Metric = e.U32()
		return nil
	case policy.VarProtocol, policy.VarNetwork4, policy.VarNetwork6:
		return policy.ErrReadOnlyVar{ID: id}
	}
	return policy.ErrReadOnlyVar{ID: id}
}

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

// Package iftree mirrors the forwarding plane's interface state for
// the control plane: a read-mostly snapshot of interfaces, their
// virtual interfaces, and the addresses configured on them. The
// mirror is updated only by the forwarding-plane observer path and
// read by every daemon on the same event loop.
package iftree

import (
	"net"
	"net/netip"

	"github.com/gaissmai/bart"
)

// Tree is the root of the interface mirror:
// Interface → Vif → {Addr4, Addr6}.
type Tree struct {
	ifaces map[string]*Interface

	// connected answers same-subnet membership for
	// IsDirectlyConnected without walking every vif
	connected *bart.Table[*Vif]
}

// Interface is one physical or logical network interface.
type Interface struct {
	Name        string
	Enabled     bool
	Discard     bool
	Unreachable bool
	Management  bool
	MTU         uint32
	MAC         net.HardwareAddr
	IfIndex     uint32
	BaudRate    uint64

	vifs map[string]*Vif
}

// Vif is a virtual interface within an Interface.
type Vif struct {
	Name        string
	Enabled     bool
	Broadcast   bool
	Multicast   bool
	Loopback    bool
	P2P         bool
	PimRegister bool
	VifIndex    uint32
	VlanID      uint16
	Vlan        bool

	iface *Interface
	addrs map[netip.Addr]*Addr
}

// Addr is one address configured on a vif, IPv4 or IPv6. For p2p
// vifs Endpoint is the far side; for broadcast vifs Bcast holds the
// broadcast address.
type Addr struct {
	Addr      netip.Addr
	Prefix    netip.Prefix
	Endpoint  netip.Addr
	Bcast     netip.Addr
	Enabled   bool
	Multicast bool
	Loopback  bool
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		ifaces:    make(map[string]*Interface),
		connected: new(bart.Table[*Vif]),
	}
}

// FindInterface returns the named interface, or nil.
func (t *Tree) FindInterface(name string) *Interface {
	return t.ifaces[name]
}

// FindVif returns the named vif on the named interface, or nil.
func (t *Tree) FindVif(ifname, vifname string) *Vif {
	ifp := t.ifaces[ifname]
	if ifp == nil {
		return nil
	}
	return ifp.vifs[vifname]
}

// FindAddr returns the Addr record for addr on the given vif, or nil.
func (t *Tree) FindAddr(ifname, vifname string, addr netip.Addr) *Addr {
	vif := t.FindVif(ifname, vifname)
	if vif == nil {
		return nil
	}
	return vif.addrs[addr]
}

// Interfaces returns the interfaces in the tree. The returned map is
// the tree's own; callers must not mutate it.
func (t *Tree) Interfaces() map[string]*Interface { return t.ifaces }

// IsMyAddr reports whether addr is configured on any enabled vif.
func (t *Tree) IsMyAddr(addr netip.Addr) bool {
	for _, ifp := range t.ifaces {
		if !ifp.Enabled {
			continue
		}
		for _, vif := range ifp.vifs {
			if !vif.Enabled {
				continue
			}
			if a, ok := vif.addrs[addr]; ok && a.Enabled {
				return true
			}
		}
	}
	return false
}

// IsDirectlyConnected reports whether addr is reachable without a
// gateway: it is one of our own addresses, the far endpoint of a
// point-to-point vif, or inside a configured subnet.
func (t *Tree) IsDirectlyConnected(addr netip.Addr) (*Vif, bool) {
	for _, ifp := range t.ifaces {
		if !ifp.Enabled {
			continue
		}
		for _, vif := range ifp.vifs {
			if !vif.Enabled {
				continue
			}
			for _, a := range vif.addrs {
				if !a.Enabled {
					continue
				}
				if a.Addr == addr {
					return vif, true
				}
				if vif.P2P && a.Endpoint.IsValid() && a.Endpoint == addr {
					return vif, true
				}
			}
		}
	}
	if vif, ok := t.connected.Lookup(addr); ok {
		return vif, true
	}
	return nil, false
}

// Vifs returns the vifs of the interface. The returned map is the
// tree's own; callers must not mutate it.
func (ifp *Interface) Vifs() map[string]*Vif { return ifp.vifs }

// Interface returns the interface the vif belongs to.
func (v *Vif) Interface() *Interface { return v.iface }

// Addrs returns the addresses of the vif. The returned map is the
// tree's own; callers must not mutate it.
func (v *Vif) Addrs() map[netip.Addr]*Addr { return v.addrs }

// Addr4s returns the vif's IPv4 address records.
func (v *Vif) Addr4s() []*Addr {
	var out []*Addr
	for _, a := range v.addrs {
		if a.Addr.Is4() {
			out = append(out, a)
		}
	}
	return out
}

// Addr6s returns the vif's IPv6 address records.
func (v *Vif) Addr6s() []*Addr {
	var out []*Addr
	for _, a := range v.addrs {
		if a.Addr.Is6() && !a.Addr.Is4In6() {
			out = append(out, a)
		}
	}
	return out
}

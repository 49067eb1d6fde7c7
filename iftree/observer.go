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

package iftree

import (
	"net/netip"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// Observer is the surface every daemon consumes. No diff is
// delivered; on UpdatesMade observers re-query the tree.
type Observer interface {
	// TreeComplete fires once, when the initial sync with the
	// forwarding plane has finished.
	TreeComplete()

	// UpdatesMade fires after one or more changes have been applied
	// atomically.
	UpdatesMade()
}

// Updater is the sole mutation path into a Tree. The forwarding-plane
// client applies batches of changes through it; each Commit publishes
// the batch atomically (with respect to the event loop) and notifies
// the observers.
type Updater struct {
	tree      *Tree
	observers []Observer
	complete  bool
	dirty     bool
	logger    *zap.Logger
}

// NewUpdater wraps tree in its mutation path.
func NewUpdater(tree *Tree) *Updater {
	return &Updater{
		tree:   tree,
		logger: routecore.Log().Named("iftree"),
	}
}

// Tree returns the mirrored tree.
func (u *Updater) Tree() *Tree { return u.tree }

// AddObserver registers obs for change notifications. If the initial
// sync already happened, TreeComplete is delivered immediately.
func (u *Updater) AddObserver(obs Observer) {
	u.observers = append(u.observers, obs)
	if u.complete {
		obs.TreeComplete()
	}
}

// RemoveObserver unregisters obs.
func (u *Updater) RemoveObserver(obs Observer) {
	for i, o := range u.observers {
		if o == obs {
			u.observers = append(u.observers[:i], u.observers[i+1:]...)
			return
		}
	}
}

// AddInterface creates or returns the named interface.
func (u *Updater) AddInterface(name string) *Interface {
	if ifp := u.tree.ifaces[name]; ifp != nil {
		return ifp
	}
	ifp := &Interface{Name: name, vifs: make(map[string]*Vif)}
	u.tree.ifaces[name] = ifp
	u.dirty = true
	return ifp
}

// RemoveInterface removes the named interface and all state below it.
func (u *Updater) RemoveInterface(name string) {
	ifp := u.tree.ifaces[name]
	if ifp == nil {
		return
	}
	for _, vif := range ifp.vifs {
		u.removeVifSubnets(vif)
	}
	delete(u.tree.ifaces, name)
	u.dirty = true
}

// AddVif creates or returns the named vif on the interface.
func (u *Updater) AddVif(ifp *Interface, name string) *Vif {
	if vif := ifp.vifs[name]; vif != nil {
		return vif
	}
	vif := &Vif{Name: name, iface: ifp, addrs: make(map[netip.Addr]*Addr)}
	ifp.vifs[name] = vif
	u.dirty = true
	return vif
}

// RemoveVif removes the named vif from the interface.
func (u *Updater) RemoveVif(ifp *Interface, name string) {
	vif := ifp.vifs[name]
	if vif == nil {
		return
	}
	u.removeVifSubnets(vif)
	delete(ifp.vifs, name)
	u.dirty = true
}

// SetAddr installs or replaces an address record on the vif and
// indexes its subnet for connectivity lookups.
func (u *Updater) SetAddr(vif *Vif, a Addr) *Addr {
	rec := vif.addrs[a.Addr]
	if rec == nil {
		rec = new(Addr)
		vif.addrs[a.Addr] = rec
	} else if rec.Prefix.IsValid() {
		u.tree.connected.Delete(rec.Prefix.Masked())
	}
	*rec = a
	if rec.Prefix.IsValid() && !vif.P2P {
		u.tree.connected.Insert(rec.Prefix.Masked(), vif)
	}
	u.dirty = true
	return rec
}

// RemoveAddr removes an address record from the vif.
func (u *Updater) RemoveAddr(vif *Vif, addr netip.Addr) {
	rec := vif.addrs[addr]
	if rec == nil {
		return
	}
	if rec.Prefix.IsValid() {
		u.tree.connected.Delete(rec.Prefix.Masked())
	}
	delete(vif.addrs, addr)
	u.dirty = true
}

// MarkDirty records an in-place mutation of a node the caller already
// holds (flag flip, MTU change) so the next Commit notifies.
func (u *Updater) MarkDirty() { u.dirty = true }

// Commit publishes the pending batch. The first Commit delivers
// TreeComplete; later ones deliver UpdatesMade when anything changed.
func (u *Updater) Commit() {
	if !u.complete {
		u.complete = true
		u.dirty = false
		u.logger.Info("interface mirror synchronized",
			zap.Int("interfaces", len(u.tree.ifaces)))
		for _, obs := range u.observers {
			obs.TreeComplete()
		}
		return
	}
	if !u.dirty {
		return
	}
	u.dirty = false
	for _, obs := range u.observers {
		obs.UpdatesMade()
	}
}

func (u *Updater) removeVifSubnets(vif *Vif) {
	for _, rec := range vif.addrs {
		if rec.Prefix.IsValid() {
			u.tree.connected.Delete(rec.Prefix.Masked())
		}
	}
}

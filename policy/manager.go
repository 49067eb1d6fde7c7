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

package policy

import (
	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// Manager owns the compiled filter bank: the current Code for every
// (protocol, stage) target, the monotonic tag allocator, and the
// per-protocol tag universes. A failed compilation leaves the
// previously installed versions untouched.
//
// Installed Code objects are refcounted through the event loop's
// pool: the bank holds one share, and evaluation borrows during
// dispatch.
type Manager struct {
	varmap *VarMap
	sets   *SetMap
	vm     *VM
	pool   *routecore.RefPool

	nextTag      uint32
	protocolTags map[string]U32Set

	codes map[Target]*installedCode
	log   *zap.Logger
}

type installedCode struct {
	code *Code
	slot routecore.SlotID
}

// NewManager builds a manager around the given variable and set maps.
func NewManager(varmap *VarMap, sets *SetMap, pool *routecore.RefPool) *Manager {
	return &Manager{
		varmap:       varmap,
		sets:         sets,
		vm:           NewVM(),
		pool:         pool,
		nextTag:      1, // tag 0 is never allocated
		protocolTags: make(map[string]U32Set),
		codes:        make(map[Target]*installedCode),
		log:          routecore.Log().Named("policy"),
	}
}

// VM returns the shared evaluator.
func (m *Manager) VM() *VM { return m.vm }

// VarMap returns the variable map protocols register against.
func (m *Manager) VarMap() *VarMap { return m.varmap }

// Sets returns the named-set map.
func (m *Manager) Sets() *SetMap { return m.sets }

// ConfigureImport compiles and installs protocol's import filter.
// On error the previous version stays installed.
func (m *Manager) ConfigureImport(protocol string, policies []*PolicyStatement) error {
	code, err := CompileImport(m.varmap, m.sets, protocol, policies)
	if err != nil {
		m.log.Error("import filter rejected, keeping previous version",
			zap.String("protocol", protocol), zap.Error(err))
		return err
	}
	m.install(code)
	return nil
}

// ConfigureExport runs the two-pass export compilation for protocol:
// the source-match generator allocates tags and produces code for
// each referenced source protocol; the export generator produces the
// tag-keyed export code. All resulting codes install atomically; on
// any error nothing changes.
func (m *Manager) ConfigureExport(protocol string, policies []*PolicyStatement) error {
	sm, err := GenerateSourceMatch(m.varmap, m.sets, m.nextTag, protocol, policies)
	if err != nil {
		m.log.Error("export source-match rejected, keeping previous version",
			zap.String("protocol", protocol), zap.Error(err))
		return err
	}
	export, err := GenerateExport(m.varmap, m.sets, protocol, policies, sm.Tags)
	if err != nil {
		m.log.Error("export filter rejected, keeping previous version",
			zap.String("protocol", protocol), zap.Error(err))
		return err
	}

	m.nextTag = sm.NextTag
	for src, tags := range sm.ProtocolTags {
		if m.protocolTags[src] == nil {
			m.protocolTags[src] = make(U32Set)
		}
		for tag := range tags {
			m.protocolTags[src].Insert(tag)
		}
	}
	for _, code := range sm.Codes {
		m.install(code)
	}
	m.install(export)
	return nil
}

// CodeFor returns the installed code for a target, or nil.
func (m *Manager) CodeFor(t Target) *Code {
	if ic := m.codes[t]; ic != nil {
		return ic.code
	}
	return nil
}

// ProtocolTags returns the tag universe of a source protocol: every
// tag the source-match pass may attach to its routes. The RIB
// enforces that a route's tag set stays a subset of this.
func (m *Manager) ProtocolTags(protocol string) U32Set {
	if s := m.protocolTags[protocol]; s != nil {
		return s
	}
	return nil
}

// NonRedistTags returns, for a source protocol, the tags whose
// redistribution would loop a route back to its own protocol.
func (m *Manager) NonRedistTags(protocol string) U32Set {
	out := make(U32Set)
	for _, ic := range m.codes {
		for tag, redist := range ic.code.Tags {
			if !redist && m.protocolTags[protocol].Contains(tag) {
				out.Insert(tag)
			}
		}
	}
	return out
}

// Close releases every installed code's pool share.
func (m *Manager) Close() {
	for t, ic := range m.codes {
		m.pool.Decr(ic.slot)
		delete(m.codes, t)
	}
}

func (m *Manager) install(code *Code) {
	if old := m.codes[code.Target]; old != nil {
		m.pool.Decr(old.slot)
	}
	m.codes[code.Target] = &installedCode{code: code, slot: m.pool.Alloc()}
	m.log.Info("filter installed",
		zap.String("target", code.Target.String()),
		zap.Int("tags", len(code.Tags)))
}

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

import "fmt"

// VarAccess says whether a policy may assign a variable.
type VarAccess uint8

const (
	AccessReadOnly VarAccess = iota
	AccessReadWrite
)

// VarInfo describes one variable of one protocol.
type VarInfo struct {
	Name   string
	ID     VarID
	Type   ElemType
	Access VarAccess
}

// VarMap records, per protocol, the variables its routes expose to
// policies: name → (id, element type, access). The compiler consults
// it to resolve names and type literals; registering happens once at
// startup when each protocol announces itself.
type VarMap struct {
	protocols map[string]map[string]VarInfo
	nextExt   map[string]VarID
}

// NewVarMap returns a map pre-loaded with the well-known variables
// for each protocol registered later.
func NewVarMap() *VarMap {
	return &VarMap{
		protocols: make(map[string]map[string]VarInfo),
		nextExt:   make(map[string]VarID),
	}
}

var wellKnownVars = []VarInfo{
	{"policy-tags", VarPolicyTags, TypeU32Set, AccessReadWrite},
	{"protocol", VarProtocol, TypeStr, AccessReadOnly},
	{"network4", VarNetwork4, TypeIPv4Net, AccessReadOnly},
	{"network6", VarNetwork6, TypeIPv6Net, AccessReadOnly},
	{"nexthop4", VarNexthop4, TypeIPv4, AccessReadWrite},
	{"nexthop6", VarNexthop6, TypeIPv6, AccessReadWrite},
	{"metric", VarMetric, TypeU32, AccessReadWrite},
	{"localpref", VarLocalPref, TypeU32, AccessReadWrite},
	{"med", VarMed, TypeU32, AccessReadWrite},
	{"aspath", VarASPath, TypeASPath, AccessReadWrite},
	{"community", VarCommunity, TypeU32Set, AccessReadWrite},
	{"origin", VarOrigin, TypeU32, AccessReadWrite},
	{"tag", VarTag, TypeU32, AccessReadWrite},
}

// RegisterProtocol announces a protocol, installing the well-known
// variables for it. Registering twice is a no-op.
func (vm *VarMap) RegisterProtocol(protocol string) {
	if _, ok := vm.protocols[protocol]; ok {
		return
	}
	vars := make(map[string]VarInfo, len(wellKnownVars))
	for _, v := range wellKnownVars {
		vars[v.Name] = v
	}
	vm.protocols[protocol] = vars
	vm.nextExt[protocol] = firstProtocolVar
}

// RegisterVar adds a protocol-specific variable and allocates it a
// negative ID. The protocol must already be registered.
func (vm *VarMap) RegisterVar(protocol, name string, typ ElemType, access VarAccess) (VarID, error) {
	vars, ok := vm.protocols[protocol]
	if !ok {
		return 0, fmt.Errorf("protocol %q not registered", protocol)
	}
	if _, dup := vars[name]; dup {
		return 0, fmt.Errorf("variable %q already defined for %q", name, protocol)
	}
	id := vm.nextExt[protocol]
	vm.nextExt[protocol]--
	vars[name] = VarInfo{Name: name, ID: id, Type: typ, Access: access}
	return id, nil
}

// Lookup resolves a variable name for a protocol.
func (vm *VarMap) Lookup(protocol, name string) (VarInfo, error) {
	vars, ok := vm.protocols[protocol]
	if !ok {
		return VarInfo{}, fmt.Errorf("protocol %q not registered", protocol)
	}
	info, ok := vars[name]
	if !ok {
		return VarInfo{}, fmt.Errorf("protocol %q has no variable %q", protocol, name)
	}
	return info, nil
}

// Protocols returns the registered protocol names.
func (vm *VarMap) Protocols() []string {
	out := make([]string, 0, len(vm.protocols))
	for p := range vm.protocols {
		out = append(out, p)
	}
	return out
}

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

// SetMap stores the named sets policies reference. The compiler
// resolves references to literals at compile time and records the
// names used, so a set update can recompile exactly its dependents.
type SetMap struct {
	sets map[string]Element
}

// NewSetMap returns an empty map.
func NewSetMap() *SetMap {
	return &SetMap{sets: make(map[string]Element)}
}

// Define installs or replaces a named set. The element must be one
// of the set types.
func (sm *SetMap) Define(name string, e Element) error {
	switch e.Type() {
	case TypeU32Set, TypeIPv4NetSet, TypeIPv6NetSet:
	default:
		return fmt.Errorf("element %v is not a set type", e.Type())
	}
	sm.sets[name] = e
	return nil
}

// Remove deletes a named set.
func (sm *SetMap) Remove(name string) {
	delete(sm.sets, name)
}

// Lookup resolves a set reference.
func (sm *SetMap) Lookup(name string) (Element, error) {
	e, ok := sm.sets[name]
	if !ok {
		return Element{}, fmt.Errorf("unknown set %q", name)
	}
	return e, nil
}

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

import "github.com/routecore/routecore"

// storedAttrList adapts a PathAttrList to the usage pool.
type storedAttrList struct {
	list *PathAttrList
}

func (*storedAttrList) Destruct() error { return nil }

// AttributeManager interns path-attribute lists so identical lists
// across routes and peers share one stored copy, usage-counted by the
// pool. Keys are the canonical-encoding hash.
type AttributeManager struct {
	pool *routecore.UsagePool[uint64, *storedAttrList]
}

// NewAttributeManager returns an empty manager.
func NewAttributeManager() *AttributeManager {
	return &AttributeManager{
		pool: routecore.NewUsagePool[uint64, *storedAttrList](),
	}
}

// Intern returns the shared copy of l, storing l if it is the first
// of its kind, and adds one usage.
func (m *AttributeManager) Intern(l *PathAttrList) *PathAttrList {
	stored, _ := m.pool.LoadOrStore(l.Hash(), &storedAttrList{list: l})
	return stored.list
}

// Release drops one usage of l's stored copy.
func (m *AttributeManager) Release(l *PathAttrList) {
	m.pool.Delete(l.Hash())
}

// Distinct returns the number of distinct lists currently stored.
func (m *AttributeManager) Distinct() int { return m.pool.Len() }

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

package routecore

import (
	"fmt"
	"sync"
)

// UsagePool is a map of keyed, usage-counted shared values. A value
// stays in the pool while at least one user holds it and is
// destructed when the last user deletes it. The BGP attribute manager
// keys canonicalized path-attribute lists through one of these so
// identical lists across peers share storage.
//
// Unlike the RefPool, a UsagePool is safe for concurrent use: values
// may be loaded from I/O goroutines before their completions reach
// the event loop.
type UsagePool[K comparable, V Destructor] struct {
	mu   sync.Mutex
	pool map[K]*usagePoolValue[V]
}

// Destructor is a value that can clean itself up when its last user
// lets go.
type Destructor interface {
	Destruct() error
}

type usagePoolValue[V Destructor] struct {
	value V
	refs  int
}

// NewUsagePool returns an empty pool.
func NewUsagePool[K comparable, V Destructor]() *UsagePool[K, V] {
	return &UsagePool[K, V]{pool: make(map[K]*usagePoolValue[V])}
}

// LoadOrNew returns the value keyed by key, constructing it if absent,
// and adds a usage to it. The second return reports whether the value
// already existed. A constructor error is returned to the caller and
// the key is left vacant. Construction runs under the pool lock, so
// concurrent callers for the same key wait; after a failure the next
// one runs its own constructor.
func (up *UsagePool[K, V]) LoadOrNew(key K, construct func() (V, error)) (V, bool, error) {
	up.mu.Lock()
	defer up.mu.Unlock()
	if upv, ok := up.pool[key]; ok {
		upv.refs++
		return upv.value, true, nil
	}
	value, err := construct()
	if err != nil {
		var zero V
		return zero, false, err
	}
	up.pool[key] = &usagePoolValue[V]{value: value, refs: 1}
	return value, false, nil
}

// LoadOrStore returns the value keyed by key, storing val if absent,
// and adds a usage to it.
func (up *UsagePool[K, V]) LoadOrStore(key K, val V) (V, bool) {
	up.mu.Lock()
	defer up.mu.Unlock()
	if upv, ok := up.pool[key]; ok {
		upv.refs++
		return upv.value, true
	}
	up.pool[key] = &usagePoolValue[V]{value: val, refs: 1}
	return val, false
}

// Delete drops one usage of key. When the last usage is dropped the
// value is removed from the pool and destructed; Delete then reports
// true along with any destructor error.
func (up *UsagePool[K, V]) Delete(key K) (bool, error) {
	up.mu.Lock()
	upv, ok := up.pool[key]
	if !ok {
		up.mu.Unlock()
		return false, nil
	}
	upv.refs--
	if upv.refs > 0 {
		up.mu.Unlock()
		return false, nil
	}
	if upv.refs < 0 {
		up.mu.Unlock()
		panic(fmt.Sprintf("routecore: usage pool references underflow for key %v", key))
	}
	delete(up.pool, key)
	up.mu.Unlock()
	return true, upv.value.Destruct()
}

// References returns the usage count of key and whether it exists.
func (up *UsagePool[K, V]) References(key K) (int, bool) {
	up.mu.Lock()
	defer up.mu.Unlock()
	if upv, ok := up.pool[key]; ok {
		return upv.refs, true
	}
	return 0, false
}

// Range iterates over the values in the pool; return false from f to
// stop early.
func (up *UsagePool[K, V]) Range(f func(key K, value V) bool) {
	up.mu.Lock()
	defer up.mu.Unlock()
	for k, upv := range up.pool {
		if !f(k, upv.value) {
			return
		}
	}
}

// Len returns the number of distinct values in the pool.
func (up *UsagePool[K, V]) Len() int {
	up.mu.Lock()
	defer up.mu.Unlock()
	return len(up.pool)
}

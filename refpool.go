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

import "fmt"

// A SlotID names one counter in a RefPool. The zero value is never a
// live slot.
type SlotID uint32

const invalidSlot SlotID = 0

// RefPool is a table of 32-bit reference counters allocated from a
// free list. Callback handles, timer nodes and shared policy elements
// all count through a pool rather than through individual allocations,
// so one balance figure can catch leaks at event-loop teardown.
//
// A RefPool belongs to one event loop and is not safe for concurrent
// use; the single-thread restriction is load-bearing.
type RefPool struct {
	counts  []uint32
	free    []SlotID
	balance int
}

const refPoolInitialSize = 64

// NewRefPool returns an empty pool. The backing table grows
// geometrically on demand.
func NewRefPool() *RefPool {
	p := &RefPool{
		// slot 0 is reserved so the zero SlotID stays invalid
		counts: make([]uint32, 1, refPoolInitialSize),
	}
	return p
}

// Alloc reserves a slot with an initial count of one.
func (p *RefPool) Alloc() SlotID {
	p.balance++
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.counts[id] = 1
		return id
	}
	if uint64(len(p.counts)) > uint64(^SlotID(0)) {
		// the slot space is 32 bits wide; running out of it is a
		// structural bug, not a runtime condition
		panic("routecore: refcount pool exhausted")
	}
	p.counts = append(p.counts, 1)
	return SlotID(len(p.counts) - 1)
}

// Incr adds a reference to id.
func (p *RefPool) Incr(id SlotID) {
	if id == invalidSlot || p.counts[id] == 0 {
		panic(fmt.Sprintf("routecore: incr on dead slot %d", id))
	}
	p.counts[id]++
	p.balance++
}

// Decr drops a reference to id and reports whether the count reached
// zero, in which case the slot has been returned to the free list and
// the caller must run the owner's destructor.
func (p *RefPool) Decr(id SlotID) bool {
	if id == invalidSlot || p.counts[id] == 0 {
		panic(fmt.Sprintf("routecore: decr on dead slot %d", id))
	}
	p.counts[id]--
	p.balance--
	if p.counts[id] == 0 {
		p.free = append(p.free, id)
		return true
	}
	return false
}

// Count returns the live reference count of id, or zero if the slot
// is free. A weak handle resolves through Count before dispatch.
func (p *RefPool) Count(id SlotID) uint32 {
	if id == invalidSlot || int(id) >= len(p.counts) {
		return 0
	}
	return p.counts[id]
}

// Balance is the number of outstanding references across all slots.
// It must be zero after the owning event loop has torn down.
func (p *RefPool) Balance() int { return p.balance }

// LiveSlots is the number of slots with a non-zero count.
func (p *RefPool) LiveSlots() int {
	return len(p.counts) - 1 - len(p.free)
}

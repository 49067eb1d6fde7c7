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

import "testing"

func TestRefPoolLifecycle(t *testing.T) {
	p := NewRefPool()

	a := p.Alloc()
	if a == invalidSlot {
		t.Fatal("Alloc returned the invalid slot")
	}
	if got := p.Count(a); got != 1 {
		t.Fatalf("fresh slot count = %d, want 1", got)
	}
	if got := p.Balance(); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}

	p.Incr(a)
	if got := p.Count(a); got != 2 {
		t.Fatalf("count after incr = %d, want 2", got)
	}

	if p.Decr(a) {
		t.Fatal("Decr reported zero with one share left")
	}
	if !p.Decr(a) {
		t.Fatal("final Decr did not report zero")
	}
	if got := p.Count(a); got != 0 {
		t.Fatalf("dead slot count = %d, want 0", got)
	}
	if got := p.Balance(); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestRefPoolFreeListReuse(t *testing.T) {
	p := NewRefPool()
	a := p.Alloc()
	p.Decr(a)

	b := p.Alloc()
	if b != a {
		t.Fatalf("freed slot not reused: got %d, want %d", b, a)
	}
	if got := p.LiveSlots(); got != 1 {
		t.Fatalf("live slots = %d, want 1", got)
	}
	p.Decr(b)
	if got := p.LiveSlots(); got != 0 {
		t.Fatalf("live slots = %d, want 0", got)
	}
}

func TestRefPoolGrowth(t *testing.T) {
	p := NewRefPool()
	ids := make([]SlotID, 0, 1000)
	for i := 0; i < 1000; i++ {
		ids = append(ids, p.Alloc())
	}
	if got := p.Balance(); got != 1000 {
		t.Fatalf("balance = %d, want 1000", got)
	}
	seen := make(map[SlotID]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("slot %d handed out twice", id)
		}
		seen[id] = true
	}
	for _, id := range ids {
		p.Decr(id)
	}
	if got := p.Balance(); got != 0 {
		t.Fatalf("balance after drain = %d, want 0", got)
	}
}

func TestRefPoolDeadSlotPanics(t *testing.T) {
	p := NewRefPool()
	a := p.Alloc()
	p.Decr(a)

	defer func() {
		if recover() == nil {
			t.Fatal("Incr on dead slot did not panic")
		}
	}()
	p.Incr(a)
}

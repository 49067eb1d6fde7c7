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

func TestCallbackRefcounting(t *testing.T) {
	pool := NewRefPool()

	destroyed := false
	cb := NewCallback(pool, func() {}, func() { destroyed = true })
	if cb.IsEmpty() {
		t.Fatal("fresh callback is empty")
	}

	cb2 := cb.Clone()
	cb.Release()
	if destroyed {
		t.Fatal("destroyed with a live share outstanding")
	}
	if !cb.IsEmpty() {
		t.Fatal("released handle not emptied")
	}

	cb2.Release()
	if !destroyed {
		t.Fatal("finalizer did not run at zero")
	}
	if got := pool.Balance(); got != 0 {
		t.Fatalf("pool balance = %d, want 0", got)
	}
}

func TestCallbackDispatch(t *testing.T) {
	pool := NewRefPool()

	calls := 0
	cb := NewCallback(pool, func() { calls++ }, nil)
	cb.Dispatch()
	cb.Dispatch()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	cb.Release()
}

func TestWeakCallbackSkipsDeadTarget(t *testing.T) {
	pool := NewRefPool()

	calls := 0
	cb := NewCallback(pool, func() { calls++ }, nil)
	weak := cb.Weak()

	weak.Dispatch()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !weak.Alive() {
		t.Fatal("weak handle reports dead target while strong share lives")
	}

	cb.Release()
	if weak.Alive() {
		t.Fatal("weak handle reports live target after release")
	}
	weak.Dispatch() // must be a no-op
	if calls != 1 {
		t.Fatalf("dead weak dispatch ran the callback: calls = %d", calls)
	}
}

// A timer callback may capture its own timer through a weak handle;
// the cycle must not keep either alive.
func TestWeakCallbackBreaksTimerCycle(t *testing.T) {
	clock := NewManualClock(ZeroTime)
	pool := NewRefPool()
	tl := NewTimerList(clock, pool)

	var weak WeakCallback
	cb := NewCallback(pool, func() {}, nil)
	weak = cb.Weak()

	timer := tl.NewOneoffAfter(ms(10), weak.Dispatch, PriorityDefault)
	cb.Release() // only the weak view remains

	clock.Advance(ms(10))
	tl.Run()
	timer.Clear()

	if got := pool.Balance(); got != 0 {
		t.Fatalf("pool balance = %d, want 0", got)
	}
}

func TestCondCallback(t *testing.T) {
	pool := NewRefPool()

	n := 0
	cb := NewCondCallback(pool, func() bool { n++; return n < 2 }, nil)
	if !cb.Dispatch() {
		t.Fatal("first dispatch should be true")
	}
	if cb.Dispatch() {
		t.Fatal("second dispatch should be false")
	}
	cb.Release()
	if got := pool.Balance(); got != 0 {
		t.Fatalf("pool balance = %d, want 0", got)
	}
}

func TestCallbackOf(t *testing.T) {
	pool := NewRefPool()

	var got []int
	cb := NewCallbackOf[int](pool, func(v int) { got = append(got, v) }, nil)
	cb.Dispatch(7)
	cb.Dispatch(9)
	cb.Release()

	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("dispatched values = %v", got)
	}
}

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

// Callbacks are functions-as-values handed across module boundaries
// and parked in timers and I/O queues. Each callback owns one RefPool
// slot; Clone adds a share, Release drops one, and the optional
// finalizer runs exactly when the count reaches zero.
//
// A Weak handle names the slot without pinning it, which is how a
// callback may capture the timer that owns it without creating a
// cycle: resolve at dispatch, skip if the slot has died.

// Callback is a refcounted nullary closure.
type Callback struct {
	pool  *RefPool
	slot  SlotID
	fn    func()
	final func()
}

// NewCallback wraps fn in a refcounted handle allocated from pool.
// The finalizer, if non-nil, runs when the last share is released.
func NewCallback(pool *RefPool, fn func(), finalizer func()) Callback {
	return Callback{pool: pool, slot: pool.Alloc(), fn: fn, final: finalizer}
}

// IsEmpty distinguishes the zero handle from a live one.
func (cb Callback) IsEmpty() bool { return cb.slot == invalidSlot }

// Clone returns a new share of the same callback.
func (cb Callback) Clone() Callback {
	if cb.IsEmpty() {
		return cb
	}
	cb.pool.Incr(cb.slot)
	return cb
}

// Release drops this share. The handle is dead afterwards.
func (cb *Callback) Release() {
	if cb.IsEmpty() {
		return
	}
	if cb.pool.Decr(cb.slot) && cb.final != nil {
		cb.final()
	}
	*cb = Callback{}
}

// Dispatch invokes the callback. Dispatching an empty handle panics;
// use Weak for handles that may outlive their target.
func (cb Callback) Dispatch() {
	if cb.IsEmpty() {
		panic("routecore: dispatch of empty callback")
	}
	cb.fn()
}

// Weak returns a non-owning view of cb.
func (cb Callback) Weak() WeakCallback {
	return WeakCallback{pool: cb.pool, slot: cb.slot, fn: cb.fn}
}

// WeakCallback names a callback's slot without holding a share.
// Dispatch resolves the slot first and is a no-op if every strong
// share has been released.
type WeakCallback struct {
	pool *RefPool
	slot SlotID
	fn   func()
}

// Alive reports whether the target still has strong shares.
func (w WeakCallback) Alive() bool {
	return w.pool != nil && w.pool.Count(w.slot) > 0
}

// Dispatch invokes the target iff it is still alive.
func (w WeakCallback) Dispatch() {
	if w.Alive() {
		w.fn()
	}
}

// CondCallback is a refcounted closure returning a bool, the shape a
// periodic timer uses to decide whether to re-arm.
type CondCallback struct {
	pool  *RefPool
	slot  SlotID
	fn    func() bool
	final func()
}

// NewCondCallback wraps fn in a refcounted handle allocated from pool.
func NewCondCallback(pool *RefPool, fn func() bool, finalizer func()) CondCallback {
	return CondCallback{pool: pool, slot: pool.Alloc(), fn: fn, final: finalizer}
}

func (cb CondCallback) IsEmpty() bool { return cb.slot == invalidSlot }

func (cb CondCallback) Clone() CondCallback {
	if cb.IsEmpty() {
		return cb
	}
	cb.pool.Incr(cb.slot)
	return cb
}

func (cb *CondCallback) Release() {
	if cb.IsEmpty() {
		return
	}
	if cb.pool.Decr(cb.slot) && cb.final != nil {
		cb.final()
	}
	*cb = CondCallback{}
}

func (cb CondCallback) Dispatch() bool {
	if cb.IsEmpty() {
		panic("routecore: dispatch of empty callback")
	}
	return cb.fn()
}

// CallbackOf is a refcounted unary closure.
type CallbackOf[T any] struct {
	pool  *RefPool
	slot  SlotID
	fn    func(T)
	final func()
}

// NewCallbackOf wraps fn, binding nothing; the free argument is
// supplied at dispatch.
func NewCallbackOf[T any](pool *RefPool, fn func(T), finalizer func()) CallbackOf[T] {
	return CallbackOf[T]{pool: pool, slot: pool.Alloc(), fn: fn, final: finalizer}
}

func (cb CallbackOf[T]) IsEmpty() bool { return cb.slot == invalidSlot }

func (cb CallbackOf[T]) Clone() CallbackOf[T] {
	if cb.IsEmpty() {
		return cb
	}
	cb.pool.Incr(cb.slot)
	return cb
}

func (cb *CallbackOf[T]) Release() {
	if cb.IsEmpty() {
		return
	}
	if cb.pool.Decr(cb.slot) && cb.final != nil {
		cb.final()
	}
	*cb = CallbackOf[T]{}
}

func (cb CallbackOf[T]) Dispatch(arg T) {
	if cb.IsEmpty() {
		panic("routecore: dispatch of empty callback")
	}
	cb.fn(arg)
}

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
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EventLoop is the single-threaded cooperative scheduler everything
// else runs on. All timer callbacks and I/O completions run to
// completion on the loop goroutine; there is no preemption, and a
// callback holds the sole mutation right for anything it reaches
// while it runs.
//
// I/O is performed by helper goroutines which post their completions
// through Post; the loop dispatches them in arrival order, interleaved
// with due timers, timers first when both are ready.
type EventLoop struct {
	clock  Clock
	pool   *RefPool
	timers *TimerList
	inbox  chan func()
	logger *zap.Logger
}

const inboxDepth = 1024

// NewEventLoop builds a loop around clock. Passing nil uses the
// system clock.
func NewEventLoop(clock Clock) *EventLoop {
	if clock == nil {
		clock = NewSystemClock()
	}
	pool := NewRefPool()
	return &EventLoop{
		clock:  clock,
		pool:   pool,
		timers: NewTimerList(clock, pool),
		inbox:  make(chan func(), inboxDepth),
		logger: Log().Named("eventloop"),
	}
}

// Timers returns the loop's timer list.
func (el *EventLoop) Timers() *TimerList { return el.timers }

// Pool returns the loop's refcount pool.
func (el *EventLoop) Pool() *RefPool { return el.pool }

// Post enqueues fn for execution on the loop goroutine. It is the
// only EventLoop method safe to call from other goroutines; I/O
// helpers use it to deliver completions.
func (el *EventLoop) Post(fn func()) {
	el.inbox <- fn
}

// Run dispatches timers and completions until ctx is done. Each
// iteration dispatches at most one callback: the most urgent expired
// timer if any, otherwise the oldest pending completion, otherwise it
// sleeps until the next expiry or arrival.
func (el *EventLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return el.shutdown()
		default:
		}
		el.clock.AdvanceTime()
		if el.timers.expireOne(PriorityInfinity) {
			loopMetrics.dispatches.WithLabelValues("timer").Inc()
			continue
		}
		if el.dispatchReady() {
			continue
		}
		var delay TimeVal
		el.timers.GetNextDelay(&delay)
		el.waitFor(ctx, delay.Duration())
	}
}

// RunOnce dispatches everything currently due without blocking:
// first all expired timers, then all queued completions.
func (el *EventLoop) RunOnce() {
	el.clock.AdvanceTime()
	for el.timers.expireOne(PriorityInfinity) {
		loopMetrics.dispatches.WithLabelValues("timer").Inc()
	}
	for {
		select {
		case fn := <-el.inbox:
			el.dispatch(fn)
		default:
			return
		}
	}
}

// dispatchReady runs one pending completion if there is one, without
// blocking, and reports whether it did.
func (el *EventLoop) dispatchReady() bool {
	select {
	case fn := <-el.inbox:
		el.dispatch(fn)
		return true
	default:
		return false
	}
}

func (el *EventLoop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			el.logger.Error("completion callback panicked", zap.Any("panic", r))
		}
	}()
	loopMetrics.dispatches.WithLabelValues("completion").Inc()
	fn()
}

// waitFor blocks until d elapses, a completion arrives, or ctx is
// done. A completion that arrives while waiting is dispatched before
// waitFor returns.
func (el *EventLoop) waitFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case fn := <-el.inbox:
		el.dispatch(fn)
	case <-t.C:
	case <-ctx.Done():
	}
}

// shutdown drains nothing and verifies the refcount pool balance,
// which must be zero once every subsystem has released its callbacks
// and timers.
func (el *EventLoop) shutdown() error {
	if b := el.pool.Balance(); b != 0 {
		err := fmt.Errorf("refcount pool balance %d at teardown (%d live slots)",
			b, el.pool.LiveSlots())
		el.logger.Error("event loop teardown", zap.Error(err))
		return err
	}
	return nil
}

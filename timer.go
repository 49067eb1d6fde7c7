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
	"time"

	"go.uber.org/zap"
)

// TimerListObserver receives notifications when timers are scheduled
// or unscheduled on a TimerList.
type TimerListObserver interface {
	NotifyScheduled(TimeVal)
	NotifyUnscheduled(TimeVal)
}

// timerNode is the shared state behind one or more Timer handles.
// A node is jointly owned by the heap (while scheduled) and by any
// outstanding handle; ownership is counted through the list's RefPool
// and the node dies when both release.
type timerNode struct {
	expires  TimeVal
	cb       func(Timer)
	priority int
	pos      int // index into its heap; -1 when unscheduled
	seq      uint64
	slot     SlotID
	list     *TimerList
}

func (n *timerNode) scheduled() bool { return n.pos >= 0 }

// Timer is a cheap handle sharing ownership of one timer node. The
// zero Timer is empty. Handles obtained from a TimerList carry one
// share; Clone adds another and Clear drops this handle's share.
type Timer struct {
	node *timerNode
}

// Scheduled reports whether the timer is on its list awaiting expiry.
func (t Timer) Scheduled() bool { return t.node != nil && t.node.scheduled() }

// Expiry returns the scheduled expiry time. The timer must be live.
func (t Timer) Expiry() TimeVal { return t.node.expires }

// TimeRemaining stores the time left until expiry into remain,
// clamped to zero if the expiry has already passed. It reports false
// for an empty handle, in which case remain is ZeroTime.
func (t Timer) TimeRemaining(remain *TimeVal) bool {
	if t.node == nil {
		*remain = ZeroTime
		return false
	}
	var now TimeVal
	t.node.list.CurrentTime(&now)
	if t.node.expires.Before(now) {
		*remain = ZeroTime
	} else {
		*remain = t.node.expires.Sub(now)
	}
	return true
}

// ScheduleAt schedules the timer at the absolute time when.
func (t Timer) ScheduleAt(when TimeVal, priority int) {
	n := t.node
	if n.scheduled() {
		n.list.unscheduleNode(n)
	}
	n.expires = when
	n.priority = priority
	n.list.scheduleNode(n)
}

// ScheduleAfter schedules the timer wait after the current time. The
// clock is sampled at the call, not at dispatch.
func (t Timer) ScheduleAfter(wait TimeVal, priority int) {
	var now TimeVal
	t.node.list.clock.AdvanceTime()
	t.node.list.CurrentTime(&now)
	t.ScheduleAt(now.Add(wait), priority)
}

// ScheduleNow expires the timer the next time its list runs.
func (t Timer) ScheduleNow(priority int) {
	t.ScheduleAfter(ZeroTime, priority)
}

// RescheduleAfter schedules the timer wait after its most recent
// expiry, preserving its priority. This is what keeps a periodic
// timer on its original cadence even when dispatch was delayed.
func (t Timer) RescheduleAfter(wait TimeVal) {
	n := t.node
	prev := n.expires
	if n.scheduled() {
		n.list.unscheduleNode(n)
	}
	n.expires = prev.Add(wait)
	n.list.scheduleNode(n)
}

// Unschedule removes the timer from its list; the callback will not
// fire. A no-op for empty or unscheduled timers.
func (t Timer) Unschedule() {
	if t.node != nil && t.node.scheduled() {
		t.node.list.unscheduleNode(t.node)
		t.node.list.releaseNode(t.node)
	}
}

// Clear releases this handle's share of the timer node. The timer
// keeps running if it is scheduled; it simply can no longer be
// reached through this handle.
func (t *Timer) Clear() {
	if t.node != nil {
		t.node.list.releaseNode(t.node)
		t.node = nil
	}
}

// Clone returns an additional handle to the same timer node.
func (t Timer) Clone() Timer {
	if t.node != nil {
		t.node.list.pool.Incr(t.node.slot)
	}
	return t
}

// timerHeap is a binary min-heap of timer nodes keyed by (expiry,
// insertion sequence). Every node stores its own index so removal by
// handle is O(log n).
type timerHeap struct {
	nodes []*timerNode
}

func (h *timerHeap) less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	if c := a.expires.Cmp(b.expires); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (h *timerHeap) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].pos = i
	h.nodes[j].pos = j
}

func (h *timerHeap) push(n *timerNode) {
	n.pos = len(h.nodes)
	h.nodes = append(h.nodes, n)
	h.up(n.pos)
}

func (h *timerHeap) remove(i int) *timerNode {
	n := h.nodes[i]
	last := len(h.nodes) - 1
	if i != last {
		h.swap(i, last)
	}
	h.nodes[last] = nil
	h.nodes = h.nodes[:last]
	if i < last {
		h.down(i)
		h.up(i)
	}
	n.pos = -1
	return n
}

func (h *timerHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *timerHeap) down(i int) {
	n := len(h.nodes)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		least := left
		if right := left + 1; right < n && h.less(right, left) {
			least = right
		}
		if !h.less(least, i) {
			return
		}
		h.swap(i, least)
		i = least
	}
}

// TimerList schedules callbacks for future delivery, ordered by
// (priority class, expiry, insertion order). It keeps one heap per
// priority class in use.
type TimerList struct {
	heaps    map[int]*timerHeap
	clock    Clock
	pool     *RefPool
	observer TimerListObserver
	seq      uint64
	logger   *zap.Logger
}

// NewTimerList returns a TimerList reading time from clock and
// counting node ownership through pool.
func NewTimerList(clock Clock, pool *RefPool) *TimerList {
	return &TimerList{
		heaps:  make(map[int]*timerHeap),
		clock:  clock,
		pool:   pool,
		logger: Log().Named("timers"),
	}
}

// NewTimer creates an unscheduled timer with a bare callback; the
// callback receives a handle to its own timer so it can reschedule
// itself. The caller must schedule it explicitly.
func (tl *TimerList) NewTimer(cb func(Timer)) Timer {
	n := &timerNode{cb: cb, pos: -1, slot: tl.pool.Alloc(), list: tl}
	return Timer{node: n}
}

// NewOneoffAt returns a timer that fires fn once at or after when.
func (tl *TimerList) NewOneoffAt(when TimeVal, fn func(), priority int) Timer {
	t := tl.NewTimer(func(Timer) { fn() })
	t.ScheduleAt(when, priority)
	return t
}

// NewOneoffAfter returns a timer that fires fn once, wait after the
// current time.
func (tl *TimerList) NewOneoffAfter(wait TimeVal, fn func(), priority int) Timer {
	t := tl.NewTimer(func(Timer) { fn() })
	t.ScheduleAfter(wait, priority)
	return t
}

// NewPeriodic returns a timer that fires fn every period. The next
// expiry after a firing is the previous expiry plus period, so the
// cadence catches up after dispatch delays; fn may break that by
// calling ScheduleAfter on its own handle. Returning false stops the
// timer.
func (tl *TimerList) NewPeriodic(period TimeVal, fn func() bool, priority int) Timer {
	t := tl.NewTimer(func(self Timer) {
		if fn() {
			self.RescheduleAfter(period)
		}
	})
	t.ScheduleAfter(period, priority)
	return t
}

// SetFlagAt returns a timer that stores value into *flag at when.
func (tl *TimerList) SetFlagAt(when TimeVal, flag *bool, value bool, priority int) Timer {
	t := tl.NewTimer(func(Timer) { *flag = value })
	t.ScheduleAt(when, priority)
	return t
}

// SetFlagAfter returns a timer that stores value into *flag, wait
// after the current time.
func (tl *TimerList) SetFlagAfter(wait TimeVal, flag *bool, value bool, priority int) Timer {
	t := tl.NewTimer(func(Timer) { *flag = value })
	t.ScheduleAfter(wait, priority)
	return t
}

// Empty reports whether no timer is scheduled.
func (tl *TimerList) Empty() bool { return tl.Size() == 0 }

// Size returns the number of scheduled timers.
func (tl *TimerList) Size() int {
	n := 0
	for _, h := range tl.heaps {
		n += len(h.nodes)
	}
	return n
}

// CurrentTime stores the clock's cached time into now.
func (tl *TimerList) CurrentTime(now *TimeVal) { tl.clock.CurrentTime(now) }

// AdvanceTime refreshes the cached time from the clock source.
func (tl *TimerList) AdvanceTime() { tl.clock.AdvanceTime() }

// SystemSleep suspends the calling goroutine for tv and then advances
// the clock. It exists for test harnesses only; production callers
// wait by scheduling a timer and returning to the loop.
func (tl *TimerList) SystemSleep(tv TimeVal) {
	time.Sleep(tv.Duration())
	tl.clock.AdvanceTime()
}

// GetNextDelay stores the time until the soonest expiry across all
// priorities into delay, clamped to zero if that expiry has passed.
// It reports false when no timer is scheduled, storing MaxTime.
func (tl *TimerList) GetNextDelay(delay *TimeVal) bool {
	soonest := MaxTime
	found := false
	for _, h := range tl.heaps {
		if len(h.nodes) == 0 {
			continue
		}
		if e := h.nodes[0].expires; !found || e.Before(soonest) {
			soonest = e
			found = true
		}
	}
	if !found {
		*delay = MaxTime
		return false
	}
	var now TimeVal
	tl.CurrentTime(&now)
	if soonest.Before(now) {
		*delay = ZeroTime
	} else {
		*delay = soonest.Sub(now)
	}
	return true
}

// GetExpiredPriority returns the numerically smallest priority class
// whose soonest timer has expired, or PriorityInfinity if none has.
func (tl *TimerList) GetExpiredPriority() int {
	var now TimeVal
	tl.CurrentTime(&now)
	best := PriorityInfinity
	for prio, h := range tl.heaps {
		if len(h.nodes) == 0 || h.nodes[0].expires.After(now) {
			continue
		}
		if prio < best {
			best = prio
		}
	}
	return best
}

// Run advances the clock and expires every due timer, highest
// priority class first. Within one class timers fire in (expiry,
// insertion) order. A firing callback may schedule or reschedule
// timers, including its own.
func (tl *TimerList) Run() {
	tl.clock.AdvanceTime()
	for tl.expireOne(PriorityInfinity) {
	}
}

// RunPriority expires due timers of classes strictly better than
// worst, one at a time, and reports whether any fired.
func (tl *TimerList) RunPriority(worst int) bool {
	return tl.expireOne(worst)
}

// expireOne fires the single most urgent expired timer with priority
// better than worst. It reports whether a timer fired.
func (tl *TimerList) expireOne(worst int) bool {
	prio := tl.GetExpiredPriority()
	if prio == PriorityInfinity {
		return false
	}
	if worst != PriorityInfinity && prio >= worst {
		return false
	}
	h := tl.heaps[prio]
	n := h.remove(0)
	timerMetrics.unscheduled.Inc()
	if tl.observer != nil {
		tl.observer.NotifyUnscheduled(n.expires)
	}
	tl.fire(n)
	// the heap's share: the callback may have rescheduled the node
	// (taking a fresh share), so dropping this one is always correct
	tl.releaseNode(n)
	return true
}

// fire dispatches one node's callback, containing panics so that a
// misbehaving callback cannot corrupt the heaps. The scheduler does
// not retry; recovery policy belongs to the callback's owner.
func (tl *TimerList) fire(n *timerNode) {
	defer func() {
		if r := recover(); r != nil {
			tl.logger.Error("timer callback panicked",
				zap.Any("panic", r),
				zap.String("expiry", n.expires.String()),
				zap.Int("priority", n.priority))
		}
	}()
	// lend the heap's share to the callback as a handle so it can
	// reschedule itself without racing its own destruction
	n.cb(Timer{node: n})
}

// SetObserver registers obs to receive schedule notifications.
func (tl *TimerList) SetObserver(obs TimerListObserver) { tl.observer = obs }

// RemoveObserver unregisters the current observer.
func (tl *TimerList) RemoveObserver() { tl.observer = nil }

func (tl *TimerList) scheduleNode(n *timerNode) {
	h := tl.heaps[n.priority]
	if h == nil {
		h = new(timerHeap)
		tl.heaps[n.priority] = h
	}
	tl.seq++
	n.seq = tl.seq
	tl.pool.Incr(n.slot)
	h.push(n)
	timerMetrics.scheduled.Inc()
	if tl.observer != nil {
		tl.observer.NotifyScheduled(n.expires)
	}
}

// unscheduleNode removes n from its heap without dropping the heap's
// share; callers pair it with releaseNode.
func (tl *TimerList) unscheduleNode(n *timerNode) {
	tl.heaps[n.priority].remove(n.pos)
	timerMetrics.unscheduled.Inc()
	if tl.observer != nil {
		tl.observer.NotifyUnscheduled(n.expires)
	}
}

func (tl *TimerList) releaseNode(n *timerNode) {
	tl.pool.Decr(n.slot)
}

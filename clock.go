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

import "time"

// Clock supplies the notion of "now" to a TimerList. The current time
// is a cached value; AdvanceTime refreshes the cache. The split keeps
// a run of expirations at one instant from each re-reading the system
// clock, and lets tests substitute a hand-advanced clock.
type Clock interface {
	// CurrentTime stores the cached current time into now.
	CurrentTime(now *TimeVal)

	// AdvanceTime refreshes the cached time from the underlying
	// time source.
	AdvanceTime()
}

// SystemClock reads time from the operating system.
type SystemClock struct {
	cached TimeVal
}

// NewSystemClock returns a SystemClock primed with the current time.
func NewSystemClock() *SystemClock {
	c := new(SystemClock)
	c.AdvanceTime()
	return c
}

func (c *SystemClock) CurrentTime(now *TimeVal) { *now = c.cached }

func (c *SystemClock) AdvanceTime() { c.cached = TimeValOf(time.Now()) }

// ManualClock is a Clock that only moves when told to. It exists for
// test harnesses that need deterministic timer expiry.
type ManualClock struct {
	now TimeVal
}

// NewManualClock returns a ManualClock set to start.
func NewManualClock(start TimeVal) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) CurrentTime(now *TimeVal) { *now = c.now }

// AdvanceTime is a no-op; a ManualClock moves only via Advance or Set.
func (c *ManualClock) AdvanceTime() {}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d TimeVal) { c.now = c.now.Add(d) }

// Set moves the clock to the absolute time t. Moving backwards is not
// supported.
func (c *ManualClock) Set(t TimeVal) {
	if t.Before(c.now) {
		panic("routecore: manual clock moved backwards")
	}
	c.now = t
}

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

// Scheduling priority classes. Lower values run first. Priorities are
// compared only at dispatch boundaries; a running callback is never
// preempted. Background classes exist so that bulk work (route dump
// replay, retired-table draining) cannot starve protocol liveness
// (keepalives, hold timers).
const (
	PriorityHighest    = 0
	PriorityKeepalive  = 1
	PriorityHigh       = 2
	PriorityDefault    = 4
	PriorityBackground = 7
	PriorityLowest     = 9

	// PriorityInfinity sorts after every runnable priority; it is
	// the value reported when nothing is expired.
	PriorityInfinity = 255
)

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
	"math"
	"time"
)

// TimeVal is an absolute or relative time expressed as whole seconds
// plus microseconds. The microsecond field is always normalized to
// [0, 1000000); arithmetic preserves the invariant. Ordering is
// lexicographic on (Sec, Usec).
type TimeVal struct {
	Sec  int64
	Usec int32
}

const microsPerSecond = 1_000_000

// ZeroTime is the zero instant and the zero duration.
var ZeroTime = TimeVal{}

// MaxTime sorts after every other TimeVal. It is the value reported
// by GetNextDelay when no timer is scheduled.
var MaxTime = TimeVal{Sec: math.MaxInt64, Usec: microsPerSecond - 1}

// MakeTimeVal normalizes sec and usec into a TimeVal. The usec
// argument may be any value; whole seconds are carried into sec.
func MakeTimeVal(sec int64, usec int64) TimeVal {
	sec += usec / microsPerSecond
	usec %= microsPerSecond
	if usec < 0 {
		usec += microsPerSecond
		sec--
	}
	return TimeVal{Sec: sec, Usec: int32(usec)}
}

// TimeValOf converts a time.Time to a TimeVal (Unix epoch).
func TimeValOf(t time.Time) TimeVal {
	return MakeTimeVal(t.Unix(), int64(t.Nanosecond())/1000)
}

// TimeValFromDuration converts a time.Duration to a TimeVal.
func TimeValFromDuration(d time.Duration) TimeVal {
	return MakeTimeVal(0, d.Microseconds())
}

// Duration converts tv, interpreted as a relative time, to a
// time.Duration. MaxTime saturates instead of overflowing.
func (tv TimeVal) Duration() time.Duration {
	if tv == MaxTime || tv.Sec > math.MaxInt64/int64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Add returns tv + o.
func (tv TimeVal) Add(o TimeVal) TimeVal {
	return MakeTimeVal(tv.Sec+o.Sec, int64(tv.Usec)+int64(o.Usec))
}

// Sub returns tv - o.
func (tv TimeVal) Sub(o TimeVal) TimeVal {
	return MakeTimeVal(tv.Sec-o.Sec, int64(tv.Usec)-int64(o.Usec))
}

// Mul returns tv scaled by n.
func (tv TimeVal) Mul(n int) TimeVal {
	return MakeTimeVal(tv.Sec*int64(n), int64(tv.Usec)*int64(n))
}

// Div returns tv divided by n. n must be non-zero.
func (tv TimeVal) Div(n int) TimeVal {
	us := tv.Sec*microsPerSecond + int64(tv.Usec)
	return MakeTimeVal(0, us/int64(n))
}

// Mod returns the remainder of tv divided by o, both interpreted as
// durations. o must be non-zero.
func (tv TimeVal) Mod(o TimeVal) TimeVal {
	us := tv.Sec*microsPerSecond + int64(tv.Usec)
	ous := o.Sec*microsPerSecond + int64(o.Usec)
	return MakeTimeVal(0, us%ous)
}

// Seconds returns tv as floating-point seconds.
func (tv TimeVal) Seconds() float64 {
	return float64(tv.Sec) + float64(tv.Usec)/microsPerSecond
}

// Cmp returns -1, 0 or +1 according to the ordering of tv and o.
func (tv TimeVal) Cmp(o TimeVal) int {
	switch {
	case tv.Sec < o.Sec:
		return -1
	case tv.Sec > o.Sec:
		return 1
	case tv.Usec < o.Usec:
		return -1
	case tv.Usec > o.Usec:
		return 1
	}
	return 0
}

// Before reports whether tv sorts strictly before o.
func (tv TimeVal) Before(o TimeVal) bool { return tv.Cmp(o) < 0 }

// After reports whether tv sorts strictly after o.
func (tv TimeVal) After(o TimeVal) bool { return tv.Cmp(o) > 0 }

// IsZero reports whether tv is ZeroTime.
func (tv TimeVal) IsZero() bool { return tv == ZeroTime }

func (tv TimeVal) String() string {
	return fmt.Sprintf("%d.%06d", tv.Sec, tv.Usec)
}

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
	"testing"
	"time"
)

func TestMakeTimeValNormalizes(t *testing.T) {
	for i, tc := range []struct {
		sec, usec int64
		want      TimeVal
	}{
		{0, 0, TimeVal{0, 0}},
		{1, 500000, TimeVal{1, 500000}},
		{0, 1500000, TimeVal{1, 500000}},
		{0, -1, TimeVal{-1, 999999}},
		{2, -500000, TimeVal{1, 500000}},
		{0, 3000000, TimeVal{3, 0}},
	} {
		got := MakeTimeVal(tc.sec, tc.usec)
		if got != tc.want {
			t.Errorf("case %d: MakeTimeVal(%d, %d) = %v, want %v",
				i, tc.sec, tc.usec, got, tc.want)
		}
		if got.Usec < 0 || got.Usec >= microsPerSecond {
			t.Errorf("case %d: usec %d out of range", i, got.Usec)
		}
	}
}

func TestTimeValArithmetic(t *testing.T) {
	a := MakeTimeVal(1, 700000)
	b := MakeTimeVal(0, 600000)

	if got := a.Add(b); got != (TimeVal{2, 300000}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != (TimeVal{1, 100000}) {
		t.Errorf("Sub = %v", got)
	}
	if got := b.Sub(a); got != (TimeVal{-2, 900000}) {
		t.Errorf("Sub negative = %v", got)
	}
	if got := b.Mul(3); got != (TimeVal{1, 800000}) {
		t.Errorf("Mul = %v", got)
	}
	if got := a.Div(2); got != (TimeVal{0, 850000}) {
		t.Errorf("Div = %v", got)
	}
	if got := a.Mod(b); got != (TimeVal{0, 500000}) {
		t.Errorf("Mod = %v", got)
	}
}

func TestTimeValOrdering(t *testing.T) {
	a := MakeTimeVal(1, 0)
	b := MakeTimeVal(1, 1)
	c := MakeTimeVal(2, 0)

	if !a.Before(b) || !b.Before(c) || !a.Before(c) {
		t.Error("lexicographic ordering broken")
	}
	if !c.After(a) {
		t.Error("After broken")
	}
	if a.Cmp(a) != 0 {
		t.Error("Cmp self != 0")
	}
	if !ZeroTime.Before(MaxTime) {
		t.Error("MaxTime must sort after ZeroTime")
	}
}

func TestTimeValDurationRoundTrip(t *testing.T) {
	d := 1500 * time.Millisecond
	tv := TimeValFromDuration(d)
	if tv != (TimeVal{1, 500000}) {
		t.Fatalf("TimeValFromDuration = %v", tv)
	}
	if tv.Duration() != d {
		t.Fatalf("Duration = %v, want %v", tv.Duration(), d)
	}
	if tv.Seconds() != 1.5 {
		t.Fatalf("Seconds = %v", tv.Seconds())
	}
}

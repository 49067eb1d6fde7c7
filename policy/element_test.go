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

package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseElementRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		typ ElemType
		lit string
	}{
		{TypeBool, "true"},
		{TypeU32, "4294967295"},
		{TypeI32, "-5"},
		{TypeU64, "18446744073709551615"},
		{TypeIPv4, "192.0.2.1"},
		{TypeIPv6, "2001:db8::1"},
		{TypeIPv4Net, "10.0.0.0/8"},
		{TypeIPv6Net, "2001:db8::/32"},
		{TypeMac, "02:00:5e:00:53:01"},
		{TypeStr, "hello"},
		{TypeU32Set, "1,2,3"},
		{TypeIPv4NetSet, "10.0.0.0/8,192.0.2.0/24"},
		{TypeASPath, "65001 65002"},
	} {
		e, err := ParseElement(tc.typ, tc.lit)
		require.NoError(t, err, "type %v literal %q", tc.typ, tc.lit)
		require.Equal(t, tc.typ, e.Type())

		again, err := ParseElement(tc.typ, e.String())
		require.NoError(t, err)
		eq, err := EvalBinary("==", e, again)
		require.NoError(t, err)
		require.True(t, eq.Bool(), "round trip changed %v %q", tc.typ, tc.lit)
	}
}

func TestParseElementFamilyChecks(t *testing.T) {
	_, err := ParseElement(TypeIPv4, "2001:db8::1")
	require.Error(t, err)
	_, err = ParseElement(TypeIPv6Net, "10.0.0.0/8")
	require.Error(t, err)
}

func TestU32SetAlgebra(t *testing.T) {
	a := NewU32SetOf(1, 2)
	b := NewU32SetOf(1, 2, 3)

	require.True(t, a.SubsetOf(b))
	require.False(t, b.SubsetOf(a))
	require.True(t, a.Contains(2))
	require.False(t, a.Contains(3))

	c := a.Clone()
	c.Insert(9)
	require.False(t, a.Contains(9), "clone must be independent")
	require.Equal(t, "1,2", a.String())
}

func TestNetSetContainsSubnetOf(t *testing.T) {
	s, err := ParseNetSet("10.0.0.0/8")
	require.NoError(t, err)

	in, _ := ParseElement(TypeIPv4Net, "10.3.0.0/16")
	out, _ := ParseElement(TypeIPv4Net, "11.0.0.0/16")
	require.True(t, s.ContainsSubnetOf(in.Net()))
	require.False(t, s.ContainsSubnetOf(out.Net()))
}

func TestASPathExpr(t *testing.T) {
	p, err := ParseASPathExpr("65001 65002")
	require.NoError(t, err)
	require.True(t, p.Contains(65002))
	require.False(t, p.Contains(65003))

	q := p.Prepend(64512)
	require.Equal(t, "64512 65001 65002", q.String())
	require.Equal(t, "65001 65002", p.String(), "prepend must not mutate")
}

func TestTypeMismatchError(t *testing.T) {
	_, err := EvalBinary("+", NewU32(1), NewStr("x"))
	require.Error(t, err)
	var tm TypeMismatch
	require.ErrorAs(t, err, &tm)
}

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

package policyfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/routecore/routecore/policy"
)

const sample = `
# redistribute OSPF into BGP
policy-statement ospf-to-bgp {
  term t1 {
    from { protocol: "ospf"; network4 <= 10.0.0.0/8; }
    to   { protocol: "bgp"; }
    then { localpref = 200; accept; }
  }
}
`

func TestParseSample(t *testing.T) {
	stmts, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	pol := stmts[0]
	require.Equal(t, "ospf-to-bgp", pol.Name)
	require.Len(t, pol.Terms, 1)

	term := pol.Terms[0]
	require.Equal(t, "t1", term.Name)
	require.Equal(t, "ospf", term.SourceProtocol())
	require.Equal(t, "bgp", term.DestProtocol())

	require.Len(t, term.From, 2)
	require.Equal(t, policy.NodeProtocol, term.From[0].Kind)
	require.Equal(t, policy.NodeMatch, term.From[1].Kind)
	require.Equal(t, "network4", term.From[1].Var)
	require.Equal(t, "<=", term.From[1].Op)
	require.Equal(t, "10.0.0.0/8", term.From[1].Arg.Literal)

	require.Len(t, term.Then, 2)
	require.Equal(t, policy.NodeAssign, term.Then[0].Kind)
	require.Equal(t, "localpref", term.Then[0].Var)
	require.Equal(t, "200", term.Then[0].Arg.Literal)
	require.Equal(t, policy.NodeAccept, term.Then[1].Kind)
}

func TestParseSectionOrderEnforced(t *testing.T) {
	src := `policy-statement p {
  term t {
    to { protocol: "bgp"; }
    from { protocol: "ospf"; }
  }
}`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order")
}

func TestParseDuplicateSectionRejected(t *testing.T) {
	src := `policy-statement p {
  term t {
    from { metric == 1; }
    from { metric == 2; }
  }
}`
	_, err := Parse([]byte(src))
	require.Error(t, err)
}

func TestParseBarePolicyIsSubroutine(t *testing.T) {
	stmts, err := Parse([]byte(`policy-statement helper { }`))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Empty(t, stmts[0].Terms)
}

func TestParseSetReference(t *testing.T) {
	src := `policy-statement p {
  term t {
    from { network4 <= set mynets; }
    then { reject; }
  }
}`
	stmts, err := Parse([]byte(src))
	require.NoError(t, err)
	n := stmts[0].Terms[0].From[0]
	require.Equal(t, policy.NodeMatch, n.Kind)
	require.Equal(t, "mynets", n.Arg.SetRef)
}

func TestParseIPv6LiteralSurvivesColons(t *testing.T) {
	src := `policy-statement p {
  term t {
    from { network6 <= 2001:db8::/32; }
    then { accept; }
  }
}`
	stmts, err := Parse([]byte(src))
	require.NoError(t, err)
	n := stmts[0].Terms[0].From[0]
	require.Equal(t, "2001:db8::/32", n.Arg.Literal)
}

func TestParseMisplacedStatements(t *testing.T) {
	for _, src := range []string{
		`policy-statement p { term t { from { accept; } } }`,
		`policy-statement p { term t { from { localpref = 1; } } }`,
		`policy-statement p { term t { then { metric == 1; } } }`,
	} {
		_, err := Parse([]byte(src))
		require.Error(t, err, "source should have been rejected: %s", src)
	}
}

func TestParseCall(t *testing.T) {
	src := `policy-statement p {
  term t {
    from { call helper; }
    then { accept; }
  }
}`
	stmts, err := Parse([]byte(src))
	require.NoError(t, err)
	n := stmts[0].Terms[0].From[0]
	require.Equal(t, policy.NodeCall, n.Kind)
	require.Equal(t, "helper", n.Name)
}

func TestTokenizeQuotesAndComments(t *testing.T) {
	toks, err := Tokenize([]byte("foo \"bar baz\" # comment\nqux{};"))
	require.NoError(t, err)

	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.Text)
	}
	require.Equal(t, []string{"foo", "bar baz", "qux", "{", "}", ";"}, texts)
	require.True(t, toks[1].Quoted)
}

func TestTokenizeLineNumbers(t *testing.T) {
	toks, err := Tokenize([]byte("a\nb\n\nc"))
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
	require.Equal(t, 4, toks[2].Line)
}

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

// The compiler's input is a tagged-variant AST rather than a visitor
// hierarchy: compilation is a switch over NodeKind, which keeps the
// instruction-emission logic exhaustive by construction.

// PolicyStatement is one parsed policy-statement block. A statement
// with no terms is a subroutine body callable from other policies.
type PolicyStatement struct {
	Name  string
	Terms []*Term
}

// Term is one term block with its three ordered sections.
type Term struct {
	Name string
	From []Node
	To   []Node
	Then []Node
}

// NodeKind tags the variant held by a Node.
type NodeKind uint8

const (
	// NodeMatch compares a variable against an argument: the from
	// and to sections are sequences of these.
	NodeMatch NodeKind = iota

	// NodeAssign stores an argument into a variable.
	NodeAssign

	// NodeProtocol is the `protocol: "x"` specifier. In a from
	// block it selects the source protocol for redistribution; in a
	// to block it selects the destination.
	NodeProtocol

	// NodeAccept and NodeReject terminate the policy with an
	// outcome.
	NodeAccept
	NodeReject

	// NodeCall invokes a named policy as a subroutine predicate.
	NodeCall
)

// Node is one statement in a term section.
type Node struct {
	Kind NodeKind

	// NodeMatch, NodeAssign
	Var string
	Op  string
	Arg Arg

	// NodeProtocol, NodeCall
	Name string
}

// Arg is a match or assignment argument: either a literal (parsed at
// compile time against the variable's declared type) or a reference
// to a named set.
type Arg struct {
	Literal string
	SetRef  string
}

// SourceProtocol returns the protocol named by a from section, or "".
func (t *Term) SourceProtocol() string {
	for _, n := range t.From {
		if n.Kind == NodeProtocol {
			return n.Name
		}
	}
	return ""
}

// DestProtocol returns the protocol named by a to section, or "".
func (t *Term) DestProtocol() string {
	for _, n := range t.To {
		if n.Kind == NodeProtocol {
			return n.Name
		}
	}
	return ""
}

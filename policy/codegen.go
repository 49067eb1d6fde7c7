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
	"fmt"
	"strings"
)

// emitter accumulates an instruction stream.
type emitter struct {
	b    strings.Builder
	sets map[string]struct{}
}

func newEmitter() *emitter {
	return &emitter{sets: make(map[string]struct{})}
}

func (e *emitter) line(parts ...string) {
	e.b.WriteString(strings.Join(parts, " "))
	e.b.WriteByte('\n')
}

func (e *emitter) String() string { return e.b.String() }

// compiler resolves names against the variable and set maps while
// emitting instructions for one target protocol.
type compiler struct {
	varmap   *VarMap
	sets     *SetMap
	protocol string
}

// emitMatch compiles `var OP arg` followed by ONFALSE_EXIT.
func (c *compiler) emitMatch(e *emitter, n Node) error {
	info, err := c.varmap.Lookup(c.protocol, n.Var)
	if err != nil {
		return err
	}
	arg, argType, err := c.resolveArg(e, info, n.Arg)
	if err != nil {
		return err
	}
	e.line(opLoad, fmt.Sprintf("%d", info.ID))
	e.line(opPush, argType.String(), arg)
	e.line(n.Op)
	e.line(opOnFalseExit)
	return nil
}

// emitAssign compiles `var = arg`.
func (c *compiler) emitAssign(e *emitter, n Node) error {
	info, err := c.varmap.Lookup(c.protocol, n.Var)
	if err != nil {
		return err
	}
	if info.Access != AccessReadWrite {
		return fmt.Errorf("variable %q of %q is read-only", n.Var, c.protocol)
	}
	arg, argType, err := c.resolveArg(e, info, n.Arg)
	if err != nil {
		return err
	}
	e.line(opPush, argType.String(), arg)
	e.line(opStore, fmt.Sprintf("%d", info.ID))
	return nil
}

// resolveArg renders an argument as a PUSH literal, validating it
// against the variable's declared type. A set reference may widen
// the push type (matching a prefix variable against a prefix set).
func (c *compiler) resolveArg(e *emitter, info VarInfo, a Arg) (string, ElemType, error) {
	if a.SetRef != "" {
		set, err := c.sets.Lookup(a.SetRef)
		if err != nil {
			return "", TypeNone, err
		}
		e.sets[a.SetRef] = struct{}{}
		return set.String(), set.Type(), nil
	}
	if _, err := ParseElement(info.Type, a.Literal); err != nil {
		return "", TypeNone, fmt.Errorf("argument for %q: %v", info.Name, err)
	}
	return a.Literal, info.Type, nil
}

func (c *compiler) emitSection(e *emitter, nodes []Node, action bool) error {
	for _, n := range nodes {
		switch n.Kind {
		case NodeMatch:
			if err := c.emitMatch(e, n); err != nil {
				return err
			}
		case NodeAssign:
			if !action {
				return fmt.Errorf("assignment to %q outside a then block", n.Var)
			}
			if err := c.emitAssign(e, n); err != nil {
				return err
			}
		case NodeProtocol:
			// the protocol specifier selects code placement; it
			// compiles to a runtime match only on import
			e.line(opLoad, fmt.Sprintf("%d", VarProtocol))
			e.line(opPush, TypeStr.String(), n.Name)
			e.line("==")
			e.line(opOnFalseExit)
		case NodeAccept:
			e.line(opAccept)
		case NodeReject:
			e.line(opReject)
		case NodeCall:
			e.line(opCall, n.Name)
			if !action {
				e.line(opOnFalseExit)
			}
		}
	}
	return nil
}

// CompileImport compiles the policies bound as protocol's import
// filter into one Code. Terms evaluate from, then to, then then;
// a term that matches without an explicit outcome falls through, and
// a policy with no matching term accepts.
func CompileImport(varmap *VarMap, sets *SetMap, protocol string, policies []*PolicyStatement) (*Code, error) {
	c := &compiler{varmap: varmap, sets: sets, protocol: protocol}
	e := newEmitter()
	subs := make(map[string]string)
	for _, pol := range policies {
		if len(pol.Terms) == 0 {
			// a bare policy body is a subroutine, not inline code
			sub, err := compileSubroutine(c, pol)
			if err != nil {
				return nil, err
			}
			subs[pol.Name] = sub
			continue
		}
		e.line(opPolicyStart, pol.Name)
		for _, term := range pol.Terms {
			e.line(opTermStart, term.Name)
			if err := c.emitSection(e, term.From, false); err != nil {
				return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
			}
			if err := c.emitSection(e, term.To, false); err != nil {
				return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
			}
			if err := c.emitSection(e, term.Then, true); err != nil {
				return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
			}
			e.line(opTermEnd)
		}
		e.line(opPolicyEnd)
	}
	return &Code{
		Target:         Target{Protocol: protocol, Stage: FilterImport},
		Instructions:   e.String(),
		Subroutines:    subs,
		ReferencedSets: e.sets,
	}, nil
}

// compileSubroutine compiles a term-less policy body. Subroutines
// carry an implicit single term so ONFALSE_EXIT semantics apply.
func compileSubroutine(c *compiler, pol *PolicyStatement) (string, error) {
	e := newEmitter()
	e.line(opPolicyStart, pol.Name)
	e.line(opTermStart, pol.Name)
	e.line(opTermEnd)
	e.line(opPolicyEnd)
	return e.String(), nil
}

// TagInfo reports the tag allocation for one export term.
type TagInfo struct {
	Used bool
	Tag  uint32
}

// SourceMatchResult is the output of the source-match generator: one
// code fragment per source protocol referenced, plus the tag
// bookkeeping the export generator and the RIB need.
type SourceMatchResult struct {
	// Codes maps source protocol name to its generated
	// FilterSourceMatch code.
	Codes map[string]*Code

	// Tags has one entry per term of the export policies, in order.
	Tags []TagInfo

	// NextTag is the first tag still unallocated.
	NextTag uint32

	// ProtocolTags accumulates the tags attached to each source
	// protocol's routes; the RIB checks at runtime that a route's
	// tag set stays inside its protocol's universe.
	ProtocolTags map[string]U32Set
}

// GenerateSourceMatch walks the export policies of exportProtocol and
// allocates a distinct tag for each from block that references a
// source protocol. The generated code tests the from block against
// the source protocol's routes and, on match, adds the tag to the
// route's policy-tags set. Dest and action blocks are skipped; the
// real action happens in the export pass, keyed by the tag.
//
// A term exporting a protocol to itself gets its tag marked
// non-redist so the RIB will not hand the route back to its origin.
func GenerateSourceMatch(varmap *VarMap, sets *SetMap, tagstart uint32,
	exportProtocol string, policies []*PolicyStatement) (*SourceMatchResult, error) {

	res := &SourceMatchResult{
		Codes:        make(map[string]*Code),
		NextTag:      tagstart,
		ProtocolTags: make(map[string]U32Set),
	}
	emitters := make(map[string]*emitter)

	for _, pol := range policies {
		started := make(map[string]bool)
		for _, term := range pol.Terms {
			src := term.SourceProtocol()
			if src == "" {
				res.Tags = append(res.Tags, TagInfo{Used: false})
				continue
			}
			if n := countProtocolSpecs(term.From); n > 1 {
				return nil, fmt.Errorf("policy %q term %q: protocol specified twice in from block",
					pol.Name, term.Name)
			}
			tag := res.NextTag
			res.NextTag++
			res.Tags = append(res.Tags, TagInfo{Used: true, Tag: tag})
			if res.ProtocolTags[src] == nil {
				res.ProtocolTags[src] = make(U32Set)
			}
			res.ProtocolTags[src].Insert(tag)

			e := emitters[src]
			if e == nil {
				e = newEmitter()
				emitters[src] = e
			}
			if !started[src] {
				e.line(opPolicyStart, pol.Name)
				started[src] = true
			}
			e.line(opTermStart, term.Name)
			c := &compiler{varmap: varmap, sets: sets, protocol: src}
			for _, n := range term.From {
				if n.Kind == NodeProtocol {
					continue
				}
				if n.Kind != NodeMatch && n.Kind != NodeCall {
					return nil, fmt.Errorf("policy %q term %q: only matches allowed in from block",
						pol.Name, term.Name)
				}
				if err := c.emitSection(e, []Node{n}, false); err != nil {
					return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
				}
			}
			// matched: attach the tag
			e.line(opLoad, fmt.Sprintf("%d", VarPolicyTags))
			e.line(opPush, TypeU32.String(), fmt.Sprintf("%d", tag))
			e.line("+")
			e.line(opStore, fmt.Sprintf("%d", VarPolicyTags))
			e.line(opTermEnd)
		}
		for src, e := range emitters {
			if started[src] {
				e.line(opPolicyEnd)
			}
		}
	}

	for src, e := range emitters {
		code := &Code{
			Target:         Target{Protocol: src, Stage: FilterSourceMatch},
			Instructions:   e.String(),
			ReferencedSets: e.sets,
			Tags:           make(map[uint32]bool),
		}
		for tag := range res.ProtocolTags[src] {
			code.Tags[tag] = src != exportProtocol
		}
		res.Codes[src] = code
	}
	return res, nil
}

func countProtocolSpecs(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if node.Kind == NodeProtocol {
			n++
		}
	}
	return n
}

// GenerateExport compiles the export pass for exportProtocol. Each
// term opens with the tag membership test standing in for its from
// block; the source-match pass has already evaluated the real
// predicates on the source protocol's side.
func GenerateExport(varmap *VarMap, sets *SetMap, exportProtocol string,
	policies []*PolicyStatement, tags []TagInfo) (*Code, error) {

	c := &compiler{varmap: varmap, sets: sets, protocol: exportProtocol}
	e := newEmitter()
	codeTags := make(map[uint32]bool)

	ti := 0
	for _, pol := range policies {
		e.line(opPolicyStart, pol.Name)
		for _, term := range pol.Terms {
			if ti >= len(tags) {
				return nil, fmt.Errorf("tag table shorter than term list")
			}
			info := tags[ti]
			ti++
			e.line(opTermStart, term.Name)
			if info.Used {
				e.line(opLoad, fmt.Sprintf("%d", VarPolicyTags))
				e.line(opPush, TypeU32.String(), fmt.Sprintf("%d", info.Tag))
				e.line("<=")
				e.line(opOnFalseExit)
				codeTags[info.Tag] = term.SourceProtocol() != exportProtocol
			}
			if dst := term.DestProtocol(); dst != "" && dst != exportProtocol {
				return nil, fmt.Errorf("policy %q term %q: to block names %q but the policy is bound to %q",
					pol.Name, term.Name, dst, exportProtocol)
			}
			for _, n := range term.To {
				if n.Kind == NodeProtocol {
					continue
				}
				if err := c.emitSection(e, []Node{n}, false); err != nil {
					return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
				}
			}
			if err := c.emitSection(e, term.Then, true); err != nil {
				return nil, fmt.Errorf("policy %q term %q: %v", pol.Name, term.Name, err)
			}
			e.line(opTermEnd)
		}
		e.line(opPolicyEnd)
	}

	return &Code{
		Target:         Target{Protocol: exportProtocol, Stage: FilterExport},
		Instructions:   e.String(),
		ReferencedSets: e.sets,
		Tags:           codeTags,
	}, nil
}

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
	"fmt"
	"strings"

	"github.com/routecore/routecore/policy"
)

// Parse lexes and parses src into policy statements.
func Parse(src []byte) ([]*policy.PolicyStatement, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parse()
}

type parser struct {
	tokens []Token
	cursor int
}

func (p *parser) next() (Token, bool) {
	if p.cursor >= len(p.tokens) {
		return Token{}, false
	}
	tok := p.tokens[p.cursor]
	p.cursor++
	return tok, true
}

func (p *parser) peek() (Token, bool) {
	if p.cursor >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.cursor], true
}

func (p *parser) expect(text string) (Token, error) {
	tok, ok := p.next()
	if !ok {
		return Token{}, fmt.Errorf("unexpected end of input, expected %q", text)
	}
	if tok.Text != text {
		return Token{}, fmt.Errorf("line %d: expected %q, got %q", tok.Line, text, tok.Text)
	}
	return tok, nil
}

func (p *parser) errf(tok Token, format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{tok.Line}, args...)...)
}

func (p *parser) parse() ([]*policy.PolicyStatement, error) {
	var stmts []*policy.PolicyStatement
	for {
		tok, ok := p.next()
		if !ok {
			return stmts, nil
		}
		if tok.Text != "policy-statement" {
			return nil, p.errf(tok, "expected policy-statement, got %q", tok.Text)
		}
		stmt, err := p.parsePolicy()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *parser) parsePolicy() (*policy.PolicyStatement, error) {
	nameTok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input, expected policy name")
	}
	stmt := &policy.PolicyStatement{Name: nameTok.Text}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	for {
		tok, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("policy %q: unexpected end of input", stmt.Name)
		}
		if tok.Text == "}" {
			return stmt, nil
		}
		if tok.Text != "term" {
			return nil, p.errf(tok, "policy %q: expected term or }, got %q", stmt.Name, tok.Text)
		}
		term, err := p.parseTerm(stmt.Name)
		if err != nil {
			return nil, err
		}
		stmt.Terms = append(stmt.Terms, term)
	}
}

// section order within a term: from, then to, then then. The parser
// rejects out-of-order and duplicate sections.
var sectionOrder = map[string]int{"from": 0, "to": 1, "then": 2}

func (p *parser) parseTerm(policyName string) (*policy.Term, error) {
	nameTok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("policy %q: unexpected end of input, expected term name", policyName)
	}
	term := &policy.Term{Name: nameTok.Text}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}

	lastSection := -1
	for {
		tok, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("term %q: unexpected end of input", term.Name)
		}
		if tok.Text == "}" {
			return term, nil
		}
		order, isSection := sectionOrder[tok.Text]
		if !isSection {
			return nil, p.errf(tok, "term %q: expected from, to, then or }, got %q", term.Name, tok.Text)
		}
		if order <= lastSection {
			return nil, p.errf(tok, "term %q: %s section out of order", term.Name, tok.Text)
		}
		lastSection = order

		nodes, err := p.parseSection(term.Name, tok.Text)
		if err != nil {
			return nil, err
		}
		switch tok.Text {
		case "from":
			term.From = nodes
		case "to":
			term.To = nodes
		case "then":
			term.Then = nodes
		}
	}
}

func (p *parser) parseSection(termName, section string) ([]policy.Node, error) {
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	var nodes []policy.Node
	for {
		tok, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("term %q: unexpected end of input in %s block", termName, section)
		}
		if tok.Text == "}" {
			return nodes, nil
		}
		node, err := p.parseStatement(tok, section)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseStatement(first Token, section string) (policy.Node, error) {
	switch first.Text {
	case "accept":
		if section != "then" {
			return policy.Node{}, p.errf(first, "accept is only valid in a then block")
		}
		return policy.Node{Kind: policy.NodeAccept}, nil
	case "reject":
		if section != "then" {
			return policy.Node{}, p.errf(first, "reject is only valid in a then block")
		}
		return policy.Node{Kind: policy.NodeReject}, nil
	case "call":
		name, ok := p.next()
		if !ok {
			return policy.Node{}, p.errf(first, "call needs a policy name")
		}
		return policy.Node{Kind: policy.NodeCall, Name: name.Text}, nil
	}

	// colon form: `protocol: "x"` or `var: value`, shorthand for ==
	if strings.HasSuffix(first.Text, ":") {
		varName := strings.TrimSuffix(first.Text, ":")
		valTok, ok := p.next()
		if !ok {
			return policy.Node{}, p.errf(first, "%s: needs a value", varName)
		}
		if varName == "protocol" {
			if section == "then" {
				return policy.Node{}, p.errf(first, "protocol specifier is not valid in a then block")
			}
			return policy.Node{Kind: policy.NodeProtocol, Name: valTok.Text}, nil
		}
		arg, err := p.parseArg(valTok)
		if err != nil {
			return policy.Node{}, err
		}
		return policy.Node{Kind: policy.NodeMatch, Var: varName, Op: "==", Arg: arg}, nil
	}

	opTok, ok := p.next()
	if !ok {
		return policy.Node{}, p.errf(first, "statement %q is incomplete", first.Text)
	}
	valTok, ok := p.next()
	if !ok {
		return policy.Node{}, p.errf(opTok, "missing value after %q", opTok.Text)
	}
	arg, err := p.parseArg(valTok)
	if err != nil {
		return policy.Node{}, err
	}

	switch opTok.Text {
	case "=":
		if section != "then" {
			return policy.Node{}, p.errf(opTok, "assignment is only valid in a then block")
		}
		return policy.Node{Kind: policy.NodeAssign, Var: first.Text, Arg: arg}, nil
	case "==", "!=", "<", "<=", ">", ">=":
		if section == "then" {
			return policy.Node{}, p.errf(opTok, "match is not valid in a then block")
		}
		return policy.Node{Kind: policy.NodeMatch, Var: first.Text, Op: opTok.Text, Arg: arg}, nil
	}
	return policy.Node{}, p.errf(opTok, "unknown operator %q", opTok.Text)
}

// parseArg reads a match or assignment argument. The form
// `set NAME` references a named set.
func (p *parser) parseArg(tok Token) (policy.Arg, error) {
	if tok.Text == "set" && !tok.Quoted {
		name, ok := p.next()
		if !ok {
			return policy.Arg{}, p.errf(tok, "set reference needs a name")
		}
		return policy.Arg{SetRef: name.Text}, nil
	}
	return policy.Arg{Literal: tok.Text}, nil
}

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
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// Instruction opcodes. The stream is ASCII, one operation per line;
// there are no backward branches, so every program terminates.
const (
	opPush        = "PUSH"
	opLoad        = "LOAD"
	opStore       = "STORE"
	opOnFalseExit = "ONFALSE_EXIT"
	opAccept      = "ACCEPT"
	opReject      = "REJECT"
	opNextTerm    = "NEXT_TERM"
	opNextPolicy  = "NEXT_POLICY"
	opTermStart   = "TERM_START"
	opTermEnd     = "TERM_END"
	opPolicyStart = "POLICY_START"
	opPolicyEnd   = "POLICY_END"
	opCall        = "CALL"
)

type instr struct {
	op   string
	elem Element // PUSH
	id   VarID   // LOAD, STORE
	name string  // TERM_START, POLICY_START, CALL
}

type program struct {
	instrs []instr
}

// parseProgram turns an instruction stream into its executable form.
func parseProgram(stream string) (*program, error) {
	p := new(program)
	for lineno, line := range strings.Split(stream, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		op, rest, _ := strings.Cut(line, " ")
		var in instr
		in.op = op
		switch op {
		case opPush:
			typeName, literal, ok := strings.Cut(rest, " ")
			if !ok && typeName == "" {
				return nil, fmt.Errorf("line %d: PUSH needs a type", lineno+1)
			}
			t, found := ElemTypeByName(typeName)
			if !found {
				return nil, fmt.Errorf("line %d: unknown element type %q", lineno+1, typeName)
			}
			e, err := ParseElement(t, literal)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineno+1, err)
			}
			in.elem = e
		case opLoad, opStore:
			id, err := strconv.Atoi(rest)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad variable id %q", lineno+1, rest)
			}
			in.id = VarID(id)
		case opTermStart, opPolicyStart, opCall:
			if rest == "" {
				return nil, fmt.Errorf("line %d: %s needs a name", lineno+1, op)
			}
			in.name = rest
		case opOnFalseExit, opAccept, opReject, opNextTerm, opNextPolicy,
			opTermEnd, opPolicyEnd:
		case "==", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/", "%":
		default:
			return nil, fmt.Errorf("line %d: unknown instruction %q", lineno+1, op)
		}
		p.instrs = append(p.instrs, in)
	}
	return p, nil
}

// maxCallDepth bounds CALL nesting; the instruction set has no
// backward branches, so this is the only way a program could fail to
// terminate.
const maxCallDepth = 16

// VM evaluates compiled filter programs against routes.
type VM struct {
	logger *zap.Logger
}

// NewVM returns a ready VM.
func NewVM() *VM {
	return &VM{logger: routecore.Log().Named("policy")}
}

// Run executes code against the route and reports whether the route
// was accepted. A policy with no matching term accepts by default. A
// runtime type mismatch fails only the term evaluating it; the route
// passes through unmodified by that term.
func (vm *VM) Run(code *Code, route VarRW) (bool, error) {
	prog := code.program
	if prog == nil {
		var err error
		prog, err = parseProgram(code.Instructions)
		if err != nil {
			return false, err
		}
		code.program = prog
	}
	return vm.exec(prog, code, route, 0)
}

func (vm *VM) exec(prog *program, code *Code, route VarRW, depth int) (bool, error) {
	var stack []Element
	push := func(e Element) { stack = append(stack, e) }
	pop := func() (Element, bool) {
		if len(stack) == 0 {
			return Element{}, false
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e, true
	}

	instrs := prog.instrs
	i := 0
	// failTerm abandons the current term as a non-match: control
	// resumes after its TERM_END and the stack resets.
	failTerm := func() {
		for ; i < len(instrs); i++ {
			if instrs[i].op == opTermEnd {
				break
			}
		}
		stack = stack[:0]
	}

	for ; i < len(instrs); i++ {
		in := instrs[i]
		switch in.op {
		case opPush:
			push(in.elem)

		case opLoad:
			e := route.ReadVar(in.id)
			if e.IsNone() {
				vm.logger.Debug("route does not carry variable",
					zap.Int("var", int(in.id)),
					zap.String("target", code.Target.String()))
				failTerm()
				continue
			}
			push(e)

		case opStore:
			e, ok := pop()
			if !ok {
				return false, fmt.Errorf("stack underflow at STORE %d", in.id)
			}
			if err := route.WriteVar(in.id, e); err != nil {
				vm.logger.Debug("variable write failed",
					zap.Int("var", int(in.id)), zap.Error(err))
				failTerm()
			}

		case "==", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/", "%":
			b, okB := pop()
			a, okA := pop()
			if !okA || !okB {
				return false, fmt.Errorf("stack underflow at %s", in.op)
			}
			r, err := EvalBinary(in.op, a, b)
			if err != nil {
				vm.logger.Debug("operator dispatch failed", zap.Error(err))
				failTerm()
				continue
			}
			push(r)

		case opOnFalseExit:
			e, ok := pop()
			if !ok {
				return false, fmt.Errorf("stack underflow at ONFALSE_EXIT")
			}
			if e.Type() != TypeBool {
				vm.logger.Debug("ONFALSE_EXIT on non-bool",
					zap.String("type", e.Type().String()))
				failTerm()
				continue
			}
			if !e.Bool() {
				failTerm()
			}

		case opAccept:
			return true, nil

		case opReject:
			return false, nil

		case opNextTerm:
			failTerm()

		case opNextPolicy:
			for ; i < len(instrs); i++ {
				if instrs[i].op == opPolicyEnd {
					break
				}
			}
			stack = stack[:0]

		case opCall:
			if depth >= maxCallDepth {
				return false, fmt.Errorf("CALL depth limit reached at %q", in.name)
			}
			sub, ok := code.Subroutines[in.name]
			if !ok {
				return false, fmt.Errorf("CALL of unknown policy %q", in.name)
			}
			subProg, err := parseProgram(sub)
			if err != nil {
				return false, fmt.Errorf("subroutine %q: %v", in.name, err)
			}
			outcome, err := vm.exec(subProg, code, route, depth+1)
			if err != nil {
				return false, err
			}
			push(NewBool(outcome))

		case opTermStart, opTermEnd, opPolicyStart, opPolicyEnd:
			stack = stack[:0]
		}
	}
	// fell off the end without an explicit outcome
	return true, nil
}

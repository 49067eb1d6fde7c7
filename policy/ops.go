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

import "fmt"

// Binary operator dispatch over element types. Operators take the
// left operand a (pushed first) and right operand b. A TypeMismatch
// error makes the evaluating term fail as a non-match; it never
// aborts the whole policy.

// TypeMismatch is returned when an operator has no dispatch for its
// operand types.
type TypeMismatch struct {
	Op   string
	A, B ElemType
}

func (e TypeMismatch) Error() string {
	return fmt.Sprintf("no dispatch for %v %s %v", e.A, e.Op, e.B)
}

func mismatch(op string, a, b Element) error {
	return TypeMismatch{Op: op, A: a.Type(), B: b.Type()}
}

// EvalBinary applies op to (a, b).
func EvalBinary(op string, a, b Element) (Element, error) {
	switch op {
	case "==":
		eq, err := equal(a, b)
		if err != nil {
			return Element{}, err
		}
		return NewBool(eq), nil
	case "!=":
		eq, err := equal(a, b)
		if err != nil {
			return Element{}, err
		}
		return NewBool(!eq), nil
	case "<", "<=", ">", ">=":
		return order(op, a, b)
	case "+", "-", "*", "/", "%":
		return arith(op, a, b)
	}
	return Element{}, fmt.Errorf("unknown operator %q", op)
}

func equal(a, b Element) (bool, error) {
	if a.Type() != b.Type() {
		return false, mismatch("==", a, b)
	}
	switch a.Type() {
	case TypeBool:
		return a.Bool() == b.Bool(), nil
	case TypeU32:
		return a.U32() == b.U32(), nil
	case TypeI32:
		return a.I32() == b.I32(), nil
	case TypeU64:
		return a.U64() == b.U64(), nil
	case TypeIPv4, TypeIPv6:
		return a.Addr() == b.Addr(), nil
	case TypeIPv4Net, TypeIPv6Net:
		return a.Net() == b.Net(), nil
	case TypeMac:
		return a.Mac().String() == b.Mac().String(), nil
	case TypeStr:
		return a.Str() == b.Str(), nil
	case TypeU32Set:
		return a.U32Set().Equal(b.U32Set()), nil
	case TypeIPv4NetSet, TypeIPv6NetSet:
		sa, sb := a.NetSet(), b.NetSet()
		return len(sa) == len(sb) && sa.SubsetOf(sb), nil
	case TypeASPath:
		return a.ASPath().Equal(b.ASPath()), nil
	}
	return false, mismatch("==", a, b)
}

// order dispatches the relational operators. Beyond plain numeric
// ordering it carries the set algebra the compilers emit:
//
//	u32    <= u32set      membership
//	u32set <= u32set      subset
//	net    <= netset      member-or-subnet of a set entry
//	net    <= net         subnet-of
func order(op string, a, b Element) (Element, error) {
	// set forms first; only <= has set semantics
	if op == "<=" {
		switch {
		case a.Type() == TypeU32 && b.Type() == TypeU32Set:
			return NewBool(b.U32Set().Contains(a.U32())), nil
		case a.Type() == TypeU32Set && b.Type() == TypeU32:
			// the export prologue loads the tag set first and
			// pushes the tag second; membership reads either way
			return NewBool(a.U32Set().Contains(b.U32())), nil
		case a.Type() == TypeU32Set && b.Type() == TypeU32Set:
			return NewBool(a.U32Set().SubsetOf(b.U32Set())), nil
		case (a.Type() == TypeIPv4Net && b.Type() == TypeIPv4NetSet) ||
			(a.Type() == TypeIPv6Net && b.Type() == TypeIPv6NetSet):
			return NewBool(b.NetSet().ContainsSubnetOf(a.Net())), nil
		case a.Type() == TypeIPv4Net && b.Type() == TypeIPv4Net,
			a.Type() == TypeIPv6Net && b.Type() == TypeIPv6Net:
			bn, an := b.Net(), a.Net()
			return NewBool(bn.Bits() <= an.Bits() && bn.Contains(an.Addr())), nil
		}
	}
	ka, okA := numKey(a)
	kb, okB := numKey(b)
	if !okA || !okB || a.Type() != b.Type() {
		return Element{}, mismatch(op, a, b)
	}
	var r bool
	switch op {
	case "<":
		r = ka < kb
	case "<=":
		r = ka <= kb
	case ">":
		r = ka > kb
	case ">=":
		r = ka >= kb
	}
	return NewBool(r), nil
}

func numKey(e Element) (int64, bool) {
	switch e.Type() {
	case TypeU32:
		return int64(e.U32()), true
	case TypeI32:
		return int64(e.I32()), true
	case TypeU64:
		// ordering on u64 saturates at the int64 boundary
		if e.U64() > 1<<63-1 {
			return 1<<63 - 1, true
		}
		return int64(e.U64()), true
	}
	return 0, false
}

// arith dispatches the arithmetic operators. Sets grow with +:
// u32set + u32 inserts, u32set + u32set unions. This is how the
// source-match code attaches redistribution tags.
func arith(op string, a, b Element) (Element, error) {
	if a.Type() == TypeU32Set && op == "+" {
		out := a.U32Set().Clone()
		switch b.Type() {
		case TypeU32:
			out.Insert(b.U32())
			return NewU32Set(out), nil
		case TypeU32Set:
			for v := range b.U32Set() {
				out.Insert(v)
			}
			return NewU32Set(out), nil
		}
		return Element{}, mismatch(op, a, b)
	}
	if a.Type() == TypeASPath && b.Type() == TypeU32 && op == "+" {
		return NewASPath(a.ASPath().Prepend(b.U32())), nil
	}
	if a.Type() != b.Type() {
		return Element{}, mismatch(op, a, b)
	}
	switch a.Type() {
	case TypeU32:
		v, err := u64Arith(op, uint64(a.U32()), uint64(b.U32()))
		if err != nil {
			return Element{}, err
		}
		return NewU32(uint32(v)), nil
	case TypeU64:
		v, err := u64Arith(op, a.U64(), b.U64())
		if err != nil {
			return Element{}, err
		}
		return NewU64(v), nil
	case TypeI32:
		x, y := int64(a.I32()), int64(b.I32())
		var v int64
		switch op {
		case "+":
			v = x + y
		case "-":
			v = x - y
		case "*":
			v = x * y
		case "/":
			if y == 0 {
				return Element{}, fmt.Errorf("division by zero")
			}
			v = x / y
		case "%":
			if y == 0 {
				return Element{}, fmt.Errorf("division by zero")
			}
			v = x % y
		}
		return NewI32(int32(v)), nil
	}
	return Element{}, mismatch(op, a, b)
}

func u64Arith(op string, x, y uint64) (uint64, error) {
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x % y, nil
	}
	return 0, fmt.Errorf("unknown arithmetic operator %q", op)
}

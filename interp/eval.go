// Copyright 2024-2025 The evl Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/comp"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
	"github.com/evl-lang/evl/value"
)

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func putLeUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// pushCompInteger pushes a compile-time integer value.
func (interp *Interpreter) pushCompInteger(v comp.Integer) value.Slot {
	slot := interp.stack.Push(interp.typeCompInteger, 8, 8)
	binary.LittleEndian.PutUint64(interp.stack.Payload(slot, 8), v.Rep())
	return slot
}

func (interp *Interpreter) readCompInteger(slot value.Slot) comp.Integer {
	return comp.IntegerFromRep(binary.LittleEndian.Uint64(interp.stack.Access(slot, 8, interp.globals)))
}

func (interp *Interpreter) pushBool(v bool) value.Slot {
	slot := interp.stack.Push(interp.typeBool, 1, 1)
	if v {
		interp.stack.Payload(slot, 1)[0] = 1
	}
	return slot
}

func (interp *Interpreter) readBool(slot value.Slot) bool {
	return interp.stack.Access(slot, 1, interp.globals)[0] != 0
}

// pushTypeValue pushes a value of type Type holding the given type id.
func (interp *Interpreter) pushTypeValue(id types.ID) value.Slot {
	slot := interp.stack.Push(interp.typeType, 4, 4)
	putLeUint32(interp.stack.Payload(slot, 4), uint32(id))
	return slot
}

func (interp *Interpreter) readTypeValue(slot value.Slot) types.ID {
	return types.ID(leUint32(interp.stack.Access(slot, 4, interp.globals)))
}

// evaluateTypeExpr typechecks and evaluates a type expression, returning
// the denoted type id. The temporary value is popped.
func (interp *Interpreter) evaluateTypeExpr(node ast.Node) types.ID {
	exprType := interp.typecheckExpr(node)
	if interp.types.Tag(exprType) != types.TagType {
		interp.errs.Errorf(node.SourceID(), "expected a type expression")
	}

	slot := interp.evaluateExpr(node)
	result := interp.readTypeValue(slot)
	interp.stack.Pop()
	return result
}

// memberGlobal returns the global backing a member, evaluating and
// storing its value expression on first access.
func (interp *Interpreter) memberGlobal(surrounding types.ID, member types.MemberInfo) value.GlobalID {
	key := memberKey{scope: surrounding.Strip(), rank: member.Rank}
	if gid, ok := interp.memberValues[key]; ok {
		return gid
	}

	if fresh, ok := interp.types.MemberByRank(surrounding, member.Rank); ok {
		member = fresh
	}

	if member.ValueNode == 0 {
		interp.errs.Errorf(member.Source, "definition `%s` has no value", interp.identifiers.Bytes(member.Name))
	}

	valueExpr := interp.asts.Node(ast.NodeID(member.ValueNode))
	slot := interp.evaluateExpr(valueExpr)

	metrics := interp.types.Metrics(member.Type)
	payload := interp.convertForStorage(valueExpr.SourceID(), slot, member.Type, metrics)

	gid := interp.globals.Make(member.Type.WithAssignability(member.IsMut), metrics.Size, metrics.Align, payload)
	interp.stack.Pop()

	interp.memberValues[key] = gid
	if member.IsGlobal {
		interp.types.SetMemberGlobalValue(surrounding, member.Rank, uint32(gid))
	}
	return gid
}

// convertForStorage converts the value at slot into the storage
// representation of the target type, honoring the implicit conversions.
// The returned buffer does not alias the stack.
func (interp *Interpreter) convertForStorage(src source.ID, slot value.Slot, target types.ID, metrics types.Metrics) []byte {
	out := make([]byte, metrics.Size)
	from := interp.stack.Type(slot)

	fromTag := interp.types.Tag(from)
	targetTag := interp.types.Tag(target)

	switch {
	case fromTag == types.TagCompInteger && targetTag == types.TagInteger:
		it := interp.types.AsInteger(target)
		v := interp.readCompInteger(slot)

		var bits uint64
		if it.Signed {
			s, ok := v.AsS64(uint8(it.Bits))
			if !ok {
				interp.errs.Errorf(src, "compile-time integer %s does not fit in %d signed bits", v, it.Bits)
			}
			bits = uint64(s)
		} else {
			u, ok := v.AsU64(uint8(it.Bits))
			if !ok {
				interp.errs.Errorf(src, "compile-time integer %s does not fit in %d unsigned bits", v, it.Bits)
			}
			bits = u
		}

		for i := range out {
			out[i] = byte(bits >> (8 * i))
		}

	case fromTag == types.TagCompFloat && targetTag == types.TagFloat:
		panic("interp: compile-time float to concrete float storage is not implemented")

	case fromTag == targetTag || interp.types.DealiasTransparent(from).Strip() == interp.types.DealiasTransparent(target).Strip():
		fromMetrics := interp.types.Metrics(from)
		copy(out, interp.stack.Access(slot, uint32(fromMetrics.Size), interp.globals))

	default:
		interp.errs.Errorf(src, "cannot convert value for storage")
	}

	return out
}

// evaluateExpr evaluates a typechecked expression onto the value stack and
// returns its slot.
func (interp *Interpreter) evaluateExpr(node ast.Node) value.Slot {
	if node.Type() == types.Invalid || node.Type() == types.Checking {
		panic(fmt.Sprintf("interp: evaluation of untypechecked %s node", node.Tag()))
	}

	switch node.Tag() {
	case ast.TagLitInteger:
		return interp.pushCompInteger(comp.IntegerFromU64(node.IntegerValue()))

	case ast.TagLitChar:
		return interp.pushCompInteger(comp.IntegerFromU64(uint64(node.CharValue())))

	case ast.TagLitFloat:
		slot := interp.stack.Push(interp.typeCompFloat, 8, 8)
		binary.LittleEndian.PutUint64(interp.stack.Payload(slot, 8), math.Float64bits(node.FloatValue()))
		return slot

	case ast.TagLitString:
		slot := interp.stack.Push(interp.typeCompString, 4, 4)
		putLeUint32(interp.stack.Payload(slot, 4), uint32(node.StringID()))
		return slot

	case ast.TagBuiltin:
		return interp.evaluateBuiltinValue(node)

	case ast.TagIdentifier:
		return interp.evaluateIdentifier(node)

	case ast.TagIf:
		info := ast.IfOf(node)

		condition := interp.evaluateExpr(info.Condition)
		conditionValue := interp.readBool(condition)
		interp.stack.Pop()

		if conditionValue {
			return interp.evaluateExpr(info.Consequent)
		}
		if !info.Alternative.Nil() {
			return interp.evaluateExpr(info.Alternative)
		}
		return interp.stack.Push(interp.typeVoid, 0, 1)

	case ast.TagBlock:
		return interp.evaluateBlock(node)

	case ast.TagCall:
		return interp.evaluateCall(node)

	case ast.TagOpMember:
		return interp.evaluateMember(node)

	case ast.TagUOpEval:
		return interp.evaluateExpr(node.FirstChild())

	case ast.TagUOpDistinct:
		inner := interp.evaluateTypeExpr(node.FirstChild())
		return interp.pushTypeValue(interp.types.NewAlias(inner, true, node.SourceID(), 0))

	case ast.TagUOpTypeSlice, ast.TagUOpTypeTailArray:
		inner := interp.evaluateTypeExpr(node.FirstChild())
		mut := node.Has(ast.FlagTypeIsMut) || node.Tag() == ast.TagUOpTypeTailArray
		return interp.pushTypeValue(interp.types.NewSlice(types.Reference{
			Referenced: inner.WithAssignability(mut),
		}))

	case ast.TagUOpTypePtr, ast.TagUOpTypeOptPtr, ast.TagUOpTypeMultiPtr, ast.TagUOpTypeOptMultiPtr:
		inner := interp.evaluateTypeExpr(node.FirstChild())
		return interp.pushTypeValue(interp.types.NewPtr(types.Reference{
			Referenced: inner.WithAssignability(node.Has(ast.FlagTypeIsMut)),
			IsMulti:    node.Tag() == ast.TagUOpTypeMultiPtr || node.Tag() == ast.TagUOpTypeOptMultiPtr,
			IsOpt:      node.Tag() == ast.TagUOpTypeOptPtr || node.Tag() == ast.TagUOpTypeOptMultiPtr,
		}))

	case ast.TagUOpTypeVar:
		inner := interp.evaluateTypeExpr(node.FirstChild())
		return interp.pushTypeValue(interp.types.NewVariadic(types.Reference{
			Referenced: inner.WithAssignability(false),
		}))

	case ast.TagOpTypeArray:
		count := node.FirstChild()
		countSlot := interp.evaluateExpr(count)
		countValue, ok := interp.readCompInteger(countSlot).AsU64(64)
		if !ok {
			interp.errs.Errorf(count.SourceID(), "array count must be non-negative")
		}
		interp.stack.Pop()

		element := interp.evaluateTypeExpr(count.NextSibling())
		return interp.pushTypeValue(interp.types.NewArray(types.Array{
			Element: element.WithAssignability(true),
			Count:   countValue,
		}))

	case ast.TagUOpNegate:
		slot := interp.evaluateExpr(node.FirstChild())
		v := comp.Neg(interp.readCompInteger(slot))
		interp.stack.Pop()
		return interp.pushCompInteger(v)

	case ast.TagUOpPos:
		return interp.evaluateExpr(node.FirstChild())

	case ast.TagUOpLogNot:
		slot := interp.evaluateExpr(node.FirstChild())
		v := interp.readBool(slot)
		interp.stack.Pop()
		return interp.pushBool(!v)

	case ast.TagOpAdd, ast.TagOpSub, ast.TagOpMul, ast.TagOpDiv, ast.TagOpMod,
		ast.TagOpBitAnd, ast.TagOpBitOr, ast.TagOpBitXor,
		ast.TagOpShiftL, ast.TagOpShiftR:
		return interp.evaluateCompArith(node)

	case ast.TagOpCmpLT, ast.TagOpCmpGT, ast.TagOpCmpLE,
		ast.TagOpCmpGE, ast.TagOpCmpNE, ast.TagOpCmpEQ:
		return interp.evaluateCompCompare(node)

	case ast.TagOpLogAnd:
		lhs := interp.evaluateExpr(node.FirstChild())
		lhsValue := interp.readBool(lhs)
		interp.stack.Pop()
		if !lhsValue {
			return interp.pushBool(false)
		}
		rhs := interp.evaluateExpr(node.FirstChild().NextSibling())
		rhsValue := interp.readBool(rhs)
		interp.stack.Pop()
		return interp.pushBool(rhsValue)

	case ast.TagOpLogOr:
		lhs := interp.evaluateExpr(node.FirstChild())
		lhsValue := interp.readBool(lhs)
		interp.stack.Pop()
		if lhsValue {
			return interp.pushBool(true)
		}
		rhs := interp.evaluateExpr(node.FirstChild().NextSibling())
		rhsValue := interp.readBool(rhs)
		interp.stack.Pop()
		return interp.pushBool(rhsValue)

	default:
		panic(fmt.Sprintf("interp: evaluation of %s is not yet implemented", node.Tag()))
	}
}

// evaluateIdentifier resolves the member, materializes its global on first
// access, and pushes either a reference (assignable) or a copy.
func (interp *Interpreter) evaluateIdentifier(node ast.Node) value.Slot {
	member := interp.lookupDefinition(node.IdentifierID(), node.SourceID())
	interp.delayedTypecheckMember(&member)

	gid := interp.memberGlobal(member.Surrounding, member)
	typ, data := interp.globals.Get(gid)

	if node.Type().Assignable() {
		slot := interp.stack.Push(node.Type(), 8, 8)
		interp.stack.MarkRef(slot, gid)
		return slot
	}

	size := uint32(len(data))
	slot := interp.stack.Push(typ.WithAssignability(false), size, 8)
	copy(interp.stack.Payload(slot, size), data)
	return slot
}

// evaluateBlock evaluates a block's children in order. Definitions store
// their values; the last child's value is the block's result.
func (interp *Interpreter) evaluateBlock(node ast.Node) value.Slot {
	scopeType := node.ScopeType()
	interp.pushContext(scopeType, false)
	defer interp.popContext(false)

	var result value.Slot
	pushedResult := false

	rank := uint16(0)
	it := ast.DirectChildren(node)
	for child, ok := it.Next(); ok; child, ok = it.Next() {
		last := !child.HasNextSibling()

		if child.Tag() == ast.TagDefinition {
			member, found := interp.types.MemberByRank(scopeType, rank)
			if !found {
				panic("interp: block member vanished between typecheck and evaluation")
			}
			rank++

			gid := interp.memberGlobal(scopeType, member)

			if last {
				typ, data := interp.globals.Get(gid)
				size := uint32(len(data))
				result = interp.stack.Push(typ.WithAssignability(false), size, 8)
				copy(interp.stack.Payload(result, size), data)
				pushedResult = true
			}
		} else {
			slot := interp.evaluateExpr(child)
			if last {
				result = slot
				pushedResult = true
			} else {
				interp.stack.Pop()
			}
		}
	}

	if !pushedResult {
		result = interp.stack.Push(interp.typeVoid, 0, 1)
	}
	return result
}

// evaluateMember evaluates `.` member reads. The type arm resolves a
// constant in the named type's scope.
func (interp *Interpreter) evaluateMember(node ast.Node) value.Slot {
	lhs := node.FirstChild()
	lhsType := interp.typecheckExpr(lhs)

	if interp.types.Tag(lhsType) != types.TagType {
		panic("interp: evaluation of member access on composite values is not yet implemented")
	}

	scope := interp.evaluateTypeExpr(lhs)

	rhs := lhs.NextSibling()
	name := rhs.IdentifierID()

	member, ok := interp.types.MemberByName(scope, name)
	if !ok {
		interp.errs.Errorf(node.SourceID(), "left-hand-side of `.` has no member \"%s\"", interp.identifiers.Bytes(name))
	}
	interp.delayedTypecheckMember(&member)

	gid := interp.memberGlobal(scope, member)
	typ, data := interp.globals.Get(gid)

	size := uint32(len(data))
	slot := interp.stack.Push(typ.WithAssignability(false), size, 8)
	copy(interp.stack.Payload(slot, size), data)
	return slot
}

// evaluateCompArith evaluates the binary arithmetic, bitwise and shift
// operators over compile-time integers. Concrete-width arithmetic is not
// implemented.
func (interp *Interpreter) evaluateCompArith(node ast.Node) value.Slot {
	lhsNode := node.FirstChild()
	rhsNode := lhsNode.NextSibling()

	if interp.types.Tag(lhsNode.Type()) != types.TagCompInteger ||
		interp.types.Tag(rhsNode.Type()) != types.TagCompInteger {
		panic(fmt.Sprintf("interp: evaluation of %s over non-compile-time operands is not yet implemented", node.Tag()))
	}

	lhsSlot := interp.evaluateExpr(lhsNode)
	lhs := interp.readCompInteger(lhsSlot)
	interp.stack.Pop()

	rhsSlot := interp.evaluateExpr(rhsNode)
	rhs := interp.readCompInteger(rhsSlot)
	interp.stack.Pop()

	var result comp.Integer
	ok := true
	switch node.Tag() {
	case ast.TagOpAdd:
		result = comp.Add(lhs, rhs)
	case ast.TagOpSub:
		result = comp.Sub(lhs, rhs)
	case ast.TagOpMul:
		result = comp.Mul(lhs, rhs)
	case ast.TagOpDiv:
		result, ok = comp.Div(lhs, rhs)
		if !ok {
			interp.errs.Errorf(node.SourceID(), "division by zero in compile-time expression")
		}
	case ast.TagOpMod:
		result, ok = comp.Mod(lhs, rhs)
		if !ok {
			interp.errs.Errorf(node.SourceID(), "modulus by zero in compile-time expression")
		}
	case ast.TagOpBitAnd:
		result, ok = comp.And(lhs, rhs)
	case ast.TagOpBitOr:
		result, ok = comp.Or(lhs, rhs)
	case ast.TagOpBitXor:
		result, ok = comp.Xor(lhs, rhs)
	case ast.TagOpShiftL:
		result, ok = comp.Shl(lhs, rhs)
	case ast.TagOpShiftR:
		result, ok = comp.Shr(lhs, rhs)
	default:
		panic(fmt.Sprintf("interp: unexpected arithmetic tag %s", node.Tag()))
	}
	if !ok {
		interp.errs.Errorf(node.SourceID(), "operands of `%s` must be non-negative", node.Tag())
	}

	return interp.pushCompInteger(result)
}

func (interp *Interpreter) evaluateCompCompare(node ast.Node) value.Slot {
	lhsNode := node.FirstChild()
	rhsNode := lhsNode.NextSibling()

	if interp.types.Tag(lhsNode.Type()) != types.TagCompInteger ||
		interp.types.Tag(rhsNode.Type()) != types.TagCompInteger {
		panic(fmt.Sprintf("interp: evaluation of %s over non-compile-time operands is not yet implemented", node.Tag()))
	}

	lhsSlot := interp.evaluateExpr(lhsNode)
	lhs := interp.readCompInteger(lhsSlot)
	interp.stack.Pop()

	rhsSlot := interp.evaluateExpr(rhsNode)
	rhs := interp.readCompInteger(rhsSlot)
	interp.stack.Pop()

	var result bool
	switch node.Tag() {
	case ast.TagOpCmpLT:
		result = comp.Less(lhs, rhs)
	case ast.TagOpCmpGT:
		result = comp.Less(rhs, lhs)
	case ast.TagOpCmpLE:
		result = !comp.Less(rhs, lhs)
	case ast.TagOpCmpGE:
		result = !comp.Less(lhs, rhs)
	case ast.TagOpCmpNE:
		result = !comp.Equal(lhs, rhs)
	case ast.TagOpCmpEQ:
		result = comp.Equal(lhs, rhs)
	}

	return interp.pushBool(result)
}

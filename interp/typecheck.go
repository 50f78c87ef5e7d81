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
	"fmt"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/internal/ext/mathx"
	"github.com/evl-lang/evl/types"
)

// typecheckExpr typechecks one expression, caching the result in the
// node's type slot. The in-progress sentinel makes re-entry a cyclic type
// dependency.
func (interp *Interpreter) typecheckExpr(node ast.Node) types.ID {
	switch node.Type() {
	case types.Checking:
		interp.errs.Errorf(node.SourceID(), "cyclic type dependency detected")
	case types.Invalid:
		// Not checked yet.
	default:
		return node.Type()
	}

	node.SetType(types.Checking)
	result := interp.typecheckExprImpl(node)
	if result == types.Invalid || result == types.Checking || result == types.NoType {
		panic(fmt.Sprintf("interp: typecheck of %s produced a sentinel type", node.Tag()))
	}
	node.SetType(result)
	return result
}

// delayedTypecheckMember completes a pending member discovered through an
// identifier or member access: it re-enters the member's recorded lexical
// context, typechecks the type and value expressions, and stores the
// resolved type into the surrounding composite.
func (interp *Interpreter) delayedTypecheckMember(member *types.MemberInfo) types.ID {
	if !member.HasPendingType {
		return member.Type
	}

	interp.applyResumption(member.Resumption)
	defer interp.releaseResumption()

	var definedType types.ID

	if member.TypeNode != 0 {
		typeExpr := interp.asts.Node(ast.NodeID(member.TypeNode))

		typeTypeID := interp.typecheckExpr(typeExpr)
		if interp.types.Tag(typeTypeID) != types.TagType {
			interp.errs.Errorf(typeExpr.SourceID(), "explicit type annotation of definition must be of type `Type`")
		}

		definedType = interp.evaluateTypeExpr(typeExpr)

		interp.types.SetIncompleteMemberType(member.Surrounding, member.Rank, definedType)

		if member.ValueNode != 0 {
			valueExpr := interp.asts.Node(ast.NodeID(member.ValueNode))
			valueTypeID := interp.typecheckExpr(valueExpr)
			if !interp.types.CanImplicitlyConvert(valueTypeID, definedType) {
				interp.errs.Errorf(valueExpr.SourceID(), "definition value cannot be implicitly converted to type of explicit type annotation")
			}
		}
	} else {
		if member.ValueNode == 0 {
			interp.errs.Errorf(member.Source, "definition needs a type annotation or a value")
		}
		valueExpr := interp.asts.Node(ast.NodeID(member.ValueNode))
		definedType = interp.typecheckExpr(valueExpr).Strip()
		interp.types.SetIncompleteMemberType(member.Surrounding, member.Rank, definedType)
	}

	member.HasPendingType = false
	member.Type = definedType
	return definedType
}

func (interp *Interpreter) typecheckWhere(node ast.Node) {
	panic(fmt.Sprintf("interp: typechecking of %s is not yet implemented", node.Tag()))
}

func (interp *Interpreter) typecheckExprImpl(node ast.Node) types.ID {
	switch node.Tag() {
	case ast.TagCompositeInitializer,
		ast.TagArrayInitializer,
		ast.TagWildcard,
		ast.TagExpects,
		ast.TagEnsures,
		ast.TagDefinition,
		ast.TagForEach,
		ast.TagSwitch,
		ast.TagFunc,
		ast.TagTrait,
		ast.TagImpl,
		ast.TagCatch,
		ast.TagReturn,
		ast.TagLeave,
		ast.TagYield,
		ast.TagUOpTry,
		ast.TagUOpDefer,
		ast.TagUOpImpliedMember:
		panic(fmt.Sprintf("interp: typechecking of %s is not yet implemented", node.Tag()))

	case ast.TagBuiltin:
		builtin := ast.Builtin(node.BuiltinOrdinal())
		if builtin == ast.BuiltinAddTypeMember || builtin == ast.BuiltinOffsetof {
			panic(fmt.Sprintf("interp: typechecking of builtin %s is not yet supported", builtin))
		}
		return interp.builtinTypes[builtin]

	case ast.TagBlock:
		return interp.typecheckBlock(node)

	case ast.TagIf:
		info := ast.IfOf(node)

		conditionType := interp.typecheckExpr(info.Condition)
		if interp.types.Tag(conditionType) != types.TagBoolean {
			interp.errs.Errorf(info.Condition.SourceID(), "condition of `if` expression must be of boolean type")
		}

		if !info.Where.Nil() {
			interp.typecheckWhere(info.Where)
		}

		consequentType := interp.typecheckExpr(info.Consequent)

		if info.Alternative.Nil() {
			if interp.types.Tag(consequentType) != types.TagVoid {
				interp.errs.Errorf(node.SourceID(), "consequent of `if` must be of void type if no alternative is provided")
			}
			return consequentType
		}

		alternativeType := interp.typecheckExpr(info.Alternative)
		commonType := interp.types.CommonType(consequentType, alternativeType)
		if commonType.Nil() {
			interp.errs.Errorf(node.SourceID(), "consequent and alternative of `if` have incompatible types")
		}
		return commonType

	case ast.TagFor:
		info := ast.ForOf(node)

		conditionType := interp.typecheckExpr(info.Condition)
		if interp.types.Tag(conditionType) != types.TagBoolean {
			interp.errs.Errorf(info.Condition.SourceID(), "condition of `for` must be of boolean type")
		}

		if !info.Step.Nil() {
			stepType := interp.typecheckExpr(info.Step)
			if interp.types.Tag(stepType) != types.TagVoid {
				interp.errs.Errorf(info.Step.SourceID(), "step of `for` must be of void type")
			}
		}

		if !info.Where.Nil() {
			interp.typecheckWhere(info.Where)
		}

		bodyType := interp.typecheckExpr(info.Body)

		if info.Finally.Nil() {
			if interp.types.Tag(bodyType) != types.TagVoid {
				interp.errs.Errorf(node.SourceID(), "body of `for` must be of void type if no finally is provided")
			}
			return bodyType
		}

		finallyType := interp.typecheckExpr(info.Finally)
		commonType := interp.types.CommonType(bodyType, finallyType)
		if commonType.Nil() {
			interp.errs.Errorf(node.SourceID(), "body and finally of `for` have incompatible types")
		}
		return commonType

	case ast.TagIdentifier:
		member := interp.lookupDefinition(node.IdentifierID(), node.SourceID())
		memberType := interp.delayedTypecheckMember(&member)
		return memberType.WithAssignability(member.IsMut)

	case ast.TagLitInteger, ast.TagLitChar:
		return interp.typeCompInteger

	case ast.TagLitFloat:
		return interp.typeCompFloat

	case ast.TagLitString:
		return interp.typeCompString

	case ast.TagCall:
		return interp.typecheckCall(node)

	case ast.TagUOpTypeTailArray, ast.TagUOpTypeSlice,
		ast.TagUOpTypeMultiPtr, ast.TagUOpTypeOptMultiPtr,
		ast.TagUOpTypePtr, ast.TagUOpTypeOptPtr, ast.TagUOpTypeVar:
		// Type constructors: the operand is a type expression, and so is
		// the whole form.
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		if interp.types.Tag(operandType) != types.TagType {
			interp.errs.Errorf(operand.SourceID(), "operand of `%s` must be of type `Type`", node.Tag())
		}
		return interp.typeType

	case ast.TagUOpEval:
		return interp.typecheckExpr(node.FirstChild())

	case ast.TagUOpDistinct:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		if interp.types.Tag(operandType) != types.TagType {
			interp.errs.Errorf(operand.SourceID(), "operand of `%s` must be of type `Type`", node.Tag())
		}
		return interp.typeType

	case ast.TagUOpAddr:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		return interp.types.NewPtr(types.Reference{Referenced: operandType})

	case ast.TagUOpDeref:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		if interp.types.Tag(operandType) != types.TagPtr {
			interp.errs.Errorf(operand.SourceID(), "operand of `%s` must be of pointer type", node.Tag())
		}
		reference := interp.types.AsReference(operandType)
		return reference.Referenced.WithAssignability(operandType.Assignable())

	case ast.TagUOpBitNot:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		if tag := interp.types.Tag(operandType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(operand.SourceID(), "operand of `%s` must be of integral type", node.Tag())
		}
		return operandType.WithAssignability(false)

	case ast.TagUOpLogNot:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		if interp.types.Tag(operandType) != types.TagBoolean {
			interp.errs.Errorf(operand.SourceID(), "operand of `%s` must be of boolean type", node.Tag())
		}
		return operandType.WithAssignability(false)

	case ast.TagUOpNegate, ast.TagUOpPos:
		operand := node.FirstChild()
		operandType := interp.typecheckExpr(operand)
		tag := interp.types.Tag(operandType)
		if tag != types.TagInteger && tag != types.TagCompInteger && tag != types.TagFloat && tag != types.TagCompFloat {
			interp.errs.Errorf(operand.SourceID(), "operand of unary `%s` must be of integral or floating point type", node.Tag())
		}
		if node.Tag() == ast.TagUOpNegate && tag == types.TagInteger {
			if !interp.types.AsInteger(operandType).Signed {
				interp.errs.Errorf(operand.SourceID(), "operand of unary `%s` must be signed", node.Tag())
			}
		}
		return operandType.WithAssignability(false)

	case ast.TagOpAdd, ast.TagOpSub, ast.TagOpMul, ast.TagOpDiv,
		ast.TagOpAddTC, ast.TagOpSubTC, ast.TagOpMulTC, ast.TagOpMod,
		ast.TagOpBitAnd, ast.TagOpBitOr, ast.TagOpBitXor:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		interp.requireArithOperand(node, lhs, lhsType, "left-hand-side")

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		interp.requireArithOperand(node, rhs, rhsType, "right-hand-side")

		commonType := interp.types.CommonType(lhsType, rhsType)
		if commonType.Nil() {
			interp.errs.Errorf(node.SourceID(), "incompatible left-hand and right-hand side operands for `%s`", node.Tag())
		}
		return commonType.WithAssignability(false)

	case ast.TagOpShiftL, ast.TagOpShiftR:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		if tag := interp.types.Tag(lhsType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `%s` must be of integral type", node.Tag())
		}

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		if tag := interp.types.Tag(rhsType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(rhs.SourceID(), "right-hand-side of `%s` must be of integral type", node.Tag())
		}

		return lhsType.WithAssignability(false)

	case ast.TagOpLogAnd, ast.TagOpLogOr:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		if interp.types.Tag(lhsType) != types.TagBoolean {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `%s` must be of boolean type", node.Tag())
		}

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		if interp.types.Tag(rhsType) != types.TagBoolean {
			interp.errs.Errorf(rhs.SourceID(), "right-hand-side of `%s` must be of boolean type", node.Tag())
		}

		return interp.typeBool

	case ast.TagOpMember:
		return interp.typecheckMember(node)

	case ast.TagOpCmpLT, ast.TagOpCmpGT, ast.TagOpCmpLE,
		ast.TagOpCmpGE, ast.TagOpCmpNE, ast.TagOpCmpEQ:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		interp.requireScalarOperand(node, lhs, lhsType, "left-hand-side")

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		interp.requireScalarOperand(node, rhs, rhsType, "right-hand-side")

		commonType := interp.types.CommonType(lhsType, rhsType)
		if commonType.Nil() {
			interp.errs.Errorf(node.SourceID(), "incompatible left-hand and right-hand side operands for `%s`", node.Tag())
		}
		return interp.typeBool

	case ast.TagOpSet, ast.TagOpSetAdd, ast.TagOpSetSub, ast.TagOpSetMul,
		ast.TagOpSetDiv, ast.TagOpSetAddTC, ast.TagOpSetSubTC,
		ast.TagOpSetMulTC, ast.TagOpSetMod, ast.TagOpSetBitAnd,
		ast.TagOpSetBitOr, ast.TagOpSetBitXor:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		if node.Tag() != ast.TagOpSet {
			interp.requireArithOperand(node, lhs, lhsType, "left-hand-side")
		}
		if !lhsType.Assignable() {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `%s` must be assignable", node.Tag())
		}

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		if node.Tag() != ast.TagOpSet {
			interp.requireArithOperand(node, rhs, rhsType, "right-hand-side")
		}

		if node.Tag() == ast.TagOpSet {
			if !interp.types.CanImplicitlyConvert(rhsType, lhsType) {
				interp.errs.Errorf(node.SourceID(), "right-hand-side of `%s` cannot be implicitly converted to the assigned type", node.Tag())
			}
		} else if interp.types.CommonType(lhsType, rhsType).Nil() {
			interp.errs.Errorf(node.SourceID(), "incompatible left-hand and right-hand side operands for `%s`", node.Tag())
		}

		return interp.typeVoid

	case ast.TagOpSetShiftL, ast.TagOpSetShiftR:
		lhs := node.FirstChild()
		lhsType := interp.typecheckExpr(lhs)
		if tag := interp.types.Tag(lhsType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `%s` must be of integral type", node.Tag())
		}
		if !lhsType.Assignable() {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `%s` must be assignable", node.Tag())
		}

		rhs := lhs.NextSibling()
		rhsType := interp.typecheckExpr(rhs)
		if tag := interp.types.Tag(rhsType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(rhs.SourceID(), "right-hand-side of `%s` must be of integral type", node.Tag())
		}

		return interp.typeVoid

	case ast.TagOpTypeArray:
		count := node.FirstChild()
		countType := interp.typecheckExpr(count)
		if tag := interp.types.Tag(countType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(count.SourceID(), "expected array count expression to be of integral type")
		}

		element := count.NextSibling()
		elementType := interp.typecheckExpr(element)
		if interp.types.Tag(elementType) != types.TagType {
			interp.errs.Errorf(element.SourceID(), "expected array element expression to be of type `Type`")
		}

		return interp.typeType

	case ast.TagOpArrayIndex:
		arrayish := node.FirstChild()
		arrayishType := interp.typecheckExpr(arrayish)

		var elementType types.ID
		switch interp.types.Tag(arrayishType) {
		case types.TagArray:
			elementType = interp.types.AsArray(arrayishType).Element
		case types.TagSlice, types.TagPtr:
			elementType = interp.types.AsReference(arrayishType).Referenced
		default:
			interp.errs.Errorf(arrayish.SourceID(), "left-hand-side of array dereference operator must be of array-, slice- or multi-pointer type")
		}

		index := arrayish.NextSibling()
		indexType := interp.typecheckExpr(index)
		if tag := interp.types.Tag(indexType); tag != types.TagInteger && tag != types.TagCompInteger {
			interp.errs.Errorf(index.SourceID(), "index operand of array dereference operator must be of integral type")
		}

		return elementType.WithAssignability(elementType.Assignable() && arrayishType.Assignable())

	default:
		panic(fmt.Sprintf("interp: unexpected %s node in expression position", node.Tag()))
	}
}

// requireArithOperand enforces the operand typing of the arithmetic
// operators: integral always; floating point additionally for the
// non-trapping add/sub/mul/div family.
func (interp *Interpreter) requireArithOperand(op, operand ast.Node, operandType types.ID, side string) {
	tag := interp.types.Tag(operandType)
	if tag == types.TagInteger || tag == types.TagCompInteger {
		return
	}

	allowsFloat := false
	switch op.Tag() {
	case ast.TagOpAdd, ast.TagOpSub, ast.TagOpMul, ast.TagOpDiv,
		ast.TagOpSetAdd, ast.TagOpSetSub, ast.TagOpSetMul, ast.TagOpSetDiv:
		allowsFloat = true
	}

	if !allowsFloat {
		interp.errs.Errorf(operand.SourceID(), "%s of `%s` must be of integral type", side, op.Tag())
	}
	if tag != types.TagFloat && tag != types.TagCompFloat {
		interp.errs.Errorf(operand.SourceID(), "%s of `%s` must be of integral or floating point type", side, op.Tag())
	}
}

// requireScalarOperand rejects aggregate operands of comparisons.
func (interp *Interpreter) requireScalarOperand(op, operand ast.Node, operandType types.ID, side string) {
	switch interp.types.Tag(operandType) {
	case types.TagArray, types.TagArrayLiteral, types.TagComposite, types.TagCompositeLiteral:
		interp.errs.Errorf(operand.SourceID(), "%s of `%s` must not be of composite or array type", side, op.Tag())
	}
}

// typecheckBlock checks a block's children under a fresh scope composite,
// accumulating explicit member offsets. A non-terminal expression must be
// a definition or of void type; the block's type is its last child's,
// defaulting to void.
func (interp *Interpreter) typecheckBlock(node ast.Node) types.ID {
	scopeType := interp.types.CreateOpen(node.SourceID())
	node.SetScopeType(scopeType)

	interp.pushContext(scopeType, false)

	offset := uint64(0)
	maxAlign := uint32(1)
	resultType := types.Invalid

	it := ast.DirectChildren(node)
	for child, ok := it.Next(); ok; child, ok = it.Next() {
		if child.Tag() == ast.TagDefinition {
			info := ast.DefinitionOf(child)

			var definedType types.ID
			if !info.TypeExpr.Nil() {
				typeTypeID := interp.typecheckExpr(info.TypeExpr)
				if interp.types.Tag(typeTypeID) != types.TagType {
					interp.errs.Errorf(info.TypeExpr.SourceID(), "explicit type annotation of definition must be of type `Type`")
				}
				definedType = interp.evaluateTypeExpr(info.TypeExpr)
			} else {
				if info.ValueExpr.Nil() {
					interp.errs.Errorf(child.SourceID(), "definition needs a type annotation or a value")
				}
				definedType = interp.typecheckExpr(info.ValueExpr).Strip()
			}

			child.SetType(definedType)

			metrics := interp.types.Metrics(definedType)
			offset = mathx.NextMultiple(offset, uint64(metrics.Align))

			member := interp.memberInit(child, offset)

			offset += metrics.Size
			if metrics.Align > maxAlign {
				maxAlign = metrics.Align
			}

			interp.types.AddOpenMember(scopeType, member)

			if !info.TypeExpr.Nil() && !info.ValueExpr.Nil() {
				valueTypeID := interp.typecheckExpr(info.ValueExpr)
				if !interp.types.CanImplicitlyConvert(valueTypeID, definedType) {
					interp.errs.Errorf(info.ValueExpr.SourceID(), "definition value cannot be implicitly converted to type of explicit type annotation")
				}
			}

			if !child.HasNextSibling() {
				resultType = definedType
			}
		} else {
			exprType := interp.typecheckExpr(child)

			if !child.HasNextSibling() {
				resultType = exprType
			} else if tag := interp.types.Tag(exprType); tag != types.TagVoid && tag != types.TagDefinition {
				interp.errs.Errorf(child.SourceID(), "expression in non-terminal position in block must be a definition or of void type")
			}
		}
	}

	interp.popContext(false)

	interp.types.Close(scopeType, offset, maxAlign, mathx.NextMultiple(offset, uint64(maxAlign)))

	// Empty blocks are of type void.
	if resultType == types.Invalid {
		resultType = interp.typeVoid
	}
	return resultType
}

// typecheckMember handles `.`: on a composite value it resolves the named
// member and propagates assignability; on a type it resolves the named
// member of that type's scope.
func (interp *Interpreter) typecheckMember(node ast.Node) types.ID {
	lhs := node.FirstChild()
	lhsType := interp.typecheckExpr(lhs)
	lhsTag := interp.types.Tag(lhsType)

	if lhsTag != types.TagComposite && lhsTag != types.TagType {
		interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `.` must be of type `Type` or a composite type")
	}

	rhs := lhs.NextSibling()
	if rhs.Tag() != ast.TagIdentifier {
		interp.errs.Errorf(rhs.SourceID(), "right-hand-side of `.` must be an identifier")
	}
	rhs.SetType(types.NoType)

	name := rhs.IdentifierID()

	scope := lhsType
	if lhsTag == types.TagType {
		// The scope is the type the left-hand-side evaluates to.
		scope = interp.evaluateTypeExpr(lhs)
		if interp.types.Tag(scope) != types.TagComposite {
			interp.errs.Errorf(lhs.SourceID(), "left-hand-side of `.` does not name a type with members")
		}
	}

	member, ok := interp.types.MemberByName(scope, name)
	if !ok {
		interp.errs.Errorf(node.SourceID(), "left-hand-side of `.` has no member \"%s\"", interp.identifiers.Bytes(name))
	}

	memberType := interp.delayedTypecheckMember(&member)

	if lhsTag == types.TagType {
		// Constants resolved through a type are never storage locations.
		return memberType.WithAssignability(false)
	}
	return memberType.WithAssignability(memberType.Assignable() && lhsType.Assignable())
}

// typecheckCall checks the callee and arguments of a call, supporting
// positional and `.name = value` named arguments with duplicate detection
// over a 64-slot bitmap.
func (interp *Interpreter) typecheckCall(node ast.Node) types.ID {
	callee := node.FirstChild()
	calleeType := interp.typecheckExpr(callee)

	if interp.types.Tag(calleeType) != types.TagFunc {
		interp.errs.Errorf(callee.SourceID(), "left-hand-side of call operator must be of function or builtin type")
	}

	funcType := interp.types.AsFunc(calleeType)
	signature := funcType.Signature

	expectNamed := false
	seenMask := uint64(0)
	seenCount := uint16(0)

	argument := callee
	for argument.HasNextSibling() {
		argument = argument.NextSibling()

		var member types.MemberInfo
		var argumentType types.ID

		if argument.Tag() == ast.TagOpSet {
			if !expectNamed {
				seenMask = uint64(1)<<seenCount - 1
				expectNamed = true
			}

			lhs := argument.FirstChild()
			if lhs.Tag() != ast.TagUOpImpliedMember {
				interp.errs.Errorf(lhs.SourceID(), "named argument must use `.name = value` syntax")
			}
			nameNode := lhs.FirstChild()
			if nameNode.Tag() != ast.TagIdentifier {
				interp.errs.Errorf(nameNode.SourceID(), "named argument must name a parameter")
			}
			name := nameNode.IdentifierID()

			var ok bool
			member, ok = interp.types.MemberByName(signature, name)
			if !ok {
				interp.errs.Errorf(lhs.SourceID(), "`%s` is not an argument of the called function", interp.identifiers.Bytes(name))
			}

			if member.Rank >= 64 {
				interp.errs.Errorf(lhs.SourceID(), "calls support at most 64 named arguments")
			}
			bit := uint64(1) << member.Rank
			if seenMask&bit != 0 {
				interp.errs.Errorf(lhs.SourceID(), "function argument `%s` set more than once", interp.identifiers.Bytes(name))
			}
			seenMask |= bit

			// The named node's own slots stay untyped; only the value
			// expression is checked.
			argument.SetType(types.NoType)
			lhs.SetType(types.NoType)

			rhs := lhs.NextSibling()
			argumentType = interp.typecheckExpr(rhs)
		} else {
			if expectNamed {
				interp.errs.Errorf(argument.SourceID(), "positional arguments must not follow named arguments")
			}
			if seenCount >= 64 {
				interp.errs.Errorf(argument.SourceID(), "calls support at most 64 arguments")
			}
			if seenCount >= funcType.ParamCount {
				interp.errs.Errorf(argument.SourceID(), "call supplies more than the expected %d arguments", funcType.ParamCount)
			}

			var ok bool
			member, ok = interp.types.MemberByRank(signature, seenCount)
			if !ok {
				interp.errs.Errorf(argument.SourceID(), "too many arguments in function call")
			}

			argumentType = interp.typecheckExpr(argument)
			seenCount++
		}

		if member.Type == types.Invalid {
			panic("interp: call signature member has no type")
		}
		if !interp.types.CanImplicitlyConvert(argumentType, member.Type) {
			interp.errs.Errorf(argument.SourceID(), "cannot implicitly convert to expected argument type")
		}
	}

	return funcType.Return
}


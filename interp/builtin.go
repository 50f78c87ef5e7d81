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

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/comp"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/internal/ext/mathx"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
	"github.com/evl-lang/evl/value"
)

// funcParam pairs a parameter name with its type for builtin signature
// registration.
type funcParam struct {
	name string
	typ  types.ID
}

// makeFuncType interns a function type with the given signature.
func (interp *Interpreter) makeFuncType(returnType types.ID, params ...funcParam) types.ID {
	signature := interp.types.CreateOpen(0)

	offset := uint64(0)
	maxAlign := uint32(1)

	for _, param := range params {
		metrics := interp.types.Metrics(param.typ)
		offset = mathx.NextMultiple(offset, uint64(metrics.Align))

		interp.types.AddOpenMember(signature, types.Member{
			Name:   interp.identifiers.ID(param.name),
			Type:   param.typ,
			Offset: offset,
		})

		offset += metrics.Size
		if metrics.Align > maxAlign {
			maxAlign = metrics.Align
		}
	}

	interp.types.Close(signature, offset, maxAlign, mathx.NextMultiple(offset, uint64(maxAlign)))

	return interp.types.NewFunc(types.Func{
		Signature:  signature,
		Return:     returnType,
		ParamCount: uint16(len(params)),
	})
}

// initBuiltinTypes wires the fixed builtin set. Niladic type constructors
// and `_true` register their constant result type; everything else
// registers its function type.
func (interp *Interpreter) initBuiltinTypes() {
	interp.builtinTypes[ast.BuiltinInteger] = interp.makeFuncType(interp.typeType,
		funcParam{"bits", interp.typeCompInteger},
		funcParam{"is_signed", interp.typeBool},
	)

	interp.builtinTypes[ast.BuiltinType] = interp.typeType
	interp.builtinTypes[ast.BuiltinDefinition] = interp.typeType
	interp.builtinTypes[ast.BuiltinCompInteger] = interp.typeType
	interp.builtinTypes[ast.BuiltinCompFloat] = interp.typeType
	interp.builtinTypes[ast.BuiltinCompString] = interp.typeType
	interp.builtinTypes[ast.BuiltinTypeBuilder] = interp.typeType
	interp.builtinTypes[ast.BuiltinTrue] = interp.typeBool

	interp.builtinTypes[ast.BuiltinTypeof] = interp.makeFuncType(interp.typeType,
		funcParam{"arg", interp.typeTypeInfo})
	interp.builtinTypes[ast.BuiltinReturnTypeof] = interp.makeFuncType(interp.typeType,
		funcParam{"arg", interp.typeTypeInfo})
	interp.builtinTypes[ast.BuiltinSizeof] = interp.makeFuncType(interp.typeCompInteger,
		funcParam{"arg", interp.typeTypeInfo})
	interp.builtinTypes[ast.BuiltinAlignof] = interp.makeFuncType(interp.typeCompInteger,
		funcParam{"arg", interp.typeTypeInfo})
	interp.builtinTypes[ast.BuiltinStrideof] = interp.makeFuncType(interp.typeCompInteger,
		funcParam{"arg", interp.typeTypeInfo})

	// The argument shape of _offsetof is an open question; the signature
	// stays niladic until it is settled.
	interp.builtinTypes[ast.BuiltinOffsetof] = interp.makeFuncType(interp.typeCompInteger)

	interp.builtinTypes[ast.BuiltinNameof] = interp.makeFuncType(interp.typeCompString,
		funcParam{"arg", interp.typeTypeInfo})

	interp.builtinTypes[ast.BuiltinImport] = interp.makeFuncType(interp.typeType,
		funcParam{"path", interp.typeCompString},
		funcParam{"is_std", interp.typeBool},
	)

	interp.builtinTypes[ast.BuiltinCreateTypeBuilder] = interp.makeFuncType(interp.typeTypeBuilder)

	// The member descriptor _add_type_member takes is an open question.
	interp.builtinTypes[ast.BuiltinAddTypeMember] = interp.makeFuncType(interp.typeVoid)

	interp.builtinTypes[ast.BuiltinCompleteType] = interp.makeFuncType(interp.typeType,
		funcParam{"arg", interp.typeTypeBuilder})
}

// initPrelude synthesizes and typechecks the bootstrap file
//
//	let std = _import(<std path>, _true)
//	use prelude = std.prelude
func (interp *Interpreter) initPrelude(stdPath string) {
	builder := interp.parser.Builder()

	importBuiltin := builder.Push(ast.NoChildren, ast.TagBuiltin, ast.Flag(ast.BuiltinImport), 0)
	builder.Push(ast.NoChildren, ast.TagLitString, ast.FlagEmpty, 0, uint32(interp.identifiers.ID(stdPath)))
	builder.Push(ast.NoChildren, ast.TagBuiltin, ast.Flag(ast.BuiltinTrue), 0)
	importCall := builder.Push(importBuiltin, ast.TagCall, ast.FlagEmpty, 0)

	stdDefinition := builder.Push(importCall, ast.TagDefinition, ast.FlagEmpty, 0,
		uint32(interp.identifiers.ID("std")))

	stdIdentifier := builder.Push(ast.NoChildren, ast.TagIdentifier, ast.FlagEmpty, 0,
		uint32(interp.identifiers.ID("std")))
	builder.Push(ast.NoChildren, ast.TagIdentifier, ast.FlagEmpty, 0,
		uint32(interp.identifiers.ID("prelude")))
	preludeMember := builder.Push(stdIdentifier, ast.TagOpMember, ast.FlagEmpty, 0)

	builder.Push(preludeMember, ast.TagDefinition, ast.FlagDefinitionIsUse, 0,
		uint32(interp.identifiers.ID("prelude")))

	builder.Push(stdDefinition, ast.TagFile, ast.FlagEmpty, 0, 2, 0)

	root := interp.asts.Node(builder.Complete(interp.asts))
	interp.preludeType = interp.TypeFromFileAST(root, 0)
}

// evaluateBuiltinValue evaluates a Builtin node appearing as a value: the
// niladic constants. Callable builtins are dispatched by the call
// evaluator and have no standalone value.
func (interp *Interpreter) evaluateBuiltinValue(node ast.Node) value.Slot {
	switch ast.Builtin(node.BuiltinOrdinal()) {
	case ast.BuiltinType:
		return interp.pushTypeValue(interp.typeType)
	case ast.BuiltinDefinition:
		return interp.pushTypeValue(interp.types.Primitive(types.TagDefinition, nil))
	case ast.BuiltinCompInteger:
		return interp.pushTypeValue(interp.typeCompInteger)
	case ast.BuiltinCompFloat:
		return interp.pushTypeValue(interp.typeCompFloat)
	case ast.BuiltinCompString:
		return interp.pushTypeValue(interp.typeCompString)
	case ast.BuiltinTypeBuilder:
		return interp.pushTypeValue(interp.typeTypeBuilder)
	case ast.BuiltinTrue:
		return interp.pushBool(true)
	default:
		panic(fmt.Sprintf("interp: builtin %s has no standalone value", ast.Builtin(node.BuiltinOrdinal())))
	}
}

// setReturn prepares the builtin return scratch.
func (interp *Interpreter) setReturn(typ types.ID, size uint32) []byte {
	interp.retType = typ
	if cap(interp.retBuf) < int(size) {
		interp.retBuf = make([]byte, size)
	}
	interp.retBuf = interp.retBuf[:size]
	for i := range interp.retBuf {
		interp.retBuf[i] = 0
	}
	return interp.retBuf
}

// callFrame reads the argument table of the CallFrame on top of the value
// stack.
type callFrame struct {
	interp *Interpreter
	slot   value.Slot
	count  uint16
}

func (f callFrame) arg(i int) value.Slot {
	payload := f.interp.stack.Payload(f.slot, uint32(4+4*f.count))
	return value.Slot(binary.LittleEndian.Uint32(payload[4+4*i:]))
}

// pushCallFrame pushes a CallFrame value holding the given argument
// slots.
func (interp *Interpreter) pushCallFrame(args []value.Slot) callFrame {
	size := uint32(4 + 4*len(args))
	slot := interp.stack.Push(interp.typeCallFrame, size, 8)

	payload := interp.stack.Payload(slot, size)
	binary.LittleEndian.PutUint32(payload, uint32(len(args)))
	for i, arg := range args {
		binary.LittleEndian.PutUint32(payload[4+4*i:], uint32(arg))
	}

	return callFrame{interp: interp, slot: slot, count: uint16(len(args))}
}

// evaluateCall evaluates a call of a builtin: arguments are evaluated in
// call order onto the value stack and bound to their parameter ranks, a
// CallFrame is pushed over them, the in-process implementation runs and
// writes its result into the return scratch, and the caller copies that
// result back onto the stack.
func (interp *Interpreter) evaluateCall(node ast.Node) value.Slot {
	callee := node.FirstChild()

	if callee.Tag() != ast.TagBuiltin {
		panic("interp: evaluation of calls to non-builtin functions is not yet implemented")
	}
	builtin := ast.Builtin(callee.BuiltinOrdinal())

	funcType := interp.types.AsFunc(interp.builtinTypes[builtin])
	signature := funcType.Signature

	depthBefore := interp.stack.Depth()

	// Evaluate arguments and bind them to parameter ranks.
	args := make([]value.Slot, funcType.ParamCount)

	position := uint16(0)
	argument := callee
	for argument.HasNextSibling() {
		argument = argument.NextSibling()

		if argument.Tag() == ast.TagOpSet && argument.Type() == types.NoType {
			nameNode := argument.FirstChild().FirstChild()
			member, ok := interp.types.MemberByName(signature, nameNode.IdentifierID())
			if !ok {
				panic("interp: named argument unbound after typechecking")
			}
			args[member.Rank] = interp.evaluateExpr(argument.FirstChild().NextSibling())
		} else {
			args[position] = interp.evaluateExpr(argument)
			position++
		}
	}

	for rank, arg := range args {
		if arg.Nil() {
			member, _ := interp.types.MemberByRank(signature, uint16(rank))
			interp.errs.Errorf(node.SourceID(), "missing argument `%s` in call", interp.identifiers.Bytes(member.Name))
		}
	}

	frame := interp.pushCallFrame(args)
	interp.invokeBuiltin(builtin, node.SourceID(), frame)

	// Discard the frame and arguments, then materialize the return value.
	interp.stack.PopTo(depthBefore)

	metrics := interp.types.Metrics(interp.retType)
	slot := interp.stack.Push(interp.retType, uint32(metrics.Size), metrics.Align)
	copy(interp.stack.Payload(slot, uint32(metrics.Size)), interp.retBuf)
	return slot
}

// invokeBuiltin dispatches one builtin implementation over the top call
// frame.
func (interp *Interpreter) invokeBuiltin(builtin ast.Builtin, src source.ID, frame callFrame) {
	switch builtin {
	case ast.BuiltinInteger:
		bits, ok := interp.readCompInteger(frame.arg(0)).AsU64(16)
		if !ok || bits < 8 || bits > 64 || bits&(bits-1) != 0 {
			interp.errs.Errorf(src, "only integer types of bit width 8, 16, 32 or 64 are currently supported")
		}
		isSigned := interp.readBool(frame.arg(1))

		result := interp.setReturn(interp.typeType, 4)
		putLeUint32(result, uint32(interp.types.NewInteger(uint16(bits), isSigned)))

	case ast.BuiltinSizeof, ast.BuiltinAlignof, ast.BuiltinStrideof:
		argType := interp.readTypeArg(src, frame.arg(0))
		metrics := interp.types.Metrics(argType)

		var v uint64
		switch builtin {
		case ast.BuiltinSizeof:
			v = metrics.Size
		case ast.BuiltinAlignof:
			v = uint64(metrics.Align)
		case ast.BuiltinStrideof:
			v = metrics.Stride
		}

		result := interp.setReturn(interp.typeCompInteger, 8)
		binary.LittleEndian.PutUint64(result, comp.IntegerFromU64(v).Rep())

	case ast.BuiltinNameof:
		argType := interp.readTypeArg(src, frame.arg(0))
		if interp.types.RawTag(argType.Strip()) != types.TagAlias {
			interp.errs.Errorf(src, "_nameof argument has no name")
		}
		alias := interp.types.AsAlias(argType)
		if alias.Name.Nil() {
			interp.errs.Errorf(src, "_nameof argument has no name")
		}

		result := interp.setReturn(interp.typeCompString, 4)
		putLeUint32(result, uint32(alias.Name))

	case ast.BuiltinImport:
		pathID := leUint32(interp.stack.Access(frame.arg(0), 4, interp.globals))
		isStd := interp.readBool(frame.arg(1))

		fileType := interp.importFile(interp.identifiers.Bytes(intern.ID(pathID)), isStd)

		result := interp.setReturn(interp.typeType, 4)
		putLeUint32(result, uint32(fileType))

	case ast.BuiltinCreateTypeBuilder:
		builderType := interp.types.CreateOpen(src)
		result := interp.setReturn(interp.typeTypeBuilder, 4)
		putLeUint32(result, uint32(builderType))

	case ast.BuiltinCompleteType:
		builderType := types.ID(leUint32(interp.stack.Access(frame.arg(0), 4, interp.globals)))
		if interp.types.Tag(builderType) != types.TagComposite || !interp.types.IsOpen(builderType) {
			interp.errs.Errorf(src, "_complete_type argument must be an open type builder")
		}

		offset := uint64(0)
		maxAlign := uint32(1)
		for rank := uint16(0); ; rank++ {
			member, ok := interp.types.MemberByRank(builderType, rank)
			if !ok {
				break
			}
			metrics := interp.types.Metrics(member.Type)
			offset = mathx.NextMultiple(offset, uint64(metrics.Align))
			offset += metrics.Size
			if metrics.Align > maxAlign {
				maxAlign = metrics.Align
			}
		}
		interp.types.Close(builderType, offset, maxAlign, mathx.NextMultiple(offset, uint64(maxAlign)))

		result := interp.setReturn(interp.typeType, 4)
		putLeUint32(result, uint32(builderType))

	case ast.BuiltinTypeof, ast.BuiltinReturnTypeof, ast.BuiltinOffsetof, ast.BuiltinAddTypeMember:
		panic(fmt.Sprintf("interp: builtin %s is not yet interpretable", builtin))

	default:
		panic(fmt.Sprintf("interp: builtin %s is not callable", builtin))
	}
}

// readTypeArg reads a call argument that must denote a type.
func (interp *Interpreter) readTypeArg(src source.ID, slot value.Slot) types.ID {
	if interp.types.Tag(interp.stack.Type(slot)) != types.TagType {
		interp.errs.Errorf(src, "expected a type argument")
	}
	return interp.readTypeValue(slot)
}

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

// Package interp is the compile-time evaluator and typechecker.
//
// Typechecking and evaluation are mutually recursive: typechecking a
// definition may require evaluating a type expression, which may look up
// another identifier and trigger further typechecking. Both walk finalized
// ASTs, share one value stack, and share one stack of active scope
// contexts.
//
// Scopes are composite types. A file's context stack is rooted as
// [invalid sentinel, prelude, file]; nested blocks push one composite
// each. A resumption token is an index into this stack: re-applying it
// copies the range from the root sentinel through the token back onto the
// stack, so lazy typechecking of a forward-referenced definition resumes
// under the exact lexical context it was discovered in.
package interp

import (
	"github.com/sirupsen/logrus"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/parser"
	"github.com/evl-lang/evl/report"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
	"github.com/evl-lang/evl/value"
)

// maxContexts bounds the active scope context stack.
const maxContexts = 256

// memberKey addresses one member of one composite.
type memberKey struct {
	scope types.ID
	rank  uint16
}

// Interpreter drives semantic analysis for a whole compilation.
type Interpreter struct {
	reader      *source.Reader
	parser      *parser.Parser
	types       *types.Pool
	asts        *ast.Pool
	identifiers *intern.Pool
	globals     *value.Globals
	errs        *report.Sink
	log         logrus.FieldLogger

	stack *value.Stack

	// retType/retBuf form the scratch buffer builtins write their result
	// into; the call evaluator copies it onto the value stack.
	retType types.ID
	retBuf  []byte

	preludeType types.ID
	contextTop  int
	contexts    [maxContexts]types.ID

	// builtinTypes holds the pre-registered function type of every
	// callable builtin, and the constant result type of the niladic ones.
	builtinTypes [ast.NumBuiltins]types.ID

	// memberValues maps composite members to the globals holding their
	// evaluated values.
	memberValues map[memberKey]value.GlobalID

	// Cached primitive ids.
	typeVoid        types.ID
	typeType        types.ID
	typeBool        types.ID
	typeCompInteger types.ID
	typeCompFloat   types.ID
	typeCompString  types.ID
	typeTypeInfo    types.ID
	typeTypeBuilder types.ID
	typeCallFrame   types.ID
}

// Config carries construction parameters.
type Config struct {
	// StdPath is the path of the standard library root imported by the
	// prelude bootstrap.
	StdPath string

	Logger logrus.FieldLogger
}

// New constructs an interpreter and runs the prelude bootstrap: a
// synthesized file equivalent to
//
//	let std = _import(<std path>, _true)
//	use prelude = std.prelude
//
// is typechecked as the first file, producing the prelude scope every
// subsequent file is rooted under.
func New(cfg Config, reader *source.Reader, p *parser.Parser, tp *types.Pool, asts *ast.Pool, identifiers *intern.Pool, errs *report.Sink) *Interpreter {
	log := cfg.Logger
	if log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		log = logger
	}

	interp := &Interpreter{
		reader:      reader,
		parser:      p,
		types:       tp,
		asts:        asts,
		identifiers: identifiers,
		globals:     value.NewGlobals(tp),
		errs:        errs,
		log:         log,
		stack:        value.NewStack(),
		contextTop:   -1,
		memberValues: make(map[memberKey]value.GlobalID),
	}

	interp.typeVoid = tp.Primitive(types.TagVoid, nil)
	interp.typeType = tp.Primitive(types.TagType, nil)
	interp.typeBool = tp.Primitive(types.TagBoolean, nil)
	interp.typeCompInteger = tp.Primitive(types.TagCompInteger, nil)
	interp.typeCompFloat = tp.Primitive(types.TagCompFloat, nil)
	interp.typeCompString = tp.Primitive(types.TagCompString, nil)
	interp.typeTypeInfo = tp.Primitive(types.TagTypeInfo, nil)
	interp.typeTypeBuilder = tp.Primitive(types.TagTypeBuilder, nil)
	interp.typeCallFrame = tp.Primitive(types.TagCallFrame, nil)

	interp.initBuiltinTypes()
	interp.initPrelude(cfg.StdPath)

	return interp
}

// PreludeType returns the scope type of the prelude bootstrap file.
func (interp *Interpreter) PreludeType() types.ID {
	return interp.preludeType
}

// Globals exposes the global value pool.
func (interp *Interpreter) Globals() *value.Globals {
	return interp.globals
}

// Stack exposes the value stack. Intended for tests and debug dumps.
func (interp *Interpreter) Stack() *value.Stack {
	return interp.stack
}

// pushContext pushes one scope context. Root contexts (files) are
// prefixed with the invalid sentinel and the prelude.
func (interp *Interpreter) pushContext(context types.ID, isRoot bool) {
	top := interp.contextTop + 1

	extra := 0
	if isRoot {
		extra = 2
	}
	if top+extra >= maxContexts {
		panic("interp: maximum active interpreter context limit exceeded")
	}

	if isRoot {
		interp.contexts[top] = types.Invalid
		interp.contexts[top+1] = interp.preludeType
		top += 2
	}

	interp.contexts[top] = context
	interp.contextTop = top
}

func (interp *Interpreter) popContext(isRoot bool) {
	toPop := 1
	if isRoot {
		toPop = 3
	}
	interp.contextTop -= toPop
}

// resumption captures the current context stack position.
func (interp *Interpreter) resumption() types.ResumptionID {
	return types.ResumptionID(interp.contextTop)
}

// applyResumption copies the contiguous context range from the root
// sentinel through the token back onto the stack.
func (interp *Interpreter) applyResumption(id types.ResumptionID) {
	resumptionTop := int(id)

	resumptionBottom := resumptionTop - 1
	for resumptionBottom >= 0 && !interp.contexts[resumptionBottom].Nil() {
		resumptionBottom--
	}

	count := 1 + resumptionTop - resumptionBottom
	if interp.contextTop+count >= maxContexts {
		panic("interp: maximum active interpreter context limit exceeded")
	}

	copy(interp.contexts[interp.contextTop+1:interp.contextTop+1+count],
		interp.contexts[resumptionBottom:resumptionTop+1])
	interp.contextTop += count
}

// releaseResumption pops the contexts applied by the matching
// applyResumption, down through their root sentinel.
func (interp *Interpreter) releaseResumption() {
	newTop := interp.contextTop
	for newTop >= 0 && !interp.contexts[newTop].Nil() {
		newTop--
	}
	interp.contextTop = newTop - 1
}

// lookupDefinition resolves an identifier against the active contexts,
// innermost first, stopping at the current root sentinel. Members flagged
// `use` forward the search into the scope their value names.
func (interp *Interpreter) lookupDefinition(name intern.ID, lookupSource source.ID) types.MemberInfo {
	for index := interp.contextTop; index >= 0; index-- {
		context := interp.contexts[index]
		if context.Nil() {
			break
		}

		if info, ok := interp.lookupInScope(context, name); ok {
			return info
		}
	}

	interp.errs.Errorf(lookupSource, "could not find definition for identifier %s", interp.identifiers.Bytes(name))
	panic("unreachable")
}

// lookupInScope searches one composite, descending through use members.
func (interp *Interpreter) lookupInScope(context types.ID, name intern.ID) (types.MemberInfo, bool) {
	if interp.types.Tag(context) != types.TagComposite {
		return types.MemberInfo{}, false
	}

	if info, ok := interp.types.MemberByName(context, name); ok {
		return info, true
	}

	for rank := uint16(0); ; rank++ {
		member, ok := interp.types.MemberByRank(context, rank)
		if !ok {
			break
		}
		if !member.IsUse {
			continue
		}

		used := interp.usedScopeOf(context, member)
		if used.Nil() {
			continue
		}
		if info, ok := interp.lookupInScope(used, name); ok {
			return info, true
		}
	}

	return types.MemberInfo{}, false
}

// usedScopeOf resolves the scope a use member forwards into: the type its
// value evaluates to. The member must be of type Type.
func (interp *Interpreter) usedScopeOf(context types.ID, member types.MemberInfo) types.ID {
	if member.HasPendingType {
		interp.delayedTypecheckMember(&member)
		refreshed, ok := interp.types.MemberByRank(context, member.Rank)
		if !ok {
			panic("interp: use member vanished during completion")
		}
		member = refreshed
	}

	if interp.types.Tag(member.Type) != types.TagType {
		return types.Invalid
	}

	gid := interp.memberGlobal(context, member)
	_, data := interp.globals.Get(gid)
	return types.ID(leUint32(data))
}

// importFile reads, parses (or reuses the cached AST of) and typechecks
// one file, returning its scope type.
func (interp *Interpreter) importFile(path string, isStd bool) types.ID {
	read, err := interp.reader.Read(path)
	if err != nil {
		panic(err.Error())
	}
	file := read.File

	var root ast.Node
	if file.CachedRoot == 0 {
		interp.log.WithFields(logrus.Fields{"path": file.Path, "std": isStd}).Debug("parsing source file")
		rootID := interp.parser.Parse(file, isStd, interp.asts)
		file.CachedRoot = uint32(rootID)
		root = interp.asts.Node(rootID)
	} else {
		root = interp.asts.Node(ast.NodeID(file.CachedRoot))
	}

	return interp.TypeFromFileAST(root, file.Base)
}

// ImportRoot analyzes the entrypoint file of a compilation.
func (interp *Interpreter) ImportRoot(path string) types.ID {
	return interp.importFile(path, false)
}

// TypeFromFileAST typechecks a File node into a closed composite holding
// its top-level definitions. All members are completed before returning.
func (interp *Interpreter) TypeFromFileAST(file ast.Node, fileTypeSource source.ID) types.ID {
	if file.Tag() != ast.TagFile {
		panic("interp: TypeFromFileAST on non-file node")
	}

	fileType := interp.types.CreateOpen(fileTypeSource)
	file.SetScopeType(fileType)

	interp.pushContext(fileType, true)

	it := ast.DirectChildren(file)
	for node, ok := it.Next(); ok; node, ok = it.Next() {
		if node.Tag() != ast.TagDefinition {
			interp.errs.Errorf(node.SourceID(), "currently only definitions are supported on a file's top-level")
		}

		member := interp.memberInit(node, 0)

		if member.IsGlobal {
			interp.errs.Warnf(node.SourceID(), "redundant 'global' modifier; top-level definitions are implicitly global")
		} else {
			member.IsGlobal = true
		}

		interp.types.AddOpenMember(fileType, member)
	}

	interp.types.Close(fileType, 0, 1, 0)

	memberIt := interp.types.IncompleteMembers(fileType)
	for member, ok := memberIt.Next(); ok; member, ok = memberIt.Next() {
		interp.delayedTypecheckMember(&member)
	}

	interp.popContext(true)

	return fileType
}

// memberInit builds the member record for a definition node. Definitions
// that have not been typechecked yet record the current resumption and
// their expression handles for lazy completion.
func (interp *Interpreter) memberInit(definition ast.Node, offset uint64) types.Member {
	info := ast.DefinitionOf(definition)

	pending := definition.Type() == types.Invalid || definition.Type() == types.Checking

	member := types.Member{
		Name:     definition.DefinitionName(),
		Source:   definition.SourceID(),
		IsPub:    definition.Has(ast.FlagDefinitionIsPub),
		IsMut:    definition.Has(ast.FlagDefinitionIsMut),
		IsGlobal: definition.Has(ast.FlagDefinitionGlobal),
		IsUse:    definition.Has(ast.FlagDefinitionIsUse),
		Offset:   offset,
	}

	if pending {
		member.HasPendingType = true
		member.Resumption = interp.resumption()
		if !info.TypeExpr.Nil() {
			member.TypeNode = uint32(info.TypeExpr.ID())
		}
		if !info.ValueExpr.Nil() {
			member.ValueNode = uint32(info.ValueExpr.ID())
		}
	} else {
		member.Type = definition.Type()
		if !info.ValueExpr.Nil() {
			member.ValueNode = uint32(info.ValueExpr.ID())
		}
	}

	return member
}

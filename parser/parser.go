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

// Package parser converts source text into finalized ASTs.
//
// Expressions parse through a Pratt-style operator stack over two tables
// keyed by token ordinal range; everything with structure (definitions,
// blocks, if/for/switch, func, trait, impl) has a dedicated routine that
// builds its children before emitting the parent node.
package parser

import (
	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/report"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/token"
)

// Operator stack limits. An expression exceeding either is a fatal source
// error.
const (
	maxOpenOperators = 64
	maxOpenOperands  = 128
)

// opDesc describes one operator for the Pratt stack.
type opDesc struct {
	tag   ast.Tag
	flags ast.Flag

	// precedence is binding strength; numerically lower binds tighter.
	precedence uint8

	// popsEqual makes the operator left-associative: on arrival it pops
	// stacked operators of equal precedence. Right-associative operators
	// pop strictly tighter ones only.
	popsEqual bool
	isBinary  bool
}

// unaryOps is indexed by kind - token.FirstUnaryOperator. The tagInvalid
// entry is the opening parenthesis, which only groups.
var unaryOps = [...]opDesc{
	{ast.TagInvalid, ast.FlagEmpty, 10, false, true},          // (
	{ast.TagUOpEval, ast.FlagEmpty, 8, false, false},          // eval
	{ast.TagUOpTry, ast.FlagEmpty, 8, false, false},           // try
	{ast.TagUOpDefer, ast.FlagEmpty, 8, false, false},         // defer
	{ast.TagUOpDistinct, ast.FlagEmpty, 2, false, false},      // distinct
	{ast.TagUOpAddr, ast.FlagEmpty, 2, false, false},          // $
	{ast.TagUOpBitNot, ast.FlagEmpty, 2, false, false},        // ~
	{ast.TagUOpLogNot, ast.FlagEmpty, 2, false, false},        // !
	{ast.TagUOpTypeOptPtr, ast.FlagTypeIsMut, 2, false, false},      // ?
	{ast.TagUOpTypeVar, ast.FlagEmpty, 2, false, false},             // ...
	{ast.TagUOpTypeTailArray, ast.FlagEmpty, 2, false, false},       // [...]
	{ast.TagUOpTypeMultiPtr, ast.FlagTypeIsMut, 2, false, false},    // [*]
	{ast.TagUOpTypeOptMultiPtr, ast.FlagTypeIsMut, 2, false, false}, // [?]
	{ast.TagUOpTypeSlice, ast.FlagTypeIsMut, 2, false, false},       // []
	{ast.TagUOpImpliedMember, ast.FlagEmpty, 1, false, false},       // .
	{ast.TagUOpTypePtr, ast.FlagTypeIsMut, 2, false, false},         // *
	{ast.TagUOpNegate, ast.FlagEmpty, 2, false, false},              // -
	{ast.TagUOpPos, ast.FlagEmpty, 2, false, false},                 // +
}

// binaryOps is indexed by kind - token.FirstBinaryOperator. Note that
// `.*` sits inside the binary range but is a unary suffix.
var binaryOps = [...]opDesc{
	{ast.TagOpMember, ast.FlagEmpty, 1, true, true},     // .
	{ast.TagOpMul, ast.FlagEmpty, 2, true, true},        // *
	{ast.TagOpSub, ast.FlagEmpty, 3, true, true},        // -
	{ast.TagOpAdd, ast.FlagEmpty, 3, true, true},        // +
	{ast.TagOpDiv, ast.FlagEmpty, 2, true, true},        // /
	{ast.TagOpAddTC, ast.FlagEmpty, 3, true, true},      // +:
	{ast.TagOpSubTC, ast.FlagEmpty, 3, true, true},      // -:
	{ast.TagOpMulTC, ast.FlagEmpty, 2, true, true},      // *:
	{ast.TagOpMod, ast.FlagEmpty, 2, true, true},        // %
	{ast.TagUOpDeref, ast.FlagEmpty, 1, false, false},   // .*
	{ast.TagOpBitAnd, ast.FlagEmpty, 6, true, true},     // &
	{ast.TagOpBitOr, ast.FlagEmpty, 6, true, true},      // |
	{ast.TagOpBitXor, ast.FlagEmpty, 6, true, true},     // ^
	{ast.TagOpShiftL, ast.FlagEmpty, 4, true, true},     // <<
	{ast.TagOpShiftR, ast.FlagEmpty, 4, true, true},     // >>
	{ast.TagOpLogAnd, ast.FlagEmpty, 7, true, true},     // &&
	{ast.TagOpLogOr, ast.FlagEmpty, 7, true, true},      // ||
	{ast.TagOpCmpLT, ast.FlagEmpty, 5, true, true},      // <
	{ast.TagOpCmpGT, ast.FlagEmpty, 5, true, true},      // >
	{ast.TagOpCmpLE, ast.FlagEmpty, 5, true, true},      // <=
	{ast.TagOpCmpGE, ast.FlagEmpty, 5, true, true},      // >=
	{ast.TagOpCmpNE, ast.FlagEmpty, 5, true, true},      // !=
	{ast.TagOpCmpEQ, ast.FlagEmpty, 5, true, true},      // ==
	{ast.TagOpSet, ast.FlagEmpty, 9, false, true},       // =
	{ast.TagOpSetAdd, ast.FlagEmpty, 9, false, true},    // +=
	{ast.TagOpSetSub, ast.FlagEmpty, 9, false, true},    // -=
	{ast.TagOpSetMul, ast.FlagEmpty, 9, false, true},    // *=
	{ast.TagOpSetDiv, ast.FlagEmpty, 9, false, true},    // /=
	{ast.TagOpSetAddTC, ast.FlagEmpty, 9, false, true},  // +:=
	{ast.TagOpSetSubTC, ast.FlagEmpty, 9, false, true},  // -:=
	{ast.TagOpSetMulTC, ast.FlagEmpty, 9, false, true},  // *:=
	{ast.TagOpSetMod, ast.FlagEmpty, 9, false, true},    // %=
	{ast.TagOpSetBitAnd, ast.FlagEmpty, 9, false, true}, // &=
	{ast.TagOpSetBitOr, ast.FlagEmpty, 9, false, true},  // |=
	{ast.TagOpSetBitXor, ast.FlagEmpty, 9, false, true}, // ^=
	{ast.TagOpSetShiftL, ast.FlagEmpty, 9, false, true}, // <<=
	{ast.TagOpSetShiftR, ast.FlagEmpty, 9, false, true}, // >>=
}

type opWithSource struct {
	desc opDesc
	src  source.ID

	// Some operators carry a child parsed before their operand: the count
	// expression of an array type. When set, it becomes the emitted
	// node's first child and the operand chains in behind it.
	firstChild    ast.Token
	hasFirstChild bool
}

// operatorStack is the Pratt parser's shunting state for one expression.
type operatorStack struct {
	operands      [maxOpenOperands]ast.Token
	operandCount  int
	operators     [maxOpenOperators]opWithSource
	operatorTop   int
	exprSource    source.ID
}

// Parser turns source files into ASTs. One Parser is reused for every
// file of a compilation.
type Parser struct {
	lexer   lexer
	builder *ast.Builder
	errs    *report.Sink
}

// New returns a parser interning identifiers into identifiers and
// reporting through errs.
func New(identifiers *intern.Pool, errs *report.Sink) *Parser {
	p := &Parser{
		builder: ast.NewBuilder(),
		errs:    errs,
	}
	p.lexer.identifiers = identifiers
	p.lexer.errs = errs
	return p
}

// Builder exposes the parser's AST builder for synthesized trees, such as
// the interpreter's prelude bootstrap.
func (p *Parser) Builder() *ast.Builder {
	return p.builder
}

// Parse parses one file into pool and returns the finalized root.
func (p *Parser) Parse(file *source.File, isStd bool, pool *ast.Pool) ast.NodeID {
	p.lexer.reset(file, isStd)
	p.builder.Fatal = func(format string, args ...any) {
		p.errs.Errorf(file.Base, format, args...)
	}

	p.parseFile()
	return p.builder.Complete(pool)
}

func (p *Parser) popOperator(stack *operatorStack) {
	top := stack.operators[stack.operatorTop-1]
	stack.operatorTop--

	if top.desc.tag == ast.TagInvalid {
		return
	}

	needed := 1
	if top.desc.isBinary {
		needed = 2
	}
	if stack.operandCount < needed {
		p.errs.Errorf(stack.exprSource, "missing operand(s) for operator '%s'", top.desc.tag)
	}

	if top.desc.isBinary {
		stack.operandCount--
	}

	firstChild := stack.operands[stack.operandCount-1]
	if top.hasFirstChild {
		firstChild = top.firstChild
	}

	operatorToken := p.builder.Push(firstChild, top.desc.tag, top.desc.flags, top.src)
	stack.operands[stack.operandCount-1] = operatorToken
}

// popToPrecedence pops operators binding at least as tightly as
// precedence. Right-associative operators pop strictly greater
// precedence; left-associative pop greater-or-equal. Reports whether an
// unpopped operator remains.
func (p *Parser) popToPrecedence(stack *operatorStack, precedence uint8, popEqual bool) bool {
	for stack.operatorTop != 0 {
		top := stack.operators[stack.operatorTop-1]
		if top.desc.precedence > precedence || (top.desc.precedence == precedence && !popEqual) {
			return true
		}
		p.popOperator(stack)
	}
	return false
}

func (p *Parser) pushOperand(stack *operatorStack, operand ast.Token) {
	if stack.operandCount == maxOpenOperands-1 {
		p.errs.Errorf(stack.exprSource, "expression exceeds maximum open operands of %d", maxOpenOperands)
	}
	stack.operands[stack.operandCount] = operand
	stack.operandCount++
}

func (p *Parser) pushOperator(stack *operatorStack, op opWithSource) {
	if op.desc.tag != ast.TagInvalid {
		p.popToPrecedence(stack, op.desc.precedence, op.desc.popsEqual)
	}
	if stack.operatorTop == maxOpenOperators {
		p.errs.Errorf(stack.exprSource, "expression exceeds maximum depth of %d", maxOpenOperators)
	}
	stack.operators[stack.operatorTop] = op
	stack.operatorTop++
}

func (p *Parser) popRemaining(stack *operatorStack) ast.Token {
	for stack.operatorTop != 0 {
		p.popOperator(stack)
	}
	if stack.operandCount != 1 {
		p.errs.Errorf(stack.exprSource, "mismatched operand / operator count (%d operands remaining)", stack.operandCount)
	}
	return stack.operands[0]
}

func isDefinitionStart(kind token.Kind) bool {
	switch kind {
	case token.KwdLet, token.KwdPub, token.KwdMut, token.KwdGlobal, token.KwdAuto, token.KwdUse:
		return true
	}
	return false
}

// parseDefinition parses `let`/modifier definitions. Implicit definitions
// (parameters, for-each variables) need no introducer; optional-value
// definitions may omit `= value`.
func (p *Parser) parseDefinition(isImplicit, isOptionalValue bool) ast.Token {
	flags := ast.FlagEmpty

	lex := p.lexer.next()
	src := lex.src

	if lex.kind == token.KwdLet {
		lex = p.lexer.next()
	} else {
		for {
			var flag ast.Flag
			var name string
			switch lex.kind {
			case token.KwdPub:
				flag, name = ast.FlagDefinitionIsPub, "pub"
			case token.KwdMut:
				flag, name = ast.FlagDefinitionIsMut, "mut"
			case token.KwdGlobal:
				flag, name = ast.FlagDefinitionGlobal, "global"
			case token.KwdAuto:
				flag, name = ast.FlagDefinitionIsAuto, "auto"
			case token.KwdUse:
				flag, name = ast.FlagDefinitionIsUse, "use"
			}
			if flag == ast.FlagEmpty {
				break
			}
			if flags&flag != 0 {
				p.errs.Errorf(lex.src, "definition modifier '%s' encountered more than once", name)
			}
			flags |= flag
			lex = p.lexer.next()
		}

		if flags == ast.FlagEmpty && !isImplicit {
			p.errs.Errorf(lex.src, "missing 'let' or at least one of 'pub', 'mut' or 'global' at start of definition")
		}
	}

	if lex.kind != token.Ident {
		p.errs.Errorf(lex.src, "expected identifier after definition modifiers but got '%s'", lex.kind)
	}
	name := lex.identifier()

	lex = p.lexer.peek()
	firstChild := ast.NoChildren

	if lex.kind == token.Colon {
		flags |= ast.FlagDefinitionHasType
		p.lexer.skip()
		firstChild = p.parseExpr(false)
		lex = p.lexer.peek()
	}

	if lex.kind == token.OpSet {
		p.lexer.skip()
		valueToken := p.parseExpr(true)
		if firstChild == ast.NoChildren {
			firstChild = valueToken
		}
	} else if !isOptionalValue {
		p.errs.Errorf(lex.src, "expected '=' after definition identifier and type, but got '%s'", lex.kind)
	}

	return p.builder.Push(firstChild, ast.TagDefinition, flags, src, ast.IdentAttachment(name)...)
}

func (p *Parser) parseReturn() ast.Token {
	src := p.lexer.next().src
	valueToken := p.parseExpr(true)
	return p.builder.Push(valueToken, ast.TagReturn, ast.FlagEmpty, src)
}

func (p *Parser) parseLeave() ast.Token {
	src := p.lexer.next().src
	return p.builder.Push(ast.NoChildren, ast.TagLeave, ast.FlagEmpty, src)
}

func (p *Parser) parseYield() ast.Token {
	src := p.lexer.next().src
	valueToken := p.parseExpr(true)
	return p.builder.Push(valueToken, ast.TagYield, ast.FlagEmpty, src)
}

// parseTopLevelExpr parses one statement-position expression inside a
// block or call argument list.
func (p *Parser) parseTopLevelExpr(isDefinitionOptionalValue bool) (tok ast.Token, isDefinition bool) {
	lex := p.lexer.peek()

	switch {
	case isDefinitionStart(lex.kind):
		return p.parseDefinition(false, isDefinitionOptionalValue), true
	case lex.kind == token.KwdReturn:
		return p.parseReturn(), false
	case lex.kind == token.KwdLeave:
		return p.parseLeave(), false
	case lex.kind == token.KwdYield:
		return p.parseYield(), false
	default:
		return p.parseExpr(true), false
	}
}

func (p *Parser) parseWhere() ast.Token {
	src := p.lexer.next().src

	firstChild := p.parseDefinition(true, false)
	for p.lexer.peek().kind == token.Comma {
		p.lexer.skip()
		p.parseDefinition(true, false)
	}

	return p.builder.Push(firstChild, ast.TagWhere, ast.FlagEmpty, src)
}

func (p *Parser) parseIf() ast.Token {
	flags := ast.FlagEmpty
	src := p.lexer.next().src

	conditionToken := p.parseExpr(false)

	lex := p.lexer.peek()
	if lex.kind == token.KwdWhere {
		flags |= ast.FlagIfHasWhere
		p.parseWhere()
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdThen {
		p.lexer.skip()
	}

	p.parseExpr(true)

	if p.lexer.peek().kind == token.KwdElse {
		flags |= ast.FlagIfHasElse
		p.lexer.skip()
		p.parseExpr(true)
	}

	return p.builder.Push(conditionToken, ast.TagIf, flags, src)
}

// tryParseForEach disambiguates `for` loops from for-each loops via
// bounded lookahead: a definition introducer, or `<-` after the first
// (pair of) names, means for-each.
func (p *Parser) tryParseForEach(src source.ID) (ast.Token, bool) {
	isForEach := false

	if isDefinitionStart(p.lexer.peek().kind) {
		isForEach = true
	} else if lookahead1 := p.lexer.peekN(1); lookahead1.kind == token.ThinArrowL {
		isForEach = true
	} else if lookahead1.kind == token.Comma {
		if isDefinitionStart(p.lexer.peekN(2).kind) {
			isForEach = true
		}
		if p.lexer.peekN(3).kind == token.ThinArrowL {
			isForEach = true
		}
	}

	if !isForEach {
		return 0, false
	}

	flags := ast.FlagEmpty
	firstChild := p.parseDefinition(true, true)

	lex := p.lexer.peek()
	if lex.kind == token.Comma {
		flags |= ast.FlagForEachHasIndex
		p.lexer.skip()
		p.parseDefinition(true, true)
		lex = p.lexer.peek()
	}

	if lex.kind != token.ThinArrowL {
		p.errs.Errorf(lex.src, "expected '%s' after for-each loop variables but got '%s'", token.ThinArrowL, lex.kind)
	}
	p.lexer.skip()

	p.parseExpr(false)

	lex = p.lexer.peek()
	if lex.kind == token.KwdWhere {
		flags |= ast.FlagForEachHasWhere
		p.parseWhere()
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdDo {
		p.lexer.skip()
	}

	p.parseExpr(true)

	if p.lexer.peek().kind == token.KwdFinally {
		flags |= ast.FlagForEachHasFinally
		p.lexer.skip()
		p.parseExpr(true)
	}

	return p.builder.Push(firstChild, ast.TagForEach, flags, src), true
}

func (p *Parser) parseFor() ast.Token {
	src := p.lexer.next().src

	if forEachToken, ok := p.tryParseForEach(src); ok {
		return forEachToken
	}

	flags := ast.FlagEmpty
	firstChild := p.parseExpr(false)

	lex := p.lexer.peek()
	if lex.kind == token.Comma {
		flags |= ast.FlagForHasStep
		p.lexer.skip()
		p.parseExpr(true)
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdWhere {
		flags |= ast.FlagForHasWhere
		p.parseWhere()
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdDo {
		p.lexer.skip()
	}

	p.parseExpr(true)

	if p.lexer.peek().kind == token.KwdFinally {
		flags |= ast.FlagForHasFinally
		p.lexer.skip()
		p.parseExpr(true)
	}

	return p.builder.Push(firstChild, ast.TagFor, flags, src)
}

func (p *Parser) parseCase() ast.Token {
	src := p.lexer.next().src

	firstChild := p.parseExpr(false)

	lex := p.lexer.next()
	if lex.kind != token.ThinArrowR {
		p.errs.Errorf(lex.src, "expected '%s' after case label expression but got '%s'", token.ThinArrowR, lex.kind)
	}

	p.parseExpr(true)

	return p.builder.Push(firstChild, ast.TagCase, ast.FlagEmpty, src)
}

func (p *Parser) parseSwitch() ast.Token {
	flags := ast.FlagEmpty
	src := p.lexer.next().src

	firstChild := p.parseExpr(false)

	lex := p.lexer.peek()
	if lex.kind == token.KwdWhere {
		flags |= ast.FlagSwitchHasWhere
		p.parseWhere()
		lex = p.lexer.peek()
	}

	if lex.kind != token.KwdCase {
		p.errs.Errorf(lex.src, "expected at least one '%s' after switch expression but got '%s'", token.KwdCase, lex.kind)
	}

	for {
		p.parseCase()
		if p.lexer.peek().kind != token.KwdCase {
			break
		}
	}

	return p.builder.Push(firstChild, ast.TagSwitch, flags, src)
}

func (p *Parser) parseExpects() ast.Token {
	src := p.lexer.next().src

	firstChild := p.parseExpr(false)
	for p.lexer.peek().kind == token.Comma {
		p.lexer.skip()
		p.parseExpr(false)
	}

	return p.builder.Push(firstChild, ast.TagExpects, ast.FlagEmpty, src)
}

func (p *Parser) parseEnsures() ast.Token {
	src := p.lexer.next().src

	firstChild := p.parseExpr(false)
	for p.lexer.peek().kind == token.Comma {
		p.lexer.skip()
		p.parseExpr(false)
	}

	return p.builder.Push(firstChild, ast.TagEnsures, ast.FlagEmpty, src)
}

func (p *Parser) parseFunc() ast.Token {
	flags := ast.FlagEmpty

	lex := p.lexer.next()
	funcSrc := lex.src

	if lex.kind == token.KwdProc {
		flags |= ast.FlagFuncIsProc
	} else if lex.kind != token.KwdFunc {
		p.errs.Errorf(lex.src, "expected '%s' or '%s' but got '%s'", token.KwdFunc, token.KwdProc, lex.kind)
	}

	lex = p.lexer.next()
	parameterListSrc := lex.src
	if lex.kind != token.ParenL {
		p.errs.Errorf(lex.src, "expected '%s' after function introducer but got '%s'", token.ParenL, lex.kind)
	}

	lex = p.lexer.peek()
	firstParameter := ast.NoChildren
	for lex.kind != token.ParenR {
		parameterToken := p.parseDefinition(true, true)
		if firstParameter == ast.NoChildren {
			firstParameter = parameterToken
		}

		lex = p.lexer.peek()
		if lex.kind == token.Comma {
			p.lexer.skip()
			lex = p.lexer.peek()
		} else if lex.kind != token.ParenR {
			p.errs.Errorf(lex.src, "expected '%s' or '%s' after function parameter definition but got '%s'", token.Comma, token.ParenR, lex.kind)
		}
	}

	firstChild := p.builder.Push(firstParameter, ast.TagParameterList, ast.FlagEmpty, parameterListSrc)

	p.lexer.skip()
	lex = p.lexer.peek()

	if lex.kind == token.ThinArrowR {
		flags |= ast.FlagFuncHasReturnType
		p.lexer.skip()
		p.parseExpr(false)
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdExpects {
		flags |= ast.FlagFuncHasExpects
		p.parseExpects()
		lex = p.lexer.peek()
	}

	if lex.kind == token.KwdEnsures {
		flags |= ast.FlagFuncHasEnsures
		p.parseEnsures()
		lex = p.lexer.peek()
	}

	if lex.kind == token.OpSet {
		flags |= ast.FlagFuncHasBody
		p.lexer.skip()
		p.parseExpr(true)
	}

	return p.builder.Push(firstChild, ast.TagFunc, flags, funcSrc, 0, 0)
}

func (p *Parser) parseTrait() ast.Token {
	flags := ast.FlagEmpty
	src := p.lexer.next().src

	lex := p.lexer.next()
	if lex.kind != token.ParenL {
		p.errs.Errorf(lex.src, "expected '%s' after '%s' but got '%s'", token.ParenL, token.KwdTrait, lex.kind)
	}

	lex = p.lexer.peek()
	firstChild := ast.NoChildren
	for lex.kind != token.ParenR {
		parameterToken := p.parseDefinition(true, true)
		if firstChild == ast.NoChildren {
			firstChild = parameterToken
		}

		lex = p.lexer.peek()
		if lex.kind == token.Comma {
			p.lexer.skip()
			lex = p.lexer.peek()
		} else if lex.kind != token.ParenR {
			p.errs.Errorf(lex.src, "expected '%s' or '%s' after trait parameter definition but got '%s'", token.Comma, token.ParenR, lex.kind)
		}
	}
	p.lexer.skip()

	lex = p.lexer.peek()
	if lex.kind == token.KwdExpects {
		flags |= ast.FlagTraitHasExpects
		expectsToken := p.parseExpects()
		if firstChild == ast.NoChildren {
			firstChild = expectsToken
		}
		lex = p.lexer.peek()
	}

	if lex.kind != token.OpSet {
		if flags&ast.FlagTraitHasExpects == 0 {
			p.errs.Errorf(lex.src, "expected '%s' or '%s' after trait parameter list but got '%s'", token.OpSet, token.KwdExpects, lex.kind)
		}
		p.errs.Errorf(lex.src, "expected '%s' after trait expects clause but got '%s'", token.OpSet, lex.kind)
	}
	p.lexer.skip()

	bodyToken := p.parseExpr(true)
	if firstChild == ast.NoChildren {
		firstChild = bodyToken
	}

	return p.builder.Push(firstChild, ast.TagTrait, flags, src)
}

func (p *Parser) parseImpl() ast.Token {
	flags := ast.FlagEmpty
	src := p.lexer.next().src

	firstChild := p.parseExpr(false)

	lex := p.lexer.peek()
	if lex.kind == token.KwdExpects {
		flags |= ast.FlagImplHasExpects
		p.parseExpects()
		lex = p.lexer.peek()
	}

	if lex.kind != token.OpSet {
		if flags&ast.FlagImplHasExpects == 0 {
			p.errs.Errorf(lex.src, "expected '%s' or '%s' after impl target but got '%s'", token.OpSet, token.KwdExpects, lex.kind)
		}
		p.errs.Errorf(lex.src, "expected '%s' after impl expects clause but got '%s'", token.OpSet, lex.kind)
	}
	p.lexer.skip()

	p.parseExpr(true)

	return p.builder.Push(firstChild, ast.TagImpl, flags, src)
}

func (p *Parser) parseDefinitionOrImpl() (tok ast.Token, isDefinition bool) {
	lex := p.lexer.peek()

	switch {
	case isDefinitionStart(lex.kind):
		return p.parseDefinition(false, false), true
	case lex.kind == token.KwdImpl:
		return p.parseImpl(), false
	default:
		p.errs.Errorf(lex.src, "expected definition or impl but got '%s'", lex.kind)
		panic("unreachable")
	}
}

// parseExpr parses one expression. allowComplex gates `=` as a binary
// operator, which statement positions allow and operand positions (for
// example a definition's type annotation) do not.
func (p *Parser) parseExpr(allowComplex bool) ast.Token {
	lex := p.lexer.peek()

	stack := &operatorStack{exprSource: lex.src}
	expectingOperand := true

	for {
		if expectingOperand {
			switch lex.kind {
			case token.Ident:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagIdentifier, ast.FlagEmpty, lex.src, uint32(lex.identifier())))

			case token.LitString:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagLitString, ast.FlagEmpty, lex.src, uint32(lex.identifier())))

			case token.LitFloat:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagLitFloat, ast.FlagEmpty, lex.src, ast.U64Attachment(lex.bits)...))

			case token.LitInteger:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, lex.src, ast.U64Attachment(lex.bits)...))

			case token.LitChar:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagLitChar, ast.FlagEmpty, lex.src, uint32(lex.bits)))

			case token.Wildcard:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagWildcard, ast.FlagEmpty, lex.src))

			case token.CompositeInitializer:
				expectingOperand = false
				p.pushOperand(stack, p.parseInitializer(lex.src, token.CurlyR, ast.TagCompositeInitializer))

			case token.ArrayInitializer:
				expectingOperand = false
				p.pushOperand(stack, p.parseInitializer(lex.src, token.BracketR, ast.TagArrayInitializer))

			case token.BracketL:
				// Array type: [count]element binds like the other type
				// constructors. The count parses now; the element is the
				// pending operand, so the emitted node waits on the
				// operator stack with the count as its ready first child.
				src := lex.src
				p.popToPrecedence(stack, 2, false)
				p.lexer.skip()
				countToken := p.parseExpr(false)

				lex = p.lexer.peek()
				if lex.kind != token.BracketR {
					p.errs.Errorf(lex.src, "expected ']' after array type's size expression, but got '%s'", lex.kind)
				}

				p.pushOperator(stack, opWithSource{
					desc:          opDesc{tag: ast.TagOpTypeArray, precedence: 2},
					src:           src,
					firstChild:    countToken,
					hasFirstChild: true,
				})

			case token.CurlyL:
				expectingOperand = false
				p.pushOperand(stack, p.parseBlock(lex.src))

			case token.KwdIf:
				expectingOperand = false
				p.pushOperand(stack, p.parseIf())
				lex = p.lexer.peek()
				continue

			case token.KwdFor:
				expectingOperand = false
				p.pushOperand(stack, p.parseFor())
				lex = p.lexer.peek()
				continue

			case token.KwdSwitch:
				expectingOperand = false
				p.pushOperand(stack, p.parseSwitch())
				lex = p.lexer.peek()
				continue

			case token.KwdFunc, token.KwdProc:
				expectingOperand = false
				p.pushOperand(stack, p.parseFunc())
				lex = p.lexer.peek()
				continue

			case token.KwdTrait:
				expectingOperand = false
				p.pushOperand(stack, p.parseTrait())
				lex = p.lexer.peek()
				continue

			case token.KwdImpl:
				expectingOperand = false
				p.pushOperand(stack, p.parseImpl())
				lex = p.lexer.peek()
				continue

			case token.Builtin:
				expectingOperand = false
				p.pushOperand(stack, p.builder.Push(ast.NoChildren, ast.TagBuiltin, ast.Flag(lex.bits), lex.src))

			default:
				// Unary operator, or not an expression at all.
				if lex.kind < token.FirstUnaryOperator || lex.kind > token.LastUnaryOperator {
					p.errs.Errorf(lex.src, "expected operand or unary operator but got '%s'", lex.kind)
				}

				op := unaryOps[lex.kind-token.FirstUnaryOperator]
				src := lex.src

				p.lexer.skip()
				lex = p.lexer.peek()

				// Type constructors take an optional `mut` modifier.
				if op.flags == ast.FlagTypeIsMut {
					if lex.kind == token.KwdMut {
						p.lexer.skip()
						lex = p.lexer.peek()
					} else {
						op.flags = ast.FlagEmpty
					}
				}

				p.pushOperator(stack, opWithSource{desc: op, src: src})
				continue
			}
		} else {
			switch lex.kind {
			case token.ParenL:
				// Function call.
				src := lex.src
				p.popToPrecedence(stack, 1, true)
				p.lexer.skip()

				lex = p.lexer.peek()
				for lex.kind != token.ParenR {
					p.parseTopLevelExpr(true)

					lex = p.lexer.peek()
					if lex.kind == token.Comma {
						p.lexer.skip()
						lex = p.lexer.peek()
					} else if lex.kind != token.ParenR {
						p.errs.Errorf(lex.src, "expected ')' or ',' after function argument expression but got '%s'", lex.kind)
					}
				}

				callToken := p.builder.Push(stack.operands[stack.operandCount-1], ast.TagCall, ast.FlagEmpty, src)
				stack.operands[stack.operandCount-1] = callToken

			case token.ParenR:
				if !p.popToPrecedence(stack, 10, false) {
					// No open parenthesis: the ')' belongs to an enclosing
					// construct.
					return stack.operands[stack.operandCount-1]
				}
				stack.operatorTop-- // Remove the '('.

			case token.BracketL:
				// Array index.
				src := lex.src
				p.popToPrecedence(stack, 1, true)
				p.lexer.skip()
				p.parseExpr(false)

				lex = p.lexer.peek()
				if lex.kind != token.BracketR {
					p.errs.Errorf(lex.src, "expected ']' after array index expression, but got '%s'", lex.kind)
				}

				indexToken := p.builder.Push(stack.operands[stack.operandCount-1], ast.TagOpArrayIndex, ast.FlagEmpty, src)
				stack.operands[stack.operandCount-1] = indexToken

			case token.KwdCatch:
				src := lex.src
				flags := ast.FlagEmpty

				p.popToPrecedence(stack, 1, true)
				p.lexer.skip()

				lex = p.lexer.peek()
				if isDefinitionStart(lex.kind) || p.lexer.peekN(1).kind == token.ThinArrowR {
					flags |= ast.FlagCatchHasDefinition
					p.parseDefinition(true, true)

					arrow := p.lexer.next()
					if arrow.kind != token.ThinArrowR {
						p.errs.Errorf(arrow.src, "expected '%s' after inbound definition in catch, but got '%s'", token.ThinArrowR, arrow.kind)
					}
				}

				p.parseExpr(false)

				catchToken := p.builder.Push(stack.operands[stack.operandCount-1], ast.TagCatch, flags, src)
				stack.operands[stack.operandCount-1] = catchToken

				lex = p.lexer.peek()
				continue

			default:
				// Binary operator, or end of expression.
				if lex.kind < token.FirstBinaryOperator || lex.kind > token.LastBinaryOperator ||
					(!allowComplex && lex.kind == token.OpSet) {
					return p.popRemaining(stack)
				}

				op := binaryOps[lex.kind-token.FirstBinaryOperator]
				p.pushOperator(stack, opWithSource{desc: op, src: lex.src})
				expectingOperand = op.isBinary
			}
		}

		p.lexer.skip()
		lex = p.lexer.peek()
	}
}

// parseInitializer parses `.{ ... }` and `.[ ... ]` forms.
func (p *Parser) parseInitializer(src source.ID, closer token.Kind, tag ast.Tag) ast.Token {
	p.lexer.skip()

	lex := p.lexer.peek()
	firstChild := ast.NoChildren

	for lex.kind != closer {
		currToken := p.parseExpr(true)
		if firstChild == ast.NoChildren {
			firstChild = currToken
		}

		lex = p.lexer.peek()
		if lex.kind == token.Comma {
			p.lexer.skip()
			lex = p.lexer.peek()
		} else if lex.kind != closer {
			p.errs.Errorf(lex.src, "expected '%s' or ',' after initializer argument expression but got '%s'", closer, lex.kind)
		}
	}

	return p.builder.Push(firstChild, tag, ast.FlagEmpty, src)
}

// parseBlock parses `{ ... }`, counting definitions for the scope header.
func (p *Parser) parseBlock(src source.ID) ast.Token {
	p.lexer.skip()

	lex := p.lexer.peek()
	firstChild := ast.NoChildren
	definitionCount := uint32(0)

	for lex.kind != token.CurlyR {
		currToken, isDefinition := p.parseTopLevelExpr(false)
		if isDefinition {
			definitionCount++
		}
		if firstChild == ast.NoChildren {
			firstChild = currToken
		}

		lex = p.lexer.peek()
	}

	return p.builder.Push(firstChild, ast.TagBlock, ast.FlagEmpty, src, definitionCount, 0)
}

// parseFile parses the whole buffer: a sequence of top-level definitions
// and impls, wrapped in a File node.
func (p *Parser) parseFile() {
	firstChild := ast.NoChildren
	definitionCount := uint32(0)

	for {
		lex := p.lexer.peek()
		if lex.kind == token.EndOfSource {
			break
		}

		currToken, isDefinition := p.parseDefinitionOrImpl()
		if isDefinition {
			definitionCount++
		}
		if firstChild == ast.NoChildren {
			firstChild = currToken
		}
	}

	p.builder.Push(firstChild, ast.TagFile, ast.FlagEmpty, p.lexer.base, definitionCount, 0)
}

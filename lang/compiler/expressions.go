package compiler

import (
	"strconv"

	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/token"
)

// Precedence orders the operators from loosest- to tightest-binding, as
// described by the grammar's precedence ladder.
type Precedence int

const ( //nolint:revive
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecExponent
	PrecUnary
	PrecIndex
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the Pratt table: for each token kind that can start or continue
// an expression, which grammar function handles it and at what precedence
// an infix occurrence binds.
var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LEFT_PAREN:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		token.LEFT_BRACKET:  {infix: (*Compiler).index, precedence: PrecIndex},
		token.DOT:           {infix: (*Compiler).dot, precedence: PrecCall},
		token.MINUS:         {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		token.PLUS:          {infix: (*Compiler).binary, precedence: PrecTerm},
		token.SLASH:         {infix: (*Compiler).binary, precedence: PrecFactor},
		token.STAR:          {infix: (*Compiler).binary, precedence: PrecFactor},
		token.STAR_STAR:     {infix: (*Compiler).binary, precedence: PrecExponent},
		token.QUESTION:      {infix: (*Compiler).ternary, precedence: PrecTernary},
		token.BANG:          {prefix: (*Compiler).unary},
		token.BANG_EQUAL:    {infix: (*Compiler).binary, precedence: PrecEquality},
		token.EQUAL_EQUAL:   {infix: (*Compiler).binary, precedence: PrecEquality},
		token.GREATER:       {infix: (*Compiler).binary, precedence: PrecComparison},
		token.GREATER_EQUAL: {infix: (*Compiler).binary, precedence: PrecComparison},
		token.LESS:          {infix: (*Compiler).binary, precedence: PrecComparison},
		token.LESS_EQUAL:    {infix: (*Compiler).binary, precedence: PrecComparison},
		token.IDENT:         {prefix: (*Compiler).variable},
		token.STRING:        {prefix: (*Compiler).string_},
		token.NUMBER:        {prefix: (*Compiler).number},
		token.AND:           {infix: (*Compiler).and_, precedence: PrecAnd},
		token.OR:            {infix: (*Compiler).or_, precedence: PrecOr},
		token.FALSE:         {prefix: (*Compiler).literal},
		token.TRUE:          {prefix: (*Compiler).literal},
		token.NIL:           {prefix: (*Compiler).literal},
		token.THIS:          {prefix: (*Compiler).this_},
		token.SUPER:         {prefix: (*Compiler).super_},
		token.FUN:           {prefix: (*Compiler).lambda},
	}
}

func getRule(k token.Kind) parseRule { return rules[k] }

// expression parses a single expression at the loosest precedence, emitting
// its bytecode as it goes.
func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(bool) {
	v, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(object.Number(v))
}

func (c *Compiler) string_(bool) {
	c.emitConstant(c.heap.InternString(c.previous.Lexeme))
}

func (c *Compiler) grouping(bool) {
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case token.MINUS:
		c.emitOp(object.OpNegate)
	case token.BANG:
		c.emitOp(object.OpNot)
	}
}

func (c *Compiler) binary(bool) {
	opKind := c.previous.Kind
	rule := getRule(opKind)
	nextPrec := rule.precedence + 1
	if opKind == token.STAR_STAR {
		// exponentiation is right-associative: a**b**c == a**(b**c)
		nextPrec = rule.precedence
	}
	c.parsePrecedence(nextPrec)

	switch opKind {
	case token.PLUS:
		c.emitOp(object.OpAdd)
	case token.MINUS:
		c.emitOp(object.OpSubtract)
	case token.STAR:
		c.emitOp(object.OpMultiply)
	case token.SLASH:
		c.emitOp(object.OpDivide)
	case token.STAR_STAR:
		c.emitOp(object.OpExponent)
	case token.BANG_EQUAL:
		c.emitOps(object.OpEqual, object.OpNot)
	case token.EQUAL_EQUAL:
		c.emitOp(object.OpEqual)
	case token.GREATER:
		c.emitOp(object.OpGreater)
	case token.GREATER_EQUAL:
		c.emitOps(object.OpLess, object.OpNot)
	case token.LESS:
		c.emitOp(object.OpLess)
	case token.LESS_EQUAL:
		c.emitOps(object.OpGreater, object.OpNot)
	}
}

// ternary compiles `cond ? then : else`. The middle branch is parsed at
// assignment precedence (it's delimited by ':', not by binding power); the
// else branch is parsed at ternary precedence itself so that `a ? b : c ? d
// : e` associates as `a ? b : (c ? d : e)`.
func (c *Compiler) ternary(bool) {
	thenJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.parsePrecedence(PrecAssignment)

	elseJump := c.emitJump(object.OpJump)
	c.patchJump(thenJump)
	c.emitOp(object.OpPop)

	c.consume(token.COLON, "Expect ':' after ternary 'then' branch.")
	c.parsePrecedence(PrecTernary)
	c.patchJump(elseJump)
}

// and_ compiles the short-circuiting right operand of `and`: if the left
// operand (already on the stack) is falsey, jump over the right operand
// entirely, leaving the falsey left value as the result.
func (c *Compiler) and_(bool) {
	endJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

// or_ is and_'s mirror: if the left operand is truthy, skip the right
// operand and keep the left value.
func (c *Compiler) or_(bool) {
	elseJump := c.emitJump(object.OpJumpIfFalse)
	endJump := c.emitJump(object.OpJump)
	c.patchJump(elseJump)
	c.emitOp(object.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) literal(bool) {
	switch c.previous.Kind {
	case token.FALSE:
		c.emitOp(object.OpFalse)
	case token.TRUE:
		c.emitOp(object.OpTrue)
	case token.NIL:
		c.emitOp(object.OpNil)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) this_(bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable(c.previous, false)
}

// super_ compiles `super.NAME` (a bound-method lookup) or `super.NAME(...)`
// (the SUPER_INVOKE call fast-path). Both push the receiver (`this`) before
// the superclass, matching the argument order OP_GET_SUPER and
// OP_SUPER_INVOKE expect.
func (c *Compiler) super_(bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(token.DOT, "Expect '.' after 'super'.")
	c.consume(token.IDENT, "Expect superclass method name.")
	nameConst := c.identifierConstant(c.previous)

	c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "this"}, false)
	if c.match(token.LEFT_PAREN) {
		argc := c.argumentList()
		c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "super"}, false)
		c.emitOpByte(object.OpSuperInvoke, nameConst)
		c.emitByte(argc)
		return
	}
	c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "super"}, false)
	c.emitOpByte(object.OpGetSuper, nameConst)
}

// lambda compiles a `fun (params) { ... }` expression, leaving the closure
// value on the stack. c.previous is still the `fun` keyword token (not an
// IDENT), which is how function() knows to leave the result anonymous.
func (c *Compiler) lambda(bool) {
	c.function(TypeFunction)
}

func (c *Compiler) call(bool) {
	argc := c.argumentList()
	c.emitOpByte(object.OpCall, argc)
}

// argumentList parses a parenthesized, comma-separated argument list already
// past its opening '(' and returns the argument count.
func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(token.RIGHT_PAREN) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
	return byte(argc)
}

// dot compiles `.NAME`: a property get, a property set (followed by '='),
// or the INVOKE fast-path (followed by '(').
func (c *Compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "Expect property name after '.'.")
	nameConst := c.identifierConstant(c.previous)

	switch {
	case canAssign && c.match(token.EQUAL):
		c.expression()
		c.emitOpByte(object.OpSetProperty, nameConst)
	case c.match(token.LEFT_PAREN):
		argc := c.argumentList()
		c.emitOpByte(object.OpInvoke, nameConst)
		c.emitByte(argc)
	default:
		c.emitOpByte(object.OpGetProperty, nameConst)
	}
}

// index compiles `[i]` (OP_ACCESS_INDEX) or `[lo:hi]` (OP_SLICE_INDEX),
// already past the sequence expression it subscripts. Either slice bound may
// be omitted: a missing start defaults to constant 0 and a missing end to
// the sequence's length, read in place with GET_LENGTH so the sequence
// expression is not compiled twice.
func (c *Compiler) index(bool) {
	if c.check(token.COLON) {
		c.emitConstant(object.Number(0))
	} else {
		c.expression()
	}
	if c.match(token.COLON) {
		if c.match(token.RIGHT_BRACKET) {
			// the sequence sits one slot below the start bound
			c.emitOpByte(object.OpLength, 1)
		} else {
			c.expression()
			c.consume(token.RIGHT_BRACKET, "Expect ']' after slice.")
		}
		c.emitOp(object.OpSliceIndex)
		return
	}
	c.consume(token.RIGHT_BRACKET, "Expect ']' after index.")
	c.emitOp(object.OpIndex)
}

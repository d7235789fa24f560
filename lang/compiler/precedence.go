package compiler

import "github.com/loxlang/loxvm/lang/token"

// precedence orders binding strength from loosest to tightest, per the
// grammar's precedence ladder.
type precedence int

//nolint:revive
const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // ( )
	precPrimary
)

// parseFn is a Pratt parser rule function: prefix rules consume the token
// already in previous and produce a value; infix rules consume previous as
// the already-parsed left operand's trailing operator.
type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.LPAREN:   {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		token.MINUS:    {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		token.PLUS:     {infix: (*Compiler).binary, precedence: precTerm},
		token.SLASH:    {infix: (*Compiler).binary, precedence: precFactor},
		token.STAR:     {infix: (*Compiler).binary, precedence: precFactor},
		token.BANG:     {prefix: (*Compiler).unary},
		token.BANG_EQ:  {infix: (*Compiler).binary, precedence: precEquality},
		token.EQ_EQ:    {infix: (*Compiler).binary, precedence: precEquality},
		token.GT:       {infix: (*Compiler).binary, precedence: precComparison},
		token.GT_EQ:    {infix: (*Compiler).binary, precedence: precComparison},
		token.LT:       {infix: (*Compiler).binary, precedence: precComparison},
		token.LT_EQ:    {infix: (*Compiler).binary, precedence: precComparison},
		token.IDENT:    {prefix: (*Compiler).variable},
		token.STRING:   {prefix: (*Compiler).string},
		token.NUMBER:   {prefix: (*Compiler).number},
		token.AND:      {infix: (*Compiler).and, precedence: precAnd},
		token.OR:       {infix: (*Compiler).or, precedence: precOr},
		token.FALSE:    {prefix: (*Compiler).literal},
		token.TRUE:     {prefix: (*Compiler).literal},
		token.NIL:      {prefix: (*Compiler).literal},
	}
}

func getRule(k token.Kind) rule { return rules[k] }

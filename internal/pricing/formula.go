package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// FormulaError indicates a formula could not be parsed or evaluated. Formulas
// are a restricted expression language, never arbitrary code: the parser
// builds a small AST (literal, variable, unary minus, binary op, call) and
// the evaluator only knows the fixed allow-lists below.
type FormulaError struct {
	Formula string
	Reason  string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Formula, e.Reason)
}

// Variables a formula may reference.
var formulaVariables = map[string]bool{
	"price":          true,
	"discount":       true,
	"discount_price": true,
}

// Functions a formula may call, with their arity.
var formulaFunctions = map[string]int{
	"min":   2,
	"max":   2,
	"abs":   1,
	"round": 1,
}

// Expr is a parsed formula ready for evaluation.
type Expr struct {
	root    node
	formula string
}

type node interface {
	eval(vars map[string]float64, formula string) (float64, error)
}

type literalNode float64

func (n literalNode) eval(map[string]float64, string) (float64, error) {
	return float64(n), nil
}

type variableNode string

func (n variableNode) eval(vars map[string]float64, formula string) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, &FormulaError{Formula: formula, Reason: fmt.Sprintf("unknown identifier %q", string(n))}
	}
	return v, nil
}

type negNode struct {
	operand node
}

func (n negNode) eval(vars map[string]float64, formula string) (float64, error) {
	v, err := n.operand.eval(vars, formula)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          byte // one of + - * /
	left, right node
}

func (n binaryNode) eval(vars map[string]float64, formula string) (float64, error) {
	l, err := n.left.eval(vars, formula)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars, formula)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, &FormulaError{Formula: formula, Reason: "division by zero"}
		}
		return l / r, nil
	}
	return 0, &FormulaError{Formula: formula, Reason: fmt.Sprintf("unsupported operator %q", string(n.op))}
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(vars map[string]float64, formula string) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars, formula)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch n.name {
	case "min":
		return math.Min(vals[0], vals[1]), nil
	case "max":
		return math.Max(vals[0], vals[1]), nil
	case "abs":
		return math.Abs(vals[0]), nil
	case "round":
		return math.Round(vals[0]), nil
	}
	return 0, &FormulaError{Formula: formula, Reason: fmt.Sprintf("unknown function %q", n.name)}
}

// Eval evaluates the expression against the given variable values.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	return e.root.eval(vars, e.formula)
}

// ParseFormula parses a restricted price expression. Supported syntax:
// numbers, the variables price/discount/discount_price, + - * /, parentheses,
// unary minus, and the functions min/max/abs/round.
func ParseFormula(formula string) (*Expr, error) {
	p := &parser{formula: formula, input: strings.TrimSpace(formula)}
	if p.input == "" {
		return nil, &FormulaError{Formula: formula, Reason: "empty formula"}
	}
	root, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, p.errorf("unexpected character %q", p.input[p.pos])
	}
	return &Expr{root: root, formula: formula}, nil
}

type parser struct {
	formula string
	input   string
	pos     int
}

func (p *parser) errorf(format string, args ...interface{}) *FormulaError {
	return &FormulaError{Formula: p.formula, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// additive := multiplicative (("+" | "-") multiplicative)*
func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// multiplicative := unary (("*" | "/") unary)*
func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// unary := "-" unary | primary
func (p *parser) parseUnary() (node, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

// primary := number | ident | ident "(" args ")" | "(" additive ")"
func (p *parser) parsePrimary() (node, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of formula")
	}

	c := p.input[p.pos]

	if c == '(' {
		p.pos++
		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	}

	if c >= '0' && c <= '9' || c == '.' {
		return p.parseNumber()
	}

	if unicode.IsLetter(rune(c)) || c == '_' {
		return p.parseIdent()
	}

	return nil, p.errorf("unexpected character %q", c)
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", p.input[start:p.pos])
	}
	return literalNode(v), nil
}

func (p *parser) parseIdent() (node, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	name := p.input[start:p.pos]

	p.skipSpace()
	if p.peek() != '(' {
		if !formulaVariables[name] {
			return nil, p.errorf("unknown identifier %q", name)
		}
		return variableNode(name), nil
	}

	arity, ok := formulaFunctions[name]
	if !ok {
		return nil, p.errorf("unknown function %q", name)
	}

	p.pos++ // consume "("
	args := make([]node, 0, arity)
	for {
		arg, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	if p.peek() != ')' {
		return nil, p.errorf("missing closing parenthesis in call to %q", name)
	}
	p.pos++
	if len(args) != arity {
		return nil, p.errorf("%s expects %d argument(s), got %d", name, arity, len(args))
	}
	return callNode{name: name, args: args}, nil
}

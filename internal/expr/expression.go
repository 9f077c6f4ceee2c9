// Package expr implements the arithmetic language used to define
// deterministic nodes, e.g. "exp(mu + 0.5 * sigma * sigma)". Identifiers
// name parent nodes.
package expr

import (
	"fmt"
	"strconv"
	"unicode"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is the common interface for all AST nodes.
type Expr interface {
	exprNode()
}

// NumberExpr is a numeric literal.
type NumberExpr struct {
	Value float64
}

func (*NumberExpr) exprNode() {}

// IdentExpr references a node by name.
type IdentExpr struct {
	Name string
}

func (*IdentExpr) exprNode() {}

// UnaryExpr represents -<expr>.
type UnaryExpr struct {
	Op   byte
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// BinaryExpr represents + - * /.
type BinaryExpr struct {
	Op    byte
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// CallExpr represents name(args...).
type CallExpr struct {
	Func string
	Args []Expr
}

func (*CallExpr) exprNode() {}

// Identifiers returns the names referenced by e in order of first appearance.
func Identifiers(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *IdentExpr:
			if !seen[x.Name] {
				seen[x.Name] = true
				out = append(out, x.Name)
			}
		case *UnaryExpr:
			walk(x.Expr)
		case *BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *CallExpr:
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or function name
	tokOp                      // + - * /
	tokNumber                  // 42 | 3.14 | 1e-3
	tokComma
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func isWordChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_'
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		switch ch {
		case '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
			continue
		case '+', '-', '*', '/':
			tokens = append(tokens, token{tokOp, string(ch), i})
			i++
			continue
		}
		// Numbers, with an optional exponent.
		if unicode.IsDigit(rune(ch)) || ch == '.' {
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
				k := j + 1
				if k < len(src) && (src[k] == '+' || src[k] == '-') {
					k++
				}
				if k < len(src) && unicode.IsDigit(rune(src[k])) {
					for k < len(src) && unicode.IsDigit(rune(src[k])) {
						k++
					}
					j = k
				}
			}
			tokens = append(tokens, token{tokNumber, src[i:j], i})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(src) && isWordChar(src[j]) {
				j++
			}
			tokens = append(tokens, token{tokWord, src[i:j], i})
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, "", len(src)})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, val string) error {
	t := p.peek()
	if t.kind != kind {
		return fmt.Errorf("expected %q at position %d but got %q", val, t.pos, t.val)
	}
	p.consume()
	return nil
}

// Parse parses an expression string into an AST. Calls are checked against
// the built-in function table.
func Parse(src string) (Expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return node, nil
}

// sum = product ( ("+" | "-") product )*
func (p *parser) parseSum() (Expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().val == "+" || p.peek().val == "-") {
		op := p.consume().val[0]
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// product = unary ( ("*" | "/") unary )*
func (p *parser) parseProduct() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().val == "*" || p.peek().val == "/") {
		op := p.consume().val[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// unary = "-" unary | primary
func (p *parser) parseUnary() (Expr, error) {
	if t := p.peek(); t.kind == tokOp && t.val == "-" {
		p.consume()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: '-', Expr: inner}, nil
	}
	return p.parsePrimary()
}

// primary = number | ident | call | "(" sum ")"
func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &NumberExpr{Value: f}, nil
	case tokWord:
		p.consume()
		if p.peek().kind != tokLParen {
			return &IdentExpr{Name: t.val}, nil
		}
		return p.parseCall(t)
	case tokLParen:
		p.consume()
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		if t.kind == tokEOF {
			return nil, fmt.Errorf("unexpected end of expression")
		}
		return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
	}
}

// call = word "(" [ sum ( "," sum )* ] ")"
func (p *parser) parseCall(name token) (Expr, error) {
	spec, ok := builtins[name.val]
	if !ok {
		return nil, fmt.Errorf("unknown function %q at position %d", name.val, name.pos)
	}
	p.consume() // (
	var args []Expr
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.consume()
		}
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name.val, len(args))
	}
	return &CallExpr{Func: name.val, Args: args}, nil
}

package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"bread/internal/core/apperror"
	"bread/internal/metadata"
)

// SyntaxError reports where an expression stopped making sense.
type SyntaxError struct {
	Pos int // byte offset into the input
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokNumber
	tokOperator
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, text: ".", pos: start}, nil
	case c == '"':
		return l.lexString()
	case c == '=' || c == '~':
		l.pos++
		return token{kind: tokOperator, text: string(c), pos: start}, nil
	case c == '!' || c == '<' || c == '>':
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '=' || (c == '!' && l.src[l.pos] == '~')) {
			l.pos++
		}
		text := l.src[start:l.pos]
		if text == "!" {
			return token{}, &SyntaxError{Pos: start, Msg: `unexpected "!"`}
		}
		return token{kind: tokOperator, text: text, pos: start}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return l.lexNumber()
	case c == '_' || unicode.IsLetter(rune(c)):
		for l.pos < len(l.src) {
			r := rune(l.src[l.pos])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			l.pos++
		}
		return token{kind: tokName, text: l.src[start:l.pos], pos: start}, nil
	}
	return token{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, &SyntaxError{Pos: l.pos, Msg: "unterminated escape sequence"}
			}
			switch esc := l.src[l.pos+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, &SyntaxError{Pos: start, Msg: "unterminated string"}
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	digits := 0
	for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
		l.pos++
		digits++
	}
	if digits == 0 {
		return token{}, &SyntaxError{Pos: start, Msg: `expected a number after "-"`}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
}

type parser struct {
	lex  lexer
	tok  token
	peek *token
}

// Parse reads an expression such as
//
//	name ~ "acme" and (total > 10 or customer.city in ("Bern", "Basel"))
//
// Failures carry code FILTER_SYNTAX_ERROR and wrap a *SyntaxError.
func Parse(input string) (Node, error) {
	p := &parser{lex: lexer{src: input}}
	if err := p.advance(); err != nil {
		return nil, wrapSyntax(err)
	}
	if p.tok.kind == tokEOF {
		return nil, wrapSyntax(&SyntaxError{Pos: 0, Msg: "empty expression"})
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, wrapSyntax(err)
	}
	if p.tok.kind != tokEOF {
		return nil, wrapSyntax(&SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("unexpected %q", p.tok.text)})
	}
	return n, nil
}

func wrapSyntax(err error) error {
	se, ok := err.(*SyntaxError)
	if !ok {
		return err
	}
	return apperror.NewFilterSyntax(se.Error(), se.Pos)
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) lookahead() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) isKeyword(word string) bool {
	return p.tok.kind == tokName && p.tok.text == word
}

func (p *parser) parseOr() (Node, error) {
	return p.parseChain(Or, p.parseAnd)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseChain(And, p.parseTerm)
}

func (p *parser) parseChain(op Logic, operand func() (Node, error)) (Node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.isKeyword(string(op)) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := operand()
		if err != nil {
			return nil, err
		}
		// a and (b and c) flattens into one group
		if g, ok := n.(*Group); ok && g.Op == op {
			children = append(children, g.Children...)
		} else {
			children = append(children, n)
		}
	}
	if g, ok := first.(*Group); ok && g.Op == op && len(children) > 1 {
		children = append(append([]Node(nil), g.Children...), children[1:]...)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &Group{Op: op, Children: children}, nil
}

func (p *parser) parseTerm() (Node, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &SyntaxError{Pos: p.tok.pos, Msg: `expected ")"`}
		}
		return n, p.advance()
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	opPos := p.tok.pos
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}

	if op == metadata.OpIn || op == metadata.OpNotIn {
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &Comparison{Path: path, Operator: op, Value: list}, nil
	}

	if p.tok.kind == tokLParen {
		return nil, &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("operator %q does not take a list", op)}
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if v == nil && op != metadata.OpEqual && op != metadata.OpNotEqual {
		return nil, &SyntaxError{Pos: opPos, Msg: fmt.Sprintf("None can only be compared with = or !=, not %q", op)}
	}
	return &Comparison{Path: path, Operator: op, Value: v}, nil
}

func (p *parser) parsePath() (string, error) {
	if p.tok.kind != tokName || isReserved(p.tok.text) {
		return "", &SyntaxError{Pos: p.tok.pos, Msg: "expected a field name"}
	}
	parts := []string{p.tok.text}
	if err := p.advance(); err != nil {
		return "", err
	}
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return "", err
		}
		if p.tok.kind != tokName {
			return "", &SyntaxError{Pos: p.tok.pos, Msg: `expected a field name after "."`}
		}
		parts = append(parts, p.tok.text)
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	return metadata.JoinPath(parts...), nil
}

func (p *parser) parseOperator() (metadata.Operator, error) {
	t := p.tok
	switch {
	case t.kind == tokOperator:
		return metadata.Operator(t.text), p.advance()
	case t.kind == tokName && (t.text == "in" || t.text == "startswith" || t.text == "endswith"):
		return metadata.Operator(t.text), p.advance()
	case t.kind == tokName && t.text == "not":
		next, err := p.lookahead()
		if err != nil {
			return "", err
		}
		if next.kind == tokName && (next.text == "in" || next.text == "startswith" || next.text == "endswith") {
			if err := p.advance(); err != nil {
				return "", err
			}
			return metadata.Operator("not " + next.text), p.advance()
		}
		return "", &SyntaxError{Pos: next.pos, Msg: `expected "in", "startswith" or "endswith" after "not"`}
	}
	return "", &SyntaxError{Pos: t.pos, Msg: "expected a comparison operator"}
}

func (p *parser) parseList() ([]any, error) {
	if p.tok.kind != tokLParen {
		return nil, &SyntaxError{Pos: p.tok.pos, Msg: `expected "(" to start a list`}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var items []any
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind != tokRParen {
			return nil, &SyntaxError{Pos: p.tok.pos, Msg: `expected "," or ")"`}
		}
		return items, p.advance()
	}
}

func (p *parser) parseValue() (any, error) {
	t := p.tok
	var v any
	switch t.kind {
	case tokString:
		v = t.text
	case tokNumber:
		if strings.Contains(t.text, ".") {
			d, err := decimal.NewFromString(t.text)
			if err != nil {
				return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid number %q", t.text)}
			}
			v = d
		} else {
			n, err := strconv.ParseInt(t.text, 10, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid number %q", t.text)}
			}
			v = n
		}
	case tokName:
		switch t.text {
		case "True":
			v = true
		case "False":
			v = false
		case "None":
			v = nil
		default:
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q, values must be quoted", t.text)}
		}
	default:
		if t.kind == tokEOF {
			return nil, &SyntaxError{Pos: t.pos, Msg: "expected a value"}
		}
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q, expected a value", t.text)}
	}
	return v, p.advance()
}

func isReserved(word string) bool {
	switch word {
	case "and", "or", "not", "in", "True", "False", "None":
		return true
	}
	return false
}

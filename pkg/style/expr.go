package style

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// GeometryTypeField is the pseudo-attribute holding a feature's geometry
// class: 1 point, 2 line, 3 polygon, 4 collection.
const GeometryTypeField = "mapnik::geometry_type"

// Expr is a parsed filter or label expression.
type Expr interface {
	Eval(props map[string]any) any
	String() string
}

// Match evaluates e as a filter. A nil expression matches everything.
func Match(e Expr, props map[string]any) bool {
	if e == nil {
		return true
	}
	return truthy(e.Eval(props))
}

// Label evaluates e and formats the result as label text.
func Label(e Expr, props map[string]any) string {
	if e == nil {
		return ""
	}
	return toString(e.Eval(props))
}

// ParseExpr parses an expression such as
//
//	[highway] = 'primary' and ([lanes] >= 2 or not [oneway] = 'yes')
//	[name] + ' (' + [ref] + ')'
func ParseExpr(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return e, nil
}

// =============================================================================
// Lexer
// =============================================================================

type tokKind int

const (
	tokEOF tokKind = iota
	tokField
	tokString
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '[':
			j := i + 1
			for j < len(rs) && rs[j] != ']' {
				j++
			}
			if j == len(rs) {
				return nil, errors.New(errors.ErrCodeInvalidFilter, "unterminated field in %q", src)
			}
			toks = append(toks, token{kind: tokField, text: string(rs[i+1 : j])})
			i = j + 1
		case r == '\'' || r == '"':
			var b strings.Builder
			j := i + 1
			for ; j < len(rs) && rs[j] != r; j++ {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				b.WriteRune(rs[j])
			}
			if j == len(rs) {
				return nil, errors.New(errors.ErrCodeInvalidFilter, "unterminated string in %q", src)
			}
			toks = append(toks, token{kind: tokString, text: b.String()})
			i = j + 1
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.' || rs[j] == 'e' || rs[j] == 'E' ||
				((rs[j] == '-' || rs[j] == '+') && (rs[j-1] == 'e' || rs[j-1] == 'E'))) {
				j++
			}
			f, err := strconv.ParseFloat(string(rs[i:j]), 64)
			if err != nil {
				return nil, errors.New(errors.ErrCodeInvalidFilter, "bad number %q in %q", string(rs[i:j]), src)
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i:j]), num: f})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(string(rs[i:j]))})
			i = j
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		default:
			op := string(r)
			if i+1 < len(rs) {
				two := string(rs[i : i+2])
				switch two {
				case "==", "!=", "<>", "<=", ">=", "&&", "||":
					op = two
				}
			}
			switch op {
			case "=", "==", "!=", "<>", "<", "<=", ">", ">=", "&&", "||", "!", "+", "-", "*", "/", "%":
			default:
				return nil, errors.New(errors.ErrCodeInvalidFilter, "unexpected %q in %q", op, src)
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += len([]rune(op))
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// =============================================================================
// Parser
// =============================================================================

type parser struct {
	toks []token
	pos  int
	src  string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidFilter, "%s in %q", fmt.Sprintf(format, args...), p.src)
}

func (p *parser) accept(kind tokKind, texts ...string) bool {
	t := p.peek()
	if t.kind != kind {
		return false
	}
	for _, s := range texts {
		if t.text == s {
			p.pos++
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokIdent, "or") || p.accept(tokOp, "||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binary{op: "or", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.accept(tokIdent, "and") || p.accept(tokOp, "&&") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binary{op: "and", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.accept(tokIdent, "not") || p.accept(tokOp, "!") {
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return not{e}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp {
		op := t.text
		switch op {
		case "=", "==":
			op = "="
		case "<>":
			op = "!="
		}
		switch op {
		case "=", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return binary{op: op, l: left, r: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseAdd() (Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = binary{op: t.text, l: left, r: right}
	}
}

func (p *parser) parseMul() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: t.text, l: left, r: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.accept(tokOp, "-") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binary{op: "-", l: literal{0.0}, r: e}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokField:
		return field(t.text), nil
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		return literal{t.num}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literal{true}, nil
		case "false":
			return literal{false}, nil
		case "null":
			return literal{nil}, nil
		}
		return nil, p.errorf("unknown identifier %q", t.text)
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen, ")") {
			return nil, p.errorf("missing )")
		}
		return e, nil
	case tokEOF:
		return nil, p.errorf("unexpected end of expression")
	}
	return nil, p.errorf("unexpected %q", t.text)
}

// =============================================================================
// AST
// =============================================================================

type field string

func (f field) Eval(props map[string]any) any { return props[string(f)] }
func (f field) String() string                { return "[" + string(f) + "]" }

type literal struct{ v any }

func (l literal) Eval(map[string]any) any { return l.v }
func (l literal) String() string {
	switch v := l.v.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	case nil:
		return "null"
	}
	return toString(l.v)
}

type not struct{ e Expr }

func (n not) Eval(props map[string]any) any { return !truthy(n.e.Eval(props)) }
func (n not) String() string                { return "not " + n.e.String() }

type binary struct {
	op   string
	l, r Expr
}

func (b binary) String() string {
	return "(" + b.l.String() + " " + b.op + " " + b.r.String() + ")"
}

func (b binary) Eval(props map[string]any) any {
	switch b.op {
	case "and":
		return truthy(b.l.Eval(props)) && truthy(b.r.Eval(props))
	case "or":
		return truthy(b.l.Eval(props)) || truthy(b.r.Eval(props))
	}

	l, r := b.l.Eval(props), b.r.Eval(props)
	switch b.op {
	case "=":
		return equal(l, r)
	case "!=":
		return !equal(l, r)
	case "<", "<=", ">", ">=":
		c, ok := compare(l, r)
		if !ok {
			return false
		}
		switch b.op {
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		default:
			return c >= 0
		}
	case "+":
		ln, lok := toNumber(l)
		rn, rok := toNumber(r)
		if lok && rok && !isString(l) && !isString(r) {
			return ln + rn
		}
		return toString(l) + toString(r)
	}

	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if !lok || !rok {
		return nil
	}
	switch b.op {
	case "-":
		return ln - rn
	case "*":
		return ln * rn
	case "/":
		if rn == 0 {
			return nil
		}
		return ln / rn
	case "%":
		if rn == 0 {
			return nil
		}
		return math.Mod(ln, rn)
	}
	return nil
}

// =============================================================================
// Value helpers
// =============================================================================

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return true
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if isString(l) && isString(r) {
		return l.(string) == r.(string)
	}
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if lok && rok {
		return ln == rn
	}
	return toString(l) == toString(r)
}

func compare(l, r any) (int, bool) {
	if l == nil || r == nil {
		return 0, false
	}
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if lok && rok {
		switch {
		case ln < rn:
			return -1, true
		case ln > rn:
			return 1, true
		}
		return 0, true
	}
	return strings.Compare(toString(l), toString(r)), true
}

package hplparse

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nugget/simreq/internal/ast"
)

// Parse turns HPL source text into a sequence of top-level patterns,
// one per pattern statement. Example input:
//
//	existence: event(topic="/odom", type="nav_msgs/Odometry", pred=x > 0) within 10
//	response: event(topic="/a", type="T", pred=a = 1) then event(topic="/b", type="T", pred=b = 1) within 5
//
// Grammar (informal):
//
//	pattern     := kind ":" event [ connector event ] [ "within" number ]
//	kind        := "existence" | "absence" | "response" | "requirement" | "prevention"
//	connector   := "then" | "requires" | "forbids"   (required for all kinds but existence/absence)
//	event       := simpleEvent { "or" simpleEvent }
//	simpleEvent := "event" "(" "topic" "=" string "," "type" "=" string "," "pred" "=" expr ")"
//	expr        := iffExpr
//	iffExpr     := impliesExpr { "iff" impliesExpr }
//	impliesExpr := andExpr { "implies" andExpr }
//	andExpr     := comparison { "and" comparison }
//	comparison  := operand compOp operand | "(" expr ")"
//	operand     := ident | number | "true" | "false" | string
func Parse(src string) ([]*ast.SimulationPattern, error) {
	p := &parser{lex: newLexer(src)}
	var patterns []*ast.SimulationPattern
	for p.lex.peekTok().kind != tokEOF {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
	}
	return patterns, nil
}

type parser struct {
	lex *lexer
}

func (p *parser) parsePattern() (*ast.SimulationPattern, error) {
	kindTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}

	first, err := p.parseEvent()
	if err != nil {
		return nil, err
	}

	pat := &ast.SimulationPattern{Timeout: math.Inf(1)}

	switch kindTok {
	case "existence":
		pat.Kind = ast.PatternExistence
		pat.Event = first
	case "absence":
		pat.Kind = ast.PatternAbsence
		pat.Event = first
	case "response":
		pat.Kind = ast.PatternResponse
		if err := p.expectIdentValue("then"); err != nil {
			return nil, err
		}
		second, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		pat.Event, pat.Event2 = first, second
	case "requirement":
		pat.Kind = ast.PatternRequirement
		if err := p.expectIdentValue("requires"); err != nil {
			return nil, err
		}
		second, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		pat.Event, pat.Event2 = first, second
	case "prevention":
		pat.Kind = ast.PatternPrevention
		if err := p.expectIdentValue("forbids"); err != nil {
			return nil, err
		}
		second, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		pat.Event, pat.Event2 = first, second
	default:
		return nil, fmt.Errorf("hplparse: unknown pattern kind %q", kindTok)
	}

	if p.lex.peekTok().kind == tokIdent && p.lex.peekTok().text == "within" {
		p.lex.next()
		num, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		pat.Timeout = num
	}

	return pat, nil
}

// parseEvent parses a simple event, optionally combined with "or" into
// a left-associative chain of EventDisjunction nodes.
func (p *parser) parseEvent() (ast.Node, error) {
	left, err := p.parseSimpleEvent()
	if err != nil {
		return nil, err
	}
	for p.lex.peekTok().kind == tokIdent && p.lex.peekTok().text == "or" {
		p.lex.next()
		right, err := p.parseSimpleEvent()
		if err != nil {
			return nil, err
		}
		left = &ast.EventDisjunction{Event1: left, Event2: right}
	}
	return left, nil
}

func (p *parser) parseSimpleEvent() (ast.Node, error) {
	if err := p.expectIdentValue("event"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	evt := &ast.SimpleEvent{}

	if err := p.expectIdentValue("topic"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	topic, err := p.expectString()
	if err != nil {
		return nil, err
	}
	evt.Topic = topic

	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	if err := p.expectIdentValue("type"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	msgType, err := p.expectString()
	if err != nil {
		return nil, err
	}
	evt.MessageType = msgType

	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	if err := p.expectIdentValue("pred"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	evt.Predicate = expr

	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	return evt, nil
}

func (p *parser) parseExpr() (ast.Expression, error) {
	return p.parseIff()
}

func (p *parser) parseIff() (ast.Expression, error) {
	left, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.lex.peekTok().kind == tokIdent && p.lex.peekTok().text == "iff" {
		p.lex.next()
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperator{OperatorToken: ast.OpIff, Operand1: left, Operand2: right}
	}
	return left, nil
}

func (p *parser) parseImplies() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.lex.peekTok().kind == tokIdent && p.lex.peekTok().text == "implies" {
		p.lex.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperator{OperatorToken: ast.OpImplies, Operand1: left, Operand2: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.lex.peekTok().kind == tokIdent && p.lex.peekTok().text == "and" {
		p.lex.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperator{OperatorToken: ast.OpAnd, Operand1: left, Operand2: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (ast.Expression, error) {
	if p.lex.peekTok().kind == tokPunct && p.lex.peekTok().text == "(" {
		p.lex.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	opTok := p.lex.next()
	op, ok := compareOp(opTok)
	if !ok {
		return nil, fmt.Errorf("hplparse: expected comparison operator at %s, got %q", opTok.pos, opTok.text)
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &ast.BinaryOperator{OperatorToken: op, Operand1: left, Operand2: right}, nil
}

func compareOp(t token) (ast.Op, bool) {
	if t.kind != tokPunct {
		return "", false
	}
	switch t.text {
	case "=":
		return ast.OpEqual, true
	case "!=":
		return ast.OpNotEqual, true
	case "<":
		return ast.OpLess, true
	case "<=":
		return ast.OpLessEqual, true
	case ">":
		return ast.OpGreater, true
	case ">=":
		return ast.OpGreaterEqual, true
	default:
		return "", false
	}
}

func (p *parser) parseOperand() (ast.Expression, error) {
	t := p.lex.next()
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "true":
			return &ast.Literal{Kind: ast.LiteralBool, Bool: true}, nil
		case "false":
			return &ast.Literal{Kind: ast.LiteralBool, Bool: false}, nil
		default:
			return &ast.FieldAccess{Field: t.text}, nil
		}
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return &ast.Literal{Kind: ast.LiteralInt, Int: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("hplparse: bad numeric literal %q at %s", t.text, t.pos)
		}
		return &ast.Literal{Kind: ast.LiteralFloat, Float: f}, nil
	case tokString:
		return &ast.Literal{Kind: ast.LiteralString, Str: t.text}, nil
	default:
		return nil, fmt.Errorf("hplparse: expected operand at %s, got %q", t.pos, t.text)
	}
}

func (p *parser) expectIdent() (string, error) {
	t := p.lex.next()
	if t.kind != tokIdent {
		return "", fmt.Errorf("hplparse: expected identifier at %s, got %q", t.pos, t.text)
	}
	return t.text, nil
}

func (p *parser) expectIdentValue(want string) error {
	t := p.lex.next()
	if t.kind != tokIdent || t.text != want {
		return fmt.Errorf("hplparse: expected %q at %s, got %q", want, t.pos, t.text)
	}
	return nil
}

func (p *parser) expectPunct(want string) error {
	t := p.lex.next()
	if t.kind != tokPunct || t.text != want {
		return fmt.Errorf("hplparse: expected %q at %s, got %q", want, t.pos, t.text)
	}
	return nil
}

func (p *parser) expectString() (string, error) {
	t := p.lex.next()
	if t.kind != tokString {
		return "", fmt.Errorf("hplparse: expected string at %s, got %q", t.pos, t.text)
	}
	return t.text, nil
}

func (p *parser) expectNumber() (float64, error) {
	t := p.lex.next()
	if t.kind != tokNumber {
		return 0, fmt.Errorf("hplparse: expected number at %s, got %q", t.pos, t.text)
	}
	return strconv.ParseFloat(t.text, 64)
}

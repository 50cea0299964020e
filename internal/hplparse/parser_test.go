package hplparse

import (
	"math"
	"testing"

	"github.com/nugget/simreq/internal/ast"
)

func TestParseExistenceWithTimeout(t *testing.T) {
	src := `existence: event(topic="/odom", type="nav_msgs/Odometry", pred=x > 0) within 10`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	p := patterns[0]
	if !p.IsExistence() {
		t.Fatalf("expected existence pattern, got kind %v", p.Kind)
	}
	if p.Timeout != 10 {
		t.Errorf("expected timeout 10, got %v", p.Timeout)
	}
	evt, ok := p.Event.(*ast.SimpleEvent)
	if !ok {
		t.Fatalf("expected *ast.SimpleEvent, got %T", p.Event)
	}
	if evt.Topic != "/odom" || evt.MessageType != "nav_msgs/Odometry" {
		t.Errorf("unexpected event fields: %+v", evt)
	}
	op, ok := evt.Predicate.(*ast.BinaryOperator)
	if !ok {
		t.Fatalf("expected *ast.BinaryOperator, got %T", evt.Predicate)
	}
	if op.OperatorToken != ast.OpGreater {
		t.Errorf("expected > operator, got %v", op.OperatorToken)
	}
}

func TestParseResponseWithoutTimeoutDefaultsInfinite(t *testing.T) {
	src := `response: event(topic="/a", type="T", pred=a = 1) then event(topic="/b", type="T", pred=b = 1)`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := patterns[0]
	if !p.IsResponse() {
		t.Fatalf("expected response pattern")
	}
	if !math.IsInf(p.Timeout, 1) {
		t.Errorf("expected default timeout +Inf, got %v", p.Timeout)
	}
	if p.Event == nil || p.Event2 == nil {
		t.Fatalf("response pattern must carry both events")
	}
}

func TestParseEventDisjunction(t *testing.T) {
	src := `existence: event(topic="/a", type="T", pred=a = 1) or event(topic="/b", type="T", pred=b = 1) within 5`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dis, ok := patterns[0].Event.(*ast.EventDisjunction)
	if !ok {
		t.Fatalf("expected *ast.EventDisjunction, got %T", patterns[0].Event)
	}
	if dis.Event1 == nil || dis.Event2 == nil {
		t.Errorf("disjunction missing a branch")
	}
}

func TestParsePredicatePrecedence(t *testing.T) {
	src := `existence: event(topic="/a", type="T", pred=a = 1 and b = 2 implies c = 3) within 1`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	evt := patterns[0].Event.(*ast.SimpleEvent)
	top, ok := evt.Predicate.(*ast.BinaryOperator)
	if !ok {
		t.Fatalf("expected top-level binary operator, got %T", evt.Predicate)
	}
	if top.OperatorToken != ast.OpImplies {
		t.Fatalf("expected implies to bind loosest, got %v", top.OperatorToken)
	}
	lhs, ok := top.Operand1.(*ast.BinaryOperator)
	if !ok || lhs.OperatorToken != ast.OpAnd {
		t.Fatalf("expected left operand to be the 'and' subexpression, got %#v", top.Operand1)
	}
}

func TestParseParenthesizedExpression(t *testing.T) {
	src := `existence: event(topic="/a", type="T", pred=(a = 1 iff b = 2) and c = 3) within 1`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	evt := patterns[0].Event.(*ast.SimpleEvent)
	top := evt.Predicate.(*ast.BinaryOperator)
	if top.OperatorToken != ast.OpAnd {
		t.Fatalf("expected top-level 'and', got %v", top.OperatorToken)
	}
	inner, ok := top.Operand1.(*ast.BinaryOperator)
	if !ok || inner.OperatorToken != ast.OpIff {
		t.Fatalf("expected parenthesized 'iff' on the left, got %#v", top.Operand1)
	}
}

func TestParseRejectsUnknownPatternKind(t *testing.T) {
	_, err := Parse(`bogus: event(topic="/a", type="T", pred=a = 1)`)
	if err == nil {
		t.Fatalf("expected an error for an unknown pattern kind")
	}
}

func TestParseMultiplePatternsInSequence(t *testing.T) {
	src := `
existence: event(topic="/a", type="T", pred=a = 1) within 1
absence: event(topic="/b", type="T", pred=b = 1) within 2
`
	patterns, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if !patterns[0].IsExistence() || !patterns[1].IsAbsence() {
		t.Errorf("unexpected pattern kinds: %v, %v", patterns[0].Kind, patterns[1].Kind)
	}
}

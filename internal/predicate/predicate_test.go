package predicate

import (
	"errors"
	"testing"

	"github.com/nugget/simreq/internal/ast"
)

func field(name string) *ast.FieldAccess { return &ast.FieldAccess{Field: name} }

func intLit(v int64) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralInt, Int: v}
}

func boolLit(v bool) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralBool, Bool: v}
}

func TestCompileComparisons(t *testing.T) {
	tests := []struct {
		name string
		op   ast.Op
		msg  Message
		want bool
	}{
		{"equal true", ast.OpEqual, Message{"x": int64(1)}, true},
		{"equal false", ast.OpEqual, Message{"x": int64(2)}, false},
		{"not equal", ast.OpNotEqual, Message{"x": int64(2)}, true},
		{"less", ast.OpLess, Message{"x": int64(0)}, true},
		{"greater", ast.OpGreater, Message{"x": int64(5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := &ast.BinaryOperator{
				OperatorToken: tt.op,
				Operand1:      field("x"),
				Operand2:      intLit(1),
			}
			pred, err := Compile(expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := pred(tt.msg); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileMissingFieldIsFalse(t *testing.T) {
	expr := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("missing"), Operand2: intLit(1)}
	pred, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if pred(Message{}) {
		t.Errorf("expected false for missing field")
	}
}

func TestCompileTypeMismatchIsFalse(t *testing.T) {
	expr := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("x"), Operand2: intLit(1)}
	pred, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if pred(Message{"x": "one"}) {
		t.Errorf("expected false comparing string to int literal")
	}
}

func TestCompileAnd(t *testing.T) {
	expr := &ast.BinaryOperator{
		OperatorToken: ast.OpAnd,
		Operand1:      &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("a"), Operand2: intLit(1)},
		Operand2:      &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("b"), Operand2: intLit(2)},
	}
	pred, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !pred(Message{"a": int64(1), "b": int64(2)}) {
		t.Errorf("expected true")
	}
	if pred(Message{"a": int64(1), "b": int64(3)}) {
		t.Errorf("expected false")
	}
}

func TestIffKeepsIfThenElseFalse(t *testing.T) {
	anterior := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("a"), Operand2: boolLit(true)}
	posterior := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("b"), Operand2: boolLit(true)}
	expr := &ast.BinaryOperator{OperatorToken: ast.OpIff, Operand1: anterior, Operand2: posterior}

	pred, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if pred(Message{"a": false, "b": true}) {
		t.Errorf("iff(false, true) should be false when anterior false (vacuous-false, not vacuous-true)")
	}
	if !pred(Message{"a": true, "b": true}) {
		t.Errorf("iff(true, true) should be true")
	}
	if pred(Message{"a": true, "b": false}) {
		t.Errorf("iff(true, false) should be false")
	}
}

func TestImpliesIsStandardMaterialConditional(t *testing.T) {
	anterior := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("a"), Operand2: boolLit(true)}
	posterior := &ast.BinaryOperator{OperatorToken: ast.OpEqual, Operand1: field("b"), Operand2: boolLit(true)}
	expr := &ast.BinaryOperator{OperatorToken: ast.OpImplies, Operand1: anterior, Operand2: posterior}

	pred, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !pred(Message{"a": false, "b": false}) {
		t.Errorf("implies(false, false) should be true (vacuous)")
	}
	if !pred(Message{"a": false, "b": true}) {
		t.Errorf("implies(false, true) should be true (vacuous)")
	}
	if pred(Message{"a": true, "b": false}) {
		t.Errorf("implies(true, false) should be false")
	}
	if !pred(Message{"a": true, "b": true}) {
		t.Errorf("implies(true, true) should be true")
	}
}

func TestCompileUnsupportedOperator(t *testing.T) {
	expr := &ast.BinaryOperator{OperatorToken: ast.Op("xor"), Operand1: field("a"), Operand2: field("b")}
	_, err := Compile(expr)
	if err == nil {
		t.Fatal("expected error")
	}
	var unsupported *UnsupportedOperatorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedOperatorError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected errors.Is to match ErrUnsupportedOperator")
	}
}

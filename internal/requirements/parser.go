package requirements

import (
	"errors"
	"fmt"
	"math"

	"github.com/nugget/simreq/internal/ast"
	"github.com/nugget/simreq/internal/predicate"
)

// ParseRequirements walks a sequence of parsed top-level patterns and
// produces one requirements tree per pattern, in order. For each
// pattern it dispatches on the pattern's kind, recursively builds its
// event children (Simple leaves or Disjoint combinators), and
// instantiates the matching pattern node.
func ParseRequirements(patterns []*ast.SimulationPattern) ([]Node, error) {
	trees := make([]Node, 0, len(patterns))
	for _, p := range patterns {
		tree, err := buildPattern(p)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

func buildPattern(p *ast.SimulationPattern) (Node, error) {
	switch {
	case p.IsExistence():
		if err := requireOneChild("existence", p); err != nil {
			return nil, err
		}
		child, err := buildEvent(p.Event)
		if err != nil {
			return nil, err
		}
		return NewExistence(child, p.Timeout), nil

	case p.IsAbsence():
		if err := requireOneChild("absence", p); err != nil {
			return nil, err
		}
		child, err := buildEvent(p.Event)
		if err != nil {
			return nil, err
		}
		return NewAbsence(child, p.Timeout), nil

	case p.IsResponse():
		if err := requireTwoChildren("response", p); err != nil {
			return nil, err
		}
		anterior, err := buildEvent(p.Event)
		if err != nil {
			return nil, err
		}
		posterior, err := buildEvent(p.Event2)
		if err != nil {
			return nil, err
		}
		return NewResponse(anterior, posterior, p.Timeout), nil

	case p.IsRequirement():
		// The AST stores (anterior, posterior) in Event/Event2
		// regardless of pattern kind; Requirement's own constructor
		// takes (posterior, anterior) to match its role names.
		if err := requireTwoChildren("requirement", p); err != nil {
			return nil, err
		}
		anterior, err := buildEvent(p.Event)
		if err != nil {
			return nil, err
		}
		posterior, err := buildEvent(p.Event2)
		if err != nil {
			return nil, err
		}
		return NewRequirement(posterior, anterior, p.Timeout), nil

	case p.IsPrevention():
		if err := requireTwoChildren("prevention", p); err != nil {
			return nil, err
		}
		anterior, err := buildEvent(p.Event)
		if err != nil {
			return nil, err
		}
		posterior, err := buildEvent(p.Event2)
		if err != nil {
			return nil, err
		}
		return NewPrevention(anterior, posterior, p.Timeout), nil

	default:
		return nil, fmt.Errorf("%w: pattern has no recognized kind", ErrMalformedPattern)
	}
}

// buildEvent instantiates either a Simple leaf from a simple event or a
// Disjoint combinator (recursively built) from an event disjunction.
func buildEvent(n ast.Node) (Node, error) {
	switch e := n.(type) {
	case *ast.SimpleEvent:
		expr, ok := e.Predicate.(ast.Expression)
		if !ok {
			return nil, fmt.Errorf("%w: simple event predicate is not an expression", ErrMalformedPattern)
		}
		pred, err := predicate.Compile(expr)
		if errors.Is(err, predicate.ErrUnsupportedOperator) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedOperator, err)
		}
		if err != nil {
			return nil, err
		}
		return NewSimple(e.Topic, e.MessageType, pred), nil

	case *ast.EventDisjunction:
		left, err := buildEvent(e.Event1)
		if err != nil {
			return nil, err
		}
		right, err := buildEvent(e.Event2)
		if err != nil {
			return nil, err
		}
		return NewDisjoint(left, right), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventKind, n)
	}
}

// NoTimeout is the sentinel "no deadline" value for pattern/manager
// timeouts, matching the original's math.inf default.
var NoTimeout = math.Inf(1)

// countChildren reports how many of Event and Event2 are populated.
func countChildren(p *ast.SimulationPattern) int {
	n := 0
	if p.Event != nil {
		n++
	}
	if p.Event2 != nil {
		n++
	}
	return n
}

// requireOneChild validates a single-child pattern kind (Existence,
// Absence): Event must be set and Event2 must not be, before buildEvent
// is asked to recurse into a possibly-nil node.
func requireOneChild(kind string, p *ast.SimulationPattern) error {
	if p.Event == nil || p.Event2 != nil {
		return &MalformedPatternError{Kind: kind, Children: countChildren(p), Want: 1}
	}
	return nil
}

// requireTwoChildren validates a two-child pattern kind (Response,
// Requirement, Prevention): both Event and Event2 must be set before
// buildEvent is asked to recurse into a possibly-nil node.
func requireTwoChildren(kind string, p *ast.SimulationPattern) error {
	if n := countChildren(p); n != 2 {
		return &MalformedPatternError{Kind: kind, Children: n, Want: 2}
	}
	return nil
}

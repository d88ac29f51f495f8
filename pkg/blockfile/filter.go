package blockfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFilter reports a block filter expression outside the supported
// grammar.
var ErrInvalidFilter = errors.New("invalid block filter")

// Filter is a relational predicate over a block file's derived key. The
// expression grammar is a single comparison operator followed by an integer
// literal (decimal or 0x-prefixed hexadecimal). It is parsed once and
// evaluated as a plain comparison; the expression is never executed as code.
type Filter struct {
	op      string
	operand uint64
	expr    string
}

// ParseFilter parses a filter expression such as "> 0x52123" or "!= 338213".
func ParseFilter(expr string) (*Filter, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFilter)
	}

	var op string
	// Two-character operators must be tried first.
	for _, candidate := range []string{"<=", ">=", "==", "!=", "<", ">"} {
		if strings.HasPrefix(trimmed, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("%w: %q must start with one of <, <=, >, >=, ==, !=", ErrInvalidFilter, expr)
	}

	lit := strings.TrimSpace(trimmed[len(op):])
	if lit == "" {
		return nil, fmt.Errorf("%w: %q is missing an integer literal", ErrInvalidFilter, expr)
	}

	operand, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a valid integer literal", ErrInvalidFilter, lit)
	}

	return &Filter{op: op, operand: operand, expr: trimmed}, nil
}

// Match evaluates the predicate against a block key.
func (f *Filter) Match(key uint64) bool {
	switch f.op {
	case "<":
		return key < f.operand
	case "<=":
		return key <= f.operand
	case ">":
		return key > f.operand
	case ">=":
		return key >= f.operand
	case "==":
		return key == f.operand
	case "!=":
		return key != f.operand
	default:
		return false
	}
}

// String returns the normalized expression, used in the trace lines emitted
// while a filter is active.
func (f *Filter) String() string {
	return f.expr
}

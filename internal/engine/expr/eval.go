package expr

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"

	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Expression is a parsed condition that can be evaluated repeatedly
	// against different run contexts
	Expression struct {
		root   node
		source string
	}

	document struct {
		raw []byte
	}
)

var (
	ErrEmptyExpression = errors.New("expression is empty")
	ErrSyntax          = errors.New("expression syntax error")
	ErrTypeMismatch    = errors.New("expression type mismatch")
	ErrContextEncode   = errors.New("failed to encode context")
)

// Compile parses source into an Expression
func Compile(source string) (*Expression, error) {
	root, err := parse(source)
	if err != nil {
		return nil, err
	}
	return &Expression{root: root, source: source}, nil
}

// String returns the expression's source text
func (e *Expression) String() string {
	return e.source
}

// Evaluate runs the expression against a run context. Field paths resolve
// against the context's JSON form, so the first path segment is an upstream
// step ID. Missing fields evaluate to null. A non-boolean result is reduced
// to its truthiness
func (e *Expression) Evaluate(ctx api.Context) (bool, error) {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrContextEncode, err)
	}
	res, err := e.root.eval(&document{raw: raw})
	if err != nil {
		return false, err
	}
	return truthy(res), nil
}

func (l *literal) eval(*document) (any, error) {
	return l.value, nil
}

func (f *field) eval(doc *document) (any, error) {
	res := gjson.GetBytes(doc.raw, f.path)
	if !res.Exists() {
		return nil, nil
	}
	return res.Value(), nil
}

func (n *not) eval(doc *document) (any, error) {
	v, err := n.operand.eval(doc)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func (l *logical) eval(doc *document) (any, error) {
	left, err := l.left.eval(doc)
	if err != nil {
		return nil, err
	}
	if truthy(left) != l.and {
		return truthy(left), nil
	}
	right, err := l.right.eval(doc)
	if err != nil {
		return nil, err
	}
	return truthy(right), nil
}

func (c *compare) eval(doc *document) (any, error) {
	left, err := c.left.eval(doc)
	if err != nil {
		return nil, err
	}
	right, err := c.right.eval(doc)
	if err != nil {
		return nil, err
	}

	switch c.op {
	case tokEq:
		return equal(left, right), nil
	case tokNe:
		return !equal(left, right), nil
	}

	cmp, err := order(left, right)
	if err != nil {
		return nil, err
	}
	switch c.op {
	case tokLt:
		return cmp < 0, nil
	case tokLe:
		return cmp <= 0, nil
	case tokGt:
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func equal(left, right any) bool {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln == rn
	}
	return reflect.DeepEqual(left, right)
}

func order(left, right any) (int, error) {
	if ln, ok := toNumber(left); ok {
		if rn, ok := toNumber(right); ok {
			switch {
			case ln < rn:
				return -1, nil
			case ln > rn:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch {
			case ls < rs:
				return -1, nil
			case ls > rs:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: cannot order %T and %T",
		ErrTypeMismatch, left, right)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		if n, ok := toNumber(val); ok {
			return n != 0
		}
		return true
	}
}

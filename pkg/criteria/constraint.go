package criteria

import (
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// Operator is a comparison kind.
type Operator string

// Supported operators.
const (
	OpEq    Operator = operator.Eq
	OpNeq   Operator = operator.Neq
	OpGte   Operator = operator.Gte
	OpGt    Operator = operator.Gt
	OpLte   Operator = operator.Lte
	OpLt    Operator = operator.Lt
	OpIn    Operator = operator.In
	OpNin   Operator = operator.Nin
	OpMatch Operator = operator.Match
)

// Operators lists every supported operator.
var Operators = []Operator{OpEq, OpNeq, OpGte, OpGt, OpLte, OpLt, OpIn, OpNin, OpMatch}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// ValueType is the inferred type of a constraint's right-hand side.
type ValueType string

// Value types.
const (
	TypeString    ValueType = "string"
	TypeNumber    ValueType = "number"
	TypeBoolean   ValueType = "boolean"
	TypeArray     ValueType = "array"
	TypeObject    ValueType = "object"
	TypeNull      ValueType = "null"
	TypeAttribute ValueType = "attribute"
)

// Ref marks a right-hand value as a reference to another attribute
// ("facebook.user.email") rather than a literal string.
type Ref string

// Value is the right-hand side of a constraint.
type Value struct {
	Value any                 `json:"value,omitempty"`
	Type  ValueType           `json:"type"`
	Ref   *AttributeReference `json:"ref,omitempty"`
}

// IsRef reports whether the value references another attribute.
func (v Value) IsRef() bool {
	return v.Ref != nil
}

// TypeOf infers the value type of v from its Go kind.
func TypeOf(v any) ValueType {
	if v == nil {
		return TypeNull
	}
	if _, ok := v.(Ref); ok {
		return TypeAttribute
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Pointer, reflect.Interface:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return TypeNull
		}
		return TypeOf(rv.Elem().Interface())
	default:
		return TypeObject
	}
}

// Constraint is a single left-operator-right comparison.
type Constraint struct {
	Left     AttributeReference `json:"left"`
	Operator Operator           `json:"operator"`
	Right    Value              `json:"right"`
}

// NewConstraint resolves leftPath against contextResource and builds a
// constraint. A right value of type Ref is resolved to an attribute
// reference with the same rules.
func NewConstraint(leftPath string, op Operator, right any, contextResource, defaultAdapter string) (*Constraint, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
	left, err := ResolveAttr(leftPath, contextResource, defaultAdapter)
	if err != nil {
		return nil, err
	}

	c := &Constraint{Left: left, Operator: op}
	if ref, ok := right.(Ref); ok {
		rref, err := ResolveAttr(string(ref), contextResource, defaultAdapter)
		if err != nil {
			return nil, err
		}
		c.Right = Value{Type: TypeAttribute, Ref: &rref}
		return c, nil
	}
	c.Right = Value{Value: right, Type: TypeOf(right)}
	return c, nil
}

// CrossResource reports whether the right side references an attribute of a
// different namespace than the left side.
func (c *Constraint) CrossResource() bool {
	return c.Right.Ref != nil && c.Right.Ref.Namespace != c.Left.Namespace
}

// Clone returns a copy that does not share the right-hand reference.
func (c *Constraint) Clone() *Constraint {
	cp := *c
	if c.Right.Ref != nil {
		ref := *c.Right.Ref
		cp.Right.Ref = &ref
	}
	return &cp
}

// Test evaluates the constraint against a record.
func (c *Constraint) Test(rec Record, ops operator.Resolver) (bool, error) {
	pred, err := ops.Resolve(string(c.Operator))
	if err != nil {
		return false, err
	}
	right := c.Right.Value
	if c.Right.Ref != nil {
		// Same-resource references compare two fields of the same record.
		right = rec[c.Right.Ref.Attr]
	}
	return pred(rec[c.Left.Attr], right), nil
}

func (c *Constraint) String() string {
	if c.Right.Ref != nil {
		return fmt.Sprintf("%s %s %s", c.Left.Path, c.Operator, c.Right.Ref.Path)
	}
	return fmt.Sprintf("%s %s %v", c.Left.Path, c.Operator, c.Right.Value)
}

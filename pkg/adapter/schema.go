package adapter

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// ValidationContext is the view of a query passed to parameter validators.
type ValidationContext interface {
	Name() string
	ActionKind() criteria.ActionKind
}

// ValidateFunc checks a constraint against a declared parameter. A non-nil
// error rejects the constraint.
type ValidateFunc func(vctx ValidationContext, c *criteria.Constraint) error

// ParamType is the declared type of an action parameter.
type ParamType string

// Parameter types.
const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamTime    ParamType = "time"
	ParamArray   ParamType = "array"
	ParamAny     ParamType = "any"
)

// Param declares one attribute accepted by an action.
type Param struct {
	Name       string
	Type       ParamType
	Validators []ValidateFunc
}

// Validate runs every validator and returns the first failure.
func (p *Param) Validate(vctx ValidationContext, c *criteria.Constraint) error {
	for _, v := range p.Validators {
		if err := v(vctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Typecast converts v to the parameter type. Slices are cast element-wise
// so that in/nin constraints carry correctly typed members.
func (p *Param) Typecast(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p.Type == ParamArray || p.Type == ParamAny || p.Type == "" {
		return v, nil
	}
	if items, ok := v.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := castScalar(p.Type, item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return p.Typecast(items)
	}
	return castScalar(p.Type, v)
}

func castScalar(t ParamType, v any) (any, error) {
	switch t {
	case ParamString:
		return cast.ToStringE(v)
	case ParamInteger:
		return cast.ToInt64E(v)
	case ParamNumber:
		return cast.ToFloat64E(v)
	case ParamBoolean:
		return cast.ToBoolE(v)
	case ParamTime:
		return cast.ToTimeInDefaultLocationE(v, time.UTC)
	default:
		return v, nil
	}
}

// ActionSchema declares the parameters of one "<resource>.<action>" key.
type ActionSchema struct {
	Key    string
	Params map[string]*Param
}

// Param returns the parameter named attr.
func (a *ActionSchema) Param(attr string) (*Param, bool) {
	p, ok := a.Params[attr]
	return p, ok
}

// Schema is the action/parameter metadata an adapter declares.
type Schema struct {
	mu      sync.RWMutex
	actions map[string]*ActionSchema
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{actions: make(map[string]*ActionSchema)}
}

// ActionKey builds the "<resource>.<action>" lookup key.
func ActionKey(resource string, kind criteria.ActionKind) string {
	return resource + "." + kind.String()
}

// Define declares (or extends) an action and its params.
func (s *Schema) Define(key string, params ...*Param) *ActionSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.actions[key]
	if !ok {
		as = &ActionSchema{Key: key, Params: make(map[string]*Param)}
		s.actions[key] = as
	}
	for _, p := range params {
		as.Params[p.Name] = p
	}
	return as
}

// Action returns the schema for key.
func (s *Schema) Action(key string) (*ActionSchema, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	as, ok := s.actions[key]
	return as, ok
}

// ActionExists reports whether key is declared.
func (s *Schema) ActionExists(key string) bool {
	_, ok := s.Action(key)
	return ok
}

// Keys returns all declared action keys (sorted).
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.actions))
	for k := range s.actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParamTypeForColumn maps a storage column type to a parameter type.
func ParamTypeForColumn(colType string) ParamType {
	t := strings.ToLower(colType)
	switch {
	case strings.Contains(t, "int"):
		return ParamInteger
	case strings.Contains(t, "bool"):
		return ParamBoolean
	case strings.Contains(t, "real"), strings.Contains(t, "double"), strings.Contains(t, "float"),
		strings.Contains(t, "numeric"), strings.Contains(t, "decimal"):
		return ParamNumber
	case strings.Contains(t, "time"), strings.Contains(t, "date"):
		return ParamTime
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "uuid"):
		return ParamString
	case strings.HasSuffix(t, "[]"), strings.Contains(t, "array"):
		return ParamArray
	default:
		return ParamAny
	}
}

// SchemaFromMetadata declares find/count/exists actions for a resource with
// one typed param per column.
func SchemaFromMetadata(s *Schema, resource string, md *Metadata) {
	params := make([]*Param, 0, len(md.Columns))
	for _, col := range md.Columns {
		params = append(params, &Param{Name: col.Name, Type: ParamTypeForColumn(col.Type)})
	}
	for _, kind := range []criteria.ActionKind{criteria.ActionFind, criteria.ActionCount, criteria.ActionExists} {
		s.Define(ActionKey(resource, kind), params...)
	}
}

// Reject builds a validator that fails when the constraint value equals
// any of the given values.
func Reject(values ...any) ValidateFunc {
	return func(_ ValidationContext, c *criteria.Constraint) error {
		for _, v := range values {
			if operator.Equal(c.Right.Value, v) {
				return fmt.Errorf("%s: value %v is not allowed", c.Left.Path, v)
			}
		}
		return nil
	}
}

// Castable builds a validator that fails when the value cannot be cast to t.
func Castable(t ParamType) ValidateFunc {
	return func(_ ValidationContext, c *criteria.Constraint) error {
		p := &Param{Name: c.Left.Attr, Type: t}
		if _, err := p.Typecast(c.Right.Value); err != nil {
			return fmt.Errorf("%s: %w", c.Left.Path, err)
		}
		return nil
	}
}

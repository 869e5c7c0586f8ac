package engine

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// ErrUnsupportedReference is returned when a constraint's operator cannot be
// evaluated against a set of values fetched by another node.
var ErrUnsupportedReference = errors.New("operator cannot reference fetched values")

// substitute returns n's constraints with every cross-resource reference
// replaced by the values the referenced node fetched:
//
//	eq, in     -> in  [values]
//	neq, nin   -> nin [values]
//	gt, gte    -> op  min(values)
//	lt, lte    -> op  max(values)
//
// With no fetched values the positive operators become "in []" (nothing
// matches) and the negated ones "nin []" (everything matches).
// Topology constraints are never modified.
func (d *Dispatcher) substitute(t *topology.Topology, n *topology.Node) ([]*criteria.Constraint, error) {
	out := make([]*criteria.Constraint, 0, len(n.Constraints))
	for _, c := range n.Constraints {
		if !c.CrossResource() {
			out = append(out, c)
			continue
		}

		values := fetched(t, *c.Right.Ref)
		sc, err := d.rewrite(c, values)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", c, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

func (d *Dispatcher) rewrite(c *criteria.Constraint, values []any) (*criteria.Constraint, error) {
	sc := &criteria.Constraint{Left: c.Left, Operator: c.Operator}

	switch c.Operator {
	case criteria.OpEq, criteria.OpIn:
		sc.Operator = criteria.OpIn
		sc.Right = arrayValue(values)
	case criteria.OpNeq, criteria.OpNin:
		sc.Operator = criteria.OpNin
		sc.Right = arrayValue(values)
	case criteria.OpGt, criteria.OpGte, criteria.OpLt, criteria.OpLte:
		less, err := d.ops.Resolve(operator.Lt)
		if err != nil {
			return nil, err
		}
		upper := c.Operator == criteria.OpLt || c.Operator == criteria.OpLte
		bound, ok := extreme(values, less, upper)
		if !ok {
			sc.Operator = criteria.OpIn
			sc.Right = arrayValue(nil)
			break
		}
		sc.Right = criteria.Value{Value: bound, Type: criteria.TypeOf(bound)}
	default:
		return nil, fmt.Errorf("%s: %w", c.Operator, ErrUnsupportedReference)
	}
	return sc, nil
}

// fetched collects the distinct non-nil values of ref's attribute from the
// referenced node's buffered result, in record order.
func fetched(t *topology.Topology, ref criteria.AttributeReference) []any {
	n, ok := t.NodeFor(ref.Namespace)
	if !ok || n.Result == nil {
		return nil
	}
	var values []any
	for _, rec := range n.Result.Records {
		v, ok := rec[ref.Attr]
		if !ok || v == nil {
			continue
		}
		if operator.Contains(v, values) {
			continue
		}
		values = append(values, v)
	}
	return values
}

// extreme returns the smallest value, or the largest when upper is set.
// Values not ordered against the current candidate are skipped.
func extreme(values []any, less operator.Predicate, upper bool) (any, bool) {
	var best any
	found := false
	for _, v := range values {
		if !found {
			best, found = v, true
			continue
		}
		if (upper && less(best, v)) || (!upper && less(v, best)) {
			best = v
		}
	}
	return best, found
}

func arrayValue(values []any) criteria.Value {
	if values == nil {
		values = []any{}
	}
	return criteria.Value{Value: values, Type: criteria.TypeArray}
}

package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// ValidationError collects every constraint rejected by an adapter schema.
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.errs.Error())
}

// Unwrap returns the individual failures.
func (e *ValidationError) Unwrap() []error {
	return e.errs.WrappedErrors()
}

// Errors returns the individual failures in constraint order.
func (e *ValidationError) Errors() []error {
	return e.errs.WrappedErrors()
}

// Len returns the number of failures.
func (e *ValidationError) Len() int {
	return e.errs.Len()
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConstraintError is one rejected constraint.
type ConstraintError struct {
	Key        string
	Constraint *criteria.Constraint
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Key, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Validate checks every constraint against the schema of its adapter. A
// constraint is checked when the adapter declares the action
// "<resource>.<action>" with a param named after the attribute; on success
// its value is typecast in place. Constraints without a declared param and
// constraints referencing other attributes are left untouched. All
// failures are collected into a *ValidationError. A constraint on an
// unregistered adapter fails with *adapter.UnknownAdapterError.
func (q *Query) Validate(ctx context.Context) error {
	if q.err != nil {
		return q.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.validate(q.Criteria())
}

func (q *Query) validate(c *criteria.Criteria) error {
	terminal, _ := c.Terminal()

	var merr *multierror.Error
	for _, con := range c.Constraints {
		if con.Right.IsRef() {
			continue
		}
		a, err := q.reg.adapters.Lookup(con.Left.Adapter)
		if err != nil {
			return err
		}
		schema := a.Schema()
		if schema == nil {
			continue
		}

		kind := criteria.ActionFind
		if con.Left.Namespace == terminal.Namespace {
			kind = c.Action.Kind
		}
		key := adapter.ActionKey(con.Left.Resource, kind)
		action, ok := schema.Action(key)
		if !ok {
			continue
		}
		param, ok := action.Param(con.Left.Attr)
		if !ok {
			continue
		}

		if err := param.Validate(q, con); err != nil {
			merr = multierror.Append(merr, &ConstraintError{Key: key, Constraint: con, Err: err})
			continue
		}
		v, err := param.Typecast(con.Right.Value)
		if err != nil {
			merr = multierror.Append(merr, &ConstraintError{Key: key, Constraint: con, Err: err})
			continue
		}
		con.Right.Value = v
		con.Right.Type = criteria.TypeOf(v)
	}

	if merr.ErrorOrNil() == nil {
		return nil
	}
	return &ValidationError{errs: merr}
}

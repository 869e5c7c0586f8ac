package adapter

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// ApplyPlan evaluates a read plan (find/count/exists/pipe/stream) against
// an already-loaded record set: filter, sort, then page. Count reports the
// number of matches before paging.
func ApplyPlan(records []criteria.Record, plan *Plan, ops operator.Resolver) (*Result, error) {
	if len(plan.Relations) > 0 {
		return nil, fmt.Errorf("relation traversal: %w", ErrUnsupportedCriteria)
	}

	matched, err := criteria.Filter(records, plan.Constraints, ops)
	if err != nil {
		return nil, err
	}

	switch plan.Action {
	case criteria.ActionCount, criteria.ActionExists:
		return &Result{Count: len(matched)}, nil
	}

	out := make([]criteria.Record, len(matched))
	copy(out, matched)
	criteria.SortRecords(out, plan.Sorting)
	out = criteria.Page(out, plan.Offset, plan.Limit)
	return &Result{Records: out, Count: len(matched)}, nil
}

// IsRead reports whether the plan's action only reads records.
func (p *Plan) IsRead() bool {
	return !p.Action.Writes()
}

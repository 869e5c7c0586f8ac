package commands

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// ParseFilter parses a command-line filter. Two forms are accepted:
//
//	likeCount:gte:10
//	name=ann
//
// Values are read as YAML scalars or flow sequences ("10", "true",
// "[1, 2]"). A value starting with "@" references another attribute path.
func ParseFilter(expr string) (config.FilterConfig, error) {
	var f config.FilterConfig
	var raw string

	if parts := strings.SplitN(expr, ":", 3); len(parts) == 3 && criteria.Operator(parts[1]).Valid() {
		f.Attr, f.Op, raw = parts[0], parts[1], parts[2]
	} else if i := strings.Index(expr, "="); i > 0 {
		f.Attr, f.Op, raw = expr[:i], string(criteria.OpEq), expr[i+1:]
	} else {
		return f, fmt.Errorf("invalid filter %q\nHint: use attr:op:value or attr=value", expr)
	}

	if f.Attr == "" {
		return f, fmt.Errorf("invalid filter %q: attribute is empty", expr)
	}
	if strings.HasPrefix(raw, "@") {
		f.Ref = raw[1:]
		return f, nil
	}
	f.Value = parseValue(raw)
	return f, nil
}

func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ApplyQueryConfig adds a configured query's sources, filters, sorting and
// paging to q. Errors are recorded on q.
func ApplyQueryConfig(q *query.Query, qc *config.QueryConfig) *query.Query {
	if qc.Use != "" {
		q.Use(qc.Use)
	}
	q.Start(qc.Start)
	for _, sel := range qc.Select {
		q.Select(sel)
	}

	for _, f := range qc.Where {
		op := criteria.Operator(f.Op)
		if op == "" {
			op = criteria.OpEq
		}
		var v any = f.Value
		if f.Ref != "" {
			v = query.Ref(f.Ref)
		}
		q.Constraint(f.Attr, op, v)
	}

	for _, s := range qc.Sort {
		if attr, ok := strings.CutPrefix(s, "-"); ok {
			q.Desc(attr)
		} else {
			q.Asc(strings.TrimPrefix(s, "+"))
		}
	}

	if qc.Limit > 0 {
		q.Limit(qc.Limit)
	}
	if qc.Page > 0 {
		q.Page(qc.Page)
	}
	if qc.Offset > 0 {
		q.Offset(qc.Offset)
	}
	if qc.Returns != "" {
		q.Returns(qc.Returns)
	}
	return q
}

// Execute runs q with the named terminal action and returns its records.
// Count and exists produce a single record.
func Execute(ctx context.Context, q *query.Query, action string) ([]criteria.Record, error) {
	if action == "" {
		action = config.DefaultAction
	}
	kind, err := criteria.ParseAction(action)
	if err != nil {
		return nil, err
	}

	switch kind {
	case criteria.ActionFind:
		return q.Find(ctx)
	case criteria.ActionCount:
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		return []criteria.Record{{"count": n}}, nil
	case criteria.ActionExists:
		ok, err := q.Exists(ctx)
		if err != nil {
			return nil, err
		}
		return []criteria.Record{{"exists": ok}}, nil
	default:
		return nil, fmt.Errorf("action %q is not available; use find, count or exists", action)
	}
}

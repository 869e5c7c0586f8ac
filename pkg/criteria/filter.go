package criteria

import (
	"sort"

	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// Filter returns the records that satisfy every constraint. A nil resolver
// uses operator.Default(). Records are not copied.
func Filter(records []Record, constraints []*Constraint, ops operator.Resolver) ([]Record, error) {
	if len(constraints) == 0 {
		return records, nil
	}
	if ops == nil {
		ops = operator.Default()
	}

	result := make([]Record, 0, len(records))
	for _, rec := range records {
		ok, err := Matches(rec, constraints, ops)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Matches reports whether rec passes all constraints.
func Matches(rec Record, constraints []*Constraint, ops operator.Resolver) (bool, error) {
	if ops == nil {
		ops = operator.Default()
	}
	for _, c := range constraints {
		ok, err := c.Test(rec, ops)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SortRecords sorts records in place by the given directives. Values that
// cannot be ordered keep their relative order.
func SortRecords(records []Record, sorting []Sort) {
	if len(sorting) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, s := range sorting {
			c, ok := operator.Compare(records[i][s.Attr.Attr], records[j][s.Attr.Attr])
			if !ok || c == 0 {
				continue
			}
			if s.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Page applies offset and limit. A zero limit means no limit.
func Page(records []Record, offset, limit int) []Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []Record{}
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

package operator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Equal reports whether two values are equal. Numbers of different Go kinds
// compare by value (int 10 equals float64 10).
func Equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if isNumber(left) && isNumber(right) {
		c, ok := Compare(left, right)
		return ok && c == 0
	}
	if lt, ok := left.(time.Time); ok {
		if rt, ok := right.(time.Time); ok {
			return lt.Equal(rt)
		}
		return false
	}
	return reflect.DeepEqual(left, right)
}

// Compare performs a three-way comparison. The second result is false when
// the values are not mutually ordered (different families or nil).
func Compare(left, right any) (int, bool) {
	if left == nil || right == nil {
		return 0, false
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(l, r), true
	case time.Time:
		r, ok := right.(time.Time)
		if !ok {
			return 0, false
		}
		return l.Compare(r), true
	case bool:
		r, ok := right.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case l == r:
			return 0, true
		case !l:
			return -1, true
		default:
			return 1, true
		}
	}

	if !isNumber(left) || !isNumber(right) {
		return 0, false
	}
	lf, err := cast.ToFloat64E(left)
	if err != nil {
		return 0, false
	}
	rf, err := cast.ToFloat64E(right)
	if err != nil {
		return 0, false
	}
	switch {
	case lf < rf:
		return -1, true
	case lf > rf:
		return 1, true
	default:
		return 0, true
	}
}

// Contains reports whether left is an element of right, which must be a
// slice or array. Any other right-hand side never contains anything.
func Contains(left, right any) bool {
	rv := reflect.ValueOf(right)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if Equal(left, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// Matches reports whether the string form of left matches the pattern in
// right (a string or *regexp.Regexp). Invalid patterns never match.
func Matches(left, right any) bool {
	if left == nil {
		return false
	}
	s, ok := left.(string)
	if !ok {
		s = fmt.Sprint(left)
	}
	switch p := right.(type) {
	case *regexp.Regexp:
		return p.MatchString(s)
	case string:
		re, err := regexp.Compile(p)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

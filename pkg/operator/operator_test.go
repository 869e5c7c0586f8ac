package operator

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_BuiltinOperators(t *testing.T) {
	reg := Default()
	for _, name := range []string{Eq, Neq, Gte, Gt, Lte, Lt, In, Nin, Match} {
		assert.True(t, reg.Exists(name), "operator %s should be registered", name)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		op    string
		left  any
		right any
		want  bool
	}{
		{name: "eq ints", op: Eq, left: 10, right: 10, want: true},
		{name: "eq mixed numeric kinds", op: Eq, left: int64(10), right: 10.0, want: true},
		{name: "eq strings", op: Eq, left: "a", right: "b", want: false},
		{name: "eq nil nil", op: Eq, left: nil, right: nil, want: true},
		{name: "neq", op: Neq, left: "a", right: "b", want: true},
		{name: "gte equal", op: Gte, left: 10, right: 10, want: true},
		{name: "gt", op: Gt, left: 11, right: 10, want: true},
		{name: "lte", op: Lte, left: 9.5, right: 10, want: true},
		{name: "lt strings", op: Lt, left: "apple", right: "banana", want: true},
		{name: "lt incomparable", op: Lt, left: "apple", right: 3, want: false},
		{name: "gt nil", op: Gt, left: nil, right: 3, want: false},
		{name: "gte times", op: Gte, left: now.Add(time.Hour), right: now, want: true},
		{name: "in member", op: In, left: 2, right: []int{1, 2, 3}, want: true},
		{name: "in any slice", op: In, left: "b", right: []any{"a", "b"}, want: true},
		{name: "in non member", op: In, left: 5, right: []int{1, 2, 3}, want: false},
		{name: "in scalar rhs", op: In, left: 5, right: 5, want: false},
		{name: "nin", op: Nin, left: 5, right: []int{1, 2, 3}, want: true},
		{name: "match string pattern", op: Match, left: "john@example.com", right: `@example\.com$`, want: true},
		{name: "match compiled", op: Match, left: "abc", right: regexp.MustCompile(`^x`), want: false},
		{name: "match invalid pattern", op: Match, left: "abc", right: `(`, want: false},
	}

	reg := NewDefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := reg.Resolve(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred(tt.left, tt.right))
		})
	}
}

func TestInAndNinAreNegations(t *testing.T) {
	reg := NewDefaultRegistry()
	in, err := reg.Resolve(In)
	require.NoError(t, err)
	nin, err := reg.Resolve(Nin)
	require.NoError(t, err)

	set := []any{1, "two", 3.0, true}
	for _, v := range []any{1, 2, "two", "three", 3, 3.5, true, false, nil} {
		assert.NotEqual(t, in(v, set), nin(v, set), "value %v", v)
	}
	assert.True(t, in(3, set))
	assert.False(t, in(2, set))
}

func TestRegistry_UnknownOperator(t *testing.T) {
	reg := NewRegistry()
	reg.Register("startsWith", func(l, r any) bool { return false })

	_, err := reg.Resolve("nope")
	require.Error(t, err)

	var uoe *UnknownOperatorError
	require.ErrorAs(t, err, &uoe)
	assert.Equal(t, "nope", uoe.Name)
	assert.Equal(t, []string{"startsWith"}, uoe.Available)
}

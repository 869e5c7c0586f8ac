package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func users() []Record {
	return []Record{
		{"name": "first", "likeCount": 20},
		{"name": "second", "likeCount": 10},
		{"name": "third", "likeCount": 8},
		{"name": "fourth", "likeCount": 300},
	}
}

func mustConstraint(t *testing.T, path string, op Operator, v any) *Constraint {
	t.Helper()
	c, err := NewConstraint(path, op, v, "users", DefaultAdapter)
	require.NoError(t, err)
	return c
}

func TestNewConstraint_InfersValueType(t *testing.T) {
	tests := []struct {
		value any
		want  ValueType
	}{
		{"x", TypeString},
		{10, TypeNumber},
		{2.5, TypeNumber},
		{true, TypeBoolean},
		{[]int{1, 2}, TypeArray},
		{map[string]any{"a": 1}, TypeObject},
		{nil, TypeNull},
	}
	for _, tt := range tests {
		c := mustConstraint(t, "likeCount", OpEq, tt.value)
		assert.Equal(t, tt.want, c.Right.Type, "%v", tt.value)
		assert.Nil(t, c.Right.Ref)
	}
}

func TestNewConstraint_Ref(t *testing.T) {
	c, err := NewConstraint("user.email", OpEq, Ref("facebook.user.email"), "", DefaultAdapter)
	require.NoError(t, err)

	assert.Equal(t, TypeAttribute, c.Right.Type)
	require.NotNil(t, c.Right.Ref)
	assert.Equal(t, "facebook.user", c.Right.Ref.Namespace)
	assert.True(t, c.CrossResource())
}

func TestNewConstraint_InvalidOperator(t *testing.T) {
	_, err := NewConstraint("likeCount", Operator("like"), 1, "users", DefaultAdapter)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	got, err := Filter(users(), []*Constraint{
		mustConstraint(t, "likeCount", OpGte, 10),
		mustConstraint(t, "likeCount", OpLt, 20),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"name": "second", "likeCount": 10}}, got)
}

func TestFilter_NoConstraints(t *testing.T) {
	all := users()
	got, err := Filter(all, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestFilter_Idempotent(t *testing.T) {
	cs := []*Constraint{
		mustConstraint(t, "likeCount", OpGt, 8),
		mustConstraint(t, "name", OpMatch, "^f"),
	}
	once, err := Filter(users(), cs, nil)
	require.NoError(t, err)
	twice, err := Filter(once, cs, nil)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
}

func TestFilter_InAndNin(t *testing.T) {
	in, err := Filter(users(), []*Constraint{mustConstraint(t, "name", OpIn, []string{"first", "third"})}, nil)
	require.NoError(t, err)
	nin, err := Filter(users(), []*Constraint{mustConstraint(t, "name", OpNin, []string{"first", "third"})}, nil)
	require.NoError(t, err)

	assert.Len(t, in, 2)
	assert.Len(t, nin, 2)
	for _, r := range in {
		assert.NotContains(t, nin, r)
	}
}

func TestFilter_SameResourceRef(t *testing.T) {
	recs := []Record{
		{"id": 1, "a": 5, "b": 3},
		{"id": 2, "a": 1, "b": 3},
	}
	c := mustConstraint(t, "a", OpGt, Ref("b"))
	assert.False(t, c.CrossResource())

	got, err := Filter(recs, []*Constraint{c}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0]["id"])
}

func TestSortRecordsAndPage(t *testing.T) {
	recs := users()
	attr, err := ResolveAttr("likeCount", "users", DefaultAdapter)
	require.NoError(t, err)

	SortRecords(recs, []Sort{{Attr: attr, Direction: Desc}})
	assert.Equal(t, "fourth", recs[0]["name"])
	assert.Equal(t, "third", recs[3]["name"])

	page := Page(recs, 1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, "first", page[0]["name"])
	assert.Equal(t, "second", page[1]["name"])

	assert.Empty(t, Page(recs, 10, 2))
	assert.Len(t, Page(recs, 0, 0), 4)
}

func TestPaging_EffectiveOffset(t *testing.T) {
	assert.Equal(t, 0, Paging{}.EffectiveOffset())
	assert.Equal(t, 5, Paging{Offset: 5}.EffectiveOffset())
	assert.Equal(t, 20, Paging{Limit: 10, Page: 3, Offset: 5}.EffectiveOffset())
}

func TestParseAction(t *testing.T) {
	for _, k := range []ActionKind{ActionFind, ActionCreate, ActionUpdate, ActionRemove, ActionCount, ActionExists, ActionPipe, ActionStream} {
		got, err := ParseAction(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseAction("insert")
	assert.Error(t, err)
}

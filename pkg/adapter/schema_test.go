package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

func TestParam_Typecast(t *testing.T) {
	tests := []struct {
		name    string
		typ     ParamType
		input   any
		want    any
		wantErr bool
	}{
		{"string to integer", ParamInteger, "42", int64(42), false},
		{"float to integer", ParamInteger, 3.0, int64(3), false},
		{"string to number", ParamNumber, "2.5", 2.5, false},
		{"string to boolean", ParamBoolean, "true", true, false},
		{"int to string", ParamString, 7, "7", false},
		{"elementwise slice", ParamInteger, []string{"1", "2"}, []any{int64(1), int64(2)}, false},
		{"any passes through", ParamAny, struct{}{}, struct{}{}, false},
		{"nil stays nil", ParamInteger, nil, nil, false},
		{"bad integer", ParamInteger, "ten", nil, true},
		{"bad element", ParamInteger, []any{"1", "x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Param{Name: "n", Type: tt.typ}
			got, err := p.Typecast(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParam_TypecastTime(t *testing.T) {
	p := &Param{Name: "createdAt", Type: ParamTime}
	got, err := p.Typecast("2024-05-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.(time.Time).UTC())
}

type vctx struct{}

func (vctx) Name() string                   { return "" }
func (vctx) ActionKind() criteria.ActionKind { return criteria.ActionFind }

func TestValidators(t *testing.T) {
	c, err := criteria.NewConstraint("role", criteria.OpEq, "root", "users", "")
	require.NoError(t, err)

	p := &Param{Name: "role", Type: ParamString, Validators: []ValidateFunc{Reject("root", "admin")}}
	err = p.Validate(vctx{}, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users.role")

	ok, err := criteria.NewConstraint("role", criteria.OpEq, "guest", "users", "")
	require.NoError(t, err)
	assert.NoError(t, p.Validate(vctx{}, ok))

	age, err := criteria.NewConstraint("age", criteria.OpGt, "old", "users", "")
	require.NoError(t, err)
	assert.Error(t, Castable(ParamInteger)(vctx{}, age))
}

func TestSchema(t *testing.T) {
	s := NewSchema()
	s.Define(ActionKey("users", criteria.ActionFind), &Param{Name: "id", Type: ParamInteger})
	s.Define("users.find", &Param{Name: "email", Type: ParamString})

	assert.True(t, s.ActionExists("users.find"))
	assert.False(t, s.ActionExists("users.create"))

	as, ok := s.Action("users.find")
	require.True(t, ok)
	assert.Len(t, as.Params, 2)

	var nilSchema *Schema
	assert.False(t, nilSchema.ActionExists("users.find"))
	assert.Nil(t, nilSchema.Keys())
}

func TestParamTypeForColumn(t *testing.T) {
	tests := map[string]ParamType{
		"INTEGER":                  ParamInteger,
		"bigint":                   ParamInteger,
		"boolean":                  ParamBoolean,
		"double precision":         ParamNumber,
		"NUMERIC(10,2)":            ParamNumber,
		"timestamp with time zone": ParamTime,
		"character varying":        ParamString,
		"uuid":                     ParamString,
		"jsonb":                    ParamAny,
	}
	for col, want := range tests {
		assert.Equal(t, want, ParamTypeForColumn(col), col)
	}
}

func TestApplyPlan_Relations(t *testing.T) {
	attr, err := criteria.ResolveAttr("friends", "users", "")
	require.NoError(t, err)

	_, err = ApplyPlan(nil, &Plan{
		Key:       "users.find",
		Relations: []criteria.Relation{{Attr: attr, Direction: criteria.Outgoing}},
	}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCriteria)
}

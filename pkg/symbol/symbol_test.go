package symbol

import (
	"testing"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weizai118/crate/pkg/common"
)

func ref(name string, typ common.LType, path ...string) *Reference {
	return &Reference{
		Table:  common.NewTableIdent("doc", "t"),
		Column: common.NewColumnIdent(name, path...),
		Typ:    typ,
	}
}

func TestSubscriptObject(t *testing.T) {
	fn := SubscriptObject(NewInputColumn(1, common.ObjectType()), "region", common.VarcharType())
	assert.Equal(t, SubscriptObjectName, fn.Name())
	assert.Equal(t, common.VarcharType(), fn.ValueType())
	require.Len(t, fn.Args, 2)
	assert.Equal(t, []common.LType{common.ObjectType(), common.VarcharType()}, fn.Info.Ident.ArgTypes)
	assert.Equal(t, "subscript_obj(INPUT(1), 'region')", Format(fn))
}

func TestTransformKeepsInput(t *testing.T) {
	a := ref("a", common.BigintType())
	b := ref("b", common.BigintType())
	cond := Operator(OpAnd,
		Operator(OpEqual, a, BigintLiteral(1)),
		Operator(OpGreater, b, BigintLiteral(2)))

	same := Transform(cond, func(s Symbol) Symbol { return s })
	assert.Same(t, cond, same)

	replaced := Transform(cond, func(s Symbol) Symbol {
		if r, ok := s.(*Reference); ok && r.Column.Name() == "b" {
			return NewInputColumn(0, r.Typ)
		}
		return s
	})
	assert.NotSame(t, cond, replaced)
	assert.Equal(t, "((a = 1) AND (INPUT(0) > 2))", Format(replaced))
	// the original is untouched and the unchanged branch is shared
	assert.Equal(t, "((a = 1) AND (b > 2))", Format(cond))
	assert.Same(t, cond.Args[0], replaced.(*Function).Args[0])
}

func TestReferences(t *testing.T) {
	a := ref("a", common.BigintType())
	p := ref("p", common.VarcharType(), "x")
	fn := NewFunction(NewFunctionInfo("concat", common.VarcharType()), a, StringLiteral("-"), p)
	refs := References(fn)
	require.Len(t, refs, 2)
	assert.Same(t, a, refs[0])
	assert.Same(t, p, refs[1])
	assert.True(t, ContainsReference(fn))
	assert.False(t, ContainsReference(NewFunction(NewFunctionInfo("now", common.TimestampType()))))
	assert.Equal(t, "concat(a, '-', p['x'])", Format(fn))
}

func TestEqual(t *testing.T) {
	d1, err := decimal.Parse("1.50")
	require.NoError(t, err)
	d2, err := decimal.Parse("1.5")
	require.NoError(t, err)
	assert.True(t, Equal(&Literal{Typ: common.DecimalType(0, 0), Value: d1},
		&Literal{Typ: common.DecimalType(0, 0), Value: d2}))
	assert.True(t, Equal(NewInputColumn(1, common.ObjectType()), NewInputColumn(1, common.ObjectType())))
	assert.False(t, Equal(NewInputColumn(1, common.ObjectType()), NewInputColumn(2, common.ObjectType())))
	assert.False(t, Equal(NewInputColumn(1, common.ObjectType()), StringLiteral("x")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, NullLiteral()))
}

func TestMirrorOperator(t *testing.T) {
	cases := map[string]string{
		OpEqual:        OpEqual,
		OpLess:         OpGreater,
		OpGreaterEqual: OpLessEqual,
	}
	for op, want := range cases {
		got, ok := MirrorOperator(op)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := MirrorOperator(OpAnd)
	assert.False(t, ok)
}

func TestPrint(t *testing.T) {
	fn := SubscriptObject(
		SubscriptObject(NewInputColumn(1, common.ObjectType()), "geo", common.ObjectType()),
		"region", common.VarcharType())
	out := String(fn)
	assert.Contains(t, out, "subscript_obj")
	assert.Contains(t, out, "INPUT(1)")
	assert.Contains(t, out, "'region'")
}

package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/parser"
	"github.com/weizai118/crate/pkg/symbol"
)

type mapResolver map[string]common.LType

func (m mapResolver) ResolveField(relation string, column common.ColumnIdent) (*symbol.Reference, error) {
	typ, has := m[column.Fqn()]
	if !has {
		return nil, common.ErrColumnUnknown.New(column.SqlFqn())
	}
	return &symbol.Reference{
		Table:    common.NewTableIdent("", "t"),
		Relation: relation,
		Column:   column,
		Typ:      typ,
	}, nil
}

var testColumns = mapResolver{
	"id":             common.IntegerType(),
	"ts":             common.TimestampType(),
	"name":           common.VarcharType(),
	"payload":        common.ObjectType(),
	"payload.region": common.VarcharType(),
}

func analyze(t *testing.T, expr string) symbol.Symbol {
	node, err := parser.ParseExpression(expr)
	require.NoError(t, err)
	s, err := NewAnalyzer(testColumns).Analyze(node)
	require.NoError(t, err)
	return s
}

func TestAnalyzeColumns(t *testing.T) {
	s := analyze(t, "payload['region']")
	ref, ok := s.(*symbol.Reference)
	require.True(t, ok)
	assert.Equal(t, common.NewColumnIdent("payload", "region"), ref.Column)
	assert.Equal(t, common.VarcharType(), ref.ValueType())

	s = analyze(t, "t.id")
	ref, ok = s.(*symbol.Reference)
	require.True(t, ok)
	assert.Equal(t, "t", ref.Relation)
	assert.Equal(t, "id", ref.Column.Name())

	node, err := parser.ParseExpression("missing + 1")
	require.NoError(t, err)
	_, err = NewAnalyzer(testColumns).Analyze(node)
	assert.True(t, common.ErrColumnUnknown.Is(err))
}

func TestAnalyzeFunctions(t *testing.T) {
	s := analyze(t, "date_trunc('day', ts)")
	fn, ok := s.(*symbol.Function)
	require.True(t, ok)
	assert.Equal(t, "date_trunc", fn.Name())
	assert.Equal(t, common.TimestampType(), fn.ValueType())
	assert.Equal(t, "date_trunc('day', ts)", symbol.Format(fn))

	s = analyze(t, "id + 1")
	assert.Equal(t, common.BigintType(), s.ValueType())

	s = analyze(t, "coalesce(name, 'x')")
	assert.Equal(t, common.VarcharType(), s.ValueType())

	s = analyze(t, "my_udf(id)")
	assert.True(t, s.ValueType().IsUndefined())

	cases := []struct {
		expr   string
		name   string
		format string
	}{
		{"coalesce(name, 'x')", "coalesce", "coalesce(name, 'x')"},
		{"greatest(id, 3)", "greatest", "greatest(id, 3)"},
		{"least(id, 3)", "least", "least(id, 3)"},
		{"nullif(name, '')", "nullif", "nullif(name, '')"},
	}
	for _, c := range cases {
		s = analyze(t, c.expr)
		fn, ok := s.(*symbol.Function)
		require.True(t, ok, c.expr)
		assert.Equal(t, c.name, fn.Name(), c.expr)
		assert.Equal(t, c.format, symbol.Format(fn), c.expr)
		assert.Equal(t, fn.Args[0].ValueType(), fn.ValueType(), c.expr)
	}

	s = analyze(t, "my_udf(id)")
	assert.True(t, s.ValueType().IsUndefined())

	s = analyze(t, "id::text")
	assert.Equal(t, common.VarcharType(), s.ValueType())
}

func TestAnalyzeOperators(t *testing.T) {
	s := analyze(t, "id = 1 and name is not null or not id < 3")
	assert.Equal(t, common.BooleanType(), s.ValueType())
	assert.Equal(t, "(((id = 1) AND (NOT (name IS NULL))) OR (NOT (id < 3)))", symbol.Format(s))

	s = analyze(t, "name like 'a%'")
	assert.Equal(t, symbol.OpLike, s.(*symbol.Function).Name())
}

func TestAnalyzeConstants(t *testing.T) {
	cases := []struct {
		expr string
		typ  common.LTypeId
	}{
		{"1", common.LTID_INTEGER},
		{"9999999999", common.LTID_BIGINT},
		{"1.25", common.LTID_DECIMAL},
		{"'abc'", common.LTID_VARCHAR},
		{"true", common.LTID_BOOLEAN},
		{"null", common.LTID_NULL},
	}
	for _, c := range cases {
		s := analyze(t, c.expr)
		lit, ok := s.(*symbol.Literal)
		require.True(t, ok, c.expr)
		assert.Equal(t, c.typ, lit.ValueType().Id, c.expr)
	}

	s := analyze(t, "-5")
	lit, ok := s.(*symbol.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(-5), lit.Value)
}
